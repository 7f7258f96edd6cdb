package helpers

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenOTPCodeIsSixDigits(t *testing.T) {
	re := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 200; i++ {
		code, err := GenOTPCode()
		require.NoError(t, err)
		assert.Regexp(t, re, code)
	}
}

func TestRegisterOTPKeyNormalisesEmail(t *testing.T) {
	assert.Equal(t, KeyRegisterOTP("admin@example.com"), KeyRegisterOTP("  Admin@Example.com "))
}
