package helpers

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
)

// KeyRegisterOTP is the Redis key holding the pending registration code for an email.
func KeyRegisterOTP(email string) string {
	return "register:otp:" + strings.ToLower(strings.TrimSpace(email))
}

// KeyRegisterOTPAttempts counts failed verifications for an email.
func KeyRegisterOTPAttempts(email string) string {
	return "register:otp:attempts:" + strings.ToLower(strings.TrimSpace(email))
}

// GenOTPCode generates a secure random 6-digit OTP code as a zero-padded string
func GenOTPCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", binary.BigEndian.Uint32(b)%1000000), nil
}
