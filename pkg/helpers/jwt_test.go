package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("a-secret", "r-secret", time.Minute, time.Hour)

	tok, exp, err := m.GenerateAccessToken("u1", "admin@example.com", "sid-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 2*time.Second)

	claims, err := m.ParseAccessToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "admin@example.com", claims.Email)
	assert.Equal(t, "sid-1", claims.SessionID)
}

func TestTokensAreNotInterchangeable(t *testing.T) {
	m := NewJWTManager("a-secret", "r-secret", time.Minute, time.Hour)

	refresh, _, err := m.GenerateRefreshToken("u1", "a@x.com", "sid")
	require.NoError(t, err)
	_, err = m.ParseAccessToken(refresh)
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	m := NewJWTManager("a-secret", "r-secret", -time.Minute, time.Hour)

	tok, _, err := m.GenerateAccessToken("u1", "a@x.com", "sid")
	require.NoError(t, err)
	_, err = m.ParseAccessToken(tok)
	assert.Error(t, err)
}
