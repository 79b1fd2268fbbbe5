package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTAuthenticator_RoundTrip(t *testing.T) {
	a := NewJWTAuthenticator("reminder-app", "reminder-app")

	token, err := a.GenerateToken("u1", "u1", "secret", time.Minute)
	require.NoError(t, err)

	claims, err := a.ValidateToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "u1", claims.Subject)
}

func TestJWTAuthenticator_Rejects(t *testing.T) {
	a := NewJWTAuthenticator("reminder-app", "reminder-app")

	token, err := a.GenerateToken("u1", "u1", "secret", time.Minute)
	require.NoError(t, err)

	_, err = a.ValidateToken(token, "other-secret")
	assert.Error(t, err, "wrong secret")

	expired, err := a.GenerateToken("u1", "u1", "secret", -time.Minute)
	require.NoError(t, err)
	_, err = a.ValidateToken(expired, "secret")
	assert.Error(t, err, "expired token")

	other := NewJWTAuthenticator("another-app", "reminder-app")
	foreign, err := other.GenerateToken("u1", "u1", "secret", time.Minute)
	require.NoError(t, err)
	_, err = a.ValidateToken(foreign, "secret")
	assert.Error(t, err, "wrong audience")
}
