package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccessToken(t *testing.T) {
	at, err := NewAccessToken("secret", 42, "STUDENT", 15)
	require.NoError(t, err)
	require.NotEmpty(t, at.Token)
	assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), at.Exp, 5*time.Second)

	parsed, err := jwt.Parse(at.Token, func(tok *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, float64(42), claims["sub"])
	assert.Equal(t, "STUDENT", claims["role"])
}

func TestNewRefreshToken(t *testing.T) {
	rt, err := NewRefreshToken(7)
	require.NoError(t, err)
	assert.Len(t, rt.Raw, 96) // 48 random bytes hex-encoded
	assert.WithinDuration(t, time.Now().UTC().Add(7*24*time.Hour), rt.Exp, 5*time.Second)

	other, err := NewRefreshToken(7)
	require.NoError(t, err)
	assert.NotEqual(t, rt.Raw, other.Raw)
}

func TestHashRefreshRaw(t *testing.T) {
	h1 := HashRefreshRaw("token-a")
	h2 := HashRefreshRaw("token-a")
	h3 := HashRefreshRaw("token-b")
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}
