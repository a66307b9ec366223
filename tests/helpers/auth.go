package helpers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/gommon/random"
	"github.com/stretchr/testify/require"
)

// RandomSecret returns a random signing secret suitable for a test.
func RandomSecret() string {
	return random.String(32)
}

// SignedSessionToken produces a token which the session verifier will accept
// when configured with the same secret.
func SignedSessionToken(t *testing.T, secret string, ttl time.Duration) string {
	claims := jwt.RegisteredClaims{
		Subject:   random.String(12, random.Alphanumeric),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}
