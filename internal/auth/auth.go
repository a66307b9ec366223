// Package auth verifies the session tokens issued by the external identity
// provider Reel sits behind. Reel does not manage users itself; it only
// checks that requests carry a valid, unexpired token signed with the
// shared session secret.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hbomb79/Reel/pkg/logger"
	"github.com/labstack/echo/v4"
)

var log = logger.Get("Auth")

const claimsContextKey = "session"

var (
	ErrMissingToken = errors.New("no session token provided")
	errUnauthorized = echo.NewHTTPError(http.StatusUnauthorized)
)

type (
	Config struct {
		// When empty, session verification is disabled.
		Secret     string `yaml:"session_secret" env:"REEL_SESSION_SECRET"`
		CookieName string `yaml:"cookie_name" env:"REEL_SESSION_COOKIE" env-default:"auth-token"`
	}

	Verifier struct {
		secret     []byte
		cookieName string
	}
)

func NewVerifier(config Config) *Verifier {
	if config.CookieName == "" {
		config.CookieName = "auth-token"
	}

	return &Verifier{secret: []byte(config.Secret), cookieName: config.CookieName}
}

func (v *Verifier) Enabled() bool { return len(v.secret) > 0 }

// Verify parses the token, ensuring it is signed with HS256 using the
// session secret and that it has not expired.
func (v *Verifier) Verify(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	} else if claims.ExpiresAt == nil {
		return nil, errors.New("invalid session token: missing expiry")
	}

	return claims, nil
}

// Middleware rejects requests which do not carry a valid session token,
// either in the session cookie or as a Bearer token. If verification is
// disabled the middleware lets every request through.
func (v *Verifier) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !v.Enabled() {
			return next
		}

		return func(ec echo.Context) error {
			token, err := v.lookupToken(ec)
			if err != nil {
				return errUnauthorized
			}

			claims, err := v.Verify(token)
			if err != nil {
				log.Warnf("Rejected request to %s: %v\n", ec.Path(), err)
				return errUnauthorized
			}

			ec.Set(claimsContextKey, claims)
			return next(ec)
		}
	}
}

func (v *Verifier) lookupToken(ec echo.Context) (string, error) {
	if cookie, err := ec.Cookie(v.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	if header := ec.Request().Header.Get(echo.HeaderAuthorization); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
			return token, nil
		}
	}

	return "", ErrMissingToken
}

// ClaimsFromContext returns the verified claims of the request, if any.
func ClaimsFromContext(ec echo.Context) (*jwt.RegisteredClaims, bool) {
	claims, ok := ec.Get(claimsContextKey).(*jwt.RegisteredClaims)
	return claims, ok
}
