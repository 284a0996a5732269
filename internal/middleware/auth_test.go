package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validClaims(userID uint, exp time.Duration) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": "alice",
		"iss":      TokenIssuer,
		"aud":      TokenAudience,
		"exp":      time.Now().Add(exp).Unix(),
		"jti":      "abc-123",
	}
}

func TestParseAccessToken(t *testing.T) {
	wrongIssuer := validClaims(1, time.Hour)
	wrongIssuer["iss"] = "someone-else"
	wrongAudience := validClaims(1, time.Hour)
	wrongAudience["aud"] = "someone-else"
	badSub := validClaims(1, time.Hour)
	badSub["sub"] = "not-a-number"

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"Happy Path", signToken(t, validClaims(123, time.Hour), testSecret), nil},
		{"Missing", "", ErrMissingToken},
		{"Malformed", "malformed.token.here", ErrInvalidToken},
		{"Expired", signToken(t, validClaims(123, -time.Hour), testSecret), ErrInvalidToken},
		{"Wrong Secret", signToken(t, validClaims(123, time.Hour), "another-secret"), ErrInvalidToken},
		{"Wrong Issuer", signToken(t, wrongIssuer, testSecret), ErrInvalidIssuer},
		{"Wrong Audience", signToken(t, wrongAudience, testSecret), ErrInvalidAud},
		{"Bad Subject", signToken(t, badSub, testSecret), ErrInvalidSub},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ParseAccessToken(tt.token, testSecret)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint(123), claims.UserID)
			assert.Equal(t, "alice", claims.Username)
			assert.Equal(t, "abc-123", claims.JTI)
			assert.Greater(t, claims.ExpiresAt, time.Now().Unix())
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		query      string
		allowQuery bool
		want       string
	}{
		{"Header", "Bearer abc", "", false, "abc"},
		{"Basic Scheme Rejected", "Basic dXNlcjpwYXNz", "", true, ""},
		{"Query Allowed", "", "xyz", true, "xyz"},
		{"Query Disallowed", "", "xyz", false, ""},
		{"Nothing", "", "", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			var got string
			app.Get("/", func(c *fiber.Ctx) error {
				got = BearerToken(c, tt.allowQuery)
				return c.SendStatus(fiber.StatusOK)
			})

			path := "/"
			if tt.query != "" {
				path += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			_ = resp.Body.Close()
			assert.Equal(t, tt.want, got)
		})
	}
}
