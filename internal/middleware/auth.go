// Package middleware provides request-scoped plumbing shared by the HTTP server:
// logging, token parsing, rate limiting, tracing and metrics.
package middleware

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Token issuer and audience stamped on every access token.
const (
	TokenIssuer   = "zanhu-api"
	TokenAudience = "zanhu-client"
)

var (
	ErrMissingToken  = errors.New("authorization required")
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrInvalidIssuer = errors.New("invalid token issuer")
	ErrInvalidAud    = errors.New("invalid token audience")
	ErrInvalidSub    = errors.New("invalid user ID in token")
)

// AccessClaims is the subset of token claims the server relies on.
type AccessClaims struct {
	UserID   uint
	Username string
	JTI      string
	// ExpiresAt is unix seconds; zero when the token carries no exp.
	ExpiresAt int64
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
// When allowQuery is set, a ?token= query parameter is accepted as a fallback.
func BearerToken(c *fiber.Ctx, allowQuery bool) string {
	if authHeader := c.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	if allowQuery {
		return c.Query("token")
	}
	return ""
}

// ParseAccessToken validates signature, expiry, issuer and audience and returns the claims.
func ParseAccessToken(tokenString, secret string) (*AccessClaims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if issuer, ok := claims["iss"].(string); !ok || issuer != TokenIssuer {
		return nil, ErrInvalidIssuer
	}
	if audience, ok := claims["aud"].(string); !ok || audience != TokenAudience {
		return nil, ErrInvalidAud
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrInvalidSub
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		return nil, ErrInvalidSub
	}

	out := &AccessClaims{UserID: uint(userID)}
	out.Username, _ = claims["username"].(string)
	out.JTI, _ = claims["jti"].(string)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Unix()
	}
	return out, nil
}
