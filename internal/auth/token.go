// Package auth issues and verifies session tokens for logged-in accounts.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
)

var ErrBadToken = errors.New("invalid token")

type Claims struct {
	Role account.Role `json:"role"`
	jwt.RegisteredClaims
}

// MakeToken signs an HS256 token naming username as subject.
func MakeToken(username string, role account.Role, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	c := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

func ParseToken(raw, secret string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		// block alg confusion
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || c.Subject == "" {
		return nil, ErrBadToken
	}
	if _, err := account.ParseRole(string(c.Role)); err != nil {
		return nil, ErrBadToken
	}
	return c, nil
}
