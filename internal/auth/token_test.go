package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
)

func TestMakeAndParseToken(t *testing.T) {
	raw, err := MakeToken("alice", account.RoleCaregiver, "s3cret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(raw, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, account.RoleCaregiver, claims.Role)
}

func TestParseTokenWrongSecret(t *testing.T) {
	raw, err := MakeToken("alice", account.RolePatient, "s3cret", time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(raw, "other")
	assert.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	raw, err := MakeToken("alice", account.RolePatient, "s3cret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(raw, "s3cret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseTokenRejectsNoneAlg(t *testing.T) {
	c := Claims{
		Role:             account.RolePatient,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "mallory"},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, c).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseToken(raw, "s3cret")
	assert.Error(t, err)
}

func TestParseTokenRejectsUnknownRole(t *testing.T) {
	c := Claims{
		Role:             account.Role("admin"),
		RegisteredClaims: jwt.RegisteredClaims{Subject: "root"},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = ParseToken(raw, "s3cret")
	assert.ErrorIs(t, err, ErrBadToken)
}
