package account

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize          = 16
	KeyLength         = 16
	DefaultIterations = 10000
)

// KDF derives fixed-length password digests with PBKDF2-HMAC-SHA256.
type KDF struct {
	Iterations int
	KeyLength  int
}

func NewKDF(iterations int) KDF {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return KDF{Iterations: iterations, KeyLength: KeyLength}
}

func (k KDF) Derive(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, k.Iterations, k.KeyLength, sha256.New)
}

// Matches recomputes the digest for password and compares it with stored in constant
// time. Fixed-width padding added by storage is stripped first; without that a
// correct password never matches a padded column.
func (k KDF) Matches(password string, salt, stored []byte) bool {
	computed := TrimPadding(k.Derive(password, salt))
	return subtle.ConstantTimeCompare(computed, TrimPadding(stored)) == 1
}

// NewSalt returns SaltSize random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// TrimPadding drops trailing zero bytes.
func TrimPadding(b []byte) []byte {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return b[:end]
}
