package account

import (
	"context"
	"errors"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrDuplicateAccount   = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Repository persists accounts per role.
type Repository interface {
	// CreateAccount returns ErrDuplicateAccount when the username exists for the role.
	CreateAccount(ctx context.Context, acct Account) error
	// GetAccount returns ErrAccountNotFound for unknown usernames.
	GetAccount(ctx context.Context, role Role, username string) (*Account, error)
}
