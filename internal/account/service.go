package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/db"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/validation"
)

// Credentials is the validated input of Register.
type Credentials struct {
	Role     Role   `validate:"required,oneof=caregiver patient"`
	Username string `validate:"required,max=255"`
	Password string `validate:"required,max=128"`
}

// dummySalt keeps unknown-username logins as slow as real ones.
var dummySalt = make([]byte, SaltSize)

type Service struct {
	repo    Repository
	kdf     KDF
	timeout time.Duration
	log     *zap.Logger
}

func NewService(repo Repository, kdf KDF, timeout time.Duration, log *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		kdf:     kdf,
		timeout: timeout,
		log:     log.Named("account"),
	}
}

// Register creates an account with a fresh salt.
func (s *Service) Register(ctx context.Context, role Role, username, password string) (*Account, error) {
	creds := Credentials{Role: role, Username: username, Password: password}
	if err := validation.Struct(creds); err != nil {
		return nil, err
	}

	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.repo.GetAccount(ctx, role, username); err == nil {
		return nil, ErrDuplicateAccount
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, fmt.Errorf("look up %s: %w", role, err)
	}

	salt, err := NewSalt()
	if err != nil {
		return nil, err
	}

	acct := Account{
		Role:      role,
		Username:  username,
		Salt:      salt,
		Hash:      s.kdf.Derive(password, salt),
		CreatedAt: time.Now().UTC(),
	}

	// a concurrent registration can still win between the lookup and the insert
	if err := s.repo.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			return nil, err
		}
		return nil, fmt.Errorf("create %s: %w", role, err)
	}

	s.log.Info("account registered", zap.String("role", role.String()), zap.String("username", username))
	return &acct, nil
}

// Authenticate returns the account when password matches. Unknown usernames and
// wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, role Role, username, password string) (*Account, error) {
	if _, err := ParseRole(string(role)); err != nil || username == "" {
		return nil, ErrInvalidCredentials
	}

	ctx, cancel := db.WithTimeout(ctx, s.timeout)
	defer cancel()

	acct, err := s.repo.GetAccount(ctx, role, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			s.kdf.Derive(password, dummySalt)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("look up %s: %w", role, err)
	}

	if !s.kdf.Matches(password, acct.Salt, acct.Hash) {
		s.log.Debug("password mismatch", zap.String("role", role.String()), zap.String("username", username))
		return nil, ErrInvalidCredentials
	}

	acct.Hash = TrimPadding(acct.Hash)
	return acct, nil
}
