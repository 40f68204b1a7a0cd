package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/db"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// tableFor maps a role onto its table. Only these two names ever reach SQL text.
func tableFor(role Role) (string, error) {
	switch role {
	case RoleCaregiver:
		return "caregivers", nil
	case RolePatient:
		return "patients", nil
	default:
		return "", fmt.Errorf("unknown role %q", role)
	}
}

func (r *PgRepository) CreateAccount(ctx context.Context, acct Account) error {
	table, err := tableFor(acct.Role)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO `+table+` (username, salt, hash, created_at)
		VALUES ($1, $2, $3, now())
	`, acct.Username, acct.Salt, acct.Hash)
	if err != nil {
		if _, ok := db.IsUniqueViolation(err); ok {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("insert %s: %w", acct.Role, err)
	}
	return nil
}

func (r *PgRepository) GetAccount(ctx context.Context, role Role, username string) (*Account, error) {
	table, err := tableFor(role)
	if err != nil {
		return nil, err
	}

	acct := Account{Role: role}
	err = r.pool.QueryRow(ctx, `
		SELECT username, salt, hash, created_at
		FROM `+table+`
		WHERE username = $1
	`, username).Scan(&acct.Username, &acct.Salt, &acct.Hash, &acct.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("select %s: %w", role, err)
	}
	return &acct, nil
}
