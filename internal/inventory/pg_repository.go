package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) ListVaccines(ctx context.Context) ([]Vaccine, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, doses FROM vaccines ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query vaccines: %w", err)
	}

	vaccines, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Vaccine])
	if err != nil {
		return nil, fmt.Errorf("scan vaccines: %w", err)
	}
	return vaccines, nil
}

func (r *PgRepository) GetVaccine(ctx context.Context, name string) (*Vaccine, error) {
	var v Vaccine
	err := r.pool.QueryRow(ctx, `SELECT name, doses FROM vaccines WHERE name = $1`, name).Scan(&v.Name, &v.Doses)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVaccineNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *PgRepository) AddDoses(ctx context.Context, name string, doses int) (*Vaccine, error) {
	var v Vaccine
	err := r.pool.QueryRow(ctx, `
		INSERT INTO vaccines (name, doses)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET doses = vaccines.doses + EXCLUDED.doses
		RETURNING name, doses
	`, name, doses).Scan(&v.Name, &v.Doses)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
