package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	maxTxAttempts = 3
	retryBackoff  = 20 * time.Millisecond
)

var (
	// ReadWrite is used for every ledger mutation. Serializable rules out write skew on
	// the (date, caregiver) key.
	ReadWrite = pgx.TxOptions{IsoLevel: pgx.Serializable}

	// Snapshot gives readers one consistent view for the whole scan.
	Snapshot = pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
)

// RunInTx runs fn inside a transaction and commits when fn returns nil. The
// transaction is rolled back on any error, including context cancellation.
// Serialization failures and deadlocks are retried with a short backoff.
func RunInTx(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, fn func(tx pgx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = runOnce(ctx, pool, opts, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("transaction aborted: %w", ctx.Err())
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return fmt.Errorf("transaction retries exhausted: %w", err)
}

func runOnce(ctx context.Context, pool *pgxpool.Pool, opts pgx.TxOptions, fn func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
