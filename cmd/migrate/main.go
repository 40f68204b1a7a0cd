package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/db"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/logging"
)

func main() {
	op := flag.String("op", "", "operation: up, down, version, force")
	steps := flag.Int("steps", 0, "number of steps for up/down (0 = all), or the version for force")
	flag.Parse()

	if *op == "" {
		fmt.Println("Usage: go run ./cmd/migrate -op=[up|down|version|force] -steps=[n]")
		os.Exit(1)
	}

	_ = godotenv.Load()
	logger, err := logging.New(getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"), os.Getenv("LOG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger, *op, *steps); err != nil {
		logger.Error("migration failed", zap.String("op", *op), zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(logger *zap.Logger, op string, steps int) error {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		return errors.New("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	m, err := db.NewMigrator(pool)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	defer m.Close()

	switch op {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("no migrations applied")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("schema version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return nil
	case "force":
		if steps == 0 {
			return errors.New("please specify version to force with -steps")
		}
		err = m.Force(steps)
	default:
		return fmt.Errorf("unknown operation %q", op)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("no changes detected", zap.String("op", op))
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("migration applied", zap.String("op", op), zap.Int("steps", steps))
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
