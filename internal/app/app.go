// Package app connects the storage backends and builds the services every binary uses.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/appointment"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/config"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/db"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/inventory"
	redisclient "github.com/hackgods/vaccine-appointment-scheduling/internal/redis"
)

type App struct {
	Config config.Config
	Log    *zap.Logger
	Pool   *pgxpool.Pool
	// Redis is nil when slot locks are held in process.
	Redis *redis.Client

	Accounts     *account.Service
	Appointments *appointment.Service
	Inventory    *inventory.Service
}

// New connects to Postgres and, when configured, Redis. The caller must Close the App.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	pgCtx, cancelPg := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		return nil, fmt.Errorf("postgres connection error: %w", err)
	}
	log.Debug("connected to Postgres")

	a := &App{Config: cfg, Log: log, Pool: pool}

	var locker redisclient.Locker
	if cfg.UsesRedis() {
		rdb, err := redisclient.NewRedisClient(ctx, cfg)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("redis connection error: %w", err)
		}
		log.Debug("connected to Redis", zap.String("addr", cfg.RedisAddr))
		a.Redis = rdb
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	} else {
		log.Warn("using in-process slot locks; run a single instance only")
		locker = redisclient.NewLocalSlotLocker(cfg.LockTTL)
	}

	a.Accounts = account.NewService(account.NewPgRepository(pool), account.NewKDF(cfg.KDFIterations), cfg.QueryTimeout, log)
	a.Appointments = appointment.NewService(appointment.NewPgRepository(pool), locker, cfg, log)
	a.Inventory = inventory.NewService(inventory.NewPgRepository(pool), cfg.QueryTimeout, log)
	return a, nil
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Log.Warn("error closing redis", zap.Error(err))
		}
	}
	a.Pool.Close()
}
