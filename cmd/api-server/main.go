package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/api"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/app"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/config"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/db"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/logging"
)

var version = "dev"

func main() {
	migrateFirst := flag.Bool("migrate", false, "apply pending migrations before serving")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger, *migrateFirst); err != nil {
		logger.Error("api-server stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger, migrateFirst bool) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	logger.Info("api-server starting up",
		zap.String("http_port", cfg.HTTPPort),
		zap.String("lock_backend", cfg.LockBackend),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(rootCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	if migrateFirst {
		if err := db.MigrateUp(application.Pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied")
	}

	router := api.NewRouter(api.RouterConfig{
		Accounts:       application.Accounts,
		Appointments:   application.Appointments,
		Inventory:      application.Inventory,
		DB:             application.Pool,
		Redis:          application.Redis,
		Log:            logger,
		JWTSecret:      cfg.JWTSecret,
		JWTExpiry:      cfg.JWTExpiry,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Env:            cfg.Env,
		Version:        version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down api-server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
