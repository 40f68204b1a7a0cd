package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/app"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/appointment"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/config"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/logging"
)

func main() {
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
	logger = logger.Named("slot-pruner")

	logger.Info("slot-pruner starting up", zap.Duration("interval", cfg.WorkerInterval))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(rootCtx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		return
	}
	defer application.Close()

	// Run once at startup
	runOnce(rootCtx, application.Appointments, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info("shutdown signal received, stopping slot-pruner")
			return
		case <-ticker.C:
			runOnce(rootCtx, application.Appointments, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, logger *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	removed, err := svc.PrunePastAvailability(runCtx, time.Now())
	if err != nil {
		logger.Error("prune run error", zap.Error(err))
		return
	}
	logger.Info("prune run complete", zap.Int64("removed", removed), zap.Duration("took", time.Since(start)))
}
