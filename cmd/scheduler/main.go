package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hackgods/vaccine-appointment-scheduling/cmd/scheduler/commands"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/app"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/config"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/logging"
)

func main() {
	appCtx := &commands.AppContext{Ctx: context.Background()}

	rootCmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Vaccine appointment scheduler",
		Long: `Register caregivers and patients, publish caregiver availability, and
reserve or cancel vaccination appointments.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp(appCtx)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if appCtx.App != nil {
				appCtx.App.Close()
			}
			if appCtx.Logger != nil {
				_ = appCtx.Logger.Sync()
			}
		},
	}

	// Credentials for commands that act as a caregiver or patient
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&appCtx.Role, "role", "", "log in as caregiver or patient")
	flags.StringVarP(&appCtx.Username, "username", "u", os.Getenv("SCHEDULER_USERNAME"), "username (env SCHEDULER_USERNAME)")
	flags.StringVarP(&appCtx.Password, "password", "p", os.Getenv("SCHEDULER_PASSWORD"), "password (env SCHEDULER_PASSWORD)")

	rootCmd.AddCommand(commands.CreatePatientCmd(appCtx))
	rootCmd.AddCommand(commands.CreateCaregiverCmd(appCtx))
	rootCmd.AddCommand(commands.UploadAvailabilityCmd(appCtx))
	rootCmd.AddCommand(commands.UploadRecurringCmd(appCtx))
	rootCmd.AddCommand(commands.SearchCmd(appCtx))
	rootCmd.AddCommand(commands.ReserveCmd(appCtx))
	rootCmd.AddCommand(commands.CancelCmd(appCtx))
	rootCmd.AddCommand(commands.ShowAppointmentsCmd(appCtx))
	rootCmd.AddCommand(commands.VaccinesCmd(appCtx))
	rootCmd.AddCommand(commands.AddDosesCmd(appCtx))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up config, logger, and services
func initApp(appCtx *commands.AppContext) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	appCtx.Cfg = cfg

	// console output belongs to the commands; keep the logger quiet unless asked
	level := cfg.LogLevel
	if os.Getenv("LOG_LEVEL") == "" {
		level = "warn"
	}
	appCtx.Logger, err = logging.New(cfg.Env, level, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appCtx.App, err = app.New(appCtx.Ctx, cfg, appCtx.Logger)
	if err != nil {
		return err
	}
	appCtx.Logger.Debug("scheduler ready", zap.String("lock_backend", cfg.LockBackend))
	return nil
}
