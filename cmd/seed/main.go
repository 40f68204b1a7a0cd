package main

import (
	"context"
	_ "embed"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/app"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/appointment"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/config"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/inventory"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/logging"
)

//go:embed vaccines.yaml
var defaultCatalog []byte

type catalog struct {
	Vaccines []inventory.Vaccine `yaml:"vaccines"`
}

type seedOptions struct {
	caregivers  int
	patients    int
	days        int
	password    string
	catalogPath string
}

func main() {
	var opts seedOptions
	flag.IntVar(&opts.caregivers, "caregivers", 20, "number of caregivers to register")
	flag.IntVar(&opts.patients, "patients", 200, "number of patients to register")
	flag.IntVar(&opts.days, "days", 14, "open availability over the next N days")
	flag.StringVar(&opts.password, "password", "password", "password shared by every seeded account")
	flag.StringVar(&opts.catalogPath, "catalog", "", "vaccine catalog YAML (defaults to the built-in one)")
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

	if err := run(context.Background(), cfg, logger, opts); err != nil {
		logger.Error("seed failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("seed complete")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, opts seedOptions) error {
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	faker := gofakeit.New(0)

	if err := seedVaccines(ctx, application.Inventory, opts.catalogPath, logger); err != nil {
		return fmt.Errorf("seed vaccines: %w", err)
	}

	caregivers := fakeUsernames(faker, "cg", opts.caregivers)
	if err := seedAccounts(ctx, application.Accounts, account.RoleCaregiver, caregivers, opts.password, logger); err != nil {
		return fmt.Errorf("seed caregivers: %w", err)
	}

	patients := fakeUsernames(faker, "pt", opts.patients)
	if err := seedAccounts(ctx, application.Accounts, account.RolePatient, patients, opts.password, logger); err != nil {
		return fmt.Errorf("seed patients: %w", err)
	}

	if err := seedAvailability(ctx, application.Appointments, faker, caregivers, opts.days, logger); err != nil {
		return fmt.Errorf("seed availability: %w", err)
	}
	return nil
}

func loadCatalog(path string) (*catalog, error) {
	data := defaultCatalog
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, err
		}
	}

	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &c, nil
}

func seedVaccines(ctx context.Context, stock *inventory.Service, path string, logger *zap.Logger) error {
	c, err := loadCatalog(path)
	if err != nil {
		return err
	}

	for _, v := range c.Vaccines {
		updated, err := stock.AddDoses(ctx, v.Name, v.Doses)
		if err != nil {
			return fmt.Errorf("%s: %w", v.Name, err)
		}
		logger.Info("vaccine stocked", zap.String("vaccine", updated.Name), zap.Int("doses", updated.Doses))
	}
	return nil
}

// fakeUsernames returns count distinct usernames; the index suffix keeps them unique.
func fakeUsernames(faker *gofakeit.Faker, prefix string, count int) []string {
	names := make([]string, count)
	for i := range names {
		names[i] = fmt.Sprintf("%s-%s-%d", prefix, strings.ToLower(faker.Username()), i)
	}
	return names
}

func seedAccounts(ctx context.Context, accounts *account.Service, role account.Role, usernames []string, password string, logger *zap.Logger) error {
	logger.Info("seeding accounts", zap.String("role", role.String()), zap.Int("count", len(usernames)))

	var created atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	// password hashing is CPU bound
	g.SetLimit(8)

	for _, username := range usernames {
		g.Go(func() error {
			_, err := accounts.Register(gctx, role, username, password)
			if errors.Is(err, account.ErrDuplicateAccount) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("%s: %w", username, err)
			}
			created.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("accounts seeded", zap.String("role", role.String()), zap.Int64("created", created.Load()))
	return nil
}

func seedAvailability(ctx context.Context, svc *appointment.Service, faker *gofakeit.Faker, caregivers []string, days int, logger *zap.Logger) error {
	today := appointment.NormalizeDate(time.Now())

	var uploaded int
	for _, caregiver := range caregivers {
		for d := 0; d < days; d++ {
			// roughly two days in three
			if faker.Number(0, 2) == 0 {
				continue
			}

			err := svc.UploadAvailability(ctx, caregiver, today.AddDate(0, 0, d))
			if appointment.IsOutcome(err) {
				continue
			}
			if err != nil {
				return err
			}
			uploaded++
		}
	}

	logger.Info("availability seeded", zap.Int("slots", uploaded))
	return nil
}
