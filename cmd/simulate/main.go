package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/app"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/appointment"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/config"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/inventory"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/logging"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/memstore"
	redisclient "github.com/hackgods/vaccine-appointment-scheduling/internal/redis"
)

type SimConfig struct {
	Backend  string
	Patients int
	Rounds   int
	Vaccine  string
	LockTTL  time.Duration
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Reserve OperationMetrics
	Cancel  OperationMetrics
}

type Simulator struct {
	config       SimConfig
	accounts     *account.Service
	appointments *appointment.Service
	stock        *inventory.Service
	metrics      Metrics
	runID        string
	violations   []string
	log          *zap.Logger
}

func main() {
	logger, err := logging.New(getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"), os.Getenv("LOG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	os.Exit(run(logger))
}

func run(logger *zap.Logger) int {
	defer logger.Sync()

	simCfg := loadConfig()
	if err := validateConfig(simCfg); err != nil {
		logger.Error("invalid simulation config", zap.Error(err))
		return 1
	}

	logger.Info("simulator starting",
		zap.String("backend", simCfg.Backend),
		zap.Int("patients", simCfg.Patients),
		zap.Int("rounds", simCfg.Rounds),
		zap.String("vaccine", simCfg.Vaccine),
	)

	ctx := context.Background()
	sim, cleanup, err := newSimulator(ctx, simCfg, logger)
	if err != nil {
		logger.Error("setup failed", zap.Error(err))
		return 1
	}
	defer cleanup()

	if err := sim.Run(ctx); err != nil {
		logger.Error("simulation aborted", zap.Error(err))
		return 1
	}
	sim.PrintReport()

	if len(sim.violations) > 0 {
		return 2
	}
	return 0
}

func loadConfig() SimConfig {
	return SimConfig{
		Backend:  getEnv("SIM_BACKEND", "memory"),
		Patients: getInt("SIM_PATIENTS", 50),
		Rounds:   getInt("SIM_ROUNDS", 10),
		Vaccine:  getEnv("SIM_VACCINE", "Pfizer"),
		LockTTL:  getDuration("LOCK_TTL", 5*time.Second),
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Backend != "memory" && cfg.Backend != "postgres" {
		return fmt.Errorf("SIM_BACKEND must be memory or postgres, got %q", cfg.Backend)
	}
	if cfg.Patients < 2 {
		return fmt.Errorf("SIM_PATIENTS must be at least 2")
	}
	if cfg.Rounds < 1 {
		return fmt.Errorf("SIM_ROUNDS must be at least 1")
	}
	return nil
}

// newSimulator builds services on the in-memory store, or on Postgres and the
// configured lock backend.
func newSimulator(ctx context.Context, simCfg SimConfig, logger *zap.Logger) (*Simulator, func(), error) {
	sim := &Simulator{config: simCfg, runID: uuid.NewString()[:8], log: logger.Named("simulate")}

	if simCfg.Backend == "memory" {
		store := memstore.New()
		cfg := config.Config{QueryTimeout: 5 * time.Second}

		sim.accounts = account.NewService(store, account.NewKDF(1000), cfg.QueryTimeout, logger)
		sim.appointments = appointment.NewService(store, redisclient.NewLocalSlotLocker(simCfg.LockTTL), cfg, logger)
		sim.stock = inventory.NewService(store, cfg.QueryTimeout, logger)
		return sim, func() {}, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	sim.accounts = application.Accounts
	sim.appointments = application.Appointments
	sim.stock = application.Inventory
	return sim, application.Close, nil
}

// Run races every patient for one caregiver's slot per round, then has the winner
// cancel, and checks the ledger after each step.
func (s *Simulator) Run(ctx context.Context) error {
	faker := gofakeit.New(0)

	patients := make([]string, s.config.Patients)
	for i := range patients {
		patients[i] = fmt.Sprintf("%s-%s-%d", strings.ToLower(faker.FirstName()), s.runID, i)
		if _, err := s.accounts.Register(ctx, account.RolePatient, patients[i], "sim"); err != nil {
			return fmt.Errorf("register patient: %w", err)
		}
	}

	if _, err := s.stock.AddDoses(ctx, s.config.Vaccine, s.config.Rounds*2); err != nil {
		return fmt.Errorf("stock vaccine: %w", err)
	}

	// far enough ahead that reruns never meet real data
	base := appointment.NormalizeDate(time.Now()).AddDate(5, 0, 0)

	s.log.Info("starting rounds", zap.Int("rounds", s.config.Rounds), zap.Int("patients", len(patients)))
	for round := 0; round < s.config.Rounds; round++ {
		caregiver := fmt.Sprintf("sim-cg-%s-%d", s.runID, round)
		if _, err := s.accounts.Register(ctx, account.RoleCaregiver, caregiver, "sim"); err != nil {
			return fmt.Errorf("register caregiver: %w", err)
		}

		date := base.AddDate(0, 0, round)
		if err := s.appointments.UploadAvailability(ctx, caregiver, date); err != nil {
			return fmt.Errorf("upload availability: %w", err)
		}

		if err := s.runRound(ctx, caregiver, date, patients); err != nil {
			return err
		}
	}

	s.log.Info("simulation complete", zap.String("run_id", s.runID))
	return nil
}

func (s *Simulator) runRound(ctx context.Context, caregiver string, date time.Time, patients []string) error {
	var (
		mu      sync.Mutex
		winners []appointment.Principal
		ids     []string
	)

	start := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	for _, patient := range patients {
		g.Go(func() error {
			<-start

			began := time.Now()
			id, err := s.appointments.ReserveAppointment(gctx, appointment.ReserveRequest{
				Patient:   patient,
				Caregiver: caregiver,
				Vaccine:   s.config.Vaccine,
				Date:      date,
			})
			latency := time.Since(began)

			switch {
			case err == nil:
				s.metrics.Reserve.Record(latency, true, false)
				mu.Lock()
				winners = append(winners, appointment.Principal{Role: account.RolePatient, Username: patient})
				ids = append(ids, id)
				mu.Unlock()
				return nil
			case appointment.IsOutcome(err):
				s.metrics.Reserve.Record(latency, false, true)
				return nil
			default:
				s.metrics.Reserve.Record(latency, false, false)
				return err
			}
		})
	}
	close(start)
	if err := g.Wait(); err != nil {
		return fmt.Errorf("reserve: %w", err)
	}

	if len(winners) != 1 {
		s.violate("%s on %s: %d reservations succeeded", caregiver, date.Format(appointment.DateLayout), len(winners))
		return nil
	}
	if err := s.checkLedger(ctx, caregiver, date, 1, false); err != nil {
		return err
	}

	began := time.Now()
	_, err := s.appointments.CancelAppointment(ctx, winners[0], ids[0])
	s.metrics.Cancel.Record(time.Since(began), err == nil, appointment.IsOutcome(err))
	if err != nil {
		if appointment.IsOutcome(err) {
			s.violate("%s: cancel rejected: %v", ids[0], err)
			return nil
		}
		return fmt.Errorf("cancel: %w", err)
	}

	return s.checkLedger(ctx, caregiver, date, 0, true)
}

// checkLedger verifies the caregiver holds exactly booked appointments and that the
// slot is open only when nothing is booked.
func (s *Simulator) checkLedger(ctx context.Context, caregiver string, date time.Time, booked int, wantOpen bool) error {
	appts, err := s.appointments.ListAppointments(ctx, appointment.Principal{Role: account.RoleCaregiver, Username: caregiver})
	if err != nil {
		return err
	}
	if len(appts) != booked {
		s.violate("%s: %d appointments, want %d", caregiver, len(appts), booked)
	}

	open, err := s.appointments.SearchAvailability(ctx, date)
	if err != nil {
		return err
	}
	isOpen := false
	for _, c := range open {
		if c == caregiver {
			isOpen = true
		}
	}
	if isOpen != wantOpen {
		s.violate("%s on %s: slot open=%v, want %v", caregiver, date.Format(appointment.DateLayout), isOpen, wantOpen)
	}
	return nil
}

func (s *Simulator) violate(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.log.Warn("invariant violated", zap.String("detail", msg))
	s.violations = append(s.violations, msg)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Backend: %s\n", s.config.Backend)
	fmt.Printf("Rounds: %d\n", s.config.Rounds)
	fmt.Printf("Patients per round: %d\n", s.config.Patients)
	fmt.Println()

	printOperationReport("Reserve", &s.metrics.Reserve)
	printOperationReport("Cancel", &s.metrics.Cancel)

	if len(s.violations) == 0 {
		fmt.Println("Invariants: OK (one booking per slot, slot restored on cancel)")
		return
	}
	fmt.Printf("Invariants: %d VIOLATIONS\n", len(s.violations))
	for _, v := range s.violations {
		fmt.Printf("  - %s\n", v)
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Microsecond), min.Round(time.Microsecond), max.Round(time.Microsecond),
		p50.Round(time.Microsecond), p95.Round(time.Microsecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
