package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/vaccine-appointment-scheduling/internal/account"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/appointment"
	"github.com/hackgods/vaccine-appointment-scheduling/internal/inventory"
)

type RouterConfig struct {
	Accounts     *account.Service
	Appointments *appointment.Service
	Inventory    *inventory.Service

	// DB and Redis are pinged by the readiness probe; nil skips the check.
	DB    Pinger
	Redis *redis.Client

	Log            *zap.Logger
	JWTSecret      string
	JWTExpiry      time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
	Env            string
	Version        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(cfg.Log))
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := NewHealthHandler(cfg.DB, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Account endpoints
	limiter := NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(limiter))
		r.Post("/caregivers", registerHandler(cfg.Accounts, account.RoleCaregiver))
		r.Post("/patients", registerHandler(cfg.Accounts, account.RolePatient))
		r.Post("/sessions", createSessionHandler(cfg.Accounts, cfg.JWTSecret, cfg.JWTExpiry))
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		// Availability endpoints
		r.Get("/availability", searchAvailabilityHandler(cfg.Appointments, cfg.Inventory))
		r.With(RequireRole(account.RoleCaregiver)).Post("/availability", uploadAvailabilityHandler(cfg.Appointments))
		r.With(RequireRole(account.RoleCaregiver)).Post("/availability/recurring", uploadRecurringHandler(cfg.Appointments))

		// Appointment endpoints
		r.With(RequireRole(account.RolePatient)).Post("/appointments", reserveAppointmentHandler(cfg.Appointments))
		r.Get("/appointments", listAppointmentsHandler(cfg.Appointments))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Appointments))
		r.Delete("/appointments/{id}", cancelAppointmentHandler(cfg.Appointments))

		// Vaccine endpoints
		r.Get("/vaccines", listVaccinesHandler(cfg.Inventory))
		r.With(RequireRole(account.RoleCaregiver)).Post("/vaccines/{name}/doses", addDosesHandler(cfg.Inventory))
	})

	return r
}
