package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type dependencyCheck struct {
	name  string
	probe func(ctx context.Context) error
}

type HealthHandler struct {
	checks  []dependencyCheck
	env     string
	version string
}

// NewHealthHandler probes Postgres and, when slot locks live there, Redis.
// A nil dependency is left out of readiness.
func NewHealthHandler(db Pinger, rdb *redis.Client, env, version string) *HealthHandler {
	h := &HealthHandler{env: env, version: version}
	if db != nil {
		h.checks = append(h.checks, dependencyCheck{name: "postgres", probe: db.Ping})
	}
	if rdb != nil {
		h.checks = append(h.checks, dependencyCheck{name: "redis", probe: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	return h
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{Status: "ok", Version: h.version, Env: h.env})
}

// Readiness runs every probe concurrently with a shared one second budget.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		deps = make(map[string]string, len(h.checks))
	)
	for _, c := range h.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			state := "ok"
			if err := c.probe(ctx); err != nil {
				state = "down"
			}
			mu.Lock()
			deps[c.name] = state
			mu.Unlock()
		}()
	}
	wg.Wait()

	resp := ReadinessResponse{Status: "ok", Version: h.version, Env: h.env, Dependencies: deps}
	code := http.StatusOK
	for _, state := range deps {
		if state != "ok" {
			resp.Status = "error"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, resp)
}
