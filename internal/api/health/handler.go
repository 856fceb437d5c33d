package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"exconnect/internal/workers"
	"exconnect/pkg/logger"
)

// Checker is a dependency the service needs to be ready.
type Checker interface {
	Health(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Health(ctx context.Context) error { return f(ctx) }

// WorkerSource reports worker state, usually the scheduler.
type WorkerSource interface {
	Health() []workers.WorkerHealth
}

// OutageSource lists exchange/operation pairs currently marked down.
type OutageSource interface {
	Down() []string
}

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	checks      map[string]Checker
	workers     WorkerSource
	outages     OutageSource
	startTime   time.Time
	serviceName string
	version     string
}

// New creates a new health check handler. Nil checkers are ignored so
// disabled backends can be passed straight through.
func New(log *logger.Logger, serviceName, version string) *Handler {
	return &Handler{
		log:         log,
		checks:      make(map[string]Checker),
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// AddCheck registers a readiness dependency.
func (h *Handler) AddCheck(name string, c Checker) *Handler {
	if c != nil {
		h.checks[name] = c
	}
	return h
}

func (h *Handler) WithWorkers(src WorkerSource) *Handler {
	h.workers = src
	return h
}

func (h *Handler) WithOutages(src OutageSource) *Handler {
	h.outages = src
	return h
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                     `json:"status"` // "healthy", "degraded", "unhealthy"
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
	Workers   []workers.WorkerHealth     `json:"workers,omitempty"`
	Down      []string                   `json:"down,omitempty"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HandleLiveness returns 200 OK if service is running
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HandleReadiness fails when any registered dependency is unhealthy.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.status(ctx)
	code := http.StatusOK
	if status.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
		h.log.Warnw("Readiness check failed", "checks", status.Checks)
	}
	status.Workers = nil
	status.Down = nil
	writeJSON(w, code, status)
}

// HandleHealth returns the full report. Exchange outages and stale
// workers degrade the status but never fail it.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := h.status(ctx)
	if h.workers != nil {
		status.Workers = h.workers.Health()
		now := time.Now()
		for _, w := range status.Workers {
			if w.Stale(now) && status.Status == "healthy" {
				status.Status = "degraded"
			}
		}
	}
	if h.outages != nil {
		status.Down = h.outages.Down()
		sort.Strings(status.Down)
		if len(status.Down) > 0 && status.Status == "healthy" {
			status.Status = "degraded"
		}
	}

	code := http.StatusOK
	if status.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (h *Handler) status(ctx context.Context) HealthStatus {
	checks := make(map[string]ComponentHealth, len(h.checks))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, c := range h.checks {
		name, c := name, c
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := check(ctx, c)
			mu.Lock()
			checks[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := HealthStatus{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
	for _, c := range checks {
		if c.Status != "healthy" {
			status.Status = "unhealthy"
		}
	}
	return status
}

func check(ctx context.Context, c Checker) ComponentHealth {
	start := time.Now()
	err := c.Health(ctx)
	res := ComponentHealth{
		Status:       "healthy",
		ResponseTime: time.Since(start).String(),
	}
	if err != nil {
		res.Status = "unhealthy"
		res.Error = err.Error()
	}
	return res
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
