package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/gustycube/conjunctions/internal/logging"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

type Check struct {
	Name        string        `json:"name"`
	Status      Status        `json:"status"`
	Message     string        `json:"message,omitempty"`
	LastChecked time.Time     `json:"last_checked"`
	Duration    time.Duration `json:"duration_ms"`
}

type Response struct {
	Status    Status            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    []Check           `json:"checks"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Checker defines the interface for health checks
type Checker interface {
	Check(ctx context.Context) Check
}

// Handler serves /health, /ready and /live for a batch run.
type Handler struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	metadata map[string]string
	logger   *logging.Logger
	ready    bool
}

func NewHandler(logger *logging.Logger) *Handler {
	return &Handler{
		checkers: make(map[string]Checker),
		metadata: make(map[string]string),
		logger:   logger,
	}
}

func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

func (h *Handler) SetMetadata(key, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.metadata[key] = value
}

func (h *Handler) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = ready
}

func (h *Handler) IsReady() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ready
}

// Evaluate runs every registered checker, sorted by name.
func (h *Handler) Evaluate(ctx context.Context) Response {
	h.mu.RLock()
	names := make([]string, 0, len(h.checkers))
	for k := range h.checkers {
		names = append(names, k)
	}
	checkers := make(map[string]Checker, len(h.checkers))
	for k, v := range h.checkers {
		checkers[k] = v
	}
	metadata := make(map[string]string, len(h.metadata))
	for k, v := range h.metadata {
		metadata[k] = v
	}
	h.mu.RUnlock()
	sort.Strings(names)

	resp := Response{Status: StatusHealthy, Timestamp: time.Now(), Checks: []Check{}, Metadata: metadata}
	for _, name := range names {
		check := checkers[name].Check(ctx)
		check.Name = name
		resp.Checks = append(resp.Checks, check)
		switch {
		case check.Status == StatusUnhealthy:
			resp.Status = StatusUnhealthy
		case check.Status == StatusDegraded && resp.Status == StatusHealthy:
			resp.Status = StatusDegraded
		}
	}
	return resp
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := h.Evaluate(ctx)
	code := http.StatusOK
	if resp.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
		if h.logger != nil {
			h.logger.Warnw("health check failed", "checks", len(resp.Checks))
		}
	}
	writeJSON(w, code, resp)
}

func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	ready := h.ready
	h.mu.RUnlock()

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{"ready": ready, "timestamp": time.Now()})
}

func (h *Handler) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"alive": true, "timestamp": time.Now()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// RedisChecker checks Redis connectivity through ping.
type RedisChecker struct {
	ping func(ctx context.Context) error
}

// NewRedisChecker accepts a nil ping when Redis is not configured.
func NewRedisChecker(ping func(ctx context.Context) error) *RedisChecker {
	return &RedisChecker{ping: ping}
}

func (c *RedisChecker) Check(ctx context.Context) Check {
	start := time.Now()
	if c.ping == nil {
		return Check{Status: StatusHealthy, Message: "Redis not configured", LastChecked: time.Now()}
	}
	if err := c.ping(ctx); err != nil {
		return Check{
			Status:      StatusUnhealthy,
			Message:     "Redis connection failed: " + err.Error(),
			LastChecked: time.Now(),
			Duration:    time.Since(start) / time.Millisecond,
		}
	}
	return Check{Status: StatusHealthy, Message: "Redis connection OK", LastChecked: time.Now(), Duration: time.Since(start) / time.Millisecond}
}

// DirChecker verifies a directory exists, and that it is writable when
// writable is set.
type DirChecker struct {
	path     string
	writable bool
}

func NewDirChecker(path string, writable bool) *DirChecker {
	return &DirChecker{path: path, writable: writable}
}

func (c *DirChecker) Check(ctx context.Context) Check {
	start := time.Now()
	fail := func(msg string) Check {
		return Check{Status: StatusUnhealthy, Message: msg, LastChecked: time.Now(), Duration: time.Since(start) / time.Millisecond}
	}
	fi, err := os.Stat(c.path)
	if err != nil {
		return fail(err.Error())
	}
	if !fi.IsDir() {
		return fail(c.path + " is not a directory")
	}
	if c.writable {
		f, err := os.CreateTemp(c.path, ".health-*")
		if err != nil {
			return fail("not writable: " + err.Error())
		}
		f.Close()
		os.Remove(f.Name())
	}
	return Check{Status: StatusHealthy, Message: c.path, LastChecked: time.Now(), Duration: time.Since(start) / time.Millisecond}
}

// ProgressChecker reports degraded when no unit has finished within stall.
type ProgressChecker struct {
	last  func() time.Time
	stall time.Duration
}

func NewProgressChecker(last func() time.Time, stall time.Duration) *ProgressChecker {
	return &ProgressChecker{last: last, stall: stall}
}

func (c *ProgressChecker) Check(ctx context.Context) Check {
	last := c.last()
	status, msg := StatusHealthy, "units completing"
	switch {
	case last.IsZero():
		msg = "no unit finished yet"
	case time.Since(last) > c.stall:
		status = StatusDegraded
		msg = fmt.Sprintf("no unit finished for %v", time.Since(last).Round(time.Second))
	}
	return Check{Status: status, Message: msg, LastChecked: time.Now()}
}
