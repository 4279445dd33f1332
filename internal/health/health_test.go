package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gustycube/conjunctions/internal/logging"
)

func TestHandler_Health(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name     string
		checkers map[string]Checker
		code     int
		status   Status
	}{
		{"no checkers", nil, http.StatusOK, StatusHealthy},
		{"dir ok", map[string]Checker{"data": NewDirChecker(dir, true)}, http.StatusOK, StatusHealthy},
		{"dir missing", map[string]Checker{"data": NewDirChecker(filepath.Join(dir, "nope"), false)}, http.StatusServiceUnavailable, StatusUnhealthy},
		{"redis down", map[string]Checker{"redis": NewRedisChecker(func(context.Context) error { return errors.New("refused") })}, http.StatusServiceUnavailable, StatusUnhealthy},
		{"redis unconfigured", map[string]Checker{"redis": NewRedisChecker(nil)}, http.StatusOK, StatusHealthy},
		{"stalled", map[string]Checker{"progress": NewProgressChecker(func() time.Time { return time.Now().Add(-time.Hour) }, time.Minute)}, http.StatusOK, StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(logging.Nop())
			for n, c := range tt.checkers {
				h.RegisterChecker(n, c)
			}
			rec := httptest.NewRecorder()
			h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}
			var resp Response
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.status {
				t.Errorf("status = %s, want %s", resp.Status, tt.status)
			}
		})
	}
}

func TestHandler_Readiness(t *testing.T) {
	h := NewHandler(logging.Nop())
	rec := httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before ready, got %d", rec.Code)
	}
	h.SetReady(true)
	rec = httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 when ready, got %d", rec.Code)
	}
}
