package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/postbox/pkg/health"
)

func ok(context.Context) error   { return nil }
func fail(context.Context) error { return errors.New("connection refused") }

func TestRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		checks []health.Check
		want   string
	}{
		{"no checks", nil, health.StatusHealthy},
		{"all pass", []health.Check{health.Required("postgres", ok), health.Optional("redis", ok)}, health.StatusHealthy},
		{"optional fails", []health.Check{health.Required("postgres", ok), health.Optional("redis", fail)}, health.StatusDegraded},
		{"required fails", []health.Check{health.Required("postgres", fail), health.Optional("redis", fail)}, health.StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			report := health.Run(context.Background(), tt.checks)
			assert.Equal(t, tt.want, report.Status)
			assert.Len(t, report.Checks, len(tt.checks))
		})
	}
}

func TestRun_Timeout(t *testing.T) {
	t.Parallel()

	slow := func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	}
	report := health.Run(context.Background(), []health.Check{health.Required("slow", slow)}, health.WithTimeout(20*time.Millisecond))

	assert.Equal(t, health.StatusUnhealthy, report.Status)
	assert.Contains(t, report.Checks["slow"].Error, "deadline")
}

func TestReadyHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		checks []health.Check
		code   int
		status string
	}{
		{"ready", []health.Check{health.Required("postgres", ok)}, http.StatusOK, health.StatusHealthy},
		{"degraded", []health.Check{health.Optional("redis", fail)}, http.StatusOK, health.StatusDegraded},
		{"unready", []health.Check{health.Required("postgres", fail)}, http.StatusServiceUnavailable, health.StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			health.ReadyHandler(tt.checks).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var report health.Report
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
			assert.Equal(t, tt.status, report.Status)
		})
	}
}

func TestLiveHandler(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	health.LiveHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}
