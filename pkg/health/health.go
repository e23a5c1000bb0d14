package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/postbox/pkg/logger"
)

const defaultTimeout = 5 * time.Second

// Status values reported per check and for the whole service.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc matches db.Healthcheck, redis.Healthcheck and job.Healthcheck.
type CheckFunc func(ctx context.Context) error

// Check is a named health check. A failing optional check degrades the service
// without taking it out of rotation.
type Check struct {
	Fn       CheckFunc
	Name     string
	Optional bool
}

// Required builds a check whose failure makes the service unready.
func Required(name string, fn CheckFunc) Check {
	return Check{Name: name, Fn: fn}
}

// Optional builds a check whose failure only degrades the service.
func Optional(name string, fn CheckFunc) Check {
	return Check{Name: name, Fn: fn, Optional: true}
}

// Report is the aggregated check result.
type Report struct {
	Checks map[string]Result `json:"checks,omitempty"`
	Status string            `json:"status"`
}

// Result is the outcome of a single check.
type Result struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

type config struct {
	logger  *slog.Logger
	timeout time.Duration
}

// Option configures readiness probing.
type Option func(*config)

// WithTimeout bounds the whole check run.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger failing checks are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func newConfig(opts ...Option) *config {
	cfg := &config{timeout: defaultTimeout, logger: logger.NewNope()}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Run executes checks concurrently and aggregates their results.
func Run(ctx context.Context, checks []Check, opts ...Option) Report {
	return run(ctx, checks, newConfig(opts...))
}

func run(ctx context.Context, checks []Check, cfg *config) Report {
	if len(checks) == 0 {
		return Report{Status: StatusHealthy}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]Result, len(checks))
		status  = StatusHealthy
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range checks {
		g.Go(func() error {
			start := time.Now()
			err := c.Fn(gctx)
			res := Result{Status: StatusHealthy, Duration: time.Since(start).String()}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Status, res.Error = StatusUnhealthy, err.Error()
				switch {
				case !c.Optional:
					status = StatusUnhealthy
				case status == StatusHealthy:
					status = StatusDegraded
				}
				cfg.logger.WarnContext(ctx, "health check failed",
					slog.String("check", c.Name),
					slog.Bool("optional", c.Optional),
					slog.String("error", err.Error()),
				)
			}
			results[c.Name] = res
			return nil
		})
	}
	_ = g.Wait()

	return Report{Status: status, Checks: results}
}
