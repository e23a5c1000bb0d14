package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
)

// config holds job manager configuration.
type config struct {
	registry    *registry
	queues      map[string]int
	logger      *slog.Logger
	retryPolicy river.ClientRetryPolicy
	schedules   []scheduleConfig
	maxWorkers  int
	jobTimeout  time.Duration
}

// newConfig creates a config with defaults.
func newConfig() *config {
	return &config{
		registry: newRegistry(),
		queues:   make(map[string]int),
	}
}

// Option configures the job manager.
type Option func(*config)

// WithTask registers a task handler using structural typing.
// The task must implement Name() and Handle(ctx, P) methods.
// The payload type P is inferred from the Handle method signature.
//
// Example:
//
//	job.WithTask(delivery.NewDispatcher(logs, composer, chain))
func WithTask[P any, T interface {
	Name() string
	Handle(context.Context, P) error
}](task T) Option {
	return func(c *config) {
		c.registry.add(task.Name(), typedExecutor[P](task.Handle))
	}
}

// WithScheduledTask registers a periodic task using structural typing.
// The task must implement Name(), Schedule(), and Handle(ctx) methods.
// Schedule() should return a cron expression (5 fields: min hour day month weekday).
//
// Example:
//
//	job.WithScheduledTask(reminder.NewScheduler(store, gateway))
func WithScheduledTask[T interface {
	Name() string
	Schedule() string
	Handle(context.Context) error
}](task T) Option {
	return func(c *config) {
		c.schedules = append(c.schedules, scheduleConfig{
			name:     task.Name(),
			schedule: task.Schedule(),
			handler:  task.Handle,
		})
	}
}

// WithQueue configures a named queue with the specified number of workers.
// Each worker processes at most one job at a time.
//
//	job.WithQueue("delivery", 10)
func WithQueue(name string, workers int) Option {
	return func(c *config) {
		if workers > 0 {
			c.queues[name] = workers
		}
	}
}

// WithLogger sets the logger for job processing.
// If not set, a noop logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxWorkers sets the worker count of the default queue.
// Defaults to 100 if not set.
func WithMaxWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxWorkers = n
		}
	}
}

// WithRetryPolicy replaces River's default retry schedule.
//
//	job.WithRetryPolicy(job.NewExponentialRetry(5 * time.Second))
func WithRetryPolicy(p river.ClientRetryPolicy) Option {
	return func(c *config) {
		if p != nil {
			c.retryPolicy = p
		}
	}
}

// WithJobTimeout bounds how long a single attempt may run before its context
// is cancelled. A timed out attempt counts as a failure and is retried.
func WithJobTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.jobTimeout = d
		}
	}
}
