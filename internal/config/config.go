// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/postbox/pkg/db"
	"github.com/dmitrymomot/postbox/pkg/logger"
	"github.com/dmitrymomot/postbox/pkg/mailer"
	"github.com/dmitrymomot/postbox/pkg/mailer/resend"
	"github.com/dmitrymomot/postbox/pkg/mailer/sendgrid"
	"github.com/dmitrymomot/postbox/pkg/redis"
	"github.com/dmitrymomot/postbox/pkg/storage"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the full process configuration.
type Config struct {
	HTTP      HTTP
	Delivery  Delivery
	Scheduler Scheduler
	Providers Providers

	Database db.Config
	Redis    redis.Config
	Logger   logger.Config
	Mailer   mailer.Config
	Resend   resend.Config
	SendGrid sendgrid.Config
	Storage  storage.Config

	// WorkersEnabled runs the dispatch worker and the scheduler in this
	// process. When false the process only serves the API and enqueues.
	WorkersEnabled bool `env:"WORKERS_ENABLED" envDefault:"true"`
}

// HTTP configures the API server.
type HTTP struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	IdempotencyTTL  time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
}

// Delivery configures the dispatch worker and its queue.
type Delivery struct {
	Queue       string        `env:"DELIVERY_QUEUE" envDefault:"delivery"`
	BaseDelay   time.Duration `env:"DELIVERY_BASE_DELAY" envDefault:"5s"`
	MaxAttempts int           `env:"DELIVERY_MAX_ATTEMPTS" envDefault:"3"`
	Workers     int           `env:"DELIVERY_WORKERS" envDefault:"10"`
}

// Scheduler configures the reminder scheduler.
type Scheduler struct {
	Cron       string        `env:"SCHEDULER_CRON" envDefault:"*/5 * * * *"`
	BatchSize  int           `env:"SCHEDULER_BATCH_SIZE" envDefault:"50"`
	ClaimLease time.Duration `env:"SCHEDULER_CLAIM_LEASE" envDefault:"5m"`
}

// Providers configures the transport chain.
type Providers struct {
	Order   []string      `env:"PROVIDER_ORDER" envDefault:"resend,sendgrid" envSeparator:","`
	Timeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"30s"`
}

// knownProviders are the transports PROVIDER_ORDER may name.
var knownProviders = []string{resend.ProviderName, sendgrid.ProviderName}

// Load reads a .env file when present, then parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env file: %w", err)
	}
	return parse(env.Options{})
}

// Parse reads configuration from the given variables instead of the process
// environment.
func Parse(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("config: parse environment: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	order := make([]string, 0, len(c.Providers.Order))
	for _, name := range c.Providers.Order {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			order = append(order, name)
		}
	}
	c.Providers.Order = order
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if len(c.Providers.Order) == 0 {
		errs = append(errs, errors.New("PROVIDER_ORDER must name at least one provider"))
	}
	seen := make(map[string]bool, len(c.Providers.Order))
	for _, name := range c.Providers.Order {
		if !slices.Contains(knownProviders, name) {
			errs = append(errs, fmt.Errorf("PROVIDER_ORDER: unknown provider %q", name))
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("PROVIDER_ORDER: provider %q listed twice", name))
		}
		seen[name] = true
	}
	if c.Providers.Timeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_TIMEOUT must be positive"))
	}

	if c.Delivery.MaxAttempts < 1 {
		errs = append(errs, errors.New("DELIVERY_MAX_ATTEMPTS must be at least 1"))
	}
	if c.Delivery.BaseDelay <= 0 {
		errs = append(errs, errors.New("DELIVERY_BASE_DELAY must be positive"))
	}
	if c.Delivery.Workers < 1 {
		errs = append(errs, errors.New("DELIVERY_WORKERS must be at least 1"))
	}
	if c.Delivery.Queue == "" {
		errs = append(errs, errors.New("DELIVERY_QUEUE is required"))
	}

	if c.Scheduler.BatchSize < 1 {
		errs = append(errs, errors.New("SCHEDULER_BATCH_SIZE must be at least 1"))
	}
	if c.Scheduler.ClaimLease <= 0 {
		errs = append(errs, errors.New("SCHEDULER_CLAIM_LEASE must be positive"))
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Scheduler.Cron); err != nil {
		errs = append(errs, fmt.Errorf("SCHEDULER_CRON: %w", err))
	}

	if c.HTTP.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be positive"))
	}
	if c.HTTP.RequestTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_REQUEST_TIMEOUT must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}
	return nil
}

// JobTimeout bounds one dispatch attempt: every provider may use its full
// timeout, plus time for rendering and bookkeeping.
func (c Config) JobTimeout() time.Duration {
	return time.Duration(len(c.Providers.Order))*c.Providers.Timeout + 30*time.Second
}
