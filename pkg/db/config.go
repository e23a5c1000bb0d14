package db

import "time"

// Config holds PostgreSQL pool settings. The same pool serves the delivery
// stores and the job queue.
type Config struct {
	URL string `env:"DATABASE_URL,required"`

	MigrationsTable string `env:"DATABASE_MIGRATIONS_TABLE" envDefault:"postbox_migrations"`

	HealthCheckPeriod time.Duration `env:"DATABASE_HEALTHCHECK_PERIOD" envDefault:"1m"`
	MaxConnIdleTime   time.Duration `env:"DATABASE_MAX_CONN_IDLE_TIME" envDefault:"10m"`
	MaxConnLifetime   time.Duration `env:"DATABASE_MAX_CONN_LIFETIME" envDefault:"30m"`

	// Startup retries. Attempt n waits n*RetryInterval before the next one.
	RetryAttempts int           `env:"DATABASE_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"DATABASE_RETRY_INTERVAL" envDefault:"5s"`

	// Workers hold a connection while they update delivery logs, so the pool
	// should be larger than DELIVERY_WORKERS.
	MaxConns int32 `env:"DATABASE_MAX_CONNS" envDefault:"20"`
	MinConns int32 `env:"DATABASE_MIN_CONNS" envDefault:"2"`
}
