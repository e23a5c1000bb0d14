package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// Config holds logger settings.
type Config struct {
	Level             string `env:"LOG_LEVEL" envDefault:"info"`
	Format            string `env:"LOG_FORMAT" envDefault:"json"`
	SentryDSN         string `env:"SENTRY_DSN"`
	SentryEnvironment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
	SentryRelease     string `env:"SENTRY_RELEASE"`
}

// New builds a logger writing to stdout. When a Sentry DSN is configured,
// warnings are also stored as Sentry logs and errors open Sentry issues.
// The returned flush function drains buffered Sentry events on shutdown.
func New(cfg Config, extractors ...ContextExtractor) (*slog.Logger, func(time.Duration)) {
	return newLogger(os.Stdout, cfg, extractors...)
}

func newLogger(w io.Writer, cfg Config, extractors ...ContextExtractor) (*slog.Logger, func(time.Duration)) {
	level, err := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var out slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		out = slog.NewTextHandler(w, opts)
	} else {
		out = slog.NewJSONHandler(w, opts)
	}
	noFlush := func(time.Duration) {}

	if err != nil {
		slog.New(out).Warn("invalid log level, using info", slog.String("level", cfg.Level))
	}

	if cfg.SentryDSN == "" {
		return slog.New(NewLogHandlerDecorator(out, extractors...)), noFlush
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     cfg.SentryRelease,
		EnableLogs:  true,
	}); err != nil {
		slog.New(out).Error("sentry disabled", slog.Any("error", err))
		return slog.New(NewLogHandlerDecorator(out, extractors...)), noFlush
	}

	toSentry := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelError},
	}.NewSentryHandler(context.Background())

	handler := newMultiHandler(out, toSentry)
	flush := func(timeout time.Duration) { sentry.Flush(timeout) }
	return slog.New(NewLogHandlerDecorator(handler, extractors...)), flush
}

// ParseLevel maps debug, info, warn and error to slog levels.
// Unknown values return info and an error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("logger: unknown level %q", s)
}

// NewNope returns a logger that discards everything. Components use it when
// no logger is configured.
func NewNope() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
