// Command postbox runs the document delivery service: the HTTP API, the
// dispatch worker and the reminder scheduler.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/postbox/internal/config"
	"github.com/dmitrymomot/postbox/internal/httpapi"
	"github.com/dmitrymomot/postbox/internal/pgstore"
	"github.com/dmitrymomot/postbox/internal/templates"
	"github.com/dmitrymomot/postbox/pkg/cache"
	"github.com/dmitrymomot/postbox/pkg/db"
	"github.com/dmitrymomot/postbox/pkg/delivery"
	"github.com/dmitrymomot/postbox/pkg/health"
	"github.com/dmitrymomot/postbox/pkg/job"
	"github.com/dmitrymomot/postbox/pkg/logger"
	"github.com/dmitrymomot/postbox/pkg/mailer"
	"github.com/dmitrymomot/postbox/pkg/mailer/resend"
	"github.com/dmitrymomot/postbox/pkg/mailer/sendgrid"
	"github.com/dmitrymomot/postbox/pkg/metrics"
	"github.com/dmitrymomot/postbox/pkg/redis"
	"github.com/dmitrymomot/postbox/pkg/reminder"
	"github.com/dmitrymomot/postbox/pkg/storage"
)

const sentryFlushTimeout = 2 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "postbox:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, flush := logger.New(cfg.Logger,
		httpapi.RequestIDExtractor(),
		delivery.LogIDExtractor(),
		job.LogExtractor(),
	)
	defer flush(sentryFlushTimeout)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	// Hooks run in order: stop serving, stop workers, then close clients.
	var hooks []httpapi.RunOption
	closePool := httpapi.ShutdownHook(db.Shutdown(pool))

	if err := db.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, cfg.Database.MigrationsTable, log); err != nil {
		pool.Close()
		return err
	}
	if err := job.Migrate(ctx, pool, log); err != nil {
		pool.Close()
		return err
	}

	store := pgstore.New(pool)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	checks := []health.Check{health.Required("database", db.Healthcheck(pool))}

	var archive *storage.Archive
	if cfg.Storage.Enabled() {
		archive, err = storage.New(cfg.Storage)
		if err != nil {
			pool.Close()
			return err
		}
		log.Info("attachment archive enabled", slog.String("bucket", cfg.Storage.Bucket))
	}

	queue, err := job.NewEnqueuer(pool, job.WithEnqueuerLogger(log))
	if err != nil {
		pool.Close()
		return err
	}

	chain, err := newChain(cfg, log, m)
	if err != nil {
		pool.Close()
		return err
	}

	gatewayOpts := []delivery.GatewayOption{
		delivery.WithDefaultProvider(chain.Primary()),
		delivery.WithQueue(cfg.Delivery.Queue),
		delivery.WithMaxAttempts(cfg.Delivery.MaxAttempts),
		delivery.WithGatewayLogger(log),
		delivery.WithGatewayMetrics(m),
	}
	if archive != nil {
		gatewayOpts = append(gatewayOpts, delivery.WithArchive(archive))
	}
	gateway := delivery.NewGateway(store, queue, gatewayOpts...)

	idempotency, closeCache, err := newIdempotencyStore(ctx, cfg, log)
	if err != nil {
		pool.Close()
		return err
	}
	if closeCache.check != nil {
		checks = append(checks, health.Optional("redis", closeCache.check))
	}

	resendWebhook, err := resend.NewWebhook(cfg.Resend.WebhookSecret)
	if err != nil {
		_ = closeCache.fn(ctx)
		pool.Close()
		return err
	}
	sendgridWebhook, err := sendgrid.NewWebhook(cfg.SendGrid.WebhookPublicKey)
	if err != nil {
		_ = closeCache.fn(ctx)
		pool.Close()
		return err
	}

	if cfg.WorkersEnabled {
		manager, err := newManager(cfg, log, m, pool, store, gateway, chain, archive)
		if err != nil {
			_ = closeCache.fn(ctx)
			pool.Close()
			return err
		}
		if err := manager.Start(ctx); err != nil {
			_ = closeCache.fn(ctx)
			pool.Close()
			return err
		}
		hooks = append(hooks, httpapi.ShutdownHook(manager.Shutdown()))
		checks = append(checks, health.Required("jobs", job.Healthcheck(manager)))
	} else {
		log.Info("workers disabled, serving the API only")
	}
	hooks = append(hooks, httpapi.ShutdownHook(closeCache.fn))

	srv := httpapi.New(
		gateway,
		delivery.NewQuery(store),
		reminder.NewService(store, reminder.WithServiceLogger(log)),
		delivery.NewCorrelator(store,
			delivery.WithCorrelatorLogger(log),
			delivery.WithCorrelatorMetrics(m),
		),
		httpapi.WithLogger(log),
		httpapi.WithRequestTimeout(cfg.HTTP.RequestTimeout),
		httpapi.WithIdempotency(idempotency, cfg.HTTP.IdempotencyTTL),
		httpapi.WithWebhook(resendWebhook),
		httpapi.WithWebhook(sendgridWebhook),
		httpapi.WithHealthChecks(checks...),
		httpapi.WithMetricsHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
	)

	runOpts := append([]httpapi.RunOption{
		httpapi.Address(cfg.HTTP.Addr),
		httpapi.ShutdownTimeout(cfg.HTTP.ShutdownTimeout),
		httpapi.RunLogger(log),
	}, hooks...)
	runOpts = append(runOpts, closePool)

	return httpapi.Run(ctx, srv.Handler(), runOpts...)
}

// newChain builds the transport chain in PROVIDER_ORDER.
func newChain(cfg config.Config, log *slog.Logger, m *metrics.Metrics) (*mailer.Chain, error) {
	available := map[string]mailer.Sender{
		resend.ProviderName:   resend.New(cfg.Resend),
		sendgrid.ProviderName: sendgrid.New(cfg.SendGrid, sendgrid.WithLogger(log)),
	}

	providers := make([]mailer.Sender, 0, len(cfg.Providers.Order))
	for _, name := range cfg.Providers.Order {
		p, ok := available[name]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", name)
		}
		if !p.Configured() {
			log.Warn("provider not configured, it will be skipped", slog.String("provider", name))
		}
		providers = append(providers, p)
	}

	return mailer.NewChain(providers,
		mailer.WithProviderTimeout(cfg.Providers.Timeout),
		mailer.WithChainLogger(log),
		mailer.WithFailureHook(m.ProviderFailed),
	), nil
}

// newManager registers the dispatch worker and the reminder scheduler.
func newManager(
	cfg config.Config,
	log *slog.Logger,
	m *metrics.Metrics,
	pool *pgxpool.Pool,
	store *pgstore.Store,
	gateway *delivery.Gateway,
	chain *mailer.Chain,
	archive *storage.Archive,
) (*job.Manager, error) {
	renderer := mailer.NewRenderer(templates.FS, mailer.RendererConfig{
		Money: mailer.NewMoneyFormatter(cfg.Mailer.Locale, cfg.Mailer.DefaultCurrency),
	})
	composer := mailer.NewComposer(renderer, cfg.Mailer)

	dispatcherOpts := []delivery.DispatcherOption{
		delivery.WithBaseDelay(cfg.Delivery.BaseDelay),
		delivery.WithDispatcherLogger(log),
		delivery.WithDispatcherMetrics(m),
	}
	if archive != nil {
		dispatcherOpts = append(dispatcherOpts, delivery.WithDispatcherArchive(archive))
	}
	dispatcher := delivery.NewDispatcher(store, composer, chain, dispatcherOpts...)

	scheduler := reminder.NewScheduler(store, gateway,
		reminder.WithSchedule(cfg.Scheduler.Cron),
		reminder.WithBatchSize(cfg.Scheduler.BatchSize),
		reminder.WithClaimLease(cfg.Scheduler.ClaimLease),
		reminder.WithDefaultCurrency(cfg.Mailer.DefaultCurrency),
		reminder.WithSchedulerLogger(log),
		reminder.WithSchedulerMetrics(m),
	)

	return job.NewManager(pool,
		job.WithTask[delivery.Job](dispatcher),
		job.WithScheduledTask(scheduler),
		job.WithQueue(cfg.Delivery.Queue, cfg.Delivery.Workers),
		job.WithRetryPolicy(job.NewExponentialRetry(cfg.Delivery.BaseDelay)),
		job.WithJobTimeout(cfg.JobTimeout()),
		job.WithLogger(log),
	)
}

type cacheCloser struct {
	fn    func(context.Context) error
	check health.CheckFunc
}

// newIdempotencyStore uses Redis when REDIS_URL is set so replicas share
// idempotency keys, and an in-process cache otherwise.
func newIdempotencyStore(ctx context.Context, cfg config.Config, log *slog.Logger) (cache.Cache[httpapi.IdempotencyRecord], cacheCloser, error) {
	const prefix = "postbox:idempotency"

	if !cfg.Redis.Enabled() {
		log.Warn("REDIS_URL not set, idempotency keys are local to this process")
		mem := cache.NewMemory[httpapi.IdempotencyRecord](
			cache.WithPrefix(prefix),
			cache.WithMaxEntries(100_000),
		)
		return mem, cacheCloser{fn: func(context.Context) error { return mem.Close() }}, nil
	}

	client, err := redis.Connect(ctx, cfg.Redis, log)
	if err != nil {
		return nil, cacheCloser{}, err
	}
	store := cache.NewRedis[httpapi.IdempotencyRecord](client, nil, cache.WithPrefix(prefix))
	return store, cacheCloser{fn: redis.Shutdown(client), check: redis.Healthcheck(client)}, nil
}
