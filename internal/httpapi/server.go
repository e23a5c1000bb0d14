package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/postbox/pkg/cache"
	"github.com/dmitrymomot/postbox/pkg/delivery"
	"github.com/dmitrymomot/postbox/pkg/health"
	"github.com/dmitrymomot/postbox/pkg/logger"
	"github.com/dmitrymomot/postbox/pkg/mailer"
	"github.com/dmitrymomot/postbox/pkg/reminder"
)

// Deliveries admits delivery requests. *delivery.Gateway implements it.
type Deliveries interface {
	Enqueue(ctx context.Context, req delivery.Request) (delivery.Result, error)
}

// DeliveryQuery reads delivery logs. *delivery.Query implements it.
type DeliveryQuery interface {
	Get(ctx context.Context, id string) (*delivery.Details, error)
	History(ctx context.Context, f delivery.HistoryFilter) (*delivery.Page, error)
}

// Reminders manages scheduled reminders. *reminder.Service implements it.
type Reminders interface {
	Schedule(ctx context.Context, req reminder.Request) (*reminder.Reminder, error)
	Get(ctx context.Context, id string) (*reminder.Reminder, error)
	Cancel(ctx context.Context, id string) error
}

// EventRecorder correlates provider events. *delivery.Correlator implements it.
type EventRecorder interface {
	RecordEvents(ctx context.Context, events []mailer.Event) error
}

// Server exposes the delivery pipeline over HTTP.
type Server struct {
	deliveries Deliveries
	query      DeliveryQuery
	reminders  Reminders
	events     EventRecorder

	webhooks       map[string]mailer.WebhookAdapter
	idempotency    cache.Cache[IdempotencyRecord]
	idempotencyTTL time.Duration
	requestTimeout time.Duration
	checks         []health.Check
	metrics        http.Handler
	logger         *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWebhook accepts provider events at /v1/webhooks/{adapter.Provider()}.
func WithWebhook(adapter mailer.WebhookAdapter) Option {
	return func(s *Server) {
		if adapter != nil {
			s.webhooks[adapter.Provider()] = adapter
		}
	}
}

// WithIdempotency enables Idempotency-Key handling on POST /v1/deliveries.
func WithIdempotency(store cache.Cache[IdempotencyRecord], ttl time.Duration) Option {
	return func(s *Server) {
		if store != nil {
			s.idempotency = store
			s.idempotencyTTL = ttl
		}
	}
}

// WithRequestTimeout bounds every /v1 request. Zero keeps DefaultRequestTimeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithHealthChecks sets the checks behind /health/ready.
func WithHealthChecks(checks ...health.Check) Option {
	return func(s *Server) {
		s.checks = append(s.checks, checks...)
	}
}

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		if h != nil {
			s.metrics = h
		}
	}
}

// New creates a Server.
func New(deliveries Deliveries, query DeliveryQuery, reminders Reminders, events EventRecorder, opts ...Option) *Server {
	s := &Server{
		deliveries: deliveries,
		query:      query,
		reminders:  reminders,
		events:     events,
		webhooks:   make(map[string]mailer.WebhookAdapter),
		logger:     logger.NewNope(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		RequestID(),
		chimw.RealIP,
		chimw.CleanPath,
		Recover(s.logger),
	)

	r.NotFound(s.handle(func(http.ResponseWriter, *http.Request) error {
		return ErrNotFound("route not found")
	}))
	r.MethodNotAllowed(s.handle(func(http.ResponseWriter, *http.Request) error {
		return NewHTTPError(http.StatusMethodNotAllowed, "method not allowed")
	}))

	r.Get("/health/live", health.LiveHandler())
	r.Get("/health/ready", health.ReadyHandler(s.checks, health.WithLogger(s.logger)))
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(Timeout(s.requestTimeout))

		r.With(Idempotency(s.idempotency, s.idempotencyTTL, s.logger)).
			Post("/deliveries", s.handle(s.enqueueDelivery))
		r.Get("/deliveries", s.handle(s.listDeliveries))
		r.Get("/deliveries/{id}", s.handle(s.getDelivery))

		r.Post("/reminders", s.handle(s.scheduleReminder))
		r.Get("/reminders/{id}", s.handle(s.getReminder))
		r.Delete("/reminders/{id}", s.handle(s.cancelReminder))

		r.Post("/webhooks/{provider}", s.handle(s.receiveWebhook))
	})

	return r
}
