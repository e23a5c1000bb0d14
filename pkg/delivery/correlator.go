package delivery

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/postbox/pkg/logger"
	"github.com/dmitrymomot/postbox/pkg/mailer"
)

// Correlator matches provider tracking events to delivery logs.
type Correlator struct {
	logs    LogStore
	metrics Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// CorrelatorOption configures a Correlator.
type CorrelatorOption func(*Correlator)

// WithCorrelatorLogger sets the logger.
func WithCorrelatorLogger(l *slog.Logger) CorrelatorOption {
	return func(c *Correlator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCorrelatorMetrics sets the metrics sink.
func WithCorrelatorMetrics(m Metrics) CorrelatorOption {
	return func(c *Correlator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// NewCorrelator creates a Correlator.
func NewCorrelator(logs LogStore, opts ...CorrelatorOption) *Correlator {
	c := &Correlator{
		logs:    logs,
		metrics: nopMetrics{},
		logger:  logger.NewNope(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RecordEvent appends ev to the log sent with ev.MessageID.
//
// Events for unknown messages are dropped with a warning and no error.
// Bounce and spam report events also move the log to that status;
// no other event type changes status. Replays append duplicate events.
func (c *Correlator) RecordEvent(ctx context.Context, ev mailer.Event) error {
	ev.MessageID = strings.TrimSpace(ev.MessageID)
	if ev.MessageID == "" {
		return errors.Join(ErrInvalidRequest, errors.New("provider message id is required"))
	}
	if !ev.Type.Valid() {
		return errors.Join(ErrInvalidRequest, errors.New("unknown event type "+string(ev.Type)))
	}

	entry, err := c.logs.FindLogByMessageID(ctx, ev.MessageID)
	if errors.Is(err, ErrNotFound) {
		c.metrics.TrackingEvent(string(ev.Type), false)
		c.logger.WarnContext(ctx, "tracking event for unknown message dropped",
			slog.String("provider", ev.Provider),
			slog.String("provider_message_id", ev.MessageID),
			slog.String("event_type", string(ev.Type)),
		)
		return nil
	}
	if err != nil {
		return errors.Join(ErrStore, err)
	}
	ctx = ContextWithLogID(ctx, entry.ID)

	now := c.now().UTC()
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}

	event := &TrackingEvent{
		ID:         uuid.NewString(),
		LogID:      entry.ID,
		Provider:   ev.Provider,
		EventType:  ev.Type,
		EventData:  ev.Data,
		OccurredAt: occurred.UTC(),
		CreatedAt:  now,
	}
	if err := c.logs.AppendEvent(ctx, event); err != nil {
		return errors.Join(ErrStore, err)
	}
	c.metrics.TrackingEvent(string(ev.Type), true)

	next, ok := statusForEvent(ev.Type)
	if !ok {
		return nil
	}

	_, err = c.logs.UpdateLog(ctx, entry.ID, func(l *Log) error {
		if err := l.Transition(next); err != nil {
			return err
		}
		l.UpdatedAt = now
		return nil
	})
	switch {
	case errors.Is(err, ErrInvalidTransition):
		c.logger.InfoContext(ctx, "tracking event does not change delivery status",
			slog.String("event_type", string(ev.Type)),
			slog.String("status", string(entry.Status)),
		)
		return nil
	case err != nil:
		return errors.Join(ErrStore, err)
	}

	c.logger.InfoContext(ctx, "delivery status updated from tracking event",
		slog.String("status", string(next)),
		slog.String("provider", ev.Provider),
	)
	return nil
}

// RecordEvents records each event, continuing past failures.
func (c *Correlator) RecordEvents(ctx context.Context, events []mailer.Event) error {
	var errs []error
	for _, ev := range events {
		if err := c.RecordEvent(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func statusForEvent(t mailer.EventType) (Status, bool) {
	switch t {
	case mailer.EventBounced:
		return StatusBounced, true
	case mailer.EventSpamReport:
		return StatusSpamReport, true
	default:
		return "", false
	}
}
