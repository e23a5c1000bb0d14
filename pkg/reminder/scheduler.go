package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/postbox/pkg/delivery"
	"github.com/dmitrymomot/postbox/pkg/logger"
)

// TaskName is the periodic task that processes due reminders.
const TaskName = "process_due_reminders"

// Scheduler defaults.
const (
	DefaultSchedule   = "*/5 * * * *"
	DefaultBatchSize  = 50
	DefaultCurrency   = "MXN"
	DefaultClaimLease = 5 * time.Minute
)

// Scheduler hands due reminders to the delivery gateway.
type Scheduler struct {
	store     Store
	gateway   Gateway
	metrics   Metrics
	logger    *slog.Logger
	now       func() time.Time
	schedule  string
	currency  string
	batchSize int
	lease     time.Duration
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedule sets the cron expression the tick runs on.
func WithSchedule(expr string) SchedulerOption {
	return func(s *Scheduler) {
		if expr != "" {
			s.schedule = expr
		}
	}
}

// WithBatchSize caps the reminders processed per tick.
func WithBatchSize(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithClaimLease sets how long a claimed reminder stays hidden from other
// ticks when the claiming tick dies before processing it.
func WithClaimLease(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.lease = d
		}
	}
}

// WithDefaultCurrency sets the currency used when reminder data has none.
func WithDefaultCurrency(code string) SchedulerOption {
	return func(s *Scheduler) {
		if code != "" {
			s.currency = code
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSchedulerMetrics sets the metrics sink.
func WithSchedulerMetrics(m Metrics) SchedulerOption {
	return func(s *Scheduler) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewScheduler creates a Scheduler.
func NewScheduler(store Store, gateway Gateway, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		store:     store,
		gateway:   gateway,
		metrics:   nopMetrics{},
		logger:    logger.NewNope(),
		now:       time.Now,
		schedule:  DefaultSchedule,
		currency:  DefaultCurrency,
		batchSize: DefaultBatchSize,
		lease:     DefaultClaimLease,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements the periodic task contract.
func (s *Scheduler) Name() string { return TaskName }

// Schedule implements the periodic task contract.
func (s *Scheduler) Schedule() string { return s.schedule }

// Handle runs one tick.
func (s *Scheduler) Handle(ctx context.Context) error {
	_, err := s.Tick(ctx)
	return err
}

// TickResult summarizes one tick.
type TickResult struct {
	Due       int
	Processed int
	Failed    int
}

// Tick processes at most one batch of due reminders. Failures of individual
// reminders are logged and do not stop the batch; only a failure to load
// the batch is returned.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	start := s.now()

	due, err := s.store.ClaimDue(ctx, start.UTC(), s.batchSize, s.lease)
	if err != nil {
		return TickResult{}, errors.Join(ErrStore, err)
	}

	res := TickResult{Due: len(due)}
	for _, r := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := s.fire(ctx, r); err != nil {
			res.Failed++
			continue
		}
		res.Processed++
	}

	took := s.now().Sub(start)
	s.metrics.SchedulerTick(took, len(due))
	if len(due) > 0 {
		s.logger.InfoContext(ctx, "reminders processed",
			slog.Int("due", res.Due),
			slog.Int("processed", res.Processed),
			slog.Int("failed", res.Failed),
			slog.Duration("took", took),
		)
	}
	return res, nil
}

// fire hands one reminder to the gateway, marks it sent and schedules the
// next occurrence. Marking comes before inserting the successor, so an
// interruption can lose the next occurrence but never duplicate it.
func (s *Scheduler) fire(ctx context.Context, r Reminder) error {
	log := s.logger.With(slog.String("reminder_id", r.ID))
	now := s.now().UTC()

	result, err := s.gateway.Enqueue(ctx, deliveryRequest(r, now, s.currency))
	if errors.Is(err, delivery.ErrInvalidRequest) {
		s.reject(ctx, log, r.ID, err)
		return err
	}
	if err != nil {
		s.metrics.ReminderFailed("enqueue")
		log.ErrorContext(ctx, "failed to enqueue reminder delivery", slog.Any("error", err))
		s.release(ctx, log, r.ID)
		return err
	}

	_, err = s.store.UpdateReminder(ctx, r.ID, func(cur *Reminder) error {
		if cur.Status != StatusPending {
			return fmt.Errorf("%w: %s", ErrNotPending, cur.Status)
		}
		cur.Status = StatusSent
		cur.ProcessedAt = &now
		cur.UpdatedAt = now
		cur.LogID = result.LogID
		cur.ErrorMessage = ""
		return nil
	})
	if errors.Is(err, ErrNotPending) {
		// Cancelled after it was picked up; the delivery is already queued.
		log.WarnContext(ctx, "reminder changed while firing, recurrence skipped",
			slog.String("log_id", result.LogID),
			slog.Any("error", err),
		)
		s.metrics.ReminderProcessed(string(r.Recurrence))
		return nil
	}
	if err != nil {
		s.metrics.ReminderFailed("mark_sent")
		log.ErrorContext(ctx, "reminder delivery queued but reminder not marked sent",
			slog.String("log_id", result.LogID),
			slog.Any("error", err),
		)
		return errors.Join(ErrStore, err)
	}

	s.metrics.ReminderProcessed(string(r.Recurrence))
	log.DebugContext(ctx, "reminder handed off", slog.String("log_id", result.LogID))

	if !r.Recurring() {
		return nil
	}
	return s.scheduleNext(ctx, log, r, now)
}

func (s *Scheduler) scheduleNext(ctx context.Context, log *slog.Logger, r Reminder, now time.Time) error {
	at, err := r.Recurrence.Next(r.ScheduledFor)
	if err != nil {
		s.metrics.ReminderFailed("recurrence")
		log.ErrorContext(ctx, "failed to compute next occurrence", slog.Any("error", err))
		return err
	}

	next := &Reminder{
		ID:           uuid.NewString(),
		Recipient:    r.Recipient,
		DocumentType: r.DocumentType,
		DocumentID:   r.DocumentID,
		TemplateData: r.TemplateData,
		ScheduledFor: at,
		Recurrence:   r.Recurrence,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateReminder(ctx, next); err != nil {
		s.metrics.ReminderFailed("recurrence")
		log.ErrorContext(ctx, "reminder processed but next occurrence not created",
			slog.Time("next_scheduled_for", at),
			slog.Any("error", err),
		)
		return errors.Join(ErrStore, err)
	}

	log.InfoContext(ctx, "next reminder occurrence scheduled",
		slog.String("next_reminder_id", next.ID),
		slog.Time("scheduled_for", at),
	)
	return nil
}

// reject fails a reminder whose payload the gateway will never accept, so
// it stops occupying a slot in every batch.
func (s *Scheduler) reject(ctx context.Context, log *slog.Logger, id string, cause error) {
	s.metrics.ReminderFailed("invalid")
	log.ErrorContext(ctx, "reminder rejected by delivery gateway", slog.Any("error", cause))

	now := s.now().UTC()
	_, err := s.store.UpdateReminder(ctx, id, func(cur *Reminder) error {
		if cur.Status != StatusPending {
			return nil
		}
		cur.Status = StatusFailed
		cur.ProcessedAt = &now
		cur.UpdatedAt = now
		cur.ErrorMessage = cause.Error()
		return nil
	})
	if err != nil {
		log.ErrorContext(ctx, "failed to mark reminder failed", slog.Any("error", err))
	}
}

// release drops the claim on a reminder that stays pending, so the next
// tick retries it without waiting for the lease to expire.
func (s *Scheduler) release(ctx context.Context, log *slog.Logger, id string) {
	if _, err := s.store.UpdateReminder(ctx, id, func(*Reminder) error { return nil }); err != nil {
		log.WarnContext(ctx, "failed to release reminder claim", slog.Any("error", err))
	}
}
