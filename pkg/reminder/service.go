package reminder

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/postbox/pkg/delivery"
	"github.com/dmitrymomot/postbox/pkg/logger"
	"github.com/dmitrymomot/postbox/pkg/validator"
)

// Service schedules and cancels reminders.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithServiceClock overrides the time source.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a Service.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		logger: logger.NewNope(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule stores a pending payment reminder.
func (s *Service) Schedule(ctx context.Context, req Request) (*Reminder, error) {
	req.Recipient = strings.TrimSpace(req.Recipient)
	if err := validator.Struct(req); err != nil {
		return nil, errors.Join(ErrInvalidRequest, err)
	}
	rec, err := ParseRecurrence(string(req.Recurrence))
	if err != nil {
		return nil, errors.Join(ErrInvalidRequest, validator.Field("recurrence", "must be one of [daily weekly monthly]"))
	}

	now := s.now().UTC()
	r := &Reminder{
		ID:           uuid.NewString(),
		Recipient:    req.Recipient,
		DocumentType: delivery.DocumentPaymentReminder,
		DocumentID:   req.InvoiceID,
		TemplateData: req.ReminderData,
		ScheduledFor: req.ScheduledFor.UTC(),
		Recurrence:   rec,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateReminder(ctx, r); err != nil {
		return nil, errors.Join(ErrStore, err)
	}

	s.logger.InfoContext(ctx, "reminder scheduled",
		slog.String("reminder_id", r.ID),
		slog.Time("scheduled_for", r.ScheduledFor),
		slog.String("recurrence", string(r.Recurrence)),
	)
	return r, nil
}

// Get returns the reminder with id.
func (s *Service) Get(ctx context.Context, id string) (*Reminder, error) {
	r, err := s.store.GetReminder(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	return r, nil
}

// Cancel stops a pending reminder from firing. Cancelling a reminder that
// is no longer pending is a no-op. Deliveries already handed off are not
// affected.
func (s *Service) Cancel(ctx context.Context, id string) error {
	var changed bool
	_, err := s.store.UpdateReminder(ctx, id, func(r *Reminder) error {
		if r.Status != StatusPending {
			return nil
		}
		r.Status = StatusCancelled
		r.UpdatedAt = s.now().UTC()
		changed = true
		return nil
	})
	if err != nil {
		return storeError(err)
	}

	if changed {
		s.logger.InfoContext(ctx, "reminder cancelled", slog.String("reminder_id", id))
	}
	return nil
}

func storeError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return errors.Join(ErrStore, err)
}
