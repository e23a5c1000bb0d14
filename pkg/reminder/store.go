package reminder

import (
	"context"
	"time"

	"github.com/dmitrymomot/postbox/pkg/delivery"
)

// Store persists reminders. Implementations return ErrNotFound for
// unknown ids.
type Store interface {
	CreateReminder(ctx context.Context, r *Reminder) error
	GetReminder(ctx context.Context, id string) (*Reminder, error)
	// ClaimDue returns up to limit pending reminders scheduled at or before
	// now, oldest first, and hides them from other callers until now+lease.
	ClaimDue(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]Reminder, error)
	// UpdateReminder applies fn to the stored reminder, persists the result
	// and releases the claim on it. An error from fn aborts the update and
	// is returned as is.
	UpdateReminder(ctx context.Context, id string, fn func(*Reminder) error) (*Reminder, error)
}

// Gateway admits delivery requests. *delivery.Gateway implements it.
type Gateway interface {
	Enqueue(ctx context.Context, req delivery.Request) (delivery.Result, error)
}

// Metrics receives scheduler observations.
type Metrics interface {
	ReminderProcessed(recurrence string)
	ReminderFailed(reason string)
	SchedulerTick(took time.Duration, due int)
}

type nopMetrics struct{}

func (nopMetrics) ReminderProcessed(string)         {}
func (nopMetrics) ReminderFailed(string)            {}
func (nopMetrics) SchedulerTick(time.Duration, int) {}
