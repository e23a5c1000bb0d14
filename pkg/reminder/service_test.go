package reminder_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/postbox/internal/memstore"
	"github.com/dmitrymomot/postbox/pkg/delivery"
	"github.com/dmitrymomot/postbox/pkg/reminder"
	"github.com/dmitrymomot/postbox/pkg/validator"
)

func TestService_Schedule(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	svc := reminder.NewService(store, reminder.WithServiceClock(func() time.Time { return tickNow }))
	at := time.Date(2024, 4, 1, 9, 0, 0, 0, time.FixedZone("CST", -6*3600))

	r, err := svc.Schedule(context.Background(), reminder.Request{
		Recipient:    " a@b.com",
		InvoiceID:    "inv-1",
		ScheduledFor: at,
		Recurrence:   reminder.RecurrenceMonthly,
		ReminderData: map[string]any{"invoiceFolio": "F-1", "amount": 1500},
	})
	require.NoError(t, err)
	require.NotEmpty(t, r.ID)

	stored, err := svc.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, reminder.StatusPending, stored.Status)
	assert.Equal(t, delivery.DocumentPaymentReminder, stored.DocumentType)
	assert.Equal(t, "a@b.com", stored.Recipient)
	assert.Equal(t, "inv-1", stored.DocumentID)
	assert.Equal(t, at.UTC(), stored.ScheduledFor)
	assert.Equal(t, reminder.RecurrenceMonthly, stored.Recurrence)
	assert.Equal(t, tickNow, stored.CreatedAt)
	assert.Nil(t, stored.ProcessedAt)
}

func TestService_Schedule_DefaultsToNoRecurrence(t *testing.T) {
	t.Parallel()

	svc := reminder.NewService(memstore.New())
	r, err := svc.Schedule(context.Background(), reminder.Request{Recipient: "a@b.com", ScheduledFor: tickNow})
	require.NoError(t, err)
	assert.Equal(t, reminder.RecurrenceNone, r.Recurrence)
	assert.False(t, r.Recurring())
}

func TestService_Schedule_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		req   reminder.Request
		field string
	}{
		{"missing recipient", reminder.Request{ScheduledFor: tickNow}, "recipient"},
		{"bad recipient", reminder.Request{Recipient: "nope", ScheduledFor: tickNow}, "recipient"},
		{"missing time", reminder.Request{Recipient: "a@b.com"}, "scheduledFor"},
		{"bad recurrence", reminder.Request{Recipient: "a@b.com", ScheduledFor: tickNow, Recurrence: "hourly"}, "recurrence"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := memstore.New()
			_, err := reminder.NewService(store).Schedule(context.Background(), tt.req)
			require.ErrorIs(t, err, reminder.ErrInvalidRequest)

			var verrs validator.Errors
			require.True(t, errors.As(err, &verrs))
			assert.Contains(t, verrs.Fields(), tt.field)
			assert.Empty(t, store.Reminders())
		})
	}
}

func TestService_Cancel(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	svc := reminder.NewService(store)
	ctx := context.Background()

	seed(t, store, "pending", "a@b.com", tickNow, reminder.RecurrenceDaily)
	seed(t, store, "sent", "a@b.com", tickNow, reminder.RecurrenceDaily)
	_, err := store.UpdateReminder(ctx, "sent", func(r *reminder.Reminder) error {
		r.Status = reminder.StatusSent
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, "pending"))
	r, err := store.GetReminder(ctx, "pending")
	require.NoError(t, err)
	assert.Equal(t, reminder.StatusCancelled, r.Status)
	assert.Equal(t, tickNow, r.ScheduledFor)

	// Idempotent on cancelled and sent reminders.
	require.NoError(t, svc.Cancel(ctx, "pending"))
	require.NoError(t, svc.Cancel(ctx, "sent"))
	r, err = store.GetReminder(ctx, "sent")
	require.NoError(t, err)
	assert.Equal(t, reminder.StatusSent, r.Status)
	assert.Len(t, store.Reminders(), 2)

	require.ErrorIs(t, svc.Cancel(ctx, "missing"), reminder.ErrNotFound)
	_, err = svc.Get(ctx, "missing")
	require.ErrorIs(t, err, reminder.ErrNotFound)
}
