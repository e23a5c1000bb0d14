package reminder_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/postbox/internal/memstore"
	"github.com/dmitrymomot/postbox/pkg/delivery"
	"github.com/dmitrymomot/postbox/pkg/reminder"
)

// fakeGateway records delivery requests.
type fakeGateway struct {
	mu       sync.Mutex
	requests []delivery.Request
	fail     map[string]error // by recipient
}

func (g *fakeGateway) Enqueue(_ context.Context, req delivery.Request) (delivery.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.fail[req.Recipient]; err != nil {
		return delivery.Result{}, err
	}
	g.requests = append(g.requests, req)
	return delivery.Result{JobID: int64(len(g.requests)), LogID: fmt.Sprintf("log-%d", len(g.requests))}, nil
}

func (g *fakeGateway) Requests() []delivery.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]delivery.Request{}, g.requests...)
}

var tickNow = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

func seed(t *testing.T, store *memstore.Store, id, recipient string, at time.Time, rec reminder.Recurrence) {
	t.Helper()
	require.NoError(t, store.CreateReminder(context.Background(), &reminder.Reminder{
		ID:           id,
		Recipient:    recipient,
		DocumentType: delivery.DocumentPaymentReminder,
		DocumentID:   "inv-" + id,
		TemplateData: map[string]any{"invoiceFolio": "F-" + id, "amount": 1500},
		ScheduledFor: at,
		Recurrence:   rec,
		Status:       reminder.StatusPending,
		CreatedAt:    at.Add(-time.Hour),
	}))
}

func newScheduler(store reminder.Store, gw reminder.Gateway, opts ...reminder.SchedulerOption) *reminder.Scheduler {
	opts = append(opts, reminder.WithClock(func() time.Time { return tickNow }))
	return reminder.NewScheduler(store, gw, opts...)
}

func TestScheduler_Task(t *testing.T) {
	t.Parallel()

	s := reminder.NewScheduler(memstore.New(), &fakeGateway{})
	assert.Equal(t, reminder.TaskName, s.Name())
	assert.Equal(t, "*/5 * * * *", s.Schedule())

	s = reminder.NewScheduler(memstore.New(), &fakeGateway{}, reminder.WithSchedule("*/1 * * * *"))
	assert.Equal(t, "*/1 * * * *", s.Schedule())
}

func TestScheduler_Tick_OneOff(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	gw := &fakeGateway{}
	seed(t, store, "r1", "a@b.com", tickNow.Add(-time.Minute), reminder.RecurrenceNone)
	seed(t, store, "future", "a@b.com", tickNow.Add(time.Minute), reminder.RecurrenceNone)

	res, err := newScheduler(store, gw).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reminder.TickResult{Due: 1, Processed: 1}, res)

	reqs := gw.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "a@b.com", reqs[0].Recipient)
	assert.Equal(t, delivery.DocumentPaymentReminder, reqs[0].DocumentType)
	assert.Equal(t, "F-r1", reqs[0].DocumentData["folio"])
	assert.Equal(t, "1500.00", reqs[0].DocumentData["total"])

	r, err := store.GetReminder(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, reminder.StatusSent, r.Status)
	require.NotNil(t, r.ProcessedAt)
	assert.Equal(t, tickNow, *r.ProcessedAt)
	assert.Equal(t, "log-1", r.LogID)

	assert.Len(t, store.Reminders(), 2, "no recurrence for one-off reminders")

	future, err := store.GetReminder(context.Background(), "future")
	require.NoError(t, err)
	assert.Equal(t, reminder.StatusPending, future.Status)
}

func TestScheduler_Tick_Recurring(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rec  reminder.Recurrence
		from time.Time
		want time.Time
	}{
		{reminder.RecurrenceDaily, tickNow.Add(-time.Hour), tickNow.Add(23 * time.Hour)},
		{reminder.RecurrenceWeekly, tickNow.Add(-time.Hour), tickNow.Add(7*24*time.Hour - time.Hour)},
		{reminder.RecurrenceMonthly, time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC), time.Date(2024, 2, 29, 9, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.rec), func(t *testing.T) {
			t.Parallel()

			store := memstore.New()
			seed(t, store, "r1", "a@b.com", tt.from, tt.rec)

			_, err := newScheduler(store, &fakeGateway{}).Tick(context.Background())
			require.NoError(t, err)

			all := store.Reminders()
			require.Len(t, all, 2)

			var pending []reminder.Reminder
			for _, r := range all {
				if r.Status == reminder.StatusPending {
					pending = append(pending, r)
				}
			}
			require.Len(t, pending, 1, "exactly one successor")
			next := pending[0]
			assert.NotEqual(t, "r1", next.ID)
			assert.Equal(t, tt.want, next.ScheduledFor)
			assert.Equal(t, tt.rec, next.Recurrence)
			assert.Equal(t, "a@b.com", next.Recipient)
			assert.Equal(t, "inv-r1", next.DocumentID)
			assert.Nil(t, next.ProcessedAt)

			first, err := store.GetReminder(context.Background(), "r1")
			require.NoError(t, err)
			assert.Equal(t, reminder.StatusSent, first.Status)
		})
	}
}

func TestScheduler_Tick_PastDueSuccessorFiresNextTick(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	gw := &fakeGateway{}
	// Down for three days: the daily successor is still in the past.
	seed(t, store, "r1", "a@b.com", tickNow.Add(-72*time.Hour), reminder.RecurrenceDaily)
	s := newScheduler(store, gw)

	res, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)

	res, err = s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Len(t, gw.Requests(), 2)
}

func TestScheduler_Tick_BatchLimit(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	gw := &fakeGateway{}
	for i := range 7 {
		seed(t, store, fmt.Sprintf("r%d", i), "a@b.com", tickNow.Add(-time.Duration(i+1)*time.Minute), reminder.RecurrenceNone)
	}
	s := newScheduler(store, gw, reminder.WithBatchSize(5))

	res, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Due)
	assert.Equal(t, 5, res.Processed)

	// Oldest first.
	assert.Equal(t, "F-r6", gw.Requests()[0].DocumentData["folio"])

	res, err = s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Due)
}

func TestScheduler_Tick_ContinuesPastFailures(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	gw := &fakeGateway{fail: map[string]error{
		"down@b.com":    errors.New("queue unavailable"),
		"invalid@b.com": errors.Join(delivery.ErrInvalidRequest, errors.New("bad")),
	}}
	seed(t, store, "r1", "down@b.com", tickNow.Add(-3*time.Minute), reminder.RecurrenceDaily)
	seed(t, store, "r2", "invalid@b.com", tickNow.Add(-2*time.Minute), reminder.RecurrenceDaily)
	seed(t, store, "r3", "ok@b.com", tickNow.Add(-time.Minute), reminder.RecurrenceNone)

	res, err := newScheduler(store, gw).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reminder.TickResult{Due: 3, Processed: 1, Failed: 2}, res)

	r1, err := store.GetReminder(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, reminder.StatusPending, r1.Status, "transient failures are retried next tick")

	r2, err := store.GetReminder(context.Background(), "r2")
	require.NoError(t, err)
	assert.Equal(t, reminder.StatusFailed, r2.Status)
	assert.NotEmpty(t, r2.ErrorMessage)

	r3, err := store.GetReminder(context.Background(), "r3")
	require.NoError(t, err)
	assert.Equal(t, reminder.StatusSent, r3.Status)

	assert.Len(t, store.Reminders(), 3, "failed reminders do not recur")

	delete(gw.fail, "down@b.com")
	res, err = newScheduler(store, gw).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reminder.TickResult{Due: 1, Processed: 1}, res, "released claim is retried")
}

func TestScheduler_Tick_SkipsClaimedReminders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memstore.New()
	gw := &fakeGateway{}
	seed(t, store, "r1", "a@b.com", tickNow.Add(-time.Minute), reminder.RecurrenceNone)

	// An overlapping tick holds the claim.
	claimed, err := store.ClaimDue(ctx, tickNow, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	res, err := newScheduler(store, gw).Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Due)
	assert.Empty(t, gw.Requests())

	later := reminder.NewScheduler(store, gw,
		reminder.WithClaimLease(time.Minute),
		reminder.WithClock(func() time.Time { return tickNow.Add(2 * time.Minute) }),
	)
	res, err = later.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, reminder.TickResult{Due: 1, Processed: 1}, res, "expired claims are picked up again")
	assert.Len(t, gw.Requests(), 1)
}

func TestScheduler_Tick_ConcurrentTicksFireOnce(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	gw := &fakeGateway{}
	for i := range 20 {
		seed(t, store, fmt.Sprintf("r%d", i), fmt.Sprintf("u%d@b.com", i), tickNow.Add(-time.Minute), reminder.RecurrenceNone)
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := newScheduler(store, gw, reminder.WithBatchSize(20)).Tick(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	seen := map[string]int{}
	for _, req := range gw.Requests() {
		seen[req.Recipient]++
	}
	assert.Len(t, seen, 20)
	for recipient, n := range seen {
		assert.Equal(t, 1, n, recipient)
	}
}

// cancellingGateway cancels the reminder while its delivery is being enqueued.
type cancellingGateway struct {
	fakeGateway
	svc *reminder.Service
	id  string
}

func (g *cancellingGateway) Enqueue(ctx context.Context, req delivery.Request) (delivery.Result, error) {
	if err := g.svc.Cancel(ctx, g.id); err != nil {
		return delivery.Result{}, err
	}
	return g.fakeGateway.Enqueue(ctx, req)
}

func TestScheduler_Tick_CancelledWhileFiring(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	seed(t, store, "r1", "a@b.com", tickNow.Add(-time.Minute), reminder.RecurrenceDaily)
	gw := &cancellingGateway{svc: reminder.NewService(store), id: "r1"}

	res, err := newScheduler(store, gw).Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)

	r, err := store.GetReminder(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, reminder.StatusCancelled, r.Status)
	assert.Len(t, store.Reminders(), 1, "no successor for a cancelled series")
}

func TestScheduler_Handle_StoreFailure(t *testing.T) {
	t.Parallel()

	s := reminder.NewScheduler(memstore.New(), &fakeGateway{}, reminder.WithBatchSize(0))
	require.NoError(t, s.Handle(context.Background()))

	s = reminder.NewScheduler(failingStore{}, &fakeGateway{})
	require.ErrorIs(t, s.Handle(context.Background()), reminder.ErrStore)
}

type failingStore struct{ reminder.Store }

func (failingStore) ClaimDue(context.Context, time.Time, int, time.Duration) ([]reminder.Reminder, error) {
	return nil, errors.New("connection reset")
}
