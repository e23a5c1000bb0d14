package delivery_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/postbox/internal/memstore"
	"github.com/dmitrymomot/postbox/pkg/delivery"
	"github.com/dmitrymomot/postbox/pkg/job"
	"github.com/dmitrymomot/postbox/pkg/mailer"
)

// MockSender is a mock implementation of mailer.Sender.
type MockSender struct {
	mock.Mock
	name       string
	configured bool
}

func newMockSender(name string) *MockSender {
	return &MockSender{name: name, configured: true}
}

func (m *MockSender) Name() string     { return m.name }
func (m *MockSender) Configured() bool { return m.configured }

func (m *MockSender) Send(ctx context.Context, email *mailer.Email) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

type enqueueCall struct {
	name    string
	payload delivery.Job
	opts    int
}

// fakeQueue records admitted jobs.
type fakeQueue struct {
	mu     sync.Mutex
	calls  []enqueueCall
	err    error
	nextID int64
}

func (q *fakeQueue) Enqueue(_ context.Context, name string, payload any, opts ...job.EnqueueOption) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.err != nil {
		return 0, q.err
	}
	q.nextID++
	q.calls = append(q.calls, enqueueCall{name: name, payload: payload.(delivery.Job), opts: len(opts)})
	return q.nextID, nil
}

func (q *fakeQueue) Calls() []enqueueCall {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]enqueueCall{}, q.calls...)
}

// fakeArchive keeps objects in memory.
type fakeArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{objects: make(map[string][]byte)}
}

func (a *fakeArchive) Put(_ context.Context, key string, content []byte, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.putErr != nil {
		return a.putErr
	}
	a.objects[key] = content
	return nil
}

func (a *fakeArchive) Get(_ context.Context, key string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

// composerFunc adapts a function to delivery.Composer.
type composerFunc func(templateKey string, data any) (*mailer.Content, error)

func (f composerFunc) Render(templateKey string, data any) (*mailer.Content, error) {
	return f(templateKey, data)
}

func staticComposer(subject string) composerFunc {
	return func(string, any) (*mailer.Content, error) {
		return &mailer.Content{Subject: subject, HTML: "<p>doc</p>", Text: "doc"}, nil
	}
}

func attemptCtx(jobID int64, n, max int) context.Context {
	return job.ContextWithAttempt(context.Background(), job.Attempt{JobID: jobID, Number: n, MaxAttempts: max})
}

// queuedLog stores a queued log and returns the matching job payload.
func queuedLog(store *memstore.Store, id string) delivery.Job {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	_ = store.CreateLog(context.Background(), &delivery.Log{
		ID:           id,
		Recipient:    "a@b.com",
		DocumentType: delivery.DocumentInvoice,
		Subject:      "Factura A-1",
		Status:       delivery.StatusQueued,
		Provider:     "resend",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	return delivery.Job{
		LogID:        id,
		Recipient:    "a@b.com",
		DocumentType: delivery.DocumentInvoice,
		DocumentID:   "inv-1",
		Data:         map[string]any{"folio": "A-1", "total": 1500},
	}
}
