package mailer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSender is a mock implementation of Sender.
type MockSender struct {
	mock.Mock
	name       string
	configured bool
}

func newMockSender(name string, configured bool) *MockSender {
	return &MockSender{name: name, configured: configured}
}

func (m *MockSender) Name() string     { return m.name }
func (m *MockSender) Configured() bool { return m.configured }

func (m *MockSender) Send(ctx context.Context, email *Email) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func testEmail() *Email {
	return &Email{
		To:      []string{"a@b.com"},
		Subject: "Factura F-1",
		HTML:    "<p>hola</p>",
	}
}

func TestChain_Send_PrimarySucceeds(t *testing.T) {
	t.Parallel()

	primary := newMockSender("resend", true)
	secondary := newMockSender("sendgrid", true)
	primary.On("Send", mock.Anything, mock.Anything).Return("msg-1", nil)

	chain := NewChain([]Sender{primary, secondary})
	receipt, err := chain.Send(context.Background(), testEmail())

	require.NoError(t, err)
	assert.Equal(t, Receipt{Provider: "resend", MessageID: "msg-1"}, receipt)
	primary.AssertExpectations(t)
	secondary.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestChain_Send_FailsOverToSecondary(t *testing.T) {
	t.Parallel()

	primary := newMockSender("resend", true)
	secondary := newMockSender("sendgrid", true)
	primary.On("Send", mock.Anything, mock.Anything).Return("", errors.New("503 service unavailable"))
	secondary.On("Send", mock.Anything, mock.Anything).Return("sg-7", nil)

	var (
		mu     sync.Mutex
		failed []string
	)
	chain := NewChain([]Sender{primary, secondary}, WithFailureHook(func(provider string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, provider)
	}))

	receipt, err := chain.Send(context.Background(), testEmail())

	require.NoError(t, err)
	assert.Equal(t, "sendgrid", receipt.Provider)
	assert.Equal(t, "sg-7", receipt.MessageID)
	assert.Equal(t, []string{"resend"}, failed)
	primary.AssertExpectations(t)
	secondary.AssertExpectations(t)
}

func TestChain_Send_SkipsUnconfigured(t *testing.T) {
	t.Parallel()

	primary := newMockSender("resend", false)
	secondary := newMockSender("sendgrid", true)
	secondary.On("Send", mock.Anything, mock.Anything).Return("sg-1", nil)

	receipt, err := NewChain([]Sender{primary, secondary}).Send(context.Background(), testEmail())

	require.NoError(t, err)
	assert.Equal(t, "sendgrid", receipt.Provider)
	primary.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestChain_Send_AllFail(t *testing.T) {
	t.Parallel()

	errPrimary := errors.New("timeout")
	errSecondary := errors.New("rate limited")

	primary := newMockSender("resend", true)
	secondary := newMockSender("sendgrid", true)
	primary.On("Send", mock.Anything, mock.Anything).Return("", errPrimary)
	secondary.On("Send", mock.Anything, mock.Anything).Return("", errSecondary)

	receipt, err := NewChain([]Sender{primary, secondary}).Send(context.Background(), testEmail())

	require.Error(t, err)
	assert.Empty(t, receipt.MessageID)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.ErrorIs(t, err, errPrimary)
	assert.ErrorIs(t, err, errSecondary)
	assert.Contains(t, err.Error(), "resend: timeout")
	assert.Contains(t, err.Error(), "sendgrid: rate limited")
}

func TestChain_Send_NoProviders(t *testing.T) {
	t.Parallel()

	t.Run("empty chain", func(t *testing.T) {
		t.Parallel()
		_, err := NewChain(nil).Send(context.Background(), testEmail())
		require.ErrorIs(t, err, ErrNoProviders)
	})

	t.Run("nothing configured", func(t *testing.T) {
		t.Parallel()
		chain := NewChain([]Sender{newMockSender("resend", false), newMockSender("sendgrid", false)})
		_, err := chain.Send(context.Background(), testEmail())
		require.ErrorIs(t, err, ErrNoProviders)
	})
}

func TestChain_Send_InvalidEmail(t *testing.T) {
	t.Parallel()

	primary := newMockSender("resend", true)
	_, err := NewChain([]Sender{primary}).Send(context.Background(), &Email{Subject: "x", HTML: "y"})

	require.ErrorIs(t, err, ErrNoRecipient)
	primary.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestChain_Send_ProviderTimeout(t *testing.T) {
	t.Parallel()

	slow := newMockSender("resend", true)
	slow.On("Send", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			<-ctx.Done()
		}).
		Return("", context.DeadlineExceeded)

	fast := newMockSender("sendgrid", true)
	fast.On("Send", mock.Anything, mock.Anything).Return("sg-2", nil)

	chain := NewChain([]Sender{slow, fast}, WithProviderTimeout(20*time.Millisecond))

	start := time.Now()
	receipt, err := chain.Send(context.Background(), testEmail())

	require.NoError(t, err)
	assert.Equal(t, "sendgrid", receipt.Provider)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestChain_Accessors(t *testing.T) {
	t.Parallel()

	chain := NewChain([]Sender{newMockSender("resend", true), newMockSender("sendgrid", true)})
	assert.Equal(t, "resend", chain.Primary())
	assert.Equal(t, 2, chain.Len())
	assert.Equal(t, DefaultProviderTimeout, chain.Timeout())

	assert.Empty(t, NewChain(nil).Primary())
}
