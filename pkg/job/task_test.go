package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deliveryPayload struct {
	LogID   string `json:"logId"`
	Attempt int    `json:"attempt"`
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := newRegistry()
	assert.Empty(t, r.names())

	noop := func(context.Context, json.RawMessage) error { return nil }
	r.add("process_due_reminders", noop)
	r.add("deliver_document", noop)
	r.add("broken", nil)

	_, ok := r.lookup("deliver_document")
	assert.True(t, ok)
	_, ok = r.lookup("unknown")
	assert.False(t, ok)
	_, ok = r.lookup("broken")
	assert.False(t, ok, "nil executors are not runnable")

	assert.Equal(t, []string{"broken", "deliver_document", "process_due_reminders"}, r.names())
}

func TestTypedExecutor(t *testing.T) {
	t.Parallel()

	t.Run("decodes payload", func(t *testing.T) {
		t.Parallel()

		var got deliveryPayload
		execute := typedExecutor(func(_ context.Context, p deliveryPayload) error {
			got = p
			return nil
		})

		require.NoError(t, execute(context.Background(), json.RawMessage(`{"logId":"log-1","attempt":2}`)))
		assert.Equal(t, deliveryPayload{LogID: "log-1", Attempt: 2}, got)
	})

	t.Run("empty payload yields zero value", func(t *testing.T) {
		t.Parallel()

		called := false
		execute := typedExecutor(func(_ context.Context, p deliveryPayload) error {
			called = true
			assert.Zero(t, p)
			return nil
		})

		require.NoError(t, execute(context.Background(), nil))
		assert.True(t, called)
	})

	t.Run("invalid payload is permanent", func(t *testing.T) {
		t.Parallel()

		execute := typedExecutor(func(context.Context, deliveryPayload) error {
			t.Fatal("handler must not run")
			return nil
		})

		err := execute(context.Background(), json.RawMessage(`{"logId":`))
		require.ErrorIs(t, err, ErrInvalidPayload)
		assert.True(t, IsPermanent(err))
	})

	t.Run("handler error passes through", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("provider down")
		execute := typedExecutor(func(context.Context, deliveryPayload) error { return boom })

		err := execute(context.Background(), json.RawMessage(`{}`))
		require.ErrorIs(t, err, boom)
		assert.False(t, IsPermanent(err))
	})
}
