package job

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager_NilPool(t *testing.T) {
	_, err := NewManager(nil)
	assert.ErrorIs(t, err, ErrPoolRequired)
}

func TestNewEnqueuer_NilPool(t *testing.T) {
	_, err := NewEnqueuer(nil)
	assert.ErrorIs(t, err, ErrPoolRequired)
}

func TestBuildQueues(t *testing.T) {
	cfg := newConfig()
	cfg.maxWorkers = 20
	WithQueue("delivery", 4)(cfg)

	queues := buildQueues(cfg)
	require.Len(t, queues, 2)
	assert.Equal(t, 20, queues[defaultQueue].MaxWorkers)
	assert.Equal(t, 4, queues["delivery"].MaxWorkers)
}

func TestBuildPeriodicJobs(t *testing.T) {
	t.Run("registers executor per schedule", func(t *testing.T) {
		cfg := newConfig()
		WithScheduledTask(&tickTestTask{schedule: "*/5 * * * *"})(cfg)

		jobs, err := buildPeriodicJobs(cfg)
		require.NoError(t, err)
		assert.Len(t, jobs, 1)

		execute, ok := cfg.registry.lookup("process_due_reminders")
		require.True(t, ok)
		require.NoError(t, execute(context.Background(), nil))
	})

	t.Run("rejects invalid cron", func(t *testing.T) {
		cfg := newConfig()
		WithScheduledTask(&tickTestTask{schedule: "not cron"})(cfg)

		_, err := buildPeriodicJobs(cfg)
		assert.Error(t, err)
	})
}

func TestErrors(t *testing.T) {
	assert.Contains(t, ErrUnknownTask.Error(), "unknown task")
	assert.Contains(t, ErrInvalidPayload.Error(), "invalid payload")
	assert.Contains(t, ErrAlreadyStarted.Error(), "already started")
	assert.Contains(t, ErrNotStarted.Error(), "not started")
}
