package job

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deliverTestTask implements the task interface.
type deliverTestTask struct{}

func (t *deliverTestTask) Name() string { return "deliver_document" }

func (t *deliverTestTask) Handle(ctx context.Context, p struct{}) error {
	return nil
}

func TestWithTask(t *testing.T) {
	t.Parallel()

	cfg := newConfig()

	task := &deliverTestTask{}
	opt := WithTask[struct{}, *deliverTestTask](task)
	opt(cfg)

	// Verify task was registered
	_, ok := cfg.registry.lookup("deliver_document")
	assert.True(t, ok)
	assert.Equal(t, []string{"deliver_document"}, cfg.registry.names())
}

// tickTestTask implements the scheduled task interface.
type tickTestTask struct {
	schedule string
}

func (t *tickTestTask) Name() string     { return "process_due_reminders" }
func (t *tickTestTask) Schedule() string { return t.schedule }

func (t *tickTestTask) Handle(ctx context.Context) error {
	return nil
}

func TestWithScheduledTask(t *testing.T) {
	t.Parallel()

	cfg := newConfig()

	task := &tickTestTask{schedule: "*/5 * * * *"}
	opt := WithScheduledTask[*tickTestTask](task)
	opt(cfg)

	// Verify schedule was added
	require.Len(t, cfg.schedules, 1)
	assert.Equal(t, "process_due_reminders", cfg.schedules[0].name)
	assert.Equal(t, "*/5 * * * *", cfg.schedules[0].schedule)
	assert.NotNil(t, cfg.schedules[0].handler)
}

func TestWithQueue(t *testing.T) {
	t.Parallel()

	cfg := newConfig()

	opt := WithQueue("delivery", 10)
	opt(cfg)

	assert.Equal(t, 10, cfg.queues["delivery"])
}

func TestWithQueue_ZeroWorkers(t *testing.T) {
	t.Parallel()

	cfg := newConfig()

	opt := WithQueue("delivery", 0)
	opt(cfg)

	_, ok := cfg.queues["delivery"]
	assert.False(t, ok, "queue with 0 workers should not be added")
}

func TestWithQueue_NegativeWorkers(t *testing.T) {
	t.Parallel()

	cfg := newConfig()

	opt := WithQueue("delivery", -5)
	opt(cfg)

	_, ok := cfg.queues["delivery"]
	assert.False(t, ok, "queue with negative workers should not be added")
}

func TestWithLogger(t *testing.T) {
	t.Parallel()

	cfg := newConfig()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	opt := WithLogger(logger)
	opt(cfg)

	assert.Same(t, logger, cfg.logger)
}

func TestWithLogger_Nil(t *testing.T) {
	t.Parallel()

	cfg := newConfig()
	cfg.logger = slog.Default()

	opt := WithLogger(nil)
	opt(cfg)

	// Should not change if nil
	assert.Same(t, slog.Default(), cfg.logger)
}

func TestWithMaxWorkers(t *testing.T) {
	t.Parallel()

	cfg := newConfig()

	opt := WithMaxWorkers(50)
	opt(cfg)

	assert.Equal(t, 50, cfg.maxWorkers)
}

func TestWithMaxWorkers_Zero(t *testing.T) {
	t.Parallel()

	cfg := newConfig()
	cfg.maxWorkers = 100

	opt := WithMaxWorkers(0)
	opt(cfg)

	// Should not change if 0
	assert.Equal(t, 100, cfg.maxWorkers)
}

func TestWithMaxWorkers_Negative(t *testing.T) {
	t.Parallel()

	cfg := newConfig()
	cfg.maxWorkers = 100

	opt := WithMaxWorkers(-10)
	opt(cfg)

	// Should not change if negative
	assert.Equal(t, 100, cfg.maxWorkers)
}

func TestWithRetryPolicy(t *testing.T) {
	t.Parallel()

	cfg := newConfig()
	policy := NewExponentialRetry(5 * time.Second)

	WithRetryPolicy(policy)(cfg)
	assert.Same(t, policy, cfg.retryPolicy)

	WithRetryPolicy(nil)(cfg)
	assert.Same(t, policy, cfg.retryPolicy, "nil policy should be ignored")
}

func TestWithJobTimeout(t *testing.T) {
	t.Parallel()

	cfg := newConfig()

	WithJobTimeout(90 * time.Second)(cfg)
	assert.Equal(t, 90*time.Second, cfg.jobTimeout)

	WithJobTimeout(-time.Second)(cfg)
	assert.Equal(t, 90*time.Second, cfg.jobTimeout)
}

func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := newConfig()

	assert.NotNil(t, cfg.registry)
	assert.NotNil(t, cfg.queues)
	assert.Empty(t, cfg.schedules)
	assert.Nil(t, cfg.logger)
	assert.Equal(t, 0, cfg.maxWorkers)
	assert.Nil(t, cfg.retryPolicy)
}
