package job

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"

	"github.com/dmitrymomot/postbox/pkg/logger"
)

const (
	defaultMaxWorkers = 100
	defaultQueue      = river.QueueDefault
)

// Manager handles background job processing using River.
// It combines enqueueing and worker processing capabilities.
// Manager embeds Enqueuer for job enqueueing methods.
type Manager struct {
	*Enqueuer
	registry *registry
	workers  *river.Workers
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
}

// NewManager creates a new job manager with the given options.
// The River client is created immediately, allowing jobs to be enqueued
// before Start() is called. Call Start() to begin processing jobs.
func NewManager(pool *pgxpool.Pool, opts ...Option) (*Manager, error) {
	if pool == nil {
		return nil, ErrPoolRequired
	}

	cfg := newConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.logger == nil {
		cfg.logger = logger.NewNope()
	}

	if cfg.maxWorkers == 0 {
		cfg.maxWorkers = defaultMaxWorkers
	}

	periodicJobs, err := buildPeriodicJobs(cfg)
	if err != nil {
		return nil, err
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &taskWorker{
		registry: cfg.registry,
		logger:   cfg.logger,
	})

	// Client created immediately, allowing enqueue() before Start().
	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:       buildQueues(cfg),
		Workers:      workers,
		PeriodicJobs: periodicJobs,
		RetryPolicy:  cfg.retryPolicy,
		JobTimeout:   cfg.jobTimeout,
		Logger:       cfg.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("job: create client: %w", err)
	}

	return &Manager{
		Enqueuer: &Enqueuer{
			pool:   pool,
			client: client,
			logger: cfg.logger,
		},
		registry: cfg.registry,
		workers:  workers,
		logger:   cfg.logger,
	}, nil
}

func buildQueues(cfg *config) map[string]river.QueueConfig {
	queues := map[string]river.QueueConfig{
		defaultQueue: {MaxWorkers: cfg.maxWorkers},
	}
	for name, workers := range cfg.queues {
		queues[name] = river.QueueConfig{MaxWorkers: workers}
	}
	return queues
}

var periodicUniqueStates = []rivertype.JobState{
	rivertype.JobStateAvailable,
	rivertype.JobStatePending,
	rivertype.JobStateRunning,
	rivertype.JobStateScheduled,
}

// buildPeriodicJobs converts scheduled tasks to River periodic jobs and
// registers their executors so the shared worker can dispatch them.
func buildPeriodicJobs(cfg *config) ([]*river.PeriodicJob, error) {
	periodicJobs := make([]*river.PeriodicJob, 0, len(cfg.schedules))
	for _, sched := range cfg.schedules {
		cronSchedule, err := parseCronSchedule(sched.schedule)
		if err != nil {
			return nil, fmt.Errorf("job: invalid cron schedule %q: %w", sched.schedule, err)
		}

		name := sched.name
		periodicJobs = append(periodicJobs, river.NewPeriodicJob(
			cronSchedule,
			func() (river.JobArgs, *river.InsertOpts) {
				// A tick is not retried and is skipped while the previous one
				// is still unfinished.
				return &taskArgs{TaskName: name}, &river.InsertOpts{
					MaxAttempts: 1,
					UniqueOpts:  river.UniqueOpts{ByArgs: true, ByState: periodicUniqueStates},
				}
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		))

		cfg.registry.add(name, scheduledExecutor(sched.handler))
	}
	return periodicJobs, nil
}

// Start begins processing jobs.
// Jobs can be enqueued before Start() is called.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return ErrAlreadyStarted
	}

	if err := m.client.Start(ctx); err != nil {
		return fmt.Errorf("job: start client: %w", err)
	}

	m.started = true
	m.logger.Info("job manager started",
		slog.Int("tasks", len(m.registry.names())),
	)

	return nil
}

// Stop gracefully shuts down the job manager.
// It waits for currently executing jobs to complete.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started {
		return ErrNotStarted
	}

	if err := m.client.Stop(ctx); err != nil {
		return fmt.Errorf("job: stop client: %w", err)
	}

	m.started = false
	m.logger.Info("job manager stopped")
	return nil
}

// Enqueue adds a job to the queue for processing and returns its ID.
// Unlike Enqueuer.Enqueue, the task name is checked against the registry.
func (m *Manager) Enqueue(ctx context.Context, name string, payload any, opts ...EnqueueOption) (int64, error) {
	if _, ok := m.registry.lookup(name); !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}
	return m.Enqueuer.Enqueue(ctx, name, payload, opts...)
}

// taskArgs is the River job arguments type shared by all registered tasks.
// It uses a unified format with task name and JSON payload.
type taskArgs struct {
	TaskName string          `json:"task_name"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

func (taskArgs) Kind() string {
	return "postbox:task"
}

// taskWorker processes all tasks through the registry.
type taskWorker struct {
	river.WorkerDefaults[taskArgs]
	registry *registry
	logger   *slog.Logger
}

func (w *taskWorker) Work(ctx context.Context, job *river.Job[taskArgs]) error {
	execute, ok := w.registry.lookup(job.Args.TaskName)
	if !ok {
		return Permanent(fmt.Errorf("%w: %s", ErrUnknownTask, job.Args.TaskName))
	}

	log := w.logger.With(
		slog.String("task", job.Args.TaskName),
		slog.Int64("job_id", job.ID),
		slog.Int("attempt", job.Attempt),
		slog.Int("max_attempts", job.MaxAttempts),
	)
	log.DebugContext(ctx, "executing task")

	ctx = ContextWithAttempt(ctx, Attempt{
		JobID:       job.ID,
		Number:      job.Attempt,
		MaxAttempts: job.MaxAttempts,
	})

	start := time.Now()
	if err := execute(ctx, job.Args.Payload); err != nil {
		log.ErrorContext(ctx, "task failed",
			slog.Bool("permanent", IsPermanent(err)),
			slog.Any("error", err),
		)
		return err
	}

	log.DebugContext(ctx, "task completed", slog.Duration("took", time.Since(start)))
	return nil
}

// Shutdown returns a shutdown function for the job manager.
func (m *Manager) Shutdown() func(context.Context) error {
	return func(ctx context.Context) error {
		return m.Stop(ctx)
	}
}

// StartFunc returns a startup function for the job manager.
func (m *Manager) StartFunc() func(context.Context) error {
	return func(ctx context.Context) error {
		return m.Start(ctx)
	}
}
