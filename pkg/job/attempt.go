package job

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/postbox/pkg/logger"
)

// Attempt describes the queue's view of the job currently being worked.
// Number starts at 1 and is incremented by the queue on every redelivery,
// including redeliveries caused by a crashed worker.
type Attempt struct {
	JobID       int64
	Number      int
	MaxAttempts int
}

// Final reports whether a failure of this attempt exhausts the job's retries.
func (a Attempt) Final() bool {
	return a.MaxAttempts > 0 && a.Number >= a.MaxAttempts
}

type attemptCtxKey struct{}

// ContextWithAttempt attaches attempt metadata to ctx.
// The manager does this before calling a task handler.
func ContextWithAttempt(ctx context.Context, a Attempt) context.Context {
	return context.WithValue(ctx, attemptCtxKey{}, a)
}

// AttemptFromContext returns the attempt metadata of the running job.
// Outside a job it reports a single, final attempt.
func AttemptFromContext(ctx context.Context) Attempt {
	if a, ok := ctx.Value(attemptCtxKey{}).(Attempt); ok {
		return a
	}
	return Attempt{Number: 1, MaxAttempts: 1}
}

// LogExtractor adds job_id and attempt to records logged inside a job.
func LogExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		a, ok := ctx.Value(attemptCtxKey{}).(Attempt)
		if !ok {
			return slog.Attr{}, false
		}
		return slog.Group("job",
			slog.Int64("id", a.JobID),
			slog.Int("attempt", a.Number),
		), true
	}
}
