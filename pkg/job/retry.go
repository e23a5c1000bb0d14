package job

import (
	"errors"
	"math"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

const maxBackoffShift = 30

// ExponentialRetry schedules retries at base * 2^(attempt-1), where attempt is
// the number of the attempt that just failed. With a 5s base, attempt 1 is
// retried after 5s, attempt 2 after 10s, attempt 3 after 20s.
type ExponentialRetry struct {
	base time.Duration
	now  func() time.Time
}

// NewExponentialRetry creates a retry policy with the given base delay.
func NewExponentialRetry(base time.Duration) *ExponentialRetry {
	return &ExponentialRetry{base: base, now: time.Now}
}

// Delay returns the wait before the attempt following the given failed attempt.
func (p *ExponentialRetry) Delay(attempt int) time.Duration {
	return Backoff(p.base, attempt)
}

// NextRetry implements river.ClientRetryPolicy.
func (p *ExponentialRetry) NextRetry(j *rivertype.JobRow) time.Time {
	return p.now().Add(p.Delay(j.Attempt))
}

// Backoff computes base * 2^(attempt-1) with overflow protection.
// Attempts below 1 are treated as the first attempt.
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	shift := min(max(attempt-1, 0), maxBackoffShift)
	multiplier := int64(1) << shift
	if int64(base) > math.MaxInt64/multiplier {
		return time.Duration(math.MaxInt64)
	}
	return base * time.Duration(multiplier)
}

// permanentError carries River's cancel marker so the queue stops retrying,
// while keeping the original error reachable through errors.Is/As.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not retryable. The job is cancelled instead of
// rescheduled, regardless of the attempts left.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: river.JobCancel(err)}
}

// IsPermanent reports whether err was produced by Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
