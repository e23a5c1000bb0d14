package job

import (
	"context"
	"errors"
)

var ErrHealthcheckFailed = errors.New("job: healthcheck failed")

var (
	errManagerNil        = errors.New("manager is nil")
	errManagerNotStarted = errors.New("manager not started")
)

// Healthcheck reports whether the manager is processing and the queue table
// is reachable. It fits health.CheckFunc.
func Healthcheck(m *Manager) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if m == nil {
			return errors.Join(ErrHealthcheckFailed, errManagerNil)
		}

		m.mu.Lock()
		started := m.started
		m.mu.Unlock()
		if !started {
			return errors.Join(ErrHealthcheckFailed, errManagerNotStarted)
		}

		if _, err := m.pool.Exec(ctx, "SELECT 1 FROM river_job LIMIT 1"); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
