package job

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
)

// executor runs one task attempt with the payload stored on the job row.
type executor func(ctx context.Context, payload json.RawMessage) error

// registry maps task names to executors. All tasks share one River worker.
type registry struct {
	tasks map[string]executor
	mu    sync.RWMutex
}

func newRegistry() *registry {
	return &registry{tasks: make(map[string]executor)}
}

func (r *registry) add(name string, e executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[name] = e
}

func (r *registry) lookup(name string) (executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tasks[name]
	return e, ok && e != nil
}

// names returns the registered task names in sorted order.
func (r *registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// typedExecutor decodes the payload into P before calling handle. A payload
// that does not decode is a permanent failure.
func typedExecutor[P any](handle func(context.Context, P) error) executor {
	return func(ctx context.Context, raw json.RawMessage) error {
		var payload P
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &payload); err != nil {
				return Permanent(errors.Join(ErrInvalidPayload, err))
			}
		}
		return handle(ctx, payload)
	}
}
