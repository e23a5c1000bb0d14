package delivery

import "errors"

var (
	// ErrInvalidRequest reports bad caller input. Never retried.
	ErrInvalidRequest = errors.New("delivery: invalid request")
	// ErrRender reports a template/data mismatch. Permanent.
	ErrRender = errors.New("delivery: render failed")
	// ErrProvider reports a transport failure. Retried per policy.
	ErrProvider = errors.New("delivery: provider failed")
	// ErrRetriesExhausted is returned by the final failed attempt.
	ErrRetriesExhausted = errors.New("delivery: retries exhausted")
	ErrNotFound         = errors.New("delivery: not found")
	ErrStore            = errors.New("delivery: store failure")
	// ErrQueueAdmission means the log row exists but no job references it.
	ErrQueueAdmission    = errors.New("delivery: queue admission failed")
	ErrInvalidTransition = errors.New("delivery: invalid status transition")
)
