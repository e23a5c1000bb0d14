package reminder

import "errors"

var (
	ErrInvalidRequest    = errors.New("reminder: invalid request")
	ErrNotFound          = errors.New("reminder: not found")
	ErrStore             = errors.New("reminder: store failure")
	ErrNotPending        = errors.New("reminder: not pending")
	ErrUnknownRecurrence = errors.New("reminder: unknown recurrence")
)
