package delivery

import "fmt"

// Status is the delivery log state.
//
//	queued → sent | failed
//	sent   → bounced | spam_report
type Status string

const (
	StatusQueued     Status = "queued"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
	StatusBounced    Status = "bounced"
	StatusSpamReport Status = "spam_report"
)

var transitions = map[Status][]Status{
	StatusQueued: {StatusSent, StatusFailed},
	// sent → sent happens when a redelivered job sends again.
	StatusSent: {StatusSent, StatusBounced, StatusSpamReport},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusSent, StatusFailed, StatusBounced, StatusSpamReport:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusFailed || s == StatusBounced || s == StatusSpamReport
}

// CanTransition reports whether s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition moves the log to next. Re-applying the current terminal status
// is a no-op; any other disallowed move returns ErrInvalidTransition.
func (l *Log) Transition(next Status) error {
	if l.Status == next && next.Terminal() {
		return nil
	}
	if !l.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.Status, next)
	}
	l.Status = next
	return nil
}
