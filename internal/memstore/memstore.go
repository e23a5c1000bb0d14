// Package memstore keeps delivery logs and reminders in memory. It backs
// tests and local runs without Postgres.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/postbox/pkg/delivery"
	"github.com/dmitrymomot/postbox/pkg/reminder"
)

// Store implements delivery.LogStore and reminder.Store.
type Store struct {
	logs        map[string]*delivery.Log
	attachments map[string][]delivery.Attachment
	events      map[string][]delivery.TrackingEvent
	reminders   map[string]*reminder.Reminder
	claims      map[string]time.Time
	mu          sync.RWMutex
}

var (
	_ delivery.LogStore = (*Store)(nil)
	_ reminder.Store    = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		logs:        make(map[string]*delivery.Log),
		attachments: make(map[string][]delivery.Attachment),
		events:      make(map[string][]delivery.TrackingEvent),
		reminders:   make(map[string]*reminder.Reminder),
		claims:      make(map[string]time.Time),
	}
}

func (s *Store) CreateLog(_ context.Context, l *delivery.Log) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.logs[l.ID]; ok {
		return fmt.Errorf("memstore: log %s already exists", l.ID)
	}
	s.logs[l.ID] = cloneLog(l)
	return nil
}

func (s *Store) GetLog(_ context.Context, id string) (*delivery.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.logs[id]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	return cloneLog(l), nil
}

// FindLogByMessageID returns the most recently created match.
func (s *Store) FindLogByMessageID(_ context.Context, messageID string) (*delivery.Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *delivery.Log
	for _, l := range s.logs {
		if l.ProviderMessageID != messageID {
			continue
		}
		if found == nil || l.CreatedAt.After(found.CreatedAt) {
			found = l
		}
	}
	if found == nil {
		return nil, delivery.ErrNotFound
	}
	return cloneLog(found), nil
}

func (s *Store) UpdateLog(_ context.Context, id string, fn func(*delivery.Log) error) (*delivery.Log, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.logs[id]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	next := cloneLog(cur)
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = id
	s.logs[id] = next
	return cloneLog(next), nil
}

func (s *Store) ListLogs(_ context.Context, f delivery.HistoryFilter) ([]delivery.Log, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []delivery.Log
	for _, l := range s.logs {
		if matchLog(l, f) {
			matched = append(matched, *cloneLog(l))
		}
	}
	slices.SortFunc(matched, func(a, b delivery.Log) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})

	total := len(matched)
	start := min(max(f.Offset, 0), total)
	end := total
	if f.Limit > 0 {
		end = min(start+f.Limit, total)
	}
	return matched[start:end], total, nil
}

func matchLog(l *delivery.Log, f delivery.HistoryFilter) bool {
	switch {
	case f.Recipient != "" && !strings.EqualFold(l.Recipient, f.Recipient):
		return false
	case f.DocumentType != "" && l.DocumentType != f.DocumentType:
		return false
	case f.Status != "" && l.Status != f.Status:
		return false
	case f.From != nil && l.CreatedAt.Before(*f.From):
		return false
	case f.To != nil && l.CreatedAt.After(*f.To):
		return false
	}
	return true
}

// AddAttachments skips files already recorded for the log under the same name.
func (s *Store) AddAttachments(_ context.Context, logID string, in []delivery.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.logs[logID]; !ok {
		return delivery.ErrNotFound
	}
	existing := s.attachments[logID]
	for _, a := range in {
		if slices.ContainsFunc(existing, func(e delivery.Attachment) bool { return e.Filename == a.Filename }) {
			continue
		}
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = time.Now().UTC()
		}
		a.LogID = logID
		existing = append(existing, a)
	}
	s.attachments[logID] = existing
	return nil
}

func (s *Store) ListAttachments(_ context.Context, logID string) ([]delivery.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]delivery.Attachment{}, s.attachments[logID]...), nil
}

func (s *Store) AppendEvent(_ context.Context, ev *delivery.TrackingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.logs[ev.LogID]; !ok {
		return delivery.ErrNotFound
	}
	cp := *ev
	cp.EventData = maps.Clone(ev.EventData)
	s.events[ev.LogID] = append(s.events[ev.LogID], cp)
	return nil
}

// ListEvents returns events in occurrence order.
func (s *Store) ListEvents(_ context.Context, logID string) ([]delivery.TrackingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]delivery.TrackingEvent{}, s.events[logID]...)
	slices.SortStableFunc(out, func(a, b delivery.TrackingEvent) int {
		return a.OccurredAt.Compare(b.OccurredAt)
	})
	return out, nil
}

func (s *Store) CreateReminder(_ context.Context, r *reminder.Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reminders[r.ID]; ok {
		return fmt.Errorf("memstore: reminder %s already exists", r.ID)
	}
	s.reminders[r.ID] = cloneReminder(r)
	return nil
}

func (s *Store) GetReminder(_ context.Context, id string) (*reminder.Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reminders[id]
	if !ok {
		return nil, reminder.ErrNotFound
	}
	return cloneReminder(r), nil
}

func (s *Store) ClaimDue(_ context.Context, now time.Time, limit int, lease time.Duration) ([]reminder.Reminder, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("memstore: limit must be positive, got %d", limit)
	}
	if lease <= 0 {
		return nil, fmt.Errorf("memstore: claim lease must be positive, got %s", lease)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var due []reminder.Reminder
	for id, r := range s.reminders {
		if r.Status != reminder.StatusPending || r.ScheduledFor.After(now) {
			continue
		}
		if until, ok := s.claims[id]; ok && until.After(now) {
			continue
		}
		due = append(due, *cloneReminder(r))
	}
	slices.SortFunc(due, func(a, b reminder.Reminder) int {
		if c := a.ScheduledFor.Compare(b.ScheduledFor); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	for _, r := range due {
		s.claims[r.ID] = now.Add(lease)
	}
	return due, nil
}

func (s *Store) UpdateReminder(_ context.Context, id string, fn func(*reminder.Reminder) error) (*reminder.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.reminders[id]
	if !ok {
		return nil, reminder.ErrNotFound
	}
	next := cloneReminder(cur)
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = id
	s.reminders[id] = next
	delete(s.claims, id)
	return cloneReminder(next), nil
}

// Reminders returns every stored reminder, oldest first.
func (s *Store) Reminders() []reminder.Reminder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]reminder.Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		out = append(out, *cloneReminder(r))
	}
	slices.SortFunc(out, func(a, b reminder.Reminder) int {
		if c := a.ScheduledFor.Compare(b.ScheduledFor); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func cloneLog(l *delivery.Log) *delivery.Log {
	cp := *l
	cp.Metadata = maps.Clone(l.Metadata)
	if l.SentAt != nil {
		t := *l.SentAt
		cp.SentAt = &t
	}
	return &cp
}

func cloneReminder(r *reminder.Reminder) *reminder.Reminder {
	cp := *r
	cp.TemplateData = maps.Clone(r.TemplateData)
	if r.ProcessedAt != nil {
		t := *r.ProcessedAt
		cp.ProcessedAt = &t
	}
	return &cp
}
