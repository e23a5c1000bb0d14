package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// History page bounds.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Query reads delivery logs.
type Query struct {
	logs LogStore
}

// NewQuery creates a Query.
func NewQuery(logs LogStore) *Query {
	return &Query{logs: logs}
}

// Get returns the log with its attachments and tracking events.
func (q *Query) Get(ctx context.Context, id string) (*Details, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}

	entry, err := q.logs.GetLog(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	attachments, err := q.logs.ListAttachments(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}
	events, err := q.logs.ListEvents(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}

	return &Details{
		Log:         *entry,
		Attachments: attachments,
		Events:      events,
	}, nil
}

// History lists logs newest first.
func (q *Query) History(ctx context.Context, f HistoryFilter) (*Page, error) {
	f, err := normalizeFilter(f)
	if err != nil {
		return nil, err
	}

	items, total, err := q.logs.ListLogs(ctx, f)
	if err != nil {
		return nil, storeError(err)
	}
	if items == nil {
		items = []Log{}
	}

	return &Page{
		Items:  items,
		Total:  total,
		Limit:  f.Limit,
		Offset: f.Offset,
	}, nil
}

func normalizeFilter(f HistoryFilter) (HistoryFilter, error) {
	f.Recipient = strings.TrimSpace(f.Recipient)

	if f.Status != "" && !f.Status.Valid() {
		return f, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, f.Status)
	}
	if f.DocumentType != "" && !f.DocumentType.Valid() {
		return f, fmt.Errorf("%w: unknown document type %q", ErrInvalidRequest, f.DocumentType)
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, fmt.Errorf("%w: date range ends before it starts", ErrInvalidRequest)
	}
	if f.Offset < 0 {
		return f, fmt.Errorf("%w: negative offset", ErrInvalidRequest)
	}

	switch {
	case f.Limit <= 0:
		f.Limit = DefaultPageSize
	case f.Limit > MaxPageSize:
		f.Limit = MaxPageSize
	}
	return f, nil
}

func storeError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return errors.Join(ErrStore, err)
}
