package delivery

import "context"

// LogStore persists delivery logs, their attachments and tracking events.
//
// Implementations return ErrNotFound for unknown ids. UpdateLog loads the log,
// applies fn and saves the result atomically; an error from fn aborts the
// update and is returned unchanged.
type LogStore interface {
	CreateLog(ctx context.Context, log *Log) error
	GetLog(ctx context.Context, id string) (*Log, error)
	FindLogByMessageID(ctx context.Context, messageID string) (*Log, error)
	UpdateLog(ctx context.Context, id string, fn func(*Log) error) (*Log, error)
	ListLogs(ctx context.Context, filter HistoryFilter) ([]Log, int, error)

	// AddAttachments is idempotent per (logID, filename).
	AddAttachments(ctx context.Context, logID string, attachments []Attachment) error
	ListAttachments(ctx context.Context, logID string) ([]Attachment, error)

	AppendEvent(ctx context.Context, event *TrackingEvent) error
	ListEvents(ctx context.Context, logID string) ([]TrackingEvent, error)
}

// Archive stores attachment content outside the job payload.
type Archive interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Metrics receives delivery pipeline counters. Implementations must be
// safe for concurrent use.
type Metrics interface {
	DeliveryEnqueued(documentType string)
	DeliverySent(provider string)
	DeliveryRetried(documentType string)
	DeliveryFailed(reason string)
	TrackingEvent(eventType string, matched bool)
}

type nopMetrics struct{}

func (nopMetrics) DeliveryEnqueued(string)    {}
func (nopMetrics) DeliverySent(string)        {}
func (nopMetrics) DeliveryRetried(string)     {}
func (nopMetrics) DeliveryFailed(string)      {}
func (nopMetrics) TrackingEvent(string, bool) {}
