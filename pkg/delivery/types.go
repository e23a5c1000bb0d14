package delivery

import (
	"time"

	"github.com/dmitrymomot/postbox/pkg/mailer"
)

// DocumentType is the kind of business document being delivered.
// It doubles as the composition template key.
type DocumentType string

const (
	DocumentInvoice         DocumentType = "invoice"
	DocumentDeliveryNote    DocumentType = "delivery_note"
	DocumentPaymentReminder DocumentType = "payment_reminder"
)

// Valid reports whether d is a recognized document type.
func (d DocumentType) Valid() bool {
	switch d {
	case DocumentInvoice, DocumentDeliveryNote, DocumentPaymentReminder:
		return true
	}
	return false
}

// Log is the durable record of a requested delivery and its outcome.
type Log struct {
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
	SentAt            *time.Time     `json:"sentAt,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	ID                string         `json:"id"`
	Recipient         string         `json:"recipient"`
	DocumentType      DocumentType   `json:"documentType"`
	DocumentID        string         `json:"documentId,omitempty"`
	Subject           string         `json:"subject"`
	Status            Status         `json:"status"`
	Provider          string         `json:"provider"`
	ProviderMessageID string         `json:"providerMessageId,omitempty"`
	ErrorMessage      string         `json:"errorMessage,omitempty"`
	JobID             int64          `json:"jobId,omitempty"`
	RetryCount        int            `json:"retryCount"`
}

// Attachment is a file that was sent with a delivery.
type Attachment struct {
	CreatedAt  time.Time `json:"createdAt"`
	ID         string    `json:"id"`
	LogID      string    `json:"logId"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mimeType"`
	StorageKey string    `json:"storageKey,omitempty"`
	SizeBytes  int64     `json:"sizeBytes"`
}

// TrackingEvent is an append-only provider notification about a sent message.
type TrackingEvent struct {
	OccurredAt time.Time        `json:"occurredAt"`
	CreatedAt  time.Time        `json:"createdAt"`
	EventData  map[string]any   `json:"eventData,omitempty"`
	ID         string           `json:"id"`
	LogID      string           `json:"logId"`
	Provider   string           `json:"provider"`
	EventType  mailer.EventType `json:"eventType"`
}

// Details is a log with its attachments and tracking events.
type Details struct {
	Log
	Attachments []Attachment    `json:"attachments"`
	Events      []TrackingEvent `json:"events"`
}

// HistoryFilter selects logs for the history query. Zero values match all.
type HistoryFilter struct {
	From         *time.Time
	To           *time.Time
	Recipient    string
	DocumentType DocumentType
	Status       Status
	Limit        int
	Offset       int
}

// Page is one page of history results.
type Page struct {
	Items  []Log `json:"items"`
	Total  int   `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}
