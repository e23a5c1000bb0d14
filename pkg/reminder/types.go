package reminder

import (
	"time"

	"github.com/dmitrymomot/postbox/pkg/delivery"
)

// Status is the lifecycle state of a scheduled reminder.
//
//	pending -> sent | cancelled | failed
//
// Reminders are never deleted.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusCancelled Status = "cancelled"
	// StatusFailed marks a reminder whose delivery request was rejected as
	// invalid. It is never retried.
	StatusFailed Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

// Reminder is a delivery scheduled for a future time. A recurring reminder
// that fires is marked sent and a new pending reminder is created for the
// next occurrence.
type Reminder struct {
	ScheduledFor time.Time             `json:"scheduledFor"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
	ProcessedAt  *time.Time            `json:"processedAt,omitempty"`
	TemplateData map[string]any        `json:"templateData,omitempty"`
	ID           string                `json:"id"`
	Recipient    string                `json:"recipient"`
	DocumentType delivery.DocumentType `json:"documentType"`
	DocumentID   string                `json:"documentId,omitempty"`
	Recurrence   Recurrence            `json:"recurrence"`
	Status       Status                `json:"status"`
	LogID        string                `json:"logId,omitempty"`
	ErrorMessage string                `json:"errorMessage,omitempty"`
}

// Recurring reports whether firing r schedules another occurrence.
func (r *Reminder) Recurring() bool {
	return r.Recurrence != "" && r.Recurrence != RecurrenceNone
}

// Request schedules a payment reminder for an invoice.
type Request struct {
	ScheduledFor time.Time      `json:"scheduledFor" validate:"required"`
	ReminderData map[string]any `json:"reminderData"`
	Recipient    string         `json:"recipient" validate:"required,email"`
	InvoiceID    string         `json:"invoiceId" validate:"max=128"`
	Recurrence   Recurrence     `json:"recurrence,omitempty"`
}
