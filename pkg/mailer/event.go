package mailer

import (
	"net/http"
	"time"
)

// EventType is a provider-neutral delivery event kind.
type EventType string

const (
	EventSent         EventType = "sent"
	EventDelivered    EventType = "delivered"
	EventDeferred     EventType = "deferred"
	EventOpened       EventType = "opened"
	EventClicked      EventType = "clicked"
	EventBounced      EventType = "bounced"
	EventDropped      EventType = "dropped"
	EventSpamReport   EventType = "spam_report"
	EventUnsubscribed EventType = "unsubscribed"
)

var eventTypes = map[EventType]struct{}{
	EventSent:         {},
	EventDelivered:    {},
	EventDeferred:     {},
	EventOpened:       {},
	EventClicked:      {},
	EventBounced:      {},
	EventDropped:      {},
	EventSpamReport:   {},
	EventUnsubscribed: {},
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

// Event is a provider webhook notification translated to canonical form.
type Event struct {
	OccurredAt time.Time
	Data       map[string]any
	Provider   string
	MessageID  string
	Type       EventType
}

// WebhookAdapter translates a provider's webhook request into events.
// Payload entries with unknown event types are skipped, not rejected.
type WebhookAdapter interface {
	Provider() string
	ParseWebhook(header http.Header, body []byte) ([]Event, error)
}
