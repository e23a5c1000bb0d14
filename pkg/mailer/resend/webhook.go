package resend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	svix "github.com/svix/svix-webhooks/go"

	"github.com/dmitrymomot/postbox/pkg/mailer"
)

var eventTypes = map[string]mailer.EventType{
	"email.sent":             mailer.EventSent,
	"email.delivered":        mailer.EventDelivered,
	"email.delivery_delayed": mailer.EventDeferred,
	"email.opened":           mailer.EventOpened,
	"email.clicked":          mailer.EventClicked,
	"email.bounced":          mailer.EventBounced,
	"email.complained":       mailer.EventSpamReport,
}

// Webhook translates Resend webhook deliveries into mailer events.
// Requests are verified with the svix signature scheme when a secret is set.
type Webhook struct {
	now      func() time.Time
	verifier *svix.Webhook
}

// NewWebhook creates a Resend webhook adapter. The secret is the "whsec_"
// signing secret from the Resend dashboard; empty disables verification.
func NewWebhook(secret string) (*Webhook, error) {
	w := &Webhook{now: time.Now}
	if secret == "" {
		return w, nil
	}
	verifier, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("resend: webhook secret: %w", err)
	}
	w.verifier = verifier
	return w, nil
}

// Provider implements mailer.WebhookAdapter.
func (w *Webhook) Provider() string { return ProviderName }

type webhookPayload struct {
	CreatedAt time.Time      `json:"created_at"`
	Data      map[string]any `json:"data"`
	Type      string         `json:"type"`
}

// ParseWebhook implements mailer.WebhookAdapter.
func (w *Webhook) ParseWebhook(header http.Header, body []byte) ([]mailer.Event, error) {
	if w.verifier != nil {
		// Verify checks the svix-id, svix-timestamp and svix-signature
		// headers and rejects timestamps outside a five minute window.
		if err := w.verifier.Verify(body, header); err != nil {
			return nil, errors.Join(mailer.ErrInvalidSignature, err)
		}
	}

	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, errors.Join(mailer.ErrInvalidWebhook, err)
	}

	eventType, ok := eventTypes[p.Type]
	if !ok {
		return nil, nil
	}

	messageID, _ := p.Data["email_id"].(string)
	if messageID == "" {
		return nil, fmt.Errorf("%w: missing data.email_id", mailer.ErrInvalidWebhook)
	}

	occurredAt := p.CreatedAt
	if occurredAt.IsZero() {
		occurredAt = w.now()
	}

	return []mailer.Event{{
		Provider:   ProviderName,
		MessageID:  messageID,
		Type:       eventType,
		OccurredAt: occurredAt.UTC(),
		Data:       p.Data,
	}}, nil
}
