package sendgrid

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go/helpers/eventwebhook"

	"github.com/dmitrymomot/postbox/pkg/mailer"
)

// Signed Event Webhook headers.
const (
	SignatureHeader = "X-Twilio-Email-Event-Webhook-Signature"
	TimestampHeader = "X-Twilio-Email-Event-Webhook-Timestamp"
)

var eventTypes = map[string]mailer.EventType{
	"processed":   mailer.EventSent,
	"delivered":   mailer.EventDelivered,
	"deferred":    mailer.EventDeferred,
	"open":        mailer.EventOpened,
	"click":       mailer.EventClicked,
	"bounce":      mailer.EventBounced,
	"dropped":     mailer.EventDropped,
	"spamreport":  mailer.EventSpamReport,
	"unsubscribe": mailer.EventUnsubscribed,
}

// Webhook translates SendGrid Event Webhook batches into mailer events.
// Batches are verified with the signed Event Webhook ECDSA key when one is
// set.
type Webhook struct {
	publicKey *ecdsa.PublicKey
}

// NewWebhook creates a SendGrid webhook adapter. publicKey is the base64
// verification key from the Mail Settings page; empty disables
// verification.
func NewWebhook(publicKey string) (*Webhook, error) {
	w := &Webhook{}
	if publicKey == "" {
		return w, nil
	}
	key, err := eventwebhook.ConvertPublicKeyBase64ToECDSA(publicKey)
	if err != nil {
		return nil, fmt.Errorf("sendgrid: webhook public key: %w", err)
	}
	w.publicKey = key
	return w, nil
}

// Provider implements mailer.WebhookAdapter.
func (w *Webhook) Provider() string { return ProviderName }

// ParseWebhook implements mailer.WebhookAdapter. SendGrid posts a JSON array
// of events; entries without a message id or with unknown types are skipped.
func (w *Webhook) ParseWebhook(header http.Header, body []byte) ([]mailer.Event, error) {
	if w.publicKey != nil {
		if err := w.verify(header, body); err != nil {
			return nil, err
		}
	}

	var raw []map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.Join(mailer.ErrInvalidWebhook, err)
	}

	events := make([]mailer.Event, 0, len(raw))
	for _, item := range raw {
		name, _ := item["event"].(string)
		eventType, ok := eventTypes[name]
		if !ok {
			continue
		}

		id := MessageID(item)
		if id == "" {
			continue
		}

		occurredAt := time.Now().UTC()
		if ts, ok := item["timestamp"].(float64); ok && ts > 0 {
			occurredAt = time.Unix(int64(ts), 0).UTC()
		}

		events = append(events, mailer.Event{
			Provider:   ProviderName,
			MessageID:  id,
			Type:       eventType,
			OccurredAt: occurredAt,
			Data:       item,
		})
	}
	return events, nil
}

// MessageID extracts the X-Message-Id from an event. SendGrid reports
// sg_message_id as "<x-message-id>.<filter suffix>".
func MessageID(item map[string]any) string {
	id, _ := item["sg_message_id"].(string)
	base, _, _ := strings.Cut(id, ".")
	return base
}

func (w *Webhook) verify(header http.Header, body []byte) error {
	signature := header.Get(SignatureHeader)
	timestamp := header.Get(TimestampHeader)
	if signature == "" || timestamp == "" {
		return fmt.Errorf("%w: missing signature headers", mailer.ErrInvalidSignature)
	}

	ok, err := eventwebhook.VerifySignature(w.publicKey, body, signature, timestamp)
	if err != nil {
		return errors.Join(mailer.ErrInvalidSignature, err)
	}
	if !ok {
		return mailer.ErrInvalidSignature
	}
	return nil
}
