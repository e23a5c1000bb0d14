package resend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"

	"github.com/resend/resend-go/v3"

	"github.com/dmitrymomot/postbox/pkg/mailer"
)

// ProviderName identifies Resend in delivery records.
const ProviderName = "resend"

// Sender implements mailer.Sender using the Resend API.
type Sender struct {
	client *resend.Client
	config Config
}

// New creates a Resend sender. A malformed BaseURL is ignored.
func New(cfg Config) *Sender {
	client := resend.NewClient(cfg.APIKey)
	if cfg.BaseURL != "" {
		if u, err := url.Parse(cfg.BaseURL); err == nil {
			client.BaseURL = u
		}
	}
	return &Sender{client: client, config: cfg}
}

// Name implements mailer.Sender.
func (s *Sender) Name() string { return ProviderName }

// Configured implements mailer.Sender.
func (s *Sender) Configured() bool {
	return s.config.APIKey != "" && s.config.SenderEmail != ""
}

// Send implements mailer.Sender and returns the Resend email id.
func (s *Sender) Send(ctx context.Context, email *mailer.Email) (string, error) {
	if !s.Configured() {
		return "", mailer.ErrProviderUnavailable
	}

	from := email.From
	if from == "" {
		from = mailer.Address(s.config.SenderName, s.config.SenderEmail)
	}

	req := &resend.SendEmailRequest{
		From:    from,
		To:      email.To,
		Subject: email.Subject,
		Html:    email.HTML,
		Text:    email.Text,
		ReplyTo: email.ReplyTo,
		Cc:      email.CC,
		Bcc:     email.BCC,
		Headers: email.Headers,
	}
	if len(email.Attachments) > 0 {
		req.Attachments = convertAttachments(email.Attachments)
	}
	if len(email.Tags) > 0 {
		req.Tags = convertTags(email.Tags)
	}

	resp, err := s.client.Emails.SendWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("resend: send email: %w", err)
	}
	if resp == nil || resp.Id == "" {
		return "", errors.New("resend: empty message id in response")
	}
	return resp.Id, nil
}

func convertAttachments(attachments []mailer.Attachment) []*resend.Attachment {
	result := make([]*resend.Attachment, len(attachments))
	for i, a := range attachments {
		result[i] = &resend.Attachment{
			Filename:    a.Filename,
			Content:     a.Content,
			ContentType: a.ContentType,
		}
	}
	return result
}

// convertTags maps tags to Resend name/value pairs in a stable order.
// Empty values become "true".
func convertTags(tags mailer.Tags) []resend.Tag {
	names := make([]string, 0, len(tags))
	for name := range tags {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]resend.Tag, 0, len(tags))
	for _, name := range names {
		value := tags[name]
		if value == "" {
			value = "true"
		}
		result = append(result, resend.Tag{Name: name, Value: value})
	}
	return result
}
