package mailer

import (
	"fmt"
	"net/mail"
	"strings"
)

// Tags are provider-neutral message labels. Resend sends them as name/value
// pairs, SendGrid as categories (names only).
type Tags map[string]string

// Address formats a display name and email into RFC 5322 form.
// Returns the bare email when name is empty.
func Address(name, email string) string {
	if strings.TrimSpace(name) == "" {
		return email
	}
	return (&mail.Address{Name: name, Address: email}).String()
}

// Email is a fully composed message handed to a Sender.
type Email struct {
	Headers     map[string]string
	Tags        Tags
	From        string
	ReplyTo     string
	Subject     string
	HTML        string
	Text        string
	To          []string
	CC          []string
	BCC         []string
	Attachments []Attachment
}

// Validate checks the minimum a provider needs to accept the message.
func (e *Email) Validate() error {
	if e == nil || len(e.To) == 0 {
		return ErrNoRecipient
	}
	if strings.TrimSpace(e.Subject) == "" {
		return ErrNoSubject
	}
	if e.HTML == "" && e.Text == "" {
		return ErrNoContent
	}
	return nil
}

// Attachment is a file sent along with an Email.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Receipt identifies the provider that accepted a message.
type Receipt struct {
	Provider  string
	MessageID string
}

func (r Receipt) String() string {
	return fmt.Sprintf("%s:%s", r.Provider, r.MessageID)
}
