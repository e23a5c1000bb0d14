package mailer

import "errors"

var (
	ErrNoRecipient = errors.New("mailer: email must have at least one recipient")
	ErrNoSubject   = errors.New("mailer: email must have a subject")
	ErrNoContent   = errors.New("mailer: email must have html or text content")

	// Composition errors. Callers treat these as permanent: retrying will not help.
	ErrTemplateNotFound   = errors.New("mailer: template not found")
	ErrLayoutNotFound     = errors.New("mailer: layout not found")
	ErrRenderFailed       = errors.New("mailer: failed to render template")
	ErrInvalidFrontmatter = errors.New("mailer: invalid frontmatter")

	// Transport errors.
	ErrProviderUnavailable = errors.New("mailer: provider not configured")
	ErrAllProvidersFailed  = errors.New("mailer: all providers failed")
	ErrNoProviders         = errors.New("mailer: no configured providers")

	// Webhook errors.
	ErrInvalidWebhook   = errors.New("mailer: invalid webhook payload")
	ErrInvalidSignature = errors.New("mailer: invalid webhook signature")

	ErrInvalidAmount = errors.New("mailer: invalid amount")
)
