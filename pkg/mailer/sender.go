package mailer

import "context"

// Sender is a transport provider.
type Sender interface {
	// Name identifies the provider in logs and delivery records.
	Name() string

	// Configured reports whether the provider has the credentials it needs.
	// Unconfigured providers are skipped by the Chain.
	Configured() bool

	// Send delivers the message and returns the provider-assigned message id.
	Send(ctx context.Context, email *Email) (string, error)
}
