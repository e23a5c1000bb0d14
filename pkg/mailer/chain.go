package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/postbox/pkg/logger"
)

// DefaultProviderTimeout bounds a single provider Send call.
const DefaultProviderTimeout = 30 * time.Second

// Chain sends through an ordered list of providers, failing over to the
// next one when a provider errors. Order is fixed at construction.
type Chain struct {
	logger    *slog.Logger
	onFailure func(provider string, err error)
	providers []Sender
	timeout   time.Duration
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithChainLogger sets the logger used for skipped and failed providers.
func WithChainLogger(l *slog.Logger) ChainOption {
	return func(c *Chain) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithProviderTimeout bounds each provider call. Zero disables the bound.
func WithProviderTimeout(d time.Duration) ChainOption {
	return func(c *Chain) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

// WithFailureHook registers a callback invoked for every failed provider call.
func WithFailureHook(fn func(provider string, err error)) ChainOption {
	return func(c *Chain) {
		c.onFailure = fn
	}
}

// NewChain creates a Chain trying providers in the given order.
func NewChain(providers []Sender, opts ...ChainOption) *Chain {
	c := &Chain{
		providers: providers,
		timeout:   DefaultProviderTimeout,
		logger:    logger.NewNope(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Primary returns the name of the first provider in the chain, or "" when empty.
func (c *Chain) Primary() string {
	if len(c.providers) == 0 {
		return ""
	}
	return c.providers[0].Name()
}

// Len returns the number of providers in the chain.
func (c *Chain) Len() int {
	return len(c.providers)
}

// Timeout returns the per-provider timeout.
func (c *Chain) Timeout() time.Duration {
	return c.timeout
}

// Send delivers email through the first provider that accepts it.
// When every provider fails the error joins ErrAllProvidersFailed with each
// provider's error. ErrNoProviders is returned when none is configured.
func (c *Chain) Send(ctx context.Context, email *Email) (Receipt, error) {
	if err := email.Validate(); err != nil {
		return Receipt{}, err
	}

	var (
		errs  []error
		tried int
	)
	for _, p := range c.providers {
		name := p.Name()
		if !p.Configured() {
			c.logger.WarnContext(ctx, "email provider unavailable, skipping",
				slog.String("provider", name),
			)
			continue
		}

		tried++
		id, err := c.send(ctx, p, email)
		if err == nil {
			return Receipt{Provider: name, MessageID: id}, nil
		}

		c.logger.WarnContext(ctx, "email provider failed",
			slog.String("provider", name),
			slog.Any("error", err),
		)
		if c.onFailure != nil {
			c.onFailure(name, err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", name, err))

		if ctx.Err() != nil {
			break
		}
	}

	if tried == 0 {
		return Receipt{}, ErrNoProviders
	}
	return Receipt{}, errors.Join(append([]error{ErrAllProvidersFailed}, errs...)...)
}

func (c *Chain) send(ctx context.Context, p Sender, email *Email) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return p.Send(ctx, email)
}
