package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/postbox/pkg/job"
	"github.com/dmitrymomot/postbox/pkg/logger"
	"github.com/dmitrymomot/postbox/pkg/mailer"
)

// Composer renders a document template. *mailer.Composer implements it.
type Composer interface {
	Render(templateKey string, data any) (*mailer.Content, error)
}

// Transport sends a composed email. *mailer.Chain implements it.
type Transport interface {
	Send(ctx context.Context, email *mailer.Email) (mailer.Receipt, error)
}

// Dispatcher is the queue task that renders and sends one delivery.
//
// Retry decisions belong to the queue: the dispatcher reads the attempt
// number from the job context, mirrors it into the log's retry count and
// returns an error so the queue reschedules with backoff. The final failed
// attempt marks the log failed.
type Dispatcher struct {
	logs      LogStore
	composer  Composer
	transport Transport
	archive   Archive
	metrics   Metrics
	logger    *slog.Logger
	now       func() time.Time
	baseDelay time.Duration
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherArchive sets the archive attachment keys resolve against.
func WithDispatcherArchive(a Archive) DispatcherOption {
	return func(d *Dispatcher) { d.archive = a }
}

// WithBaseDelay sets the backoff base used when logging the next retry.
func WithBaseDelay(delay time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if delay > 0 {
			d.baseDelay = delay
		}
	}
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithDispatcherMetrics sets the metrics sink.
func WithDispatcherMetrics(m Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(logs LogStore, composer Composer, transport Transport, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		logs:      logs,
		composer:  composer,
		transport: transport,
		metrics:   nopMetrics{},
		logger:    logger.NewNope(),
		now:       time.Now,
		baseDelay: DefaultBaseDelay,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name implements the job task contract.
func (d *Dispatcher) Name() string { return TaskName }

// Handle processes one delivery attempt.
func (d *Dispatcher) Handle(ctx context.Context, p Job) error {
	attempt := job.AttemptFromContext(ctx)
	ctx = ContextWithLogID(ctx, p.LogID)

	entry, err := d.logs.GetLog(ctx, p.LogID)
	if errors.Is(err, ErrNotFound) {
		return job.Permanent(fmt.Errorf("%w: log %s", ErrNotFound, p.LogID))
	}
	if err != nil {
		return errors.Join(ErrStore, err)
	}
	if entry.Status.Terminal() {
		d.logger.WarnContext(ctx, "delivery already finished, skipping",
			slog.String("status", string(entry.Status)),
		)
		return nil
	}

	content, err := d.composer.Render(string(p.DocumentType), templateData(p))
	if err != nil {
		return d.renderFailed(ctx, attempt, p, err)
	}

	files, err := d.loadAttachments(ctx, p.Attachments)
	if err != nil {
		return d.attemptFailed(ctx, attempt, p, err)
	}

	email := &mailer.Email{
		To:          []string{mailer.Address(mailer.SanitizeText(p.RecipientName), p.Recipient)},
		Subject:     content.Subject,
		HTML:        content.HTML,
		Text:        content.Text,
		Attachments: files,
		Tags: mailer.Tags{
			"document_type": string(p.DocumentType),
			"log_id":        p.LogID,
		},
	}

	// A message no provider can accept fails the same on every attempt.
	if err := email.Validate(); err != nil {
		return d.renderFailed(ctx, attempt, p, err)
	}

	receipt, err := d.transport.Send(ctx, email)
	if err != nil {
		return d.attemptFailed(ctx, attempt, p, errors.Join(ErrProvider, err))
	}

	return d.sent(ctx, attempt, p, content.Subject, receipt)
}

func (d *Dispatcher) sent(ctx context.Context, attempt job.Attempt, p Job, subject string, receipt mailer.Receipt) error {
	now := d.now().UTC()

	if len(p.Attachments) > 0 {
		rows := make([]Attachment, len(p.Attachments))
		for i, a := range p.Attachments {
			rows[i] = Attachment{
				LogID:      p.LogID,
				Filename:   a.Filename,
				MimeType:   a.ContentType,
				SizeBytes:  a.Size,
				StorageKey: a.StorageKey,
				CreatedAt:  now,
			}
		}
		if err := d.logs.AddAttachments(ctx, p.LogID, rows); err != nil {
			// The message is out; a retry would send it again.
			d.logger.ErrorContext(ctx, "failed to record delivery attachments", slog.Any("error", err))
		}
	}

	_, err := d.logs.UpdateLog(ctx, p.LogID, func(l *Log) error {
		if err := l.Transition(StatusSent); err != nil {
			return err
		}
		l.Provider = receipt.Provider
		l.ProviderMessageID = receipt.MessageID
		l.Subject = subject
		l.SentAt = &now
		l.UpdatedAt = now
		l.ErrorMessage = ""
		l.JobID = attempt.JobID
		l.RetryCount = max(l.RetryCount, failedAttempts(attempt)-1)
		return nil
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "delivery sent but log not updated",
			slog.String("provider", receipt.Provider),
			slog.String("provider_message_id", receipt.MessageID),
			slog.Any("error", err),
		)
		// Not retried: the message was accepted by the provider.
		return job.Permanent(errors.Join(ErrStore, err))
	}

	d.metrics.DeliverySent(receipt.Provider)
	d.logger.InfoContext(ctx, "delivery sent",
		slog.String("provider", receipt.Provider),
		slog.String("provider_message_id", receipt.MessageID),
		slog.Int("attempt", attempt.Number),
	)
	return nil
}

// renderFailed marks the log failed without retrying.
func (d *Dispatcher) renderFailed(ctx context.Context, attempt job.Attempt, p Job, cause error) error {
	cause = errors.Join(ErrRender, cause)
	now := d.now().UTC()

	_, err := d.logs.UpdateLog(ctx, p.LogID, func(l *Log) error {
		if err := l.Transition(StatusFailed); err != nil {
			return err
		}
		l.ErrorMessage = cause.Error()
		l.UpdatedAt = now
		l.JobID = attempt.JobID
		return nil
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to record render failure", slog.Any("error", err))
	}

	d.metrics.DeliveryFailed("render")
	d.logger.ErrorContext(ctx, "delivery render failed", slog.Any("error", cause))
	return job.Permanent(cause)
}

// attemptFailed records a failed send attempt. The returned error makes the
// queue retry, unless this was the final attempt.
func (d *Dispatcher) attemptFailed(ctx context.Context, attempt job.Attempt, p Job, cause error) error {
	final := attempt.Final()
	failures := failedAttempts(attempt)
	now := d.now().UTC()

	_, err := d.logs.UpdateLog(ctx, p.LogID, func(l *Log) error {
		l.RetryCount = max(l.RetryCount, failures)
		l.ErrorMessage = cause.Error()
		l.UpdatedAt = now
		l.JobID = attempt.JobID
		if final && l.Status == StatusQueued {
			return l.Transition(StatusFailed)
		}
		return nil
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to record delivery attempt", slog.Any("error", err))
		cause = errors.Join(cause, ErrStore, err)
	}

	if final {
		d.metrics.DeliveryFailed("retries_exhausted")
		d.logger.ErrorContext(ctx, "delivery failed, retries exhausted",
			slog.Int("attempts", attempt.Number),
			slog.Any("error", cause),
		)
		return fmt.Errorf("%w: %w", ErrRetriesExhausted, cause)
	}

	d.metrics.DeliveryRetried(string(p.DocumentType))
	d.logger.WarnContext(ctx, "delivery attempt failed, will retry",
		slog.Int("attempt", attempt.Number),
		slog.Int("max_attempts", attempt.MaxAttempts),
		slog.Duration("retry_in", job.Backoff(d.baseDelay, attempt.Number)),
		slog.Any("error", cause),
	)
	return cause
}

func (d *Dispatcher) loadAttachments(ctx context.Context, in []JobAttachment) ([]mailer.Attachment, error) {
	out := make([]mailer.Attachment, 0, len(in))
	for _, a := range in {
		content := a.Content
		if a.StorageKey != "" {
			if d.archive == nil {
				return nil, fmt.Errorf("attachment %s: archive not configured", a.Filename)
			}
			data, err := d.archive.Get(ctx, a.StorageKey)
			if err != nil {
				return nil, fmt.Errorf("attachment %s: %w", a.Filename, err)
			}
			content = data
		}
		out = append(out, mailer.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Content:     content,
		})
	}
	return out, nil
}

// failedAttempts is the number of failures including the current attempt,
// bounded by the job's attempt limit.
func failedAttempts(a job.Attempt) int {
	n := max(a.Number, 1)
	if a.MaxAttempts > 0 && n > a.MaxAttempts {
		n = a.MaxAttempts
	}
	return n
}

// templateData merges the document data with recipient fields.
// Caller-provided free text is stripped of HTML.
func templateData(p Job) map[string]any {
	data := make(map[string]any, len(p.Data)+5)
	for k, v := range p.Data {
		data[k] = v
	}
	data["recipient"] = p.Recipient
	data["recipientName"] = mailer.SanitizeText(p.RecipientName)
	data["customMessage"] = mailer.SanitizeText(p.CustomMessage)
	data["documentId"] = p.DocumentID
	data["documentType"] = string(p.DocumentType)
	return data
}
