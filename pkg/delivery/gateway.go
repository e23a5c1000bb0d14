package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/postbox/pkg/id"
	"github.com/dmitrymomot/postbox/pkg/job"
	"github.com/dmitrymomot/postbox/pkg/logger"
)

// TaskName is the queue task that delivers a document.
const TaskName = "deliver_document"

// Default retry settings.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 5 * time.Second
)

// Enqueuer admits jobs to the queue. *job.Manager implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any, opts ...job.EnqueueOption) (int64, error)
}

// Result identifies an admitted delivery.
type Result struct {
	JobID int64  `json:"jobId"`
	LogID string `json:"logId"`
}

// Gateway validates delivery requests, records them and admits them to the queue.
type Gateway struct {
	logs        LogStore
	queue       Enqueuer
	archive     Archive
	metrics     Metrics
	logger      *slog.Logger
	now         func() time.Time
	provider    string
	queueName   string
	maxAttempts int
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithArchive stores attachment content in archive instead of the job payload.
func WithArchive(a Archive) GatewayOption {
	return func(g *Gateway) { g.archive = a }
}

// WithDefaultProvider sets the provider name recorded on new logs.
func WithDefaultProvider(name string) GatewayOption {
	return func(g *Gateway) { g.provider = name }
}

// WithQueue routes delivery jobs to the named queue.
func WithQueue(name string) GatewayOption {
	return func(g *Gateway) { g.queueName = name }
}

// WithMaxAttempts sets the per-job attempt limit. Values < 1 are ignored.
func WithMaxAttempts(n int) GatewayOption {
	return func(g *Gateway) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithGatewayLogger sets the logger.
func WithGatewayLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithGatewayMetrics sets the metrics sink.
func WithGatewayMetrics(m Metrics) GatewayOption {
	return func(g *Gateway) {
		if m != nil {
			g.metrics = m
		}
	}
}

// NewGateway creates a Gateway.
func NewGateway(logs LogStore, queue Enqueuer, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		logs:        logs,
		queue:       queue,
		metrics:     nopMetrics{},
		logger:      logger.NewNope(),
		now:         time.Now,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Enqueue records a queued delivery log and admits its job. It returns as
// soon as the job is queued; the outcome is observable through the log.
//
// The log row is written before the job is admitted. If admission fails
// the log stays queued and the error wraps ErrQueueAdmission.
func (g *Gateway) Enqueue(ctx context.Context, req Request) (Result, error) {
	req.Recipient = strings.TrimSpace(req.Recipient)
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	files, err := decodeAttachments(req.Attachments)
	if err != nil {
		return Result{}, err
	}

	logID := uuid.NewString()
	ctx = ContextWithLogID(ctx, logID)

	attachments, err := g.stage(ctx, logID, files)
	if err != nil {
		return Result{}, err
	}

	now := g.now().UTC()
	entry := &Log{
		ID:           logID,
		Recipient:    req.Recipient,
		DocumentType: req.DocumentType,
		DocumentID:   req.DocumentID,
		Subject:      defaultSubject(req.DocumentType, folioOf(req)),
		Status:       StatusQueued,
		Provider:     g.provider,
		Metadata:     req.Metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := g.logs.CreateLog(ctx, entry); err != nil {
		return Result{}, errors.Join(ErrStore, err)
	}

	payload := Job{
		LogID:         logID,
		Recipient:     req.Recipient,
		RecipientName: req.RecipientName,
		DocumentType:  req.DocumentType,
		DocumentID:    req.DocumentID,
		CustomMessage: req.CustomMessage,
		Data:          req.DocumentData,
		Attachments:   attachments,
		EnqueuedAt:    now,
	}

	opts := []job.EnqueueOption{
		job.MaxAttempts(g.maxAttempts),
		job.Tags(string(req.DocumentType)),
	}
	if g.queueName != "" {
		opts = append(opts, job.InQueue(g.queueName))
	}

	jobID, err := g.queue.Enqueue(ctx, TaskName, payload, opts...)
	if err != nil {
		g.logger.ErrorContext(ctx, "delivery log created but job not admitted",
			slog.String("recipient", req.Recipient),
			slog.String("document_type", string(req.DocumentType)),
			slog.Any("error", err),
		)
		return Result{LogID: logID}, fmt.Errorf("%w: log %s: %w", ErrQueueAdmission, logID, err)
	}

	g.metrics.DeliveryEnqueued(string(req.DocumentType))
	g.logger.InfoContext(ctx, "delivery enqueued",
		slog.Int64("job_id", jobID),
		slog.String("document_type", string(req.DocumentType)),
		slog.Int("attachments", len(attachments)),
	)

	return Result{JobID: jobID, LogID: logID}, nil
}

// stage archives attachment content when an archive is configured;
// otherwise the content travels inline in the job.
func (g *Gateway) stage(ctx context.Context, logID string, files []decodedAttachment) ([]JobAttachment, error) {
	out := make([]JobAttachment, 0, len(files))
	for _, f := range files {
		a := JobAttachment{
			Filename:    f.Filename,
			ContentType: f.ContentType,
			Size:        int64(len(f.Content)),
		}
		if g.archive == nil {
			a.Content = f.Content
			out = append(out, a)
			continue
		}

		a.StorageKey = attachmentKey(logID, f.Filename)
		if err := g.archive.Put(ctx, a.StorageKey, f.Content, f.ContentType); err != nil {
			return nil, errors.Join(ErrStore, fmt.Errorf("archive %s: %w", f.Filename, err))
		}
		out = append(out, a)
	}
	return out, nil
}

func attachmentKey(logID, filename string) string {
	return fmt.Sprintf("attachments/%s/%s%s", logID, id.NewULID(), strings.ToLower(filepath.Ext(filename)))
}
