package sendgrid

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/sendgrid/rest"
	sendgridapi "github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/dmitrymomot/postbox/pkg/logger"
	"github.com/dmitrymomot/postbox/pkg/mailer"
)

// ProviderName identifies SendGrid in delivery records.
const ProviderName = "sendgrid"

const sendPath = "/v3/mail/send"

// Sender implements mailer.Sender over the SendGrid v3 Mail Send API.
type Sender struct {
	client *rest.Client
	logger *slog.Logger
	config Config
}

// Option configures a Sender.
type Option func(*Sender)

// WithHTTPClient replaces the HTTP client. Nil is ignored.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) {
		if c != nil {
			s.client = &rest.Client{HTTPClient: c}
		}
	}
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sender) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a SendGrid sender.
func New(cfg Config, opts ...Option) *Sender {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	s := &Sender{
		client: rest.DefaultClient,
		logger: logger.NewNope(),
		config: cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements mailer.Sender.
func (s *Sender) Name() string { return ProviderName }

// Configured implements mailer.Sender.
func (s *Sender) Configured() bool {
	return s.config.APIKey != "" && s.config.SenderEmail != ""
}

// Send implements mailer.Sender. The message id is taken from the
// X-Message-Id response header. An accepted message without one returns
// an empty id; such deliveries cannot be correlated with webhook events.
func (s *Sender) Send(ctx context.Context, email *mailer.Email) (string, error) {
	if !s.Configured() {
		return "", mailer.ErrProviderUnavailable
	}

	req := sendgridapi.GetRequest(s.config.APIKey, sendPath, s.config.Host)
	req.Method = rest.Post
	req.Body = sgmail.GetRequestBody(s.message(email))

	resp, err := s.client.SendWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("sendgrid: request failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, strings.TrimSpace(truncate(resp.Body, 4<<10)))
	}

	id := http.Header(resp.Headers).Get("X-Message-Id")
	if id == "" {
		s.logger.WarnContext(ctx, "sendgrid accepted message without X-Message-Id",
			slog.Int("status", resp.StatusCode),
		)
	}
	return id, nil
}

func (s *Sender) message(email *mailer.Email) *sgmail.SGMailV3 {
	m := sgmail.NewV3Mail()

	from := sgmail.NewEmail(s.config.SenderName, s.config.SenderEmail)
	if email.From != "" {
		from = parseAddress(email.From)
	}
	m.SetFrom(from)
	m.Subject = email.Subject

	p := sgmail.NewPersonalization()
	p.AddTos(addresses(email.To)...)
	p.AddCCs(addresses(email.CC)...)
	p.AddBCCs(addresses(email.BCC)...)
	m.AddPersonalizations(p)

	if email.ReplyTo != "" {
		m.SetReplyTo(parseAddress(email.ReplyTo))
	}
	for k, v := range email.Headers {
		m.SetHeader(k, v)
	}

	// SendGrid requires text/plain before text/html.
	if email.Text != "" {
		m.AddContent(sgmail.NewContent("text/plain", email.Text))
	}
	if email.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", email.HTML))
	}

	for _, a := range email.Attachments {
		att := sgmail.NewAttachment()
		att.SetContent(base64.StdEncoding.EncodeToString(a.Content))
		att.SetType(a.ContentType)
		att.SetFilename(a.Filename)
		m.AddAttachment(att)
	}

	categories := make([]string, 0, len(email.Tags))
	for name := range email.Tags {
		categories = append(categories, name)
	}
	sort.Strings(categories)
	m.AddCategories(categories...)

	return m
}

func addresses(list []string) []*sgmail.Email {
	out := make([]*sgmail.Email, 0, len(list))
	for _, a := range list {
		out = append(out, parseAddress(a))
	}
	return out
}

// parseAddress accepts "Name <email>" or a bare email.
func parseAddress(s string) *sgmail.Email {
	if a, err := sgmail.ParseEmail(s); err == nil {
		return a
	}
	return sgmail.NewEmail("", s)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
