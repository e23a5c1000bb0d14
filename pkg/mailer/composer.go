package mailer

import (
	"errors"
	"path"
	"strings"
)

// Config holds composition settings.
type Config struct {
	FallbackSubject string `env:"MAILER_FALLBACK_SUBJECT" envDefault:"Notificación"`
	DefaultLayout   string `env:"MAILER_DEFAULT_LAYOUT" envDefault:"base.html"`
	Locale          string `env:"MAILER_LOCALE" envDefault:"es-MX"`
	DefaultCurrency string `env:"MAILER_DEFAULT_CURRENCY" envDefault:"MXN"`
}

// Content is a composed document ready to be addressed and sent.
type Content struct {
	Subject string
	HTML    string
	Text    string
	Tags    []string
}

// Composer renders document templates into email content.
// Template keys map to "<key>.md" in the renderer's template directory.
type Composer struct {
	renderer *Renderer
	config   Config
}

// NewComposer creates a Composer.
func NewComposer(renderer *Renderer, cfg Config) *Composer {
	if cfg.DefaultLayout == "" {
		cfg.DefaultLayout = "base.html"
	}
	return &Composer{renderer: renderer, config: cfg}
}

// Render composes the document for templateKey with data.
// Subject resolution: frontmatter subject (templated with data), then the
// configured fallback. All failures wrap ErrRenderFailed.
func (c *Composer) Render(templateKey string, data any) (*Content, error) {
	name := templateKey
	if path.Ext(name) == "" {
		name += ".md"
	}

	result, err := c.renderer.Render(c.config.DefaultLayout, name, data)
	if err != nil {
		return nil, renderError(err)
	}

	subject := c.config.FallbackSubject
	if result.Meta.Subject != "" {
		subject, err = c.renderer.RenderString(name+":subject", result.Meta.Subject, data)
		if err != nil {
			return nil, renderError(err)
		}
	}

	return &Content{
		Subject: strings.TrimSpace(subject),
		HTML:    result.HTML,
		Text:    result.Text,
		Tags:    result.Meta.Tags,
	}, nil
}

func renderError(err error) error {
	if errors.Is(err, ErrRenderFailed) {
		return err
	}
	return errors.Join(ErrRenderFailed, err)
}
