package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	"sync"
	texttemplate "text/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer turns markdown document templates with YAML frontmatter into
// HTML wrapped in a layout, plus a plain-text alternative.
type Renderer struct {
	fs    fs.FS
	md    goldmark.Markdown
	funcs texttemplate.FuncMap

	templateCache map[string]*cachedTemplate
	layoutCache   map[string]*template.Template
	templateDir   string
	layoutDir     string

	mu sync.RWMutex
}

type cachedTemplate struct {
	meta Frontmatter
	tmpl *texttemplate.Template
}

// RendererConfig configures the renderer.
type RendererConfig struct {
	Money       *MoneyFormatter
	TemplateDir string // Default: "."
	LayoutDir   string // Default: "layouts"
}

// NewRenderer creates a renderer reading templates from filesystem.
func NewRenderer(filesystem fs.FS, cfg RendererConfig) *Renderer {
	if cfg.TemplateDir == "" {
		cfg.TemplateDir = "."
	}
	if cfg.LayoutDir == "" {
		cfg.LayoutDir = "layouts"
	}
	if cfg.Money == nil {
		cfg.Money = NewMoneyFormatter("es-MX", "MXN")
	}

	return &Renderer{
		fs:          filesystem,
		templateDir: cfg.TemplateDir,
		layoutDir:   cfg.LayoutDir,
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table, extension.Strikethrough, NewButtonExtension()),
		),
		funcs:         templateFuncs(cfg.Money),
		templateCache: make(map[string]*cachedTemplate),
		layoutCache:   make(map[string]*template.Template),
	}
}

// RenderResult contains the rendered output and the template frontmatter.
type RenderResult struct {
	Meta Frontmatter
	HTML string
	Text string // processed markdown, before HTML conversion, with buttons as "Label: URL"
}

// Render executes the named template with data and wraps it in layout.
// A layout declared in the template frontmatter takes precedence.
func (r *Renderer) Render(layout, name string, data any) (*RenderResult, error) {
	cached, err := r.getTemplate(name)
	if err != nil {
		return nil, err
	}

	var processed bytes.Buffer
	if err := cached.tmpl.Execute(&processed, data); err != nil {
		return nil, fmt.Errorf("%w: execute %s: %v", ErrRenderFailed, name, err)
	}

	var body bytes.Buffer
	if err := r.md.Convert(processed.Bytes(), &body); err != nil {
		return nil, fmt.Errorf("%w: convert markdown: %v", ErrRenderFailed, err)
	}

	if cached.meta.Layout != "" {
		layout = cached.meta.Layout
	}
	layoutTmpl, err := r.getLayout(layout)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	err = layoutTmpl.Execute(&out, map[string]any{
		"Content": template.HTML(body.String()),
		"Meta":    cached.meta,
		"Data":    data,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: execute layout %s: %v", ErrRenderFailed, layout, err)
	}

	return &RenderResult{
		Meta: cached.meta,
		HTML: out.String(),
		Text: strings.TrimSpace(plainButtons(processed.String())),
	}, nil
}

// RenderString executes an inline text template (e.g. a subject line) with
// the same helper functions available to document templates.
func (r *Renderer) RenderString(name, text string, data any) (string, error) {
	tmpl, err := texttemplate.New(name).Funcs(r.funcs).Parse(text)
	if err != nil {
		return "", fmt.Errorf("%w: parse %s: %v", ErrRenderFailed, name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: execute %s: %v", ErrRenderFailed, name, err)
	}
	return buf.String(), nil
}

func (r *Renderer) getTemplate(name string) (*cachedTemplate, error) {
	r.mu.RLock()
	if cached, ok := r.templateCache[name]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.templateCache[name]; ok {
		return cached, nil
	}

	content, err := fs.ReadFile(r.fs, path.Join(r.templateDir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	meta, body, err := splitFrontmatter(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	tmpl, err := texttemplate.New(name).Funcs(r.funcs).Parse(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrRenderFailed, name, err)
	}

	cached := &cachedTemplate{meta: meta, tmpl: tmpl}
	r.templateCache[name] = cached
	return cached, nil
}

func (r *Renderer) getLayout(name string) (*template.Template, error) {
	r.mu.RLock()
	if cached, ok := r.layoutCache[name]; ok {
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.layoutCache[name]; ok {
		return cached, nil
	}

	content, err := fs.ReadFile(r.fs, path.Join(r.layoutDir, name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrLayoutNotFound, name)
	}

	tmpl, err := template.New(name).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("%w: parse layout %s: %v", ErrRenderFailed, name, err)
	}

	r.layoutCache[name] = tmpl
	return tmpl, nil
}

func templateFuncs(money *MoneyFormatter) texttemplate.FuncMap {
	return texttemplate.FuncMap{
		"money": func(amount any, code ...any) (string, error) {
			cur := ""
			if len(code) > 0 && code[0] != nil {
				cur = fmt.Sprint(code[0])
			}
			return money.Format(amount, cur)
		},
		"date":    formatDate,
		"default": defaultValue,
		"upper":   strings.ToUpper,
	}
}

// formatDate renders time values and ISO-8601 strings as dd/mm/yyyy.
// Unparseable strings are returned unchanged.
func formatDate(v any) string {
	const layout = "02/01/2006"
	switch val := v.(type) {
	case time.Time:
		return val.Format(layout)
	case *time.Time:
		if val == nil {
			return ""
		}
		return val.Format(layout)
	case string:
		for _, l := range []string{time.RFC3339Nano, time.RFC3339, time.DateOnly} {
			if t, err := time.Parse(l, val); err == nil {
				return t.Format(layout)
			}
		}
		return val
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// defaultValue returns def when v is nil or an empty string.
func defaultValue(def, v any) any {
	switch val := v.(type) {
	case nil:
		return def
	case string:
		if strings.TrimSpace(val) == "" {
			return def
		}
	}
	return v
}
