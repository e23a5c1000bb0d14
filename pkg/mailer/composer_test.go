package mailer

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func composerFS() fstest.MapFS {
	return fstest.MapFS{
		"layouts/base.html": &fstest.MapFile{
			Data: []byte(`<html><body>{{.Content}}</body></html>`),
		},
		"invoice.md": &fstest.MapFile{
			Data: []byte(`---
subject: Factura {{.folio}}
tags: [invoice]
---
Total: **{{money .total .currency}}**
`),
		},
		"plain.md": &fstest.MapFile{Data: []byte(`Sin asunto`)},
		"bad_subject.md": &fstest.MapFile{
			Data: []byte("---\nsubject: \"{{.folio\"\n---\nbody"),
		},
	}
}

func TestComposer_Render(t *testing.T) {
	t.Parallel()

	c := NewComposer(testRenderer(composerFS()), Config{FallbackSubject: "Notificación"})

	content, err := c.Render("invoice", map[string]any{
		"folio":    "A-100",
		"total":    1500,
		"currency": "MXN",
	})
	require.NoError(t, err)

	assert.Equal(t, "Factura A-100", content.Subject)
	assert.Contains(t, content.HTML, "<strong>")
	assert.Contains(t, content.HTML, "1,500.00 MXN")
	assert.Contains(t, content.Text, "1,500.00 MXN")
	assert.Equal(t, []string{"invoice"}, content.Tags)
}

func TestComposer_Render_FallbackSubject(t *testing.T) {
	t.Parallel()

	c := NewComposer(testRenderer(composerFS()), Config{FallbackSubject: "Notificación"})

	content, err := c.Render("plain.md", nil)
	require.NoError(t, err)
	assert.Equal(t, "Notificación", content.Subject)
}

func TestComposer_Render_Errors(t *testing.T) {
	t.Parallel()

	c := NewComposer(testRenderer(composerFS()), Config{})

	_, err := c.Render("unknown", nil)
	require.ErrorIs(t, err, ErrRenderFailed)
	require.ErrorIs(t, err, ErrTemplateNotFound)

	_, err = c.Render("bad_subject", map[string]any{"folio": "1"})
	require.ErrorIs(t, err, ErrRenderFailed)
}
