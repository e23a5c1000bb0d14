package templates_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/postbox/internal/templates"
	"github.com/dmitrymomot/postbox/pkg/mailer"
)

func composer() *mailer.Composer {
	renderer := mailer.NewRenderer(templates.FS, mailer.RendererConfig{
		Money: mailer.NewMoneyFormatter("es-MX", "MXN"),
	})
	return mailer.NewComposer(renderer, mailer.Config{FallbackSubject: "Notificación"})
}

func TestTemplates_Invoice(t *testing.T) {
	t.Parallel()

	content, err := composer().Render("invoice", map[string]any{
		"folio":         "F-100",
		"date":          "2024-03-05",
		"dueDate":       "2024-04-05",
		"total":         "1500",
		"currency":      "MXN",
		"recipientName": "Ana",
		"customMessage": "Pago por transferencia.",
	})
	require.NoError(t, err)

	assert.Equal(t, "Factura F-100", content.Subject)
	assert.Equal(t, []string{"invoice"}, content.Tags)
	assert.Contains(t, content.HTML, "<strong>F-100</strong>")
	assert.Contains(t, content.HTML, "<table>")
	assert.Contains(t, content.Text, "05/03/2024")
	assert.Contains(t, content.Text, "05/04/2024")
	assert.Contains(t, content.Text, "1,500.00 MXN")
	assert.Contains(t, content.Text, "Pago por transferencia.")
}

func TestTemplates_DeliveryNote(t *testing.T) {
	t.Parallel()

	content, err := composer().Render("delivery_note", map[string]any{
		"folio": "R-7",
		"date":  "2024-03-05",
		"items": []any{
			map[string]any{"description": "Tornillos", "quantity": 100},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Remisión R-7", content.Subject)
	assert.Contains(t, content.HTML, "<td>Tornillos</td>")
	assert.Contains(t, content.Text, "Hola cliente")
}

func TestTemplates_PaymentReminder(t *testing.T) {
	t.Parallel()

	content, err := composer().Render("payment_reminder", map[string]any{
		"folio":       "F-100",
		"dueDate":     "2024-03-01",
		"total":       "250.50",
		"currency":    "MXN",
		"daysOverdue": 4,
	})
	require.NoError(t, err)

	assert.Equal(t, "Recordatorio de pago: factura F-100", content.Subject)
	assert.Contains(t, content.Text, "250.50 MXN")
	assert.Contains(t, content.Text, "01/03/2024")
	assert.Contains(t, content.Text, "4 días")
	assert.NotContains(t, content.HTML, `class="btn"`)
}

func TestTemplates_PaymentReminder_PayButton(t *testing.T) {
	t.Parallel()

	content, err := composer().Render("payment_reminder", map[string]any{
		"folio":      "F-100",
		"total":      "250.50",
		"paymentUrl": "https://pay.example.com/F-100",
	})
	require.NoError(t, err)

	assert.Contains(t, content.HTML, `<a href="https://pay.example.com/F-100" class="btn"`)
	assert.Contains(t, content.HTML, ">Pagar factura</a>")
	assert.Contains(t, content.Text, "Pagar factura: https://pay.example.com/F-100")
	assert.NotContains(t, content.Text, "[!button")
}

func TestTemplates_MissingFieldsUseDefaults(t *testing.T) {
	t.Parallel()

	for _, key := range []string{"invoice", "delivery_note", "payment_reminder"} {
		content, err := composer().Render(key, map[string]any{})
		require.NoError(t, err, key)
		assert.Contains(t, content.Subject, "N/A", key)
		assert.NotContains(t, content.HTML, "<no value>", key)
	}
}

func TestTemplates_UnknownDocument(t *testing.T) {
	t.Parallel()

	_, err := composer().Render("receipt", nil)
	require.ErrorIs(t, err, mailer.ErrTemplateNotFound)
	require.ErrorIs(t, err, mailer.ErrRenderFailed)
}
