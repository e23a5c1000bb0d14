// Package mailer composes business documents into emails and sends them
// through an ordered chain of transport providers.
//
// # Composition
//
// Document templates are markdown files with optional YAML frontmatter,
// executed with text/template and converted to HTML with goldmark, then
// wrapped in an html/template layout:
//
//	---
//	subject: Factura {{.folio}}
//	tags: [invoice]
//	---
//	Hola {{default "cliente" .recipientName}},
//
//	Total: **{{money .total .currency}}**
//
// Templates can use these helpers:
//
//   - money: formats an amount with the configured locale, e.g. "$1,500.00 MXN"
//   - date: formats time values and ISO-8601 strings as dd/mm/yyyy
//   - default: substitutes a fallback for nil or empty values
//   - upper: strings.ToUpper
//
// A Composer maps a template key such as "invoice" to "invoice.md":
//
//	renderer := mailer.NewRenderer(templates.FS, mailer.RendererConfig{
//		Money: mailer.NewMoneyFormatter("es-MX", "MXN"),
//	})
//	composer := mailer.NewComposer(renderer, mailer.Config{DefaultLayout: "base.html"})
//	content, err := composer.Render("invoice", data)
//
// # Providers
//
// A Sender returns the provider message id, which is later used to match
// webhook events. A Chain tries providers in fixed order and returns the
// first success:
//
//	chain := mailer.NewChain(
//		[]mailer.Sender{resend.New(resendCfg), sendgrid.New(sendgridCfg)},
//		mailer.WithProviderTimeout(30*time.Second),
//		mailer.WithChainLogger(log),
//	)
//	receipt, err := chain.Send(ctx, email)
//
// Providers reporting Configured() == false are skipped. When every provider
// fails the error matches ErrAllProvidersFailed and wraps each provider error.
//
// # Webhooks
//
// Provider packages implement WebhookAdapter and translate their payloads
// into canonical Event values (sent, delivered, deferred, opened, clicked,
// bounced, dropped, spam_report, unsubscribed).
package mailer
