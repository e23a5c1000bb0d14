package mailer

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy     *bluemonday.Policy
	strictPolicyOnce sync.Once
)

// SanitizeText strips every HTML element from caller-provided free text
// (custom messages, names) before it is interpolated into a template.
// Entities are decoded back so the plain-text part reads naturally; goldmark
// never emits raw HTML, so decoded angle brackets stay inert in the HTML part.
func SanitizeText(s string) string {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}
