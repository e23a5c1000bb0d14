// Package templates embeds the default document templates and layout.
package templates

import "embed"

// FS holds "<documentType>.md" templates and "layouts/base.html".
//
//go:embed *.md layouts/*.html
var FS embed.FS
