package mailer

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

var frontmatterDelimiter = []byte("---")

// Frontmatter is the YAML header of a document template.
type Frontmatter struct {
	Subject string         `yaml:"subject"`
	Layout  string         `yaml:"layout"`
	Tags    []string       `yaml:"tags"`
	Extra   map[string]any `yaml:",inline"`
}

// splitFrontmatter separates the optional YAML header from the markdown body.
func splitFrontmatter(content []byte) (Frontmatter, []byte, error) {
	var meta Frontmatter

	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if !bytes.HasPrefix(content, frontmatterDelimiter) {
		return meta, content, nil
	}

	rest := bytes.TrimLeft(bytes.TrimPrefix(content, frontmatterDelimiter), "\r\n")
	if len(rest) == 0 {
		return meta, nil, fmt.Errorf("%w: no content after opening delimiter", ErrInvalidFrontmatter)
	}

	end := bytes.Index(rest, frontmatterDelimiter)
	if end == -1 {
		return meta, nil, fmt.Errorf("%w: closing delimiter not found", ErrInvalidFrontmatter)
	}

	header := rest[:end]
	body := rest[end+len(frontmatterDelimiter):]
	switch {
	case bytes.HasPrefix(body, []byte("\r\n")):
		body = body[2:]
	case bytes.HasPrefix(body, []byte("\n")):
		body = body[1:]
	}

	if len(bytes.TrimSpace(header)) > 0 {
		if err := yaml.Unmarshal(header, &meta); err != nil {
			return meta, nil, fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
		}
	}
	return meta, body, nil
}
