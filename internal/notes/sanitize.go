package notes

import (
	"html"
	"strings"
)

// Sanitizer neutralizes user-supplied text before it is stored.
type Sanitizer func(string) string

// HTMLEscape trims surrounding whitespace and escapes the characters that
// HTML would interpret as markup (<, >, &, ' and ").
func HTMLEscape(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
