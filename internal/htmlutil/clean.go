// Package htmlutil turns HTML response bodies into plain text for logs and
// error messages.
package htmlutil

import (
	"strings"

	"github.com/k3a/html2text"
)

// ToText converts HTML to plain text using a proper HTML parser.
// Handles entities, strips tags, and preserves readable text.
func ToText(s string) string {
	return html2text.HTML2Text(s)
}

// Snippet returns at most n bytes of body as a single line. HTML bodies,
// such as proxy error pages, are converted to text first.
func Snippet(body []byte, contentType string, n int) string {
	s := string(body)
	if strings.Contains(contentType, "html") || looksHTML(s) {
		s = ToText(s)
	}
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > n {
		s = strings.TrimSpace(s[:n]) + "..."
	}
	return s
}

func looksHTML(s string) bool {
	head := strings.ToLower(strings.TrimSpace(s))
	if len(head) > 64 {
		head = head[:64]
	}
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}
