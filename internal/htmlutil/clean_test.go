package htmlutil

import "testing"

func TestSnippet(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		n           int
		want        string
	}{
		{"plain", "not found\n", "text/plain", 100, "not found"},
		{"html by header", "<p>Access <b>denied</b></p>", "text/html; charset=utf-8", 100, "Access denied"},
		{"html by sniff", "<html><body><h1>502 Bad Gateway</h1></body></html>", "", 100, "502 Bad Gateway"},
		{"truncated", "abcdefghij", "", 4, "abcd..."},
		{"entities", "<p>a &amp; b</p>", "text/html", 100, "a & b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Snippet([]byte(tt.body), tt.contentType, tt.n); got != tt.want {
				t.Errorf("Snippet() = %q, want %q", got, tt.want)
			}
		})
	}
}
