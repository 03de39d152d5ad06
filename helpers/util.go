package helpers

import (
	"strings"
)

// SnippetLength is the size of the diagnostic body excerpt
const SnippetLength = 250

// Snippet returns the first n characters of body with whitespace runs
// collapsed to single spaces.
func Snippet(body string, n int) string {
	runes := []rune(body)
	if len(runes) > n {
		runes = runes[:n]
	}
	return strings.Join(strings.Fields(string(runes)), " ")
}

// MediaType strips parameters from a Content-Type header value
func MediaType(contentType string) string {
	media, _, _ := strings.Cut(contentType, ";")
	media = strings.TrimSpace(media)
	if media == "" {
		return "(unknown)"
	}
	return media
}
