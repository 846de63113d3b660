package utils

import (
	"mime"
	"strings"
	"unicode"
)

// SnippetLength is the maximum rune length of a body snippet in error messages.
const SnippetLength = 300

// Snippet collapses every run of whitespace in text to a single space and
// truncates the result to SnippetLength runes.
func Snippet(text string) string {
	var b strings.Builder
	n := 0
	inSpace := false
	for _, r := range text {
		if n == SnippetLength {
			break
		}
		if unicode.IsSpace(r) {
			if inSpace {
				continue
			}
			inSpace = true
			r = ' '
		} else {
			inSpace = false
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// IsJSONContentType reports whether a Content-Type header value names JSON.
func IsJSONContentType(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/json")
}

// IsMultipart reports whether a Content-Type header value is multipart/form-data.
func IsMultipart(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.HasPrefix(strings.ToLower(contentType), "multipart/form-data")
	}
	return mediaType == "multipart/form-data"
}
