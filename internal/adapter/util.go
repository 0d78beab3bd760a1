package adapter

import (
	"html"
	"regexp"
	"strings"
)

var (
	htmlTagRegex   = regexp.MustCompile(`<[^>]*>`)
	blockTagRegex  = regexp.MustCompile(`(?i)</?(p|div|br|li|ul|ol|h[1-6]|tr)[^>]*>`)
	spaceRunRegex  = regexp.MustCompile(`[ \t\f\r]+`)
	blankRunsRegex = regexp.MustCompile(`\n{3,}`)
)

// extractText converts an HTML or HTML-encoded string to plain text.
// Entities are unescaped first (some providers double-encode), block-level
// tags become line breaks so section headers stay on their own line, all other
// tags are dropped and runs of whitespace collapsed.
func extractText(content string) string {
	unescaped := html.UnescapeString(content)
	withBreaks := blockTagRegex.ReplaceAllString(unescaped, "\n")
	plain := htmlTagRegex.ReplaceAllString(withBreaks, "")

	lines := strings.Split(plain, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaceRunRegex.ReplaceAllString(l, " "))
	}
	out := strings.Join(lines, "\n")
	out = blankRunsRegex.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
