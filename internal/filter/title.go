package filter

import "strings"

// TitleFilter matches postings whose title contains every word of at least
// one pattern line. Words are compared as case-insensitive sets, so order and
// repeats don't matter. An empty filter matches everything.
type TitleFilter struct {
	patterns [][]string
}

// NewTitleFilter parses filter text, one pattern per line. Blank lines are
// ignored.
func NewTitleFilter(text string) *TitleFilter {
	var patterns [][]string
	for _, line := range strings.Split(text, "\n") {
		words := tokenize(line)
		if len(words) == 0 {
			continue
		}
		patterns = append(patterns, words)
	}
	return &TitleFilter{patterns: patterns}
}

// Match reports whether the title satisfies at least one pattern.
func (f *TitleFilter) Match(title string) bool {
	if len(f.patterns) == 0 {
		return true
	}

	have := make(map[string]struct{})
	for _, w := range tokenize(title) {
		have[w] = struct{}{}
	}

	for _, pattern := range f.patterns {
		if containsAll(have, pattern) {
			return true
		}
	}
	return false
}

// Empty reports whether the filter passes everything.
func (f *TitleFilter) Empty() bool {
	return len(f.patterns) == 0
}

func containsAll(have map[string]struct{}, words []string) bool {
	for _, w := range words {
		if _, ok := have[w]; !ok {
			return false
		}
	}
	return true
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}
