package ai

import (
	"regexp"
	"strings"
)

// boilerplatePatterns mark the start of trailing sections that carry no
// scoring signal. Each matches at the start of a line, optionally after
// bullets or heading markers. None of them may match visa or sponsorship
// wording.
var boilerplatePatterns = []*regexp.Regexp{
	// equal opportunity statements
	regexp.MustCompile(`(?im)^[\s*#>•\-]*(?:[\w&.,' ]{0,60}\s)?(?:is|are)\s+(?:an?\s+|proud(?:ly)?\s+(?:to\s+be\s+)?(?:an?\s+)?)?equal\s+(?:employment\s+)?opportunit(?:y|ies)`),
	regexp.MustCompile(`(?im)^[\s*#>•\-]*(?:equal\s+(?:employment\s+)?opportunity|EEO\b|E\.E\.O\.)`),
	// accommodation disclosures
	regexp.MustCompile(`(?im)^[\s*#>•\-]*(?:reasonable\s+)?accommodations?\b`),
	regexp.MustCompile(`(?im)^[\s*#>•\-]*if\s+you\s+(?:need|require)\s+(?:a\s+|an\s+)?(?:reasonable\s+)?accommodation`),
	// diversity boilerplate
	regexp.MustCompile(`(?im)^[\s*#>•\-]*(?:our\s+commitment\s+to\s+)?diversity(?:,?\s+(?:&\s+)?equity)?(?:,?\s+(?:and\s+|&\s+)?inclusion)?\s*:?\s*$`),
	regexp.MustCompile(`(?im)^[\s*#>•\-]*we\s+(?:celebrate|value|embrace)\s+diversity`),
	// benefits and perks headers
	regexp.MustCompile(`(?im)^[\s*#>•\-]*(?:our\s+|the\s+)?(?:benefits|perks)(?:\s*(?:&|and)\s*(?:perks|benefits))?\s*:?\s*$`),
	regexp.MustCompile(`(?im)^[\s*#>•\-]*what\s+we\s+offer\s*:?\s*$`),
	// about-us headers
	regexp.MustCompile(`(?im)^[\s*#>•\-]*(?:about\s+us|about\s+the\s+company|who\s+we\s+are)\s*:?\s*$`),
}

// sponsorshipRegex finds visa wording inside a removed tail. Such lines are a
// scoring signal and are carried over after the cut.
var sponsorshipRegex = regexp.MustCompile(`(?i)\b(?:visa|sponsor(?:ship|ed|s)?|work\s+authori[sz]ation|right\s+to\s+work)\b`)

// StripBoilerplate truncates text at the earliest boilerplate section.
// Everything before the cut is returned verbatim; text with no match is
// returned unchanged. Lines after the cut that talk about visas or
// sponsorship are appended back.
func StripBoilerplate(text string) string {
	cut := -1
	for _, re := range boilerplatePatterns {
		loc := re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if cut == -1 || loc[0] < cut {
			cut = loc[0]
		}
	}
	if cut == -1 {
		return text
	}
	kept := text[:cut]
	var carried []string
	for _, line := range strings.Split(text[cut:], "\n") {
		if sponsorshipRegex.MatchString(line) {
			carried = append(carried, strings.TrimSpace(line))
		}
	}
	if len(carried) == 0 {
		return kept
	}
	if !strings.HasSuffix(kept, "\n") {
		kept += "\n"
	}
	return kept + strings.Join(carried, "\n")
}
