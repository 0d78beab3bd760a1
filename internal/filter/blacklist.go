package filter

import "strings"

// Blacklist removes postings from companies the user never wants to see.
// Company names are compared trimmed and case-insensitively, whole name only.
type Blacklist struct {
	companies map[string]struct{}
}

// NewBlacklist builds a blacklist from company names.
func NewBlacklist(companies []string) *Blacklist {
	set := make(map[string]struct{}, len(companies))
	for _, c := range companies {
		c = normalizeCompany(c)
		if c == "" {
			continue
		}
		set[c] = struct{}{}
	}
	return &Blacklist{companies: set}
}

// Blocked reports whether company is blacklisted.
func (b *Blacklist) Blocked(company string) bool {
	_, ok := b.companies[normalizeCompany(company)]
	return ok
}

// Len is the number of distinct blacklisted companies.
func (b *Blacklist) Len() int {
	return len(b.companies)
}

func normalizeCompany(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
