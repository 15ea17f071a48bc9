// Package moderation provides the client-side content pre-check applied to
// outbound chat text. It screens messages against a denylist before they are
// handed to the realtime channel. The live-class backend remains the system of
// record for moderation; a message that passes here can still be rejected by
// the server with a moderation_rejected envelope.
package moderation

import "strings"

// DefaultTerms is the denylist shipped with the client. It mirrors the terms
// the backend moderator rejects.
var DefaultTerms = []string{
	"offensiveword1",
	"offensiveword2",
}

// Filter performs case-insensitive substring matching against a fixed set of
// denylisted terms. A Filter is immutable after construction and safe for
// concurrent use.
type Filter struct {
	terms []string // lowercased, trimmed, non-empty, de-duplicated
}

// NewFilter creates a Filter loaded with DefaultTerms.
func NewFilter() *Filter {
	return NewFilterWithTerms(DefaultTerms)
}

// NewFilterWithTerms creates a Filter from a custom term list. Terms are
// trimmed and lowercased; blank and duplicate terms are dropped.
func NewFilterWithTerms(terms []string) *Filter {
	seen := make(map[string]bool, len(terms))
	f := &Filter{terms: make([]string, 0, len(terms))}
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		f.terms = append(f.terms, t)
	}
	return f
}

// Terms returns a copy of the normalized denylist.
func (f *Filter) Terms() []string {
	out := make([]string, len(f.terms))
	copy(out, f.terms)
	return out
}

// IsBlocked reports whether any denylisted term occurs anywhere in text,
// ignoring letter case. Empty text is never blocked.
func (f *Filter) IsBlocked(text string) bool {
	return f.Check(text).Blocked
}

// Check screens text and reports the first denylisted term found, in
// denylist order.
func (f *Filter) Check(text string) FilterResult {
	if text == "" {
		return FilterResult{}
	}
	lower := strings.ToLower(text)
	for _, term := range f.terms {
		if strings.Contains(lower, term) {
			return FilterResult{
				Blocked: true,
				Reason:  ReasonDenylist,
				Term:    term,
			}
		}
	}
	return FilterResult{}
}
