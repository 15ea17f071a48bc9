package moderation

// ReasonDenylist is reported when text contains a denylisted term.
const ReasonDenylist = "denylist"

// FilterResult is the outcome of screening a single message.
type FilterResult struct {
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
	Term    string `json:"term,omitempty"` // matched denylist term, lowercased
}
