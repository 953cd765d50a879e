package domain

// ResolutionCacheEntry is the memoized outcome of resolving one query in a session.
// Both fields may be empty when nothing matched.
type ResolutionCacheEntry struct {
	Context string   `json:"context"`
	Sources []Source `json:"sources"`
}

// Resolution is what a chat turn consumes: grounding context, citations and provenance
type Resolution struct {
	Context   string    `json:"context"`
	Sources   []Source  `json:"sources"`
	Matched   bool      `json:"matched"`
	MatchType MatchType `json:"matchType,omitempty"`
	Candidate string    `json:"candidate,omitempty"`
	Cached    bool      `json:"cached"`
}

// Verdict is the outcome of the relevance check on a tentative match
type Verdict struct {
	Valid bool
	// Decided is false when the model gave no leading yes/no or the call failed
	Decided bool
	Reason  string
}
