package privacy

import "regexp"

// Rule is one detect-and-replace pass. Rules run in slice order and each
// pass sees the output of the previous one.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	// Validate filters structural matches before redaction; nil redacts every match.
	Validate func(match string) bool
	// Redact formats the replacement. Returning the match unchanged means nothing was redacted.
	Redact func(match string) string
}

// Finding represents a detection result
type Finding struct {
	EntityType string `json:"entityType"`
	Count      int    `json:"count"`
}

// ProcessResult contains the result of processing text through the detector
type ProcessResult struct {
	MaskedText string    `json:"maskedText"`
	Findings   []Finding `json:"findings"`
	Original   string    `json:"-"` // Never serialize original text
}
