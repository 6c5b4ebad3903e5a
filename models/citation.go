package models

// Claim is a minimal assertable unit extracted from a generated answer,
// typically one sentence.
type Claim struct {
	Text                string   `json:"text"`
	SupportingSourceIDs []string `json:"supporting_source_ids,omitempty"`
	IsGrounded          bool     `json:"is_grounded"`
	MatchConfidence     float64  `json:"match_confidence"`
	// LowInformation marks sentences with no checkable factual content;
	// non-strict verification excludes them from the verdict.
	LowInformation bool `json:"low_information,omitempty"`
}

// CitationCheck is the aggregate groundedness verdict for one answer.
type CitationCheck struct {
	IsGrounded       bool     `json:"is_grounded"`
	Confidence       float64  `json:"confidence"`
	Warnings         []string `json:"warnings,omitempty"`
	Claims           []Claim  `json:"claims,omitempty"`
	UngroundedClaims []Claim  `json:"ungrounded_claims,omitempty"`
}
