package models

// SourceRef describes one retrieved source returned alongside an answer.
type SourceRef struct {
	ID          string         `json:"id"`
	Snippet     string         `json:"snippet"`
	Score       float64        `json:"score"`
	RerankScore *float64       `json:"rerank_score,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ResponseMetadata records which features were active for a query and the
// retrieval counts, so callers can tell a degraded answer from a full one.
type ResponseMetadata struct {
	PromptType           string `json:"prompt_type"`
	RerankingEnabled     bool   `json:"reranking_enabled"`
	RerankDegraded       bool   `json:"rerank_degraded,omitempty"`
	CitationCheckEnabled bool   `json:"citation_check_enabled"`
	RetrievedCount       int    `json:"retrieved_count"`
	ContextCount         int    `json:"context_count"`
	Cached               bool   `json:"cached,omitempty"`
}

// QueryResponse is the assembled result of one RAG query.
type QueryResponse struct {
	Answer        string           `json:"answer"`
	Sources       []SourceRef      `json:"sources"`
	Metadata      ResponseMetadata `json:"metadata"`
	CitationCheck *CitationCheck   `json:"citation_check,omitempty"`
}
