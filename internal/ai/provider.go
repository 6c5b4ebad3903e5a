package ai

import "context"

// EmbeddingProvider maps text to fixed-dimension vectors. Implementations
// are selected by configuration at startup; one concrete type per backend.
type EmbeddingProvider interface {
	Name() string
	// Dimension returns the vector dimensionality for the configured model.
	Dimension() int
	// EmbedBatch returns one vector per input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// GenerationOptions are the parameters forwarded to the LLM backend.
type GenerationOptions struct {
	Temperature     float64
	MaxOutputTokens int
}

// LLMProvider generates a completion for a single prompt. Retry policy
// belongs to implementations; callers treat a failure as fatal for the
// request.
type LLMProvider interface {
	Name() string
	Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error)
}
