package ai

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/internal/logger"
	"rag-knowledge-platform/utils"
)

// EmbeddingService batches and retries provider calls. It is the only place
// in the core that retries transient failures; every other component
// surfaces them immediately.
type EmbeddingService struct {
	provider   EmbeddingProvider
	batchSize  int
	maxRetries int
}

// NewEmbeddingService wraps a provider with batching and bounded retries.
func NewEmbeddingService(provider EmbeddingProvider, cfg *config.Config) *EmbeddingService {
	batchSize := cfg.EmbeddingBatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	maxRetries := cfg.EmbeddingMaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &EmbeddingService{
		provider:   provider,
		batchSize:  batchSize,
		maxRetries: maxRetries,
	}
}

// Provider returns the wrapped provider.
func (s *EmbeddingService) Provider() EmbeddingProvider { return s.provider }

// Dimension returns the configured vector dimensionality.
func (s *EmbeddingService) Dimension() int { return s.provider.Dimension() }

// EmbedDocuments returns one vector per input text, preserving order. Batches
// run with bounded concurrency on the ingestion write path; each batch is
// retried with exponential backoff before the whole call fails.
func (s *EmbeddingService) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))
		g.Go(func() error {
			batch, err := s.embedWithRetry(ctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(vectors[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, v := range vectors {
		if err := s.checkDimension(v); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.embedWithRetry(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, utils.NewAppError(utils.KindEmbeddingUnavailable, "provider %s returned %d vectors for one input", s.provider.Name(), len(vectors))
	}
	if err := s.checkDimension(vectors[0]); err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *EmbeddingService) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			logger.Warn("Retrying embedding batch", "attempt", attempt, "size", len(texts), "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, utils.WrapAppError(utils.KindEmbeddingUnavailable, ctx.Err(), "embedding cancelled")
			case <-time.After(backoffDelay(attempt)):
			}
		}

		vectors, err := s.provider.EmbedBatch(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}
	return nil, utils.WrapAppError(utils.KindEmbeddingUnavailable, lastErr, "embedding provider %s unavailable after %d attempts", s.provider.Name(), s.maxRetries)
}

func (s *EmbeddingService) checkDimension(v []float32) error {
	want := s.provider.Dimension()
	if want > 0 && len(v) != want {
		return utils.NewAppError(utils.KindDimensionMismatch, "provider %s returned %d-dimensional vector, index expects %d", s.provider.Name(), len(v), want)
	}
	return nil
}

func backoffDelay(attempt int) time.Duration {
	d := time.Second << (attempt - 1)
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}

// NewEmbeddingProvider selects the embedding backend from configuration.
func NewEmbeddingProvider(ctx context.Context, cfg *config.Config) (EmbeddingProvider, error) {
	switch cfg.EmbeddingsProvider {
	case "google", "":
		return NewGeminiProvider(ctx, cfg)
	case "openai":
		return NewOpenAIProvider(cfg)
	default:
		return nil, utils.NewAppError(utils.KindInvalidConfiguration, "unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}
}

// NewLLMProvider selects the generation backend from configuration.
func NewLLMProvider(ctx context.Context, cfg *config.Config) (LLMProvider, error) {
	switch cfg.LLMProvider {
	case "google", "":
		return NewGeminiProvider(ctx, cfg)
	case "openai":
		return NewOpenAIProvider(cfg)
	default:
		return nil, utils.NewAppError(utils.KindInvalidConfiguration, "unknown LLM provider: %s", cfg.LLMProvider)
	}
}
