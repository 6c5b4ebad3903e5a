package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/internal/logger"
	"rag-knowledge-platform/models"
)

// RerankerService scores query-document pairs with a remote cross-encoder.
// Cross-encoder scores are on their own scale; once reranking runs, consumers
// order by the rerank score and never mix it with retrieval similarity.
type RerankerService struct {
	endpoint  string
	model     string
	apiKey    string
	batchSize int
	client    *http.Client
}

func NewRerankerService(cfg *config.Config) *RerankerService {
	timeout := time.Duration(cfg.RerankerTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	batchSize := cfg.RerankerBatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	return &RerankerService{
		endpoint:  cfg.RerankerEndpoint,
		model:     cfg.RerankerModel,
		apiKey:    cfg.RerankerAPIKey,
		batchSize: batchSize,
		client:    &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a scoring endpoint is configured.
func (r *RerankerService) Enabled() bool { return r.endpoint != "" }

// Rerank scores the candidates against the query and returns the top-k by
// rerank score. It fails soft: when the scoring endpoint is unreachable the
// candidates come back truncated to k in their original order with
// degraded=true, and the query continues.
func (r *RerankerService) Rerank(ctx context.Context, query string, candidates []models.SearchHit, topK int) (hits []models.RerankedHit, degraded bool) {
	if len(candidates) == 0 {
		return nil, false
	}
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}
	if r.endpoint == "" {
		return r.fallback(candidates, topK), true
	}

	scores := make([]float64, len(candidates))
	for start := 0; start < len(candidates); start += r.batchSize {
		end := start + r.batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batchScores, err := r.scoreBatch(ctx, query, candidates[start:end])
		if err != nil {
			logger.Warn("Reranker unavailable, keeping retrieval order",
				"error", err, "candidates", len(candidates))
			return r.fallback(candidates, topK), true
		}
		copy(scores[start:end], batchScores)
	}

	hits = make([]models.RerankedHit, len(candidates))
	for i, c := range candidates {
		hits[i] = models.RerankedHit{SearchHit: c, RerankScore: scores[i]}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].RerankScore > hits[j].RerankScore
	})
	return hits[:topK], false
}

func (r *RerankerService) scoreBatch(ctx context.Context, query string, batch []models.SearchHit) ([]float64, error) {
	pairs := make([][2]string, len(batch))
	for i, hit := range batch {
		pairs[i] = [2]string{query, hit.Chunk.Text}
	}

	reqBody := map[string]any{
		"model": r.model,
		"pairs": pairs,
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("reranker returned status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Scores []float64 `json:"scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Scores) != len(batch) {
		return nil, fmt.Errorf("expected %d scores, got %d", len(batch), len(out.Scores))
	}
	return out.Scores, nil
}

// fallback keeps the retrieval ordering and reuses the retrieval score so
// downstream ordering stays stable while the degraded flag tells callers the
// scores are not cross-encoder scores.
func (r *RerankerService) fallback(candidates []models.SearchHit, topK int) []models.RerankedHit {
	hits := make([]models.RerankedHit, 0, topK)
	for _, c := range candidates[:topK] {
		hits = append(hits, models.RerankedHit{SearchHit: c, RerankScore: c.Score})
	}
	return hits
}
