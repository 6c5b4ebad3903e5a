package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/models"
)

func rerankCandidates() []models.SearchHit {
	return []models.SearchHit{
		{Chunk: models.Chunk{ID: "c1", Text: "first candidate"}, Score: 0.9},
		{Chunk: models.Chunk{ID: "c2", Text: "second candidate"}, Score: 0.8},
		{Chunk: models.Chunk{ID: "c3", Text: "third candidate"}, Score: 0.7},
	}
}

func rerankerWithEndpoint(endpoint string) *RerankerService {
	return NewRerankerService(&config.Config{
		RerankerEndpoint:  endpoint,
		RerankerModel:     "cross-encoder/ms-marco-MiniLM-L-6-v2",
		RerankerTimeout:   5,
		RerankerBatchSize: 32,
	})
}

func TestRerankOrdersByCrossEncoderScore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string      `json:"model"`
			Pairs [][2]string `json:"pairs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		// Score the pairs in reverse: the last retrieval hit is the best
		// answer by cross-encoder judgment.
		scores := make([]float64, len(req.Pairs))
		for i := range scores {
			scores[i] = float64(i)
		}
		json.NewEncoder(w).Encode(map[string]any{"scores": scores})
	}))
	defer srv.Close()

	reranker := rerankerWithEndpoint(srv.URL)
	hits, degraded := reranker.Rerank(context.Background(), "query", rerankCandidates(), 2)

	if degraded {
		t.Fatal("healthy endpoint reported degraded")
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].Chunk.ID != "c3" || hits[1].Chunk.ID != "c2" {
		t.Errorf("ordering by rerank score wrong: got %s, %s", hits[0].Chunk.ID, hits[1].Chunk.ID)
	}
	if hits[0].RerankScore != 2 {
		t.Errorf("top rerank score = %v, want 2", hits[0].RerankScore)
	}
	// The original retrieval score must survive alongside the new scale.
	if hits[0].Score != 0.7 {
		t.Errorf("original score lost: %v", hits[0].Score)
	}
}

func TestRerankFailsSoftOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	reranker := rerankerWithEndpoint(srv.URL)
	hits, degraded := reranker.Rerank(context.Background(), "query", rerankCandidates(), 2)

	if !degraded {
		t.Fatal("failing endpoint did not report degraded")
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 truncated hits, got %d", len(hits))
	}
	// Degraded mode keeps retrieval order.
	if hits[0].Chunk.ID != "c1" || hits[1].Chunk.ID != "c2" {
		t.Errorf("degraded mode changed ordering: got %s, %s", hits[0].Chunk.ID, hits[1].Chunk.ID)
	}
}

func TestRerankFailsSoftOnUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	reranker := rerankerWithEndpoint(srv.URL)
	hits, degraded := reranker.Rerank(context.Background(), "query", rerankCandidates(), 3)

	if !degraded {
		t.Fatal("unreachable endpoint did not report degraded")
	}
	if len(hits) != 3 {
		t.Fatalf("expected all 3 candidates, got %d", len(hits))
	}
}

func TestRerankNoEndpointConfigured(t *testing.T) {
	reranker := rerankerWithEndpoint("")
	if reranker.Enabled() {
		t.Error("reranker without endpoint reports enabled")
	}

	hits, degraded := reranker.Rerank(context.Background(), "query", rerankCandidates(), 2)
	if !degraded {
		t.Error("missing endpoint did not report degraded")
	}
	if len(hits) != 2 {
		t.Errorf("expected 2 hits, got %d", len(hits))
	}
}

func TestRerankEmptyCandidates(t *testing.T) {
	reranker := rerankerWithEndpoint("http://unused")
	hits, degraded := reranker.Rerank(context.Background(), "query", nil, 3)
	if hits != nil || degraded {
		t.Errorf("empty candidates: hits=%v degraded=%v", hits, degraded)
	}
}

func TestRerankScoreCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"scores": []float64{0.5}})
	}))
	defer srv.Close()

	reranker := rerankerWithEndpoint(srv.URL)
	_, degraded := reranker.Rerank(context.Background(), "query", rerankCandidates(), 2)
	if !degraded {
		t.Error("short score vector did not trigger degraded mode")
	}
}
