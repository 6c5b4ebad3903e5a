package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	QueryCounter       metric.Int64Counter
	QueryDuration      metric.Float64Histogram
	ChunksIndexed      metric.Int64Counter
	EmbeddingBatches   metric.Int64Counter
	RetrievalHits      metric.Int64Counter
	RerankDegradations metric.Int64Counter
	UngroundedAnswers  metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("rag-knowledge-platform")

	queryCounter, err := meter.Int64Counter(
		"rag.queries.total",
		metric.WithDescription("Total RAG queries"),
	)
	if err != nil {
		return nil, err
	}

	queryDuration, err := meter.Float64Histogram(
		"rag.query.duration",
		metric.WithDescription("End-to-end query duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chunksIndexed, err := meter.Int64Counter(
		"rag.chunks.indexed",
		metric.WithDescription("Total chunks written to the vector index"),
	)
	if err != nil {
		return nil, err
	}

	embeddingBatches, err := meter.Int64Counter(
		"rag.embedding.batches",
		metric.WithDescription("Embedding batches sent to the provider"),
	)
	if err != nil {
		return nil, err
	}

	retrievalHits, err := meter.Int64Counter(
		"rag.retrieval.hits",
		metric.WithDescription("Search hits returned after filtering"),
	)
	if err != nil {
		return nil, err
	}

	rerankDegradations, err := meter.Int64Counter(
		"rag.rerank.degradations",
		metric.WithDescription("Queries answered with the reranker degraded"),
	)
	if err != nil {
		return nil, err
	}

	ungroundedAnswers, err := meter.Int64Counter(
		"rag.citation.ungrounded_answers",
		metric.WithDescription("Answers that failed the citation check"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		QueryCounter:       queryCounter,
		QueryDuration:      queryDuration,
		ChunksIndexed:      chunksIndexed,
		EmbeddingBatches:   embeddingBatches,
		RetrievalHits:      retrievalHits,
		RerankDegradations: rerankDegradations,
		UngroundedAnswers:  ungroundedAnswers,
	}, nil
}

// RecordQuery records one completed query
func (m *Metrics) RecordQuery(promptType string, degraded bool, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("rag.prompt_type", promptType),
		attribute.Bool("rag.rerank_degraded", degraded),
	}

	m.QueryCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.QueryDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordIndexed records chunks written for one document
func (m *Metrics) RecordIndexed(documentID string, count int64) {
	attrs := []attribute.KeyValue{
		attribute.String("rag.document_id", documentID),
	}

	m.ChunksIndexed.Add(context.Background(), count, metric.WithAttributes(attrs...))
}

// RecordEmbeddingBatch records one provider batch call
func (m *Metrics) RecordEmbeddingBatch(provider string, size int) {
	attrs := []attribute.KeyValue{
		attribute.String("rag.embedding_provider", provider),
		attribute.Int("rag.batch_size", size),
	}

	m.EmbeddingBatches.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordRetrieval records filtered hit counts for one search
func (m *Metrics) RecordRetrieval(hits int64) {
	m.RetrievalHits.Add(context.Background(), hits)
}

// RecordRerankDegradation records a fail-soft rerank
func (m *Metrics) RecordRerankDegradation() {
	m.RerankDegradations.Add(context.Background(), 1)
}

// RecordUngroundedAnswer records an answer flagged by the citation verifier
func (m *Metrics) RecordUngroundedAnswer(promptType string) {
	attrs := []attribute.KeyValue{
		attribute.String("rag.prompt_type", promptType),
	}

	m.UngroundedAnswers.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
