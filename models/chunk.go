package models

import "time"

// Chunk is a contiguous slice of a source document. Chunks are created by the
// chunking service, get an embedding attached by the embedding service, and
// are owned by the vector index once written. After indexing a chunk is never
// mutated except for metadata updates or deletion.
type Chunk struct {
	ID            string         `json:"id" bson:"chunk_id"`
	DocumentID    string         `json:"document_id" bson:"document_id"`
	SequenceIndex int            `json:"sequence_index" bson:"sequence_index"`
	Text          string         `json:"text" bson:"text"`
	Metadata      map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Embedding     []float32      `json:"embedding,omitempty" bson:"embedding,omitempty"`
	CreatedAt     time.Time      `json:"created_at" bson:"created_at"`
}

// HasEmbedding reports whether the chunk has been embedded yet.
func (c *Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// AccessLevel returns the chunk's access_level metadata value, if any.
// A chunk without one is implicitly public.
func (c *Chunk) AccessLevel() (string, bool) {
	if c.Metadata == nil {
		return "", false
	}
	v, ok := c.Metadata["access_level"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// SearchHit is a chunk plus the similarity score from one retrieval call.
// Scores are cosine similarity: higher means more similar. Hits are
// ephemeral and never persisted.
type SearchHit struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// RerankedHit augments a SearchHit with an independently scaled relevance
// score from the cross-encoder. Downstream ordering uses RerankScore
// descending with the original Score as tie-breaker; the two scales must
// never be mixed.
type RerankedHit struct {
	SearchHit
	RerankScore float64 `json:"rerank_score"`
}
