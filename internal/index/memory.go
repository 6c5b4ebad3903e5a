package index

import (
	"context"
	"sort"
	"sync"
	"time"

	"rag-knowledge-platform/internal/ai"
	"rag-knowledge-platform/models"
	"rag-knowledge-platform/utils"
)

// MemoryIndex is a brute-force cosine-similarity index guarded by a RWMutex.
// It backs tests and single-node deployments; the Mongo adapter serves
// clustered setups.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	chunks    map[string]models.Chunk

	// Now supplies the reference time for the age filter; injectable for
	// tests, defaults to wall clock.
	Now func() time.Time
}

// NewMemoryIndex creates an empty index expecting vectors of the given
// dimensionality.
func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dimension: dimension,
		chunks:    make(map[string]models.Chunk),
		Now:       time.Now,
	}
}

func (m *MemoryIndex) Upsert(ctx context.Context, chunks []models.Chunk) error {
	for i := range chunks {
		c := &chunks[i]
		if !c.HasEmbedding() {
			return utils.NewAppError(utils.KindMissingEmbedding, "chunk %s has no embedding", c.ID)
		}
		if m.dimension > 0 && len(c.Embedding) != m.dimension {
			return utils.NewAppError(utils.KindDimensionMismatch, "chunk %s has %d-dimensional embedding, index expects %d", c.ID, len(c.Embedding), m.dimension)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.chunks[c.ID] = c
	}
	return nil
}

func (m *MemoryIndex) DeleteDocument(ctx context.Context, documentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for id, c := range m.chunks {
		if c.DocumentID == documentID {
			delete(m.chunks, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryIndex) Search(ctx context.Context, embedding []float32, k int, filters SearchFilters) ([]models.SearchHit, error) {
	if k <= 0 {
		return nil, nil
	}
	if m.dimension > 0 && len(embedding) != m.dimension {
		return nil, utils.NewAppError(utils.KindDimensionMismatch, "query embedding has %d dimensions, index expects %d", len(embedding), m.dimension)
	}

	now := m.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]models.SearchHit, 0, k)
	for _, c := range m.chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Eligibility runs before scoring so filtered-out chunks never
		// count against the k budget.
		if !filters.eligible(&c, now) {
			continue
		}
		score := ai.CosineSimilarity(embedding, c.Embedding)
		if score < filters.MinScore {
			continue
		}
		hits = append(hits, models.SearchHit{Chunk: c, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MemoryIndex) Count(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.chunks)), nil
}
