// Package index stores embedded chunks and serves filtered nearest-neighbor
// search. Filtering is applied while candidates are ranked, so ineligible
// chunks never consume top-k slots.
package index

import (
	"context"
	"fmt"
	"time"

	"rag-knowledge-platform/models"
)

// SearchFilters are four independent, composable eligibility criteria. Each
// is optional; active criteria combine with logical AND.
type SearchFilters struct {
	// Metadata requires exact-match (scalar value) or one-of-set match
	// (slice value) per key.
	Metadata map[string]any `json:"metadata,omitempty"`
	// MaxAgeDays excludes chunks older than the window. Zero disables.
	MaxAgeDays int `json:"max_age_days,omitempty"`
	// UserPermissions gates chunks carrying an access_level other than
	// "public". A chunk without access_level is implicitly public, and
	// public chunks are visible to every caller. Nil disables the filter.
	UserPermissions []string `json:"user_permissions,omitempty"`
	// MinScore excludes hits below this similarity even inside the top-k.
	MinScore float64 `json:"min_score,omitempty"`
}

// VectorIndex is the storage contract for embedded chunks. Implementations
// must support concurrent reads; concurrent writes are last-writer-wins per
// chunk ID.
type VectorIndex interface {
	// Upsert writes chunks idempotently by ID, replacing any prior record.
	Upsert(ctx context.Context, chunks []models.Chunk) error
	// DeleteDocument removes every chunk belonging to the document and
	// returns how many were removed.
	DeleteDocument(ctx context.Context, documentID string) (int64, error)
	// Search returns up to k eligible hits ordered by score descending.
	// Zero eligible chunks is an empty result, not an error.
	Search(ctx context.Context, embedding []float32, k int, filters SearchFilters) ([]models.SearchHit, error)
	// Count reports the number of stored chunks.
	Count(ctx context.Context) (int64, error)
}

// eligible reports whether a chunk passes the metadata, age and permission
// criteria. The score threshold is applied separately once similarity is
// known.
func (f SearchFilters) eligible(c *models.Chunk, now time.Time) bool {
	for key, want := range f.Metadata {
		if c.Metadata == nil {
			return false
		}
		got, ok := c.Metadata[key]
		if !ok || !valueMatches(got, want) {
			return false
		}
	}

	if f.MaxAgeDays > 0 {
		cutoff := now.AddDate(0, 0, -f.MaxAgeDays)
		// A chunk with no recorded creation time has unknown age and is
		// excluded whenever the caller restricts age.
		if c.CreatedAt.IsZero() || c.CreatedAt.Before(cutoff) {
			return false
		}
	}

	if f.UserPermissions != nil {
		// Untagged and public chunks are visible to every caller.
		if level, ok := c.AccessLevel(); ok && level != "public" {
			allowed := false
			for _, p := range f.UserPermissions {
				if p == level {
					allowed = true
					break
				}
			}
			if !allowed {
				return false
			}
		}
	}

	return true
}

// valueMatches compares a chunk metadata value against a filter value.
// A slice filter value means one-of-set; anything else is an exact match.
// Values are compared by their string forms so JSON-decoded metadata
// (which arrives as string/float64/bool) matches caller-supplied filters.
func valueMatches(got, want any) bool {
	switch w := want.(type) {
	case []string:
		for _, v := range w {
			if stringify(got) == v {
				return true
			}
		}
		return false
	case []any:
		for _, v := range w {
			if stringify(got) == stringify(v) {
				return true
			}
		}
		return false
	default:
		return stringify(got) == stringify(want)
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
