package services

import (
	"context"
	"testing"

	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/internal/index"
)

func TestCacheKeyCoversEveryRequestParameter(t *testing.T) {
	cache := NewQueryCacheService(nil, &config.Config{CacheTTL: 60})
	ctx := context.Background()
	filters := index.SearchFilters{UserPermissions: []string{"public"}}

	relaxed := cache.CacheKey(ctx, "q", 3, filters, PromptStrict, false, true, false)

	// Strict and relaxed verification produce different verdicts for the
	// same answer, so they must never share an entry.
	strict := cache.CacheKey(ctx, "q", 3, filters, PromptStrict, false, true, true)
	if relaxed == strict {
		t.Error("strict and relaxed verification share a cache key")
	}

	again := cache.CacheKey(ctx, "q", 3, filters, PromptStrict, false, true, false)
	if relaxed != again {
		t.Error("identical requests produced different keys")
	}

	if other := cache.CacheKey(ctx, "other", 3, filters, PromptStrict, false, true, false); other == relaxed {
		t.Error("different questions share a cache key")
	}
	if other := cache.CacheKey(ctx, "q", 5, filters, PromptStrict, false, true, false); other == relaxed {
		t.Error("different top_k values share a cache key")
	}
	if other := cache.CacheKey(ctx, "q", 3, index.SearchFilters{}, PromptStrict, false, true, false); other == relaxed {
		t.Error("different filters share a cache key")
	}
	if other := cache.CacheKey(ctx, "q", 3, filters, PromptCitation, false, true, false); other == relaxed {
		t.Error("different prompt types share a cache key")
	}
	if other := cache.CacheKey(ctx, "q", 3, filters, PromptStrict, true, true, false); other == relaxed {
		t.Error("reranked and plain retrieval share a cache key")
	}
	if other := cache.CacheKey(ctx, "q", 3, filters, PromptStrict, false, false, false); other == relaxed {
		t.Error("verified and unverified responses share a cache key")
	}
}
