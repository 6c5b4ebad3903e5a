package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/internal/index"
	"rag-knowledge-platform/internal/logger"
	"rag-knowledge-platform/models"
)

// QueryCacheService caches assembled query responses in Redis. Keys carry a
// generation counter that is bumped on every index mutation, so stale answers
// expire immediately after an ingest or delete without scanning the keyspace.
type QueryCacheService struct {
	rdb     *redis.Client
	ttl     time.Duration
	enabled bool
}

func NewQueryCacheService(rdb *redis.Client, cfg *config.Config) *QueryCacheService {
	ttl := time.Duration(cfg.CacheTTL) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCacheService{
		rdb:     rdb,
		ttl:     ttl,
		enabled: cfg.CacheEnabled && rdb != nil,
	}
}

func (c *QueryCacheService) Enabled() bool { return c.enabled }

// CacheKey derives a stable key from everything that shapes the response.
// Two requests differing in any retrieval parameter never share an entry.
func (c *QueryCacheService) CacheKey(ctx context.Context, query string, topK int, filters index.SearchFilters, promptType PromptType, reranking, citationCheck, strictCitations bool) string {
	payload, _ := json.Marshal(struct {
		Query           string              `json:"query"`
		TopK            int                 `json:"top_k"`
		Filters         index.SearchFilters `json:"filters"`
		PromptType      PromptType          `json:"prompt_type"`
		Reranking       bool                `json:"reranking"`
		CitationCheck   bool                `json:"citation_check"`
		StrictCitations bool                `json:"strict_citations"`
	}{query, topK, filters, promptType, reranking, citationCheck, strictCitations})

	sum := sha256.Sum256(payload)
	return fmt.Sprintf("query:%d:%s", c.generation(ctx), hex.EncodeToString(sum[:16]))
}

func (c *QueryCacheService) Get(ctx context.Context, key string) (*models.QueryResponse, bool) {
	if !c.enabled {
		return nil, false
	}

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("Query cache read failed", "error", err)
		}
		return nil, false
	}

	var resp models.QueryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		logger.Warn("Query cache entry corrupt, dropping", "key", key, "error", err)
		c.rdb.Del(ctx, key)
		return nil, false
	}
	return &resp, true
}

func (c *QueryCacheService) Set(ctx context.Context, key string, resp *models.QueryResponse) {
	if !c.enabled || resp == nil {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		logger.Warn("Query cache encode failed", "error", err)
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warn("Query cache write failed", "error", err)
	}
}

// Invalidate bumps the generation counter so every cached response becomes
// unreachable. Called after upserts and deletes.
func (c *QueryCacheService) Invalidate(ctx context.Context) {
	if !c.enabled {
		return
	}
	if err := c.rdb.Incr(ctx, "querycache:generation").Err(); err != nil {
		logger.Warn("Query cache invalidation failed", "error", err)
	}
}

func (c *QueryCacheService) generation(ctx context.Context) int64 {
	if !c.enabled {
		return 0
	}
	gen, err := c.rdb.Get(ctx, "querycache:generation").Int64()
	if err != nil && err != redis.Nil {
		logger.Warn("Query cache generation read failed", "error", err)
	}
	return gen
}
