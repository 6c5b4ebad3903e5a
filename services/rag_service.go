package services

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rag-knowledge-platform/internal/ai"
	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/internal/index"
	"rag-knowledge-platform/internal/logger"
	"rag-knowledge-platform/internal/telemetry"
	"rag-knowledge-platform/models"
	"rag-knowledge-platform/utils"
)

// QueryRequest carries every parameter of one RAG query.
type QueryRequest struct {
	Question            string         `json:"question"`
	TopK                int            `json:"top_k"`
	MinScore            float64        `json:"min_score"`
	Filters             map[string]any `json:"filters"`
	MaxAgeDays          int            `json:"max_age_days"`
	UserPermissions     []string       `json:"user_permissions"`
	PromptType          PromptType     `json:"prompt_type"`
	EnableReranking     bool           `json:"enable_reranking"`
	EnableCitationCheck bool           `json:"enable_citation_check"`
	StrictCitations     bool           `json:"strict_citations"`
}

// RAGService runs the query pipeline: embed the question, search the index,
// optionally rerank, build a prompt, generate, optionally verify citations,
// and assemble the response. Each step depends on the previous one; there is
// no concurrency within a single query.
type RAGService struct {
	cfg        *config.Config
	embeddings *ai.EmbeddingService
	llm        ai.LLMProvider
	idx        index.VectorIndex
	reranker   *RerankerService
	citations  *CitationService
	chunker    *ChunkingService
	cache      *QueryCacheService
	metrics    *telemetry.Metrics
	tracer     trace.Tracer
}

func NewRAGService(
	cfg *config.Config,
	embeddings *ai.EmbeddingService,
	llm ai.LLMProvider,
	idx index.VectorIndex,
	reranker *RerankerService,
	citations *CitationService,
	chunker *ChunkingService,
	cache *QueryCacheService,
	metrics *telemetry.Metrics,
) *RAGService {
	return &RAGService{
		cfg:        cfg,
		embeddings: embeddings,
		llm:        llm,
		idx:        idx,
		reranker:   reranker,
		citations:  citations,
		chunker:    chunker,
		cache:      cache,
		metrics:    metrics,
		tracer:     otel.Tracer("rag-knowledge-platform/services"),
	}
}

// IngestDocument chunks, embeds and indexes a document. An empty documentID
// derives a stable one from the text, so re-ingesting the same document
// replaces its chunks instead of duplicating them. Returns the document ID
// and the number of chunks written.
func (s *RAGService) IngestDocument(ctx context.Context, documentID, text string, metadata map[string]any) (string, int, error) {
	ctx, span := s.tracer.Start(ctx, "rag.ingest")
	defer span.End()

	if documentID == "" {
		documentID = utils.DocumentID(text)
	}
	span.SetAttributes(attribute.String("rag.document_id", documentID))

	chunks, err := s.chunker.ChunkDocument(documentID, text, metadata)
	if err != nil {
		return "", 0, err
	}
	if len(chunks) == 0 {
		return documentID, 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embeddings.EmbedDocuments(ctx, texts)
	if err != nil {
		// Without embeddings nothing is indexed: a zero vector would
		// poison every search that touches it.
		return "", 0, err
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	if s.metrics != nil {
		s.metrics.RecordEmbeddingBatch(s.embeddings.Provider().Name(), len(texts))
	}

	if err := s.idx.Upsert(ctx, chunks); err != nil {
		return "", 0, err
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	if s.metrics != nil {
		s.metrics.RecordIndexed(documentID, int64(len(chunks)))
	}

	logger.Info("Document ingested", "document_id", documentID, "chunks", len(chunks))
	return documentID, len(chunks), nil
}

// DeleteDocument removes every chunk of the document from the index.
func (s *RAGService) DeleteDocument(ctx context.Context, documentID string) (int64, error) {
	removed, err := s.idx.DeleteDocument(ctx, documentID)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
	logger.Info("Document deleted", "document_id", documentID, "chunks_removed", removed)
	return removed, nil
}

// Query answers a question grounded in the indexed documents.
func (s *RAGService) Query(ctx context.Context, req QueryRequest) (*models.QueryResponse, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "rag.query")
	defer span.End()

	s.applyDefaults(&req)

	filters := index.SearchFilters{
		Metadata:        req.Filters,
		MaxAgeDays:      req.MaxAgeDays,
		UserPermissions: req.UserPermissions,
		MinScore:        req.MinScore,
	}

	var cacheKey string
	if s.cache != nil && s.cache.Enabled() {
		cacheKey = s.cache.CacheKey(ctx, req.Question, req.TopK, filters, req.PromptType, req.EnableReranking, req.EnableCitationCheck, req.StrictCitations)
		if cached, ok := s.cache.Get(ctx, cacheKey); ok {
			cached.Metadata.Cached = true
			return cached, nil
		}
	}

	// EMBED_QUERY: no partial answer is possible without a query vector.
	queryVector, err := s.embeddings.EmbedQuery(ctx, req.Question)
	if err != nil {
		return nil, err
	}

	// SEARCH: retrieve wider than top_k when reranking so the
	// cross-encoder has a real choice set.
	searchK := req.TopK
	if req.EnableReranking && s.cfg.RetrievalWidth > searchK {
		searchK = s.cfg.RetrievalWidth
	}
	hits, err := s.idx.Search(ctx, queryVector, searchK, filters)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordRetrieval(int64(len(hits)))
	}

	// RERANK: fail-soft; a degraded rerank keeps retrieval order and
	// flags the response.
	var (
		contextChunks []models.Chunk
		sources       []models.SourceRef
		degraded      bool
	)
	if req.EnableReranking && len(hits) > 0 {
		var reranked []models.RerankedHit
		reranked, degraded = s.reranker.Rerank(ctx, req.Question, hits, req.TopK)
		if degraded && s.metrics != nil {
			s.metrics.RecordRerankDegradation()
		}
		for _, h := range reranked {
			contextChunks = append(contextChunks, h.Chunk)
			rs := h.RerankScore
			sources = append(sources, models.SourceRef{
				ID:          h.Chunk.ID,
				Snippet:     snippet(h.Chunk.Text),
				Score:       h.Score,
				RerankScore: &rs,
				Metadata:    h.Chunk.Metadata,
			})
		}
	} else {
		if len(hits) > req.TopK {
			hits = hits[:req.TopK]
		}
		for _, h := range hits {
			contextChunks = append(contextChunks, h.Chunk)
			sources = append(sources, models.SourceRef{
				ID:       h.Chunk.ID,
				Snippet:  snippet(h.Chunk.Text),
				Score:    h.Score,
				Metadata: h.Chunk.Metadata,
			})
		}
	}

	// BUILD_PROMPT: empty context is not an error; the prompt's
	// insufficient-context rules govern the answer.
	prompt, err := BuildPrompt(req.PromptType, req.Question, contextChunks)
	if err != nil {
		return nil, err
	}

	// GENERATE: no retries here; retry policy lives in the provider.
	answer, err := s.llm.Generate(ctx, prompt, ai.GenerationOptions{
		Temperature:     s.cfg.Temperature,
		MaxOutputTokens: s.cfg.MaxOutputTokens,
	})
	if err != nil {
		return nil, utils.WrapAppError(utils.KindGenerationFailed, err, "LLM generation failed")
	}

	resp := &models.QueryResponse{
		Answer:  answer,
		Sources: sources,
		Metadata: models.ResponseMetadata{
			PromptType:           string(req.PromptType),
			RerankingEnabled:     req.EnableReranking,
			RerankDegraded:       degraded,
			CitationCheckEnabled: req.EnableCitationCheck,
			RetrievedCount:       len(hits),
			ContextCount:         len(contextChunks),
		},
	}

	// VERIFY_CITATIONS: never fails the query; worst case the check
	// itself reports is_grounded=false.
	if req.EnableCitationCheck {
		check := s.citations.Verify(ctx, answer, contextChunks, req.StrictCitations)
		resp.CitationCheck = &check
		if !check.IsGrounded && s.metrics != nil {
			s.metrics.RecordUngroundedAnswer(string(req.PromptType))
		}
	}

	if s.metrics != nil {
		s.metrics.RecordQuery(string(req.PromptType), degraded, time.Since(start).Seconds())
	}
	if cacheKey != "" {
		s.cache.Set(ctx, cacheKey, resp)
	}
	return resp, nil
}

func (s *RAGService) applyDefaults(req *QueryRequest) {
	if req.TopK <= 0 {
		req.TopK = s.cfg.DefaultTopK
	}
	if req.MinScore == 0 {
		req.MinScore = s.cfg.DefaultMinScore
	}
	if req.PromptType == "" {
		req.PromptType = PromptStrict
	}
}

// snippet shortens chunk text for the source list.
func snippet(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= 200 {
		return text
	}
	cut := text[:200]
	if i := strings.LastIndexByte(cut, ' '); i > 120 {
		cut = cut[:i]
	}
	return cut + "..."
}
