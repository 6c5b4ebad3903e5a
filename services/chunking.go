package services

import (
	"strings"
	"time"
	"unicode"

	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/internal/logger"
	"rag-knowledge-platform/models"
	"rag-knowledge-platform/utils"
)

// ChunkingService splits document text into overlapping windows of
// whitespace-delimited tokens. Window size adapts to document length so short
// memos are not shredded into near-duplicate fragments and long reports are
// not over-sliced.
type ChunkingService struct {
	baseChunkSize int
	overlap       int
	minChunkSize  int
	maxChunkSize  int

	// Now stamps created_at on derived chunks; injectable for tests.
	Now func() time.Time
}

// charsPerPage estimates page count for documents that do not carry one in
// their metadata.
const charsPerPage = 4000

func NewChunkingService(cfg *config.Config) (*ChunkingService, error) {
	s := &ChunkingService{
		baseChunkSize: cfg.BaseChunkSize,
		overlap:       cfg.ChunkOverlap,
		minChunkSize:  cfg.MinChunkSize,
		maxChunkSize:  cfg.MaxChunkSize,
		Now:           time.Now,
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ChunkingService) validate() error {
	if s.baseChunkSize <= 0 {
		return utils.NewAppError(utils.KindInvalidConfiguration, "base chunk size must be positive, got %d", s.baseChunkSize)
	}
	if s.overlap >= s.baseChunkSize {
		return utils.NewAppError(utils.KindInvalidConfiguration, "chunk overlap %d must be smaller than base chunk size %d", s.overlap, s.baseChunkSize)
	}
	if s.overlap < 0 {
		return utils.NewAppError(utils.KindInvalidConfiguration, "chunk overlap must not be negative, got %d", s.overlap)
	}
	return nil
}

// ChunkDocument splits text into chunks carrying the document's metadata. The
// concatenation of chunk texts with overlaps removed reconstructs the input
// exactly; every chunk is non-empty.
func (s *ChunkingService) ChunkDocument(documentID, text string, metadata map[string]any) ([]models.Chunk, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	chunkSize, overlap := s.resolveSize(text, metadata)

	tokens := tokenOffsets(text)
	createdAt := s.Now().UTC()

	var chunks []models.Chunk
	start := 0
	for seq := 0; ; seq++ {
		end := start + chunkSize
		if end >= len(tokens) {
			end = len(tokens)
		} else {
			end = s.snapToSentence(text, tokens, start, end)
		}

		chunkText := text[tokens[start].start:tokens[end-1].end]
		chunks = append(chunks, models.Chunk{
			ID:            utils.ChunkID(documentID, seq, chunkText),
			DocumentID:    documentID,
			SequenceIndex: seq,
			Text:          chunkText,
			Metadata:      cloneMetadata(metadata),
			CreatedAt:     createdAt,
		})

		if end == len(tokens) {
			break
		}
		next := end - overlap
		// Sentence snapping can shrink a window below the overlap; always
		// advance so the walk terminates.
		if next <= start {
			next = start + 1
		}
		start = next
	}

	logger.Debug("Chunked document",
		"document_id", documentID,
		"chunks", len(chunks),
		"chunk_size", chunkSize,
		"overlap", overlap)

	return chunks, nil
}

// resolveSize applies the adaptive policy: long-form documents move toward
// the maximum chunk size, short ones toward the minimum. Page count from
// metadata wins; otherwise it is estimated from character length.
func (s *ChunkingService) resolveSize(text string, metadata map[string]any) (chunkSize, overlap int) {
	chunkSize = s.baseChunkSize

	pages, ok := pageCount(metadata)
	if !ok {
		pages = len(text) / charsPerPage
	}

	switch {
	case pages > 50:
		chunkSize = s.maxChunkSize
	case pages < 5:
		chunkSize = s.minChunkSize
	}
	if chunkSize <= 0 {
		chunkSize = s.baseChunkSize
	}

	overlap = s.overlap
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return chunkSize, overlap
}

func pageCount(metadata map[string]any) (int, bool) {
	for _, key := range []string{"page_count", "num_pages"} {
		switch v := metadata[key].(type) {
		case int:
			return v, true
		case int64:
			return int(v), true
		case float64:
			return int(v), true
		}
	}
	return 0, false
}

// snapToSentence nudges a window boundary back to the nearest token ending a
// sentence, so chunks avoid splitting mid-sentence when a boundary is close.
// Best effort: if no sentence end is found within the lookback, the original
// boundary stands.
func (s *ChunkingService) snapToSentence(text string, tokens []tokenSpan, start, end int) int {
	lookback := (end - start) / 4
	floor := end - lookback
	if floor <= start+1 {
		floor = start + 1
	}
	for i := end - 1; i >= floor; i-- {
		word := strings.TrimRightFunc(text[tokens[i].start:tokens[i].end], unicode.IsSpace)
		if strings.HasSuffix(word, ".") || strings.HasSuffix(word, "!") || strings.HasSuffix(word, "?") {
			return i + 1
		}
	}
	return end
}

// tokenSpan is a token's byte range including its trailing whitespace, so
// slicing the original text by spans is lossless.
type tokenSpan struct {
	start int
	end   int
}

func tokenOffsets(text string) []tokenSpan {
	var spans []tokenSpan
	i := 0
	for i < len(text) {
		start := i
		for i < len(text) && !isSpaceByte(text[i]) {
			i++
		}
		for i < len(text) && isSpaceByte(text[i]) {
			i++
		}
		spans = append(spans, tokenSpan{start: start, end: i})
	}
	return spans
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func cloneMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	clone := make(map[string]any, len(metadata))
	for k, v := range metadata {
		clone[k] = v
	}
	return clone
}
