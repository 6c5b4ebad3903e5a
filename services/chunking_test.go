package services

import (
	"strings"
	"testing"

	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/utils"
)

func testChunkingConfig() *config.Config {
	return &config.Config{
		BaseChunkSize: 10,
		ChunkOverlap:  3,
		MinChunkSize:  10,
		MaxChunkSize:  10,
	}
}

// dropTokens removes the first n whitespace-delimited tokens, including
// their trailing whitespace, mirroring how the chunker slices text.
func dropTokens(s string, n int) string {
	i := 0
	for t := 0; t < n && i < len(s); t++ {
		for i < len(s) && s[i] != ' ' && s[i] != '\t' && s[i] != '\n' && s[i] != '\r' {
			i++
		}
		for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
			i++
		}
	}
	return s[i:]
}

func TestChunkDocumentCoverage(t *testing.T) {
	svc, err := NewChunkingService(testChunkingConfig())
	if err != nil {
		t.Fatalf("NewChunkingService failed: %v", err)
	}

	words := make([]string, 47)
	for i := range words {
		words[i] = "word" + strings.Repeat("x", i%5)
	}
	text := strings.Join(words, " ")

	chunks, err := svc.ChunkDocument("doc-1", text, nil)
	if err != nil {
		t.Fatalf("ChunkDocument failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks for %d words, got %d", len(words), len(chunks))
	}

	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0].Text)
	for _, c := range chunks[1:] {
		rebuilt.WriteString(dropTokens(c.Text, 3))
	}
	if rebuilt.String() != text {
		t.Errorf("overlap-stripped concatenation does not reconstruct input:\ngot:  %q\nwant: %q", rebuilt.String(), text)
	}

	for i, c := range chunks {
		if c.Text == "" {
			t.Errorf("chunk %d has empty text", i)
		}
		if c.SequenceIndex != i {
			t.Errorf("chunk %d has sequence index %d", i, c.SequenceIndex)
		}
		if c.DocumentID != "doc-1" {
			t.Errorf("chunk %d has document id %q", i, c.DocumentID)
		}
		if !strings.Contains(text, strings.TrimRight(c.Text, " \t\n\r")) {
			t.Errorf("chunk %d text is not a substring of the input", i)
		}
	}
}

func TestChunkDocumentOverlapSharing(t *testing.T) {
	svc, err := NewChunkingService(testChunkingConfig())
	if err != nil {
		t.Fatalf("NewChunkingService failed: %v", err)
	}

	words := make([]string, 30)
	for i := range words {
		words[i] = "tok" + strings.Repeat("a", i)
	}
	text := strings.Join(words, " ")

	chunks, err := svc.ChunkDocument("doc-overlap", text, nil)
	if err != nil {
		t.Fatalf("ChunkDocument failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1].Text)
		curr := strings.Fields(chunks[i].Text)
		tail := prev[len(prev)-3:]
		head := curr[:3]
		for j := range tail {
			if tail[j] != head[j] {
				t.Errorf("chunks %d/%d do not share the overlap: tail %v, head %v", i-1, i, tail, head)
				break
			}
		}
	}
}

func TestChunkDocumentAdaptiveSize(t *testing.T) {
	cfg := &config.Config{
		BaseChunkSize: 20,
		ChunkOverlap:  4,
		MinChunkSize:  8,
		MaxChunkSize:  40,
	}
	svc, err := NewChunkingService(cfg)
	if err != nil {
		t.Fatalf("NewChunkingService failed: %v", err)
	}

	words := make([]string, 100)
	for i := range words {
		words[i] = "alpha"
	}
	text := strings.Join(words, " ")

	// A long-form document widens the windows toward the maximum.
	longForm, err := svc.ChunkDocument("doc-long", text, map[string]any{"page_count": 80})
	if err != nil {
		t.Fatalf("ChunkDocument failed: %v", err)
	}
	// A short memo narrows them toward the minimum.
	memo, err := svc.ChunkDocument("doc-short", text, map[string]any{"page_count": 2})
	if err != nil {
		t.Fatalf("ChunkDocument failed: %v", err)
	}

	if len(longForm) >= len(memo) {
		t.Errorf("long-form produced %d chunks, memo %d; expected fewer for long-form", len(longForm), len(memo))
	}

	first := strings.Fields(longForm[0].Text)
	if len(first) != 40 {
		t.Errorf("long-form first chunk has %d tokens, want 40", len(first))
	}
}

func TestChunkDocumentMetadataPropagation(t *testing.T) {
	svc, err := NewChunkingService(testChunkingConfig())
	if err != nil {
		t.Fatalf("NewChunkingService failed: %v", err)
	}

	metadata := map[string]any{"source": "handbook.pdf", "access_level": "internal"}
	chunks, err := svc.ChunkDocument("doc-meta", "one two three four five six seven eight nine ten eleven twelve", metadata)
	if err != nil {
		t.Fatalf("ChunkDocument failed: %v", err)
	}

	for i, c := range chunks {
		if c.Metadata["source"] != "handbook.pdf" || c.Metadata["access_level"] != "internal" {
			t.Errorf("chunk %d metadata not propagated: %v", i, c.Metadata)
		}
	}

	// Mutating one chunk's metadata must not leak into the others.
	chunks[0].Metadata["source"] = "changed"
	if metadata["source"] != "handbook.pdf" {
		t.Error("chunk metadata aliases the document metadata")
	}
}

func TestChunkDocumentEmptyText(t *testing.T) {
	svc, err := NewChunkingService(testChunkingConfig())
	if err != nil {
		t.Fatalf("NewChunkingService failed: %v", err)
	}

	chunks, err := svc.ChunkDocument("doc-empty", "   \n\t ", nil)
	if err != nil {
		t.Fatalf("ChunkDocument failed: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected no chunks for blank text, got %d", len(chunks))
	}
}

func TestNewChunkingServiceInvalidConfiguration(t *testing.T) {
	cases := []struct {
		name string
		cfg  *config.Config
	}{
		{"overlap equals base", &config.Config{BaseChunkSize: 10, ChunkOverlap: 10}},
		{"overlap exceeds base", &config.Config{BaseChunkSize: 10, ChunkOverlap: 15}},
		{"zero base", &config.Config{BaseChunkSize: 0, ChunkOverlap: 0}},
		{"negative base", &config.Config{BaseChunkSize: -5, ChunkOverlap: 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewChunkingService(tc.cfg)
			if err == nil {
				t.Fatal("expected configuration error")
			}
			if !utils.IsKind(err, utils.KindInvalidConfiguration) {
				t.Errorf("expected invalid_configuration, got %v", err)
			}
		})
	}
}
