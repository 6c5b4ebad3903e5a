package utils

import (
	"strings"
	"testing"
)

func TestCompressTextSmallBodyStoredRaw(t *testing.T) {
	text := "short chunk body"
	data, algorithm, err := CompressText(text)
	if err != nil {
		t.Fatalf("CompressText failed: %v", err)
	}
	if algorithm != CompressionNone {
		t.Errorf("small body compressed with %s, want none", algorithm)
	}
	if string(data) != text {
		t.Errorf("raw body altered: %q", data)
	}
}

func TestCompressTextRoundTrip(t *testing.T) {
	text := strings.Repeat("the retrieval pipeline stores chunk text compressed. ", 40)

	data, algorithm, err := CompressText(text)
	if err != nil {
		t.Fatalf("CompressText failed: %v", err)
	}
	if algorithm == CompressionNone {
		t.Fatal("large body left uncompressed")
	}
	if len(data) >= len(text) {
		t.Errorf("compressed size %d not smaller than input %d", len(data), len(text))
	}

	restored, err := DecompressText(data, algorithm)
	if err != nil {
		t.Fatalf("DecompressText failed: %v", err)
	}
	if restored != text {
		t.Error("round trip altered the text")
	}
}

func TestDecompressTextUnknownAlgorithm(t *testing.T) {
	if _, err := DecompressText([]byte("payload"), "lz77"); err == nil {
		t.Error("unknown algorithm accepted")
	}
}

func TestChunkIDStable(t *testing.T) {
	a := ChunkID("doc", 0, "some text")
	b := ChunkID("doc", 0, "some text")
	if a != b {
		t.Errorf("same inputs produced %s and %s", a, b)
	}
	if a == ChunkID("doc", 1, "some text") {
		t.Error("sequence index not part of the identity")
	}
	if a == ChunkID("doc", 0, "other text") {
		t.Error("text not part of the identity")
	}
}

func TestDocumentIDStable(t *testing.T) {
	if DocumentID("body") != DocumentID("body") {
		t.Error("document ID not deterministic")
	}
	if DocumentID("body") == DocumentID("other") {
		t.Error("distinct texts share a document ID")
	}
}
