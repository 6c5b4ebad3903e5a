package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ChunkID derives a stable chunk identifier from the owning document, the
// chunk's position and its content. Re-ingesting an unchanged document
// produces identical IDs, which makes index upserts idempotent.
func ChunkID(documentID string, sequenceIndex int, text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%s", documentID, sequenceIndex, text)
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// DocumentID derives a stable document identifier from its content when the
// caller did not supply one.
func DocumentID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:24]
}
