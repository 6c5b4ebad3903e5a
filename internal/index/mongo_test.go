package index

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"rag-knowledge-platform/models"
)

func testMongoIndex() *MongoIndex {
	return &MongoIndex{
		indexName: "chunks_vector",
		dimension: 3,
		Now:       time.Now,
	}
}

// Atlas vector search filters support only equality, range, set and boolean
// operators; anything else fails at query time.
var allowedFilterOps = map[string]bool{
	"$eq": true, "$ne": true,
	"$gt": true, "$gte": true, "$lt": true, "$lte": true,
	"$in": true, "$nin": true,
	"$and": true, "$or": true,
}

func assertFilterOps(t *testing.T, v any) {
	t.Helper()
	switch val := v.(type) {
	case bson.M:
		for key, inner := range val {
			if strings.HasPrefix(key, "$") && !allowedFilterOps[key] {
				t.Errorf("filter uses operator %s, not supported by vector search", key)
			}
			assertFilterOps(t, inner)
		}
	case []bson.M:
		for _, inner := range val {
			assertFilterOps(t, inner)
		}
	}
}

func TestMongoBuildFilterPermissions(t *testing.T) {
	idx := testMongoIndex()

	filter := idx.buildFilter(SearchFilters{UserPermissions: []string{"internal"}})
	assertFilterOps(t, filter)

	in, ok := filter["metadata.access_level"].(bson.M)
	if !ok {
		t.Fatalf("no access_level clause in %v", filter)
	}
	perms, ok := in["$in"].([]string)
	if !ok {
		t.Fatalf("access_level clause is not a set match: %v", in)
	}
	// Untagged chunks are stored as public, so public must always pass.
	want := map[string]bool{"internal": true, "public": true}
	if len(perms) != 2 || !want[perms[0]] || !want[perms[1]] {
		t.Errorf("permitted levels = %v, want internal and public", perms)
	}

	filter = idx.buildFilter(SearchFilters{UserPermissions: []string{"public"}})
	in = filter["metadata.access_level"].(bson.M)
	if perms := in["$in"].([]string); len(perms) != 1 || perms[0] != "public" {
		t.Errorf("public-only caller: permitted levels = %v", perms)
	}
}

func TestMongoBuildFilterComposition(t *testing.T) {
	idx := testMongoIndex()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	idx.Now = func() time.Time { return now }

	filter := idx.buildFilter(SearchFilters{
		Metadata:        map[string]any{"team": "engineering", "region": []string{"eu", "us"}},
		MaxAgeDays:      7,
		UserPermissions: []string{"internal"},
	})
	assertFilterOps(t, filter)

	clauses, ok := filter["$and"].([]bson.M)
	if !ok {
		t.Fatalf("composed filter is not an $and: %v", filter)
	}
	if len(clauses) != 4 {
		t.Errorf("expected 4 clauses, got %d: %v", len(clauses), clauses)
	}

	text := fmt.Sprintf("%v", filter)
	if !strings.Contains(text, "metadata.team") || !strings.Contains(text, "metadata.region") {
		t.Errorf("metadata clauses missing: %s", text)
	}
	if !strings.Contains(text, "created_at") {
		t.Errorf("age clause missing: %s", text)
	}

	if idx.buildFilter(SearchFilters{}) != nil {
		t.Error("empty filters produced a filter document")
	}
}

func TestMongoRecordMaterializesPublicDefault(t *testing.T) {
	idx := testMongoIndex()

	chunk := models.Chunk{
		ID:         "c1",
		DocumentID: "doc",
		Text:       "untagged chunk body",
		Metadata:   map[string]any{"source": "notes.md"},
	}
	rec, err := idx.toRecord(&chunk)
	if err != nil {
		t.Fatalf("toRecord failed: %v", err)
	}
	if rec.Metadata["access_level"] != "public" {
		t.Errorf("untagged chunk stored with access_level %v, want public", rec.Metadata["access_level"])
	}
	if chunk.Metadata["access_level"] != nil {
		t.Error("materialized default leaked into the caller's metadata")
	}

	tagged := models.Chunk{
		ID:       "c2",
		Text:     "internal chunk body",
		Metadata: map[string]any{"access_level": "internal"},
	}
	rec, err = idx.toRecord(&tagged)
	if err != nil {
		t.Fatalf("toRecord failed: %v", err)
	}
	if rec.Metadata["access_level"] != "internal" {
		t.Errorf("existing access_level overwritten: %v", rec.Metadata["access_level"])
	}
}

func TestMongoRecordRoundTripCompressedText(t *testing.T) {
	idx := testMongoIndex()

	text := strings.Repeat("chunk text persisted through the mongo adapter. ", 30)
	chunk := models.Chunk{ID: "c1", DocumentID: "doc", Text: text}

	rec, err := idx.toRecord(&chunk)
	if err != nil {
		t.Fatalf("toRecord failed: %v", err)
	}
	if !rec.Compressed {
		t.Fatal("long body stored uncompressed")
	}

	restored, err := idx.fromRecord(rec)
	if err != nil {
		t.Fatalf("fromRecord failed: %v", err)
	}
	if restored.Text != text {
		t.Error("round trip altered the chunk text")
	}
}
