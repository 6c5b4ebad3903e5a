package index

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rag-knowledge-platform/models"
	"rag-knowledge-platform/utils"
)

// MongoIndex persists chunks in a MongoDB collection and searches them with
// Atlas $vectorSearch. Chunk text is compressed for storage; embeddings and
// metadata are stored as-is so the vector index and filters can reach them.
type MongoIndex struct {
	collection *mongo.Collection
	indexName  string
	dimension  int

	Now func() time.Time
}

type chunkRecord struct {
	ChunkID       string         `bson:"chunk_id"`
	DocumentID    string         `bson:"document_id"`
	SequenceIndex int            `bson:"sequence_index"`
	Text          string         `bson:"text"`
	Compressed    bool           `bson:"compressed"`
	Compression   string         `bson:"compression,omitempty"`
	Metadata      map[string]any `bson:"metadata,omitempty"`
	Embedding     []float32      `bson:"embedding"`
	CreatedAt     time.Time      `bson:"created_at"`
	Score         float64        `bson:"score,omitempty"`
}

// NewMongoIndex wraps a collection with the given Atlas search index name.
func NewMongoIndex(db *mongo.Database, collectionName, indexName string, dimension int) *MongoIndex {
	return &MongoIndex{
		collection: db.Collection(collectionName),
		indexName:  indexName,
		dimension:  dimension,
		Now:        time.Now,
	}
}

func (m *MongoIndex) Upsert(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := make([]mongo.WriteModel, 0, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		if !c.HasEmbedding() {
			return utils.NewAppError(utils.KindMissingEmbedding, "chunk %s has no embedding", c.ID)
		}
		if m.dimension > 0 && len(c.Embedding) != m.dimension {
			return utils.NewAppError(utils.KindDimensionMismatch, "chunk %s has %d-dimensional embedding, index expects %d", c.ID, len(c.Embedding), m.dimension)
		}

		rec, err := m.toRecord(c)
		if err != nil {
			return err
		}

		batch = append(batch, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"chunk_id": c.ID}).
			SetReplacement(rec).
			SetUpsert(true))
	}

	if _, err := m.collection.BulkWrite(ctx, batch, options.BulkWrite().SetOrdered(false)); err != nil {
		return utils.WrapAppError(utils.KindIndexUnavailable, err, "bulk upsert failed")
	}
	return nil
}

func (m *MongoIndex) DeleteDocument(ctx context.Context, documentID string) (int64, error) {
	res, err := m.collection.DeleteMany(ctx, bson.M{"document_id": documentID})
	if err != nil {
		return 0, utils.WrapAppError(utils.KindIndexUnavailable, err, "delete document %s failed", documentID)
	}
	return res.DeletedCount, nil
}

func (m *MongoIndex) Search(ctx context.Context, embedding []float32, k int, filters SearchFilters) ([]models.SearchHit, error) {
	if k <= 0 {
		return nil, nil
	}
	if m.dimension > 0 && len(embedding) != m.dimension {
		return nil, utils.NewAppError(utils.KindDimensionMismatch, "query embedding has %d dimensions, index expects %d", len(embedding), m.dimension)
	}

	vectorStage := bson.M{
		"index":         m.indexName,
		"path":          "embedding",
		"queryVector":   embedding,
		"limit":         k,
		"numCandidates": k * 10,
	}
	// Pre-filter inside $vectorSearch so ineligible chunks never consume
	// top-k slots.
	if filter := m.buildFilter(filters); len(filter) > 0 {
		vectorStage["filter"] = filter
	}

	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: vectorStage}},
		{{Key: "$addFields", Value: bson.M{"score": bson.M{"$meta": "vectorSearchScore"}}}},
	}
	if filters.MinScore > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"score": bson.M{"$gte": filters.MinScore}}}})
	}

	cursor, err := m.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, utils.WrapAppError(utils.KindIndexUnavailable, err, "vector search failed")
	}
	defer cursor.Close(ctx)

	var hits []models.SearchHit
	for cursor.Next(ctx) {
		var rec chunkRecord
		if err := cursor.Decode(&rec); err != nil {
			return nil, utils.WrapAppError(utils.KindIndexUnavailable, err, "decoding search hit failed")
		}
		chunk, err := m.fromRecord(&rec)
		if err != nil {
			return nil, err
		}
		hits = append(hits, models.SearchHit{Chunk: chunk, Score: rec.Score})
	}
	if err := cursor.Err(); err != nil {
		return nil, utils.WrapAppError(utils.KindIndexUnavailable, err, "vector search cursor failed")
	}
	return hits, nil
}

func (m *MongoIndex) Count(ctx context.Context) (int64, error) {
	n, err := m.collection.EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, utils.WrapAppError(utils.KindIndexUnavailable, err, "count failed")
	}
	return n, nil
}

// buildFilter translates SearchFilters into the $vectorSearch filter
// document. MinScore is not part of it; similarity is only known after
// ranking.
func (m *MongoIndex) buildFilter(filters SearchFilters) bson.M {
	clauses := make([]bson.M, 0, 4)

	for key, value := range filters.Metadata {
		field := "metadata." + key
		switch v := value.(type) {
		case []string:
			clauses = append(clauses, bson.M{field: bson.M{"$in": v}})
		case []any:
			clauses = append(clauses, bson.M{field: bson.M{"$in": v}})
		default:
			clauses = append(clauses, bson.M{field: bson.M{"$eq": v}})
		}
	}

	if filters.MaxAgeDays > 0 {
		cutoff := m.Now().AddDate(0, 0, -filters.MaxAgeDays)
		clauses = append(clauses, bson.M{"created_at": bson.M{"$gte": cutoff}})
	}

	if filters.UserPermissions != nil {
		// The vector search filter cannot test for a missing field, so
		// untagged chunks are stored with access_level "public" (see
		// toRecord) and public is always allowed.
		perms := filters.UserPermissions
		hasPublic := false
		for _, p := range perms {
			if p == "public" {
				hasPublic = true
				break
			}
		}
		if !hasPublic {
			perms = append(append(make([]string, 0, len(perms)+1), perms...), "public")
		}
		clauses = append(clauses, bson.M{"metadata.access_level": bson.M{"$in": perms}})
	}

	if len(clauses) == 0 {
		return nil
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return bson.M{"$and": clauses}
}

func (m *MongoIndex) toRecord(c *models.Chunk) (*chunkRecord, error) {
	metadata := c.Metadata
	// An untagged chunk is public. The default is materialized here because
	// the search filter can only match stored values.
	if _, ok := metadata["access_level"]; !ok {
		metadata = make(map[string]any, len(c.Metadata)+1)
		for k, v := range c.Metadata {
			metadata[k] = v
		}
		metadata["access_level"] = "public"
	}

	rec := &chunkRecord{
		ChunkID:       c.ID,
		DocumentID:    c.DocumentID,
		SequenceIndex: c.SequenceIndex,
		Text:          c.Text,
		Metadata:      metadata,
		Embedding:     c.Embedding,
		CreatedAt:     c.CreatedAt,
	}

	compressed, algorithm, err := utils.CompressText(c.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to compress chunk %s: %w", c.ID, err)
	}
	if algorithm != utils.CompressionNone {
		rec.Text = base64.StdEncoding.EncodeToString(compressed)
		rec.Compressed = true
		rec.Compression = string(algorithm)
	}
	return rec, nil
}

func (m *MongoIndex) fromRecord(rec *chunkRecord) (models.Chunk, error) {
	text := rec.Text
	if rec.Compressed {
		raw, err := base64.StdEncoding.DecodeString(rec.Text)
		if err != nil {
			return models.Chunk{}, fmt.Errorf("failed to decode chunk %s: %w", rec.ChunkID, err)
		}
		text, err = utils.DecompressText(raw, utils.CompressionAlgorithm(rec.Compression))
		if err != nil {
			return models.Chunk{}, fmt.Errorf("failed to decompress chunk %s: %w", rec.ChunkID, err)
		}
	}

	return models.Chunk{
		ID:            rec.ChunkID,
		DocumentID:    rec.DocumentID,
		SequenceIndex: rec.SequenceIndex,
		Text:          text,
		Metadata:      rec.Metadata,
		Embedding:     rec.Embedding,
		CreatedAt:     rec.CreatedAt,
	}, nil
}
