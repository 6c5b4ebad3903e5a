package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rag-knowledge-platform/internal/config"
)

const chunksCollection = "chunks"

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/migrate/migrate.go <command>")
		fmt.Println("Commands:")
		fmt.Println("  create-indexes  - Create the chunk collection indexes")
		fmt.Println("  verify          - Report collection and index state")
		os.Exit(1)
	}

	command := os.Args[1]

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	client, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	db := client.Database(cfg.DBName)

	switch command {
	case "create-indexes":
		if err := createIndexes(db); err != nil {
			log.Fatalf("Index creation failed: %v", err)
		}
		fmt.Println("Indexes created successfully!")
		fmt.Printf("Note: the %q vector search index must be created in Atlas with dimension %d\n", cfg.VectorIndexName, cfg.VectorDimensions)

	case "verify":
		if err := verify(db); err != nil {
			log.Fatalf("Verification failed: %v", err)
		}

	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

// createIndexes builds the regular indexes the chunk store relies on. The
// Atlas $vectorSearch index itself cannot be created through the driver and
// is provisioned separately.
func createIndexes(db *mongo.Database) error {
	ctx := context.Background()
	col := db.Collection(chunksCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "chunk_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("chunk_id_unique"),
		},
		{
			Keys:    bson.D{{Key: "document_id", Value: 1}},
			Options: options.Index().SetName("document_id"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("created_at_desc"),
		},
		{
			Keys:    bson.D{{Key: "metadata.access_level", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("access_level_sparse"),
		},
	}

	names, err := col.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return err
	}

	for _, name := range names {
		fmt.Printf("  created index: %s\n", name)
	}
	return nil
}

func verify(db *mongo.Database) error {
	ctx := context.Background()
	col := db.Collection(chunksCollection)

	count, err := col.EstimatedDocumentCount(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Collection %q: %d chunks\n", chunksCollection, count)

	cursor, err := col.Indexes().List(ctx)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	var specs []bson.M
	if err := cursor.All(ctx, &specs); err != nil {
		return err
	}

	fmt.Printf("Indexes (%d):\n", len(specs))
	for _, spec := range specs {
		fmt.Printf("  %v\n", spec["name"])
	}
	return nil
}
