package main

import (
	"context"
	"io"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/hibiken/asynq"

	"rag-knowledge-platform/internal/ai"
	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/internal/index"
	"rag-knowledge-platform/internal/logger"
	"rag-knowledge-platform/internal/queue"
	"rag-knowledge-platform/internal/telemetry"
	"rag-knowledge-platform/services"
)

// The worker consumes queued ingest and delete tasks. Async ingestion needs a
// shared index backend (mongo); with the in-memory backend the worker indexes
// into its own process and the API server never sees the chunks.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	ctx := context.Background()

	embedProvider, err := ai.NewEmbeddingProvider(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize embedding provider:", err)
	}
	if closer, ok := embedProvider.(io.Closer); ok {
		defer closer.Close()
	}

	llmProvider, err := ai.NewLLMProvider(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize LLM provider:", err)
	}

	embeddings := ai.NewEmbeddingService(embedProvider, cfg)

	if cfg.VectorBackend != "mongo" {
		logger.Warn("Worker running with in-memory index; queued chunks are not visible to the API server")
	}

	var vectorIndex index.VectorIndex
	if cfg.VectorBackend == "mongo" {
		mongoClient, err := config.ConnectMongoDB(cfg)
		if err != nil {
			log.Fatal("Failed to connect to MongoDB:", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			mongoClient.Disconnect(ctx)
		}()
		vectorIndex = index.NewMongoIndex(mongoClient.Database(cfg.DBName), "chunks", cfg.VectorIndexName, cfg.VectorDimensions)
	} else {
		vectorIndex = index.NewMemoryIndex(cfg.VectorDimensions)
	}

	rdb, err := config.ConnectRedis(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}

	chunker, err := services.NewChunkingService(cfg)
	if err != nil {
		log.Fatal("Invalid chunking configuration:", err)
	}

	reranker := services.NewRerankerService(cfg)
	citations := services.NewCitationService(cfg, embeddings)
	cache := services.NewQueryCacheService(rdb, cfg)
	rag := services.NewRAGService(cfg, embeddings, llmProvider, vectorIndex, reranker, citations, chunker, cache, metrics)

	// Hourly maintenance: report index size so slow leaks of orphaned
	// chunks show up in the logs.
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.Every(1).Hour().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		count, err := vectorIndex.Count(ctx)
		if err != nil {
			logger.Warn("Index stats unavailable", "error", err)
			return
		}
		logger.Info("Index stats", "chunks_indexed", count)
	})
	scheduler.StartAsync()
	defer scheduler.Stop()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 20,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(rag)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestDocument, processor.IngestDocument)
	mux.HandleFunc(queue.TaskDeleteDocument, processor.DeleteDocument)

	logger.Info("Starting worker", "redis", cfg.RedisURL, "concurrency", 20)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
