package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"rag-knowledge-platform/internal/ai"
	"rag-knowledge-platform/internal/config"
	"rag-knowledge-platform/internal/index"
	"rag-knowledge-platform/internal/logger"
	"rag-knowledge-platform/internal/telemetry"
	"rag-knowledge-platform/middleware"
	"rag-knowledge-platform/routes"
	"rag-knowledge-platform/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	if cfg.OTLPEndpoint != "" {
		shutdown, err := telemetry.InitTracer("rag-knowledge-platform", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			defer shutdown()
		}
	}

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

	vectorIndex, cleanup, err := buildIndex(cfg)
	if err != nil {
		log.Fatal("Failed to initialize vector index:", err)
	}
	defer cleanup()

	// Redis backs the query cache and the task queue; without it the
	// service still answers queries, just without caching or async ingest.
	rdb, err := config.ConnectRedis(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, query cache and async ingest disabled", "error", err)
		rdb = nil
	}

	var queueClient *asynq.Client
	if rdb != nil {
		queueClient = asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer queueClient.Close()
	}

	chunker, err := services.NewChunkingService(cfg)
	if err != nil {
		log.Fatal("Invalid chunking configuration:", err)
	}

	reranker := services.NewRerankerService(cfg)
	citations := services.NewCitationService(cfg, embeddings)
	cache := services.NewQueryCacheService(rdb, cfg)
	rag := services.NewRAGService(cfg, embeddings, llmProvider, vectorIndex, reranker, citations, chunker, cache, metrics)

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	if rdb != nil {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	}

	routes.SetupHealthRoutes(router, vectorIndex)
	routes.SetupQueryRoutes(router, rag)
	routes.SetupDocumentRoutes(router, rag, queueClient)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "vector_backend", cfg.VectorBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}

// buildIndex selects the vector backend. The Mongo index serves clustered
// deployments via Atlas vector search; the in-memory index serves single
// nodes and development.
func buildIndex(cfg *config.Config) (index.VectorIndex, func(), error) {
	switch cfg.VectorBackend {
	case "mongo":
		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			client.Disconnect(ctx)
		}
		idx := index.NewMongoIndex(client.Database(cfg.DBName), "chunks", cfg.VectorIndexName, cfg.VectorDimensions)
		return idx, cleanup, nil
	default:
		return index.NewMemoryIndex(cfg.VectorDimensions), func() {}, nil
	}
}
