package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI    string
	DBName      string
	Port        string
	GinMode     string
	CORSOrigins []string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Chunking
	BaseChunkSize int
	ChunkOverlap  int
	MinChunkSize  int
	MaxChunkSize  int

	// Embeddings configuration
	EmbeddingsProvider    string // "google" (default), "openai"
	GoogleEmbeddingsModel string // e.g., "text-embedding-004"
	GeminiAPIKey          string
	OpenAIAPIKey          string
	OpenAIEmbeddingsModel string
	EmbeddingBatchSize    int
	EmbeddingMaxRetries   int
	VectorDimensions      int

	// Vector index
	VectorBackend   string // "memory" (default), "mongo"
	VectorIndexName string

	// LLM generation
	LLMProvider     string
	GeminiModel     string
	GeminiTier      string
	Temperature     float64
	MaxOutputTokens int

	// Retrieval defaults
	DefaultTopK     int
	RetrievalWidth  int
	DefaultMinScore float64

	// Reranker
	RerankerEndpoint  string
	RerankerModel     string
	RerankerAPIKey    string
	RerankerTimeout   int // seconds
	RerankerBatchSize int

	// Citation verification
	FuzzyMatchThreshold    float64
	SemanticMatchThreshold float64
	ConfidenceFloor        float64

	// Query cache
	CacheEnabled bool
	CacheTTL     int // seconds

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int // seconds

	// Telemetry
	OTLPEndpoint string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017/rag_knowledge"),
		DBName:      getEnv("DB_NAME", "rag_knowledge"),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		// Redis Configuration
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// Chunking
		BaseChunkSize: getEnvInt("BASE_CHUNK_SIZE", 800),
		ChunkOverlap:  getEnvInt("CHUNK_OVERLAP", 120),
		MinChunkSize:  getEnvInt("MIN_CHUNK_SIZE", 500),
		MaxChunkSize:  getEnvInt("MAX_CHUNK_SIZE", 1000),

		// Embeddings
		EmbeddingsProvider:    getEnv("EMBEDDINGS_PROVIDER", "google"),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIEmbeddingsModel: getEnv("OPENAI_EMBEDDINGS_MODEL", "text-embedding-3-small"),
		EmbeddingBatchSize:    getEnvInt("EMBEDDING_BATCH_SIZE", 64),
		EmbeddingMaxRetries:   getEnvInt("EMBEDDING_MAX_RETRIES", 3),
		VectorDimensions:      getEnvInt("VECTOR_DIM", 768),

		// Vector index
		VectorBackend:   getEnv("VECTOR_BACKEND", "memory"),
		VectorIndexName: getEnv("MONGODB_VECTOR_INDEX", "chunks_vector"),

		// LLM
		LLMProvider:     getEnv("LLM_PROVIDER", "google"),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiTier:      getEnv("GEMINI_TIER", "free"),
		Temperature:     getEnvFloat64("LLM_TEMPERATURE", 0.2),
		MaxOutputTokens: getEnvInt("LLM_MAX_OUTPUT_TOKENS", 2048),

		// Retrieval
		DefaultTopK:     getEnvInt("DEFAULT_TOP_K", 3),
		RetrievalWidth:  getEnvInt("RETRIEVAL_WIDTH", 10),
		DefaultMinScore: getEnvFloat64("DEFAULT_MIN_SCORE", 0.0),

		// Reranker
		RerankerEndpoint:  getEnv("RERANKER_ENDPOINT", ""),
		RerankerModel:     getEnv("RERANKER_MODEL", "cross-encoder/ms-marco-MiniLM-L-6-v2"),
		RerankerAPIKey:    getEnv("RERANKER_API_KEY", ""),
		RerankerTimeout:   getEnvInt("RERANKER_TIMEOUT", 30),
		RerankerBatchSize: getEnvInt("RERANKER_BATCH_SIZE", 32),

		// Citation verification
		FuzzyMatchThreshold:    getEnvFloat64("FUZZY_MATCH_THRESHOLD", 0.75),
		SemanticMatchThreshold: getEnvFloat64("SEMANTIC_MATCH_THRESHOLD", 0.80),
		ConfidenceFloor:        getEnvFloat64("CITATION_CONFIDENCE_FLOOR", 0.70),

		// Query cache
		CacheEnabled: getEnvBool("QUERY_CACHE_ENABLED", true),
		CacheTTL:     getEnvInt("QUERY_CACHE_TTL", 300),

		// Rate limiting
		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQS", 60),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		// Telemetry
		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),
	}

	// Validate required fields
	if cfg.ChunkOverlap >= cfg.BaseChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than BASE_CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.BaseChunkSize)
	}

	if cfg.BaseChunkSize <= 0 {
		return nil, fmt.Errorf("BASE_CHUNK_SIZE must be positive")
	}

	if cfg.EmbeddingsProvider == "google" && cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.EmbeddingsProvider == "openai" && cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required - set it in .env file")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
