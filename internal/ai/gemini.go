package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"rag-knowledge-platform/internal/config"
)

// GeminiProvider backs both embedding and generation with the Google
// Generative AI SDK. Generation runs behind a circuit breaker and a rate
// limiter sized for the configured tier.
type GeminiProvider struct {
	client         *genai.Client
	embeddingModel string
	generModel     string
	dimension      int
	breaker        *gobreaker.CircuitBreaker
	rateLimiter    *rate.Limiter
}

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

// NewGeminiProvider builds a provider from configuration.
func NewGeminiProvider(ctx context.Context, cfg *config.Config) (*GeminiProvider, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	limits := getRateLimits(cfg.GeminiTier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), max(limits.RPM/10, 1))

	return &GeminiProvider{
		client:         client,
		embeddingModel: cfg.GoogleEmbeddingsModel,
		generModel:     cfg.GeminiModel,
		dimension:      cfg.VectorDimensions,
		breaker:        breaker,
		rateLimiter:    rateLimiter,
	}, nil
}

func (g *GeminiProvider) Name() string { return "google" }

func (g *GeminiProvider) Dimension() int { return g.dimension }

// EmbedBatch embeds all texts in one batched SDK call, preserving order.
func (g *GeminiProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	tracer := otel.Tracer("gemini-provider")
	ctx, span := tracer.Start(ctx, "gemini.embed_batch")
	defer span.End()

	span.SetAttributes(
		attribute.Int("gemini.batch_size", len(texts)),
		attribute.String("gemini.model", g.embeddingModel),
	)

	em := g.client.EmbeddingModel(g.embeddingModel)
	batch := em.NewBatch()
	for _, t := range texts {
		batch = batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		span.SetAttributes(attribute.Bool("gemini.error", true))
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}

	vectors := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}

// Generate produces a completion for the prompt with the configured model.
func (g *GeminiProvider) Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error) {
	tracer := otel.Tracer("gemini-provider")
	ctx, span := tracer.Start(ctx, "gemini.generate_content")
	defer span.End()

	span.SetAttributes(
		attribute.String("gemini.model", g.generModel),
		attribute.Int("gemini.prompt_chars", len(prompt)),
	)

	if err := g.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return "", err
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		model := g.client.GenerativeModel(g.generModel)
		model.SetTemperature(float32(opts.Temperature))
		if opts.MaxOutputTokens > 0 {
			model.SetMaxOutputTokens(int32(opts.MaxOutputTokens))
		}

		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			span.SetAttributes(attribute.Bool("gemini.error", true))
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
		}
		return "", err
	}

	resp := result.(*genai.GenerateContentResponse)
	text := extractResponseText(resp)
	if text == "" {
		return "", fmt.Errorf("empty response from model %s", g.generModel)
	}

	span.SetAttributes(attribute.Bool("gemini.success", true))
	return text, nil
}

// Close the underlying SDK client.
func (g *GeminiProvider) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func extractResponseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return sb.String()
}
