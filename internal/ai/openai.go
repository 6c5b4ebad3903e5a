package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"context"

	"rag-knowledge-platform/internal/config"
)

// OpenAIProvider is an OpenAI-compatible embeddings and chat client. It also
// works against self-hosted OpenAI-compatible endpoints.
type OpenAIProvider struct {
	baseURL        string
	apiKey         string
	embeddingModel string
	chatModel      string
	dimension      int
	client         *http.Client
}

// NewOpenAIProvider builds a provider from configuration.
func NewOpenAIProvider(cfg *config.Config) (*OpenAIProvider, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	return &OpenAIProvider{
		baseURL:        "https://api.openai.com/v1",
		apiKey:         cfg.OpenAIAPIKey,
		embeddingModel: cfg.OpenAIEmbeddingsModel,
		chatModel:      "gpt-4o-mini",
		dimension:      cfg.VectorDimensions,
		client:         &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (o *OpenAIProvider) Name() string { return "openai" }

func (o *OpenAIProvider) Dimension() int { return o.dimension }

// EmbedBatch embeds all texts in one request, preserving input order.
func (o *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]any{
		"input": texts,
		"model": o.embeddingModel,
	}

	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := o.post(ctx, "/embeddings", reqBody, &out); err != nil {
		return nil, err
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(out.Data))
	}

	vectors := make([][]float32, len(texts))
	for _, item := range out.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

// Generate calls the chat completions endpoint with a single user message.
func (o *OpenAIProvider) Generate(ctx context.Context, prompt string, opts GenerationOptions) (string, error) {
	reqBody := map[string]any{
		"model":       o.chatModel,
		"temperature": opts.Temperature,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	if opts.MaxOutputTokens > 0 {
		reqBody["max_tokens"] = opts.MaxOutputTokens
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := o.post(ctx, "/chat/completions", reqBody, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty response from model %s", o.chatModel)
	}
	return out.Choices[0].Message.Content, nil
}

func (o *OpenAIProvider) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("openai returned status %d: %s", resp.StatusCode, string(payload))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
