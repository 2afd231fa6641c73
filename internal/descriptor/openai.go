package descriptor

import (
	"context"
	"errors"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// OpenAIBackend embeds text items through the OpenAI embeddings API. Requests
// are throttled by a token bucket.
type OpenAIBackend struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

// NewOpenAIBackend creates a backend for model. baseURL may be empty.
// requestsPerSecond <= 0 disables throttling.
func NewOpenAIBackend(apiKey, baseURL, model string, requestsPerSecond float64) (*OpenAIBackend, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key not set")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	limit := rate.Inf
	burst := 1
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
		burst = max(1, int(requestsPerSecond))
	}
	return &OpenAIBackend{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		limiter: rate.NewLimiter(limit, burst),
	}, nil
}

func (b *OpenAIBackend) Name() string { return "openai-" + b.model }

func (b *OpenAIBackend) Accepts(contentType string) bool { return IsText(contentType) }

func (b *OpenAIBackend) Compute(ctx context.Context, items []Item) ([][]float32, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	input := make([]string, len(items))
	for i, it := range items {
		if len(it.Content) == 0 {
			return nil, fmt.Errorf("item %s has empty content", it.ID)
		}
		input[i] = string(it.Content)
	}

	resp, err := b.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(b.model),
		Input: input,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(items) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(items))
	}

	out := make([][]float32, len(items))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai returned embedding index %d out of range", d.Index)
		}
		v := make([]float32, len(d.Embedding))
		for i := range d.Embedding {
			v[i] = float32(d.Embedding[i])
		}
		l2normalize(v)
		out[d.Index] = v
	}
	return out, nil
}

func l2normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
