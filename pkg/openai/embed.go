// Package openai provides HTTP clients for the OpenAI embeddings and chat
// completion APIs.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/CoachingAI/coaching-mvp/engine/domain"
	"golang.org/x/time/rate"
)

// DefaultEmbedModel matches the model used at ingestion time. Queries and
// passages must share it for retrieval to stay embedding-space consistent.
const DefaultEmbedModel = "text-embedding-3-large"

// EmbedClient calls the OpenAI embeddings endpoint.
type EmbedClient struct {
	baseURL string
	apiKey  string
	model   string
	limiter *rate.Limiter
	client  *http.Client
}

// NewEmbedClient creates an embeddings client. An empty model selects
// DefaultEmbedModel; an empty baseURL selects the public API.
func NewEmbedClient(baseURL, apiKey, model string) *EmbedClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = DefaultEmbedModel
	}
	return &EmbedClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 5),
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedBatch embeds texts in a single call, returning one vector per input
// in input order. Any failure fails the whole batch.
func (c *EmbedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, _ := json.Marshal(embedRequest{Model: c.model, Input: texts})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w: %w", domain.ErrEmbeddingService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai embed: %w: status %d", domain.ErrEmbeddingService, resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("openai embed decode: %w: %w", domain.ErrEmbeddingService, err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: %w: got %d vectors for %d inputs",
			domain.ErrEmbeddingService, len(result.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai embed: %w: index %d out of range", domain.ErrEmbeddingService, d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
