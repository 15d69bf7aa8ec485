package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/CoachingAI/coaching-mvp/engine/domain"
	"github.com/CoachingAI/coaching-mvp/pkg/resilience"
	"golang.org/x/time/rate"
)

// DefaultChatModel is the completion model used for answers.
const DefaultChatModel = "gpt-5"

// Message is one entry of a chat completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatClient calls the OpenAI chat completions endpoint behind a circuit
// breaker.
type ChatClient struct {
	baseURL string
	apiKey  string
	model   string
	limiter *rate.Limiter
	breaker *resilience.Breaker
	client  *http.Client
}

// NewChatClient creates a chat completion client.
func NewChatClient(baseURL, apiKey, model string) *ChatClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 3),
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Complete sends the full conversation in a single call and returns the
// assistant's reply text.
func (c *ChatClient) Complete(ctx context.Context, messages []Message) (string, error) {
	var reply string
	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		reply, err = c.complete(ctx, messages)
		return err
	})
	return reply, err
}

func (c *ChatClient) complete(ctx context.Context, messages []Message) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, _ := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai chat: %w: %w", domain.ErrCompletionService, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai chat: %w: status %d", domain.ErrCompletionService, resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("openai chat decode: %w: %w", domain.ErrCompletionService, err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai chat: %w: empty choices", domain.ErrCompletionService)
	}
	return result.Choices[0].Message.Content, nil
}
