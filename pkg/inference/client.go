// Package inference sends a smoke request to a served model's
// OpenAI-compatible endpoint and reports latency and token usage.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultPrompt keeps the round trip cheap while still producing tokens.
	DefaultPrompt = "Reply with one short sentence: which model are you?"

	// DefaultMaxTokens caps the completion so a smoke check stays fast.
	DefaultMaxTokens = 64

	defaultTimeout = 120 * time.Second
)

// ChatMessage is one turn of an OpenAI-style conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of a /v1/chat/completions call.
type ChatRequest struct {
	Model     string        `json:"model"`
	Messages  []ChatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

// ChatChoice is one candidate completion.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// Usage carries the token accounting reported by the server.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the body of a successful completion.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   *Usage       `json:"usage,omitempty"`
}

// Client talks to one served model endpoint.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	counter    *TokenCounter
}

// NewClient creates a client for the OpenAI-compatible API rooted at baseURL
// (typically the InferenceService route). model is the served model id.
func NewClient(baseURL, model string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: defaultTimeout},
		counter:    NewTokenCounter(),
	}
}

// Health reports whether the endpoint answers its health probe. vLLM returns
// 503 while the model is still loading.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health probe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health probe returned %s", resp.Status)
	}
	return nil
}

// Chat posts one completion request and decodes the response.
func (c *Client) Chat(ctx context.Context, messages []ChatMessage, maxTokens int) (*ChatResponse, error) {
	body, err := json.Marshal(ChatRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat completion returned %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	var parsed ChatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	return &parsed, nil
}

// Report is the outcome of one smoke check.
type Report struct {
	Model            string  `json:"model"`
	Reply            string  `json:"reply"`
	LatencySeconds   float64 `json:"latency_seconds"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	UsageEstimated   bool    `json:"usage_estimated"`

	Latency time.Duration `json:"-"`
}

// Smoke sends one prompt and reports the round trip. When the server omits
// usage accounting, token counts are estimated locally.
func (c *Client) Smoke(ctx context.Context, prompt string) (*Report, error) {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	messages := []ChatMessage{{Role: "user", Content: prompt}}

	start := time.Now()
	resp, err := c.Chat(ctx, messages, DefaultMaxTokens)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start)

	report := &Report{
		Model:          resp.Model,
		Latency:        latency,
		LatencySeconds: latency.Seconds(),
	}
	if len(resp.Choices) > 0 {
		report.Reply = resp.Choices[0].Message.Content
	}

	if resp.Usage != nil {
		report.PromptTokens = resp.Usage.PromptTokens
		report.CompletionTokens = resp.Usage.CompletionTokens
		report.TotalTokens = resp.Usage.TotalTokens
	} else {
		report.UsageEstimated = true
		report.PromptTokens = c.counter.CountMessages(messages)
		report.CompletionTokens = c.counter.Count(report.Reply)
		report.TotalTokens = report.PromptTokens + report.CompletionTokens
	}
	return report, nil
}
