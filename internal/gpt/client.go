// Package gpt talks to an OpenAI-compatible chat-completions endpoint.
// The coach uses it to understand free-form progress reports the keyword
// parser gives up on.
package gpt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
)

// Environment variables holding the endpoint credentials.
const (
	EnvChatKey      = "GPT_CHAT_KEY"
	EnvChatEndpoint = "GPT_CHAT_ENDPOINT"
)

// Role constants.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single plain-text chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type payload struct {
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
	Model          string          `json:"model,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type apiResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithModel sets the model name. Azure deployments leave it empty.
func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) ClientOption {
	return func(c *Client) { c.temperature = t }
}

// WithMaxTokens sets the response token limit.
func WithMaxTokens(n int) ClientOption {
	return func(c *Client) { c.maxTokens = n }
}

// WithHTTPTimeout sets the HTTP client timeout.
func WithHTTPTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// Client sends chat-completion requests.
type Client struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	http        *http.Client
	log         *logger.Logger
}

// NewClient creates a chat client. endpoint is the full chat/completions
// URL, e.g. an Azure OpenAI deployment with its api-version query.
func NewClient(endpoint, apiKey string, log *logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:    endpoint,
		apiKey:      apiKey,
		temperature: 0,
		maxTokens:   120,
		http:        &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ChatJSON sends messages asking for a JSON object reply and returns the
// raw reply text.
func (c *Client) ChatJSON(ctx context.Context, messages []Message) (string, error) {
	body := payload{
		Messages:       messages,
		Temperature:    c.temperature,
		MaxTokens:      c.maxTokens,
		Model:          c.model,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("gpt: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("gpt: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.log.Debug("POST %s (%d bytes)", c.endpoint, len(data))
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gpt: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("gpt: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gpt: API %s: %s", resp.Status, truncate(string(raw), 200))
	}

	var result apiResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("gpt: unmarshal response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("gpt: empty response (no choices)")
	}

	reply := result.Choices[0].Message.Content
	c.log.Debug("reply in %s: %s", time.Since(start).Round(time.Millisecond), truncate(reply, 120))
	return reply, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
