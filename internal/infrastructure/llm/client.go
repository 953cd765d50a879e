package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/allergenlens/backend/internal/domain"
	"github.com/allergenlens/backend/internal/logger"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "openai/gpt-4o-mini"
)

// Config holds the chat completion client settings
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client talks to an OpenAI-compatible /chat/completions endpoint
type Client struct {
	httpClient  *http.Client
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	logger      *zap.Logger
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string                 `json:"name"`
	Schema map[string]interface{} `json:"schema"`
	Strict bool                   `json:"strict"`
}

type response struct {
	ID      string   `json:"id"`
	Choices []choice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// NewClient creates a new chat completion client
func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		endpoint:    strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger.OrNop(log).Named("llm"),
	}
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

// Complete sends a system + user exchange and returns the first choice's text
func (c *Client) Complete(ctx context.Context, req domain.ChatRequest) (string, error) {
	body := request{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
	if req.JSONSchema != nil {
		name := req.SchemaName
		if name == "" {
			name = "response"
		}
		body.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchema{Name: name, Schema: req.JSONSchema},
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrLLMFailure, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", domain.ErrLLMFailure, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrLLMFailure, resp.StatusCode, truncate(string(respBody), 300))
	}

	var parsed response
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: unmarshal response: %v", domain.ErrLLMFailure, err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrLLMFailure, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", domain.ErrLLMFailure)
	}

	c.logger.Debug("chat completion",
		zap.String("model", c.model),
		zap.Duration("latency", time.Since(start)),
		zap.String("finish_reason", parsed.Choices[0].FinishReason))

	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
