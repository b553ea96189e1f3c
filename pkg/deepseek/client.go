// Package deepseek is a client for DeepSeek's OpenAI-compatible chat
// completions endpoint.
package deepseek

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.deepseek.com/v1"
	DefaultModel   = "deepseek-chat"

	// PlaceholderKey ships in example env files and counts as no key.
	PlaceholderKey = "your_deepseek_api_key_here"
)

var (
	ErrUnauthorized  = errors.New("deepseek: invalid API key")
	ErrRateLimited   = errors.New("deepseek: rate limit exceeded")
	ErrServer        = errors.New("deepseek: server error")
	ErrEmptyResponse = errors.New("deepseek: empty response")
	ErrMalformed     = errors.New("deepseek: invalid response format")
	ErrDisabled      = errors.New("deepseek: API key not configured")
)

// StatusError is a non-200 reply. It matches ErrUnauthorized, ErrRateLimited
// or ErrServer through errors.Is depending on the code.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("deepseek: status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Code == http.StatusUnauthorized
	case ErrRateLimited:
		return e.Code == http.StatusTooManyRequests
	case ErrServer:
		return e.Code >= 500
	}
	return false
}

// Config holds connection and sampling settings.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		Model:       DefaultModel,
		Temperature: 0.1,
		MaxTokens:   500,
		Timeout:     30 * time.Second,
	}
}

// Enabled reports whether a usable API key is configured.
func (c Config) Enabled() bool {
	return c.APIKey != "" && c.APIKey != PlaceholderKey
}

// Message is one role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Client calls /chat/completions. It makes exactly one request per call;
// retrying is the caller's business.
type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

func (c *Client) Enabled() bool { return c.cfg.Enabled() }

// Timeout is the configured per-request timeout.
func (c *Client) Timeout() time.Duration { return c.cfg.Timeout }

// Model is the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// Complete sends messages and returns the trimmed content of the first choice.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	return c.complete(ctx, chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
}

func (c *Client) complete(ctx context.Context, body chatRequest) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepseek: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(out.Choices) == 0 {
		return "", ErrMalformed
	}
	text := strings.TrimSpace(out.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Health is the result of a backend probe.
type Health struct {
	Status        string `json:"status"` // healthy, disabled or error
	Message       string `json:"message"`
	APIAccessible bool   `json:"api_accessible"`
	Model         string `json:"model,omitempty"`
}

// HealthCheck sends a tiny completion with a third of the normal timeout.
func (c *Client) HealthCheck(ctx context.Context) Health {
	if !c.Enabled() {
		return Health{Status: "disabled", Message: "API key not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout/3)
	defer cancel()

	_, err := c.complete(ctx, chatRequest{
		Model: c.cfg.Model,
		Messages: []Message{
			{Role: "system", Content: "You are a helpful assistant."},
			{Role: "user", Content: "Say 'Hello' if you can hear me."},
		},
		MaxTokens: 10,
	})
	var se *StatusError
	switch {
	case err == nil, errors.Is(err, ErrEmptyResponse):
		return Health{Status: "healthy", Message: "API is accessible and responsive", APIAccessible: true, Model: c.cfg.Model}
	case errors.Is(err, ErrMalformed):
		return Health{Status: "error", Message: "Invalid response format", APIAccessible: true}
	case errors.As(err, &se):
		return Health{Status: "error", Message: fmt.Sprintf("API returned status %d", se.Code)}
	default:
		return Health{Status: "error", Message: "Health check failed: " + err.Error()}
	}
}
