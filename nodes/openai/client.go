package openai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openailib "github.com/sashabaranov/go-openai"
)

// Config holds OpenAI-compatible completion settings.
type Config struct {
	APIKey      string
	BaseURL     string // default https://api.openai.com/v1; any compatible endpoint works
	Model       string
	Temperature *float32
	MaxTokens   int
	MaxRetries  int
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("LLM API key is required")
	}
	if c.Model == "" {
		return fmt.Errorf("LLM model cannot be empty")
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0.0 and 2.0, got %f", *c.Temperature)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative, got %d", c.MaxRetries)
	}
	return nil
}

// Client completes prompts through the chat completions API.
type Client struct {
	client *openailib.Client
	config Config
	log    *slog.Logger
}

func NewClient(cfg Config, log *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	clientConfig := openailib.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return &Client{
		client: openailib.NewClientWithConfig(clientConfig),
		config: cfg,
		log:    log.With(slog.String("component", "llm")),
	}, nil
}

func (c *Client) Model() string { return c.config.Model }

// Complete sends prompt as a single user message and returns the first
// choice's content.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	req := openailib.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: []openailib.ChatCompletionMessage{{Role: openailib.ChatMessageRoleUser, Content: prompt}},
	}
	if c.config.Temperature != nil {
		req.Temperature = *c.config.Temperature
	}
	if c.config.MaxTokens > 0 {
		req.MaxTokens = c.config.MaxTokens
	}

	var resp openailib.ChatCompletionResponse
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		resp, lastErr = c.client.CreateChatCompletion(ctx, req)
		if lastErr == nil {
			break
		}
		if attempt < c.config.MaxRetries {
			wait := time.Duration(attempt+1) * time.Second
			c.log.Warn("completion failed, retrying", slog.Int("attempt", attempt+1), slog.Duration("wait", wait), slog.Any("err", lastErr))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("completion failed after %d retries: %w", c.config.MaxRetries, lastErr)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from LLM")
	}
	return resp.Choices[0].Message.Content, nil
}
