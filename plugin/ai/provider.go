// Package ai wraps the OpenAI-compatible chat API used by the assistant.
package ai

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/nudgebot/nudge/internal/profile"
)

// Config holds the AI provider configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	ChatModel  string
	MaxRetries int
	Timeout    time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "https://api.openai.com/v1",
		APIKey:     "",
		ChatModel:  "gpt-4o-mini",
		MaxRetries: 3,
		Timeout:    30 * time.Second,
	}
}

// ChatCompleter is the surface the assistant depends on. Tests substitute
// a scripted implementation.
type ChatCompleter interface {
	ChatWithTools(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (*openai.ChatCompletionMessage, error)
}

// Provider performs chat completions against an OpenAI-compatible API.
type Provider struct {
	client *openai.Client
	config *Config
}

// NewProvider creates a new AI provider.
func NewProvider(cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	// Apply defaults for unset values
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Provider{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

// NewProviderFromProfile creates a provider from the server profile.
func NewProviderFromProfile(p *profile.Profile) (*Provider, error) {
	return NewProvider(&Config{
		BaseURL:    p.AIBaseURL,
		APIKey:     p.AIAPIKey,
		ChatModel:  p.AIChatModel,
		MaxRetries: 3,
		Timeout:    30 * time.Second,
	})
}

// Chat performs a plain chat completion and returns the reply text.
func (p *Provider) Chat(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	msg, err := p.ChatWithTools(ctx, messages, nil)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

// ChatWithTools performs a chat completion with the given tool definitions
// and returns the assistant message, which may carry tool calls.
func (p *Provider) ChatWithTools(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (*openai.ChatCompletionMessage, error) {
	var result *openai.ChatCompletionMessage
	err := p.doWithRetry(ctx, func() error {
		req := openai.ChatCompletionRequest{
			Model:    p.config.ChatModel,
			Messages: messages,
			Tools:    tools,
		}

		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty chat response")
		}
		result = &resp.Choices[0].Message
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to complete chat: %w", err)
	}
	return result, nil
}

// Validate checks the provider configuration.
func (p *Provider) Validate() error {
	if p.config.APIKey == "" {
		return fmt.Errorf("API key is required, set NUDGE_AI_API_KEY environment variable")
	}
	return nil
}

// doWithRetry executes a function with exponential backoff retry.
func (p *Provider) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			if attempt < p.config.MaxRetries-1 {
				waitTime := time.Duration(math.Pow(2, float64(attempt))) * time.Second
				slog.Debug("AI request failed, retrying",
					"attempt", attempt+1,
					"wait_time", waitTime,
					"error", err)
				select {
				case <-time.After(waitTime):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}

// Ensure Provider implements ChatCompleter
var _ ChatCompleter = (*Provider)(nil)
