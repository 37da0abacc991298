// Package llm provides the generative text capability used across the proposal pipeline.
package llm

import (
	"context"
	"fmt"
	"strings"
)

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Completer turns system instructions plus a user prompt into model text.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, system, prompt string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}

// Config selects and configures a provider.
type Config struct {
	Provider  string
	Gemini    GeminiConfig
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
}

// GeminiConfig holds Google Gemini settings.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int32
}

// OpenAIConfig holds OpenAI chat completion settings.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
}

// AnthropicConfig holds Anthropic Messages API settings.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int64
}

// New builds the completer for the configured provider.
func New(ctx context.Context, cfg Config) (Completer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderGemini:
		return NewGeminiClient(ctx, cfg.Gemini)
	case ProviderOpenAI:
		return NewOpenAIClient(cfg.OpenAI)
	case ProviderAnthropic:
		return NewAnthropicClient(cfg.Anthropic)
	default:
		return nil, fmt.Errorf("unknown ai provider %q (supported: gemini, openai, anthropic)", cfg.Provider)
	}
}
