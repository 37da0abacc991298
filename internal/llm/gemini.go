package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

type schemaKey struct{}

// WithResponseSchema attaches a structured output schema to calls made with ctx.
// Providers without schema support ignore it.
func WithResponseSchema(ctx context.Context, schema *genai.Schema) context.Context {
	return context.WithValue(ctx, schemaKey{}, schema)
}

func responseSchema(ctx context.Context) *genai.Schema {
	schema, _ := ctx.Value(schemaKey{}).(*genai.Schema)
	return schema
}

// GeminiClient calls Gemini through the google.golang.org/genai SDK.
type GeminiClient struct {
	gClient     *genai.Client
	modelName   string
	temperature float32
	maxTokens   int32
}

// NewGeminiClient creates a Gemini-backed completer.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY environment variable or ai.gemini.api_key in config file")
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultGeminiModel
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		gClient:     gClient,
		modelName:   modelName,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Complete sends the prompt with JSON output requested, constrained to the context's schema when set.
func (c *GeminiClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if schema := responseSchema(ctx); schema != nil {
		config.ResponseSchema = schema
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if c.maxTokens > 0 {
		config.MaxOutputTokens = c.maxTokens
	}
	if c.temperature > 0 {
		temp := c.temperature
		config.Temperature = &temp
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from LLM")
	}
	return text, nil
}
