package ai

import (
	"cmp"
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiGenerator implements Generator with the Gemini GenerateContent API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Gemini client for model (default gemini-2.5-flash).
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	return &GeminiGenerator{
		client: client,
		model:  cmp.Or(model, "gemini-2.5-flash"),
	}, nil
}

func (g *GeminiGenerator) Name() string { return "gemini" }

// Generate sends the prompt with the system text as the model instruction.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleModel),
		MaxOutputTokens:   int32(cmp.Or(req.MaxTokens, 1024)),
		Temperature:       genai.Ptr(float32(cmp.Or(req.Temperature, 0.8))),
	}
	if req.JSON || req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.User), cfg)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	text := result.Text()
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
