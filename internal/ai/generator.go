// Package ai wraps the language model providers used for chat replies,
// chapter and character generation, and recommendation re-ranking.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fableweaver/internal/config"
)

// Operation labels a model call for metrics, spans and logs.
type Operation string

const (
	OpChatReply Operation = "chat_reply"
	OpChapter   Operation = "chapter"
	OpCharacter Operation = "character"
	OpRerank    Operation = "rerank"
)

// ErrEmptyCompletion is returned when a provider answers with no text.
var ErrEmptyCompletion = errors.New("empty completion content")

// Request is a single prompt sent to a Generator.
type Request struct {
	Operation   Operation
	System      string
	User        string
	JSON        bool
	Schema      *Schema
	MaxTokens   int
	Temperature float64
}

// Generator produces text completions.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
	Name() string
}

// NewGenerator builds the provider selected by cfg.AIProvider. Without an API key
// it returns a Generator that always fails, so AI features degrade instead of
// preventing startup.
func NewGenerator(ctx context.Context, cfg *config.Config) (Generator, error) {
	timeout := cfg.AIRequestTimeout
	switch strings.ToLower(cfg.AIProvider) {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return unavailableGenerator{name: "gemini"}, nil
		}
		g, err := NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("init gemini: %w", err)
		}
		return withInstrumentation(g, timeout), nil
	case "", "openai":
		if cfg.OpenAIAPIKey == "" {
			return unavailableGenerator{name: "openai"}, nil
		}
		return withInstrumentation(NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL), timeout), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider %q", cfg.AIProvider)
	}
}

type unavailableGenerator struct {
	name string
}

func (u unavailableGenerator) Name() string { return u.name }

func (u unavailableGenerator) Generate(context.Context, Request) (string, error) {
	return "", fmt.Errorf("%s provider is not configured", u.name)
}

// withTimeout derives a per-call deadline from ctx.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
