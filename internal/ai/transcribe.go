package ai

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"time"

	"fableweaver/internal/config"
	"fableweaver/internal/observability"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Transcriber converts speech audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename, contentType string) (string, error)
}

// OpenAITranscriber uses the OpenAI audio transcription endpoint.
type OpenAITranscriber struct {
	client *openai.Client
	model  string
}

// NewOpenAITranscriber creates a transcriber for model (default whisper-1).
func NewOpenAITranscriber(apiKey, model, baseURL string) *OpenAITranscriber {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAITranscriber{client: &client, model: cmp.Or(model, openai.AudioModelWhisper1)}
}

func (o *OpenAITranscriber) Transcribe(ctx context.Context, audio io.Reader, filename, contentType string) (string, error) {
	start := time.Now()
	res, err := o.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(audio, filename, contentType),
		Model: openai.AudioModel(o.model),
	})
	observability.ObserveAI("openai", "transcribe", start, err)
	if err != nil {
		return "", fmt.Errorf("openai transcription error: %w", err)
	}
	return res.Text, nil
}

// NewTranscriber returns the OpenAI transcriber, or nil when no OpenAI key is
// configured. Transcription is OpenAI-only regardless of AI_PROVIDER.
func NewTranscriber(cfg *config.Config) Transcriber {
	if cfg == nil || cfg.OpenAIAPIKey == "" {
		return nil
	}
	return NewOpenAITranscriber(cfg.OpenAIAPIKey, cfg.OpenAITranscribeModel, cfg.OpenAIBaseURL)
}
