package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"fableweaver/internal/ai"
	"fableweaver/internal/config"
	"fableweaver/internal/models"
)

const defaultAudioMaxMB = 25

var allowedAudioExts = map[string]struct{}{
	".flac": {}, ".m4a": {}, ".mp3": {}, ".mp4": {}, ".mpeg": {},
	".mpga": {}, ".oga": {}, ".ogg": {}, ".wav": {}, ".webm": {},
}

// TranscribeInput is one uploaded audio clip.
type TranscribeInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
}

// TranscriptionService turns dictated audio into text for the editor.
type TranscriptionService struct {
	transcriber ai.Transcriber
	maxBytes    int64
}

// NewTranscriptionService accepts a nil transcriber; every call then fails
// with AI_UNAVAILABLE.
func NewTranscriptionService(transcriber ai.Transcriber, cfg *config.Config) *TranscriptionService {
	maxMB := defaultAudioMaxMB
	if cfg != nil && cfg.AudioMaxUploadSizeMB > 0 {
		maxMB = cfg.AudioMaxUploadSizeMB
	}
	return &TranscriptionService{transcriber: transcriber, maxBytes: int64(maxMB) << 20}
}

// MaxUploadBytes is the largest accepted clip.
func (s *TranscriptionService) MaxUploadBytes() int64 { return s.maxBytes }

func (s *TranscriptionService) Transcribe(ctx context.Context, in TranscribeInput) (string, error) {
	if len(in.Content) == 0 {
		return "", models.NewValidationError("Audio file is required")
	}
	if int64(len(in.Content)) > s.maxBytes {
		return "", models.NewValidationError(fmt.Sprintf("Audio too large (max %dMB)", s.maxBytes>>20))
	}
	filename, contentType, err := audioName(in)
	if err != nil {
		return "", err
	}
	if s.transcriber == nil {
		return "", models.NewAIUnavailableError("Transcription is not configured", nil)
	}

	text, err := s.transcriber.Transcribe(ctx, bytes.NewReader(in.Content), filename, contentType)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		slog.WarnContext(ctx, "transcription failed",
			slog.Uint64("user_id", uint64(in.UserID)),
			slog.Int("bytes", len(in.Content)),
			slog.String("error", err.Error()))
		return "", models.NewAIUnavailableError("Transcription failed", err)
	}
	return strings.TrimSpace(text), nil
}

// audioName picks a filename whose extension the provider accepts. The
// provider infers the format from it.
func audioName(in TranscribeInput) (string, string, error) {
	detected := http.DetectContentType(in.Content)
	contentType := in.ContentType
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}
	if !strings.HasPrefix(contentType, "audio/") && !strings.HasPrefix(contentType, "video/") {
		contentType = detected
	}

	ext := strings.ToLower(filepath.Ext(in.Filename))
	if _, ok := allowedAudioExts[ext]; !ok {
		ext = extForAudioType(contentType)
	}
	if ext == "" {
		return "", "", models.NewValidationError("Unsupported audio format")
	}
	base := strings.TrimSuffix(filepath.Base(in.Filename), filepath.Ext(in.Filename))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "recording"
	}
	return base + ext, contentType, nil
}

func extForAudioType(contentType string) string {
	switch contentType {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/wave", "audio/x-wav":
		return ".wav"
	case "audio/webm", "video/webm":
		return ".webm"
	case "audio/ogg", "application/ogg":
		return ".ogg"
	case "audio/mp4", "audio/x-m4a", "video/mp4":
		return ".m4a"
	case "audio/flac", "audio/x-flac":
		return ".flac"
	default:
		return ""
	}
}
