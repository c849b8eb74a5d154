package server

import (
	"fableweaver/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SearchImages handles GET /api/images/search?q=. An unconfigured provider
// yields an empty list.
func (s *Server) SearchImages(c *fiber.Ctx) error {
	results, err := s.imageSearch.Search(c.UserContext(), c.Query("q"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"results": results,
		"enabled": s.imageSearch.Enabled(),
	})
}

// Transcribe handles POST /api/transcribe (multipart field "audio")
func (s *Server) Transcribe(c *fiber.Ctx) error {
	upload, err := readUpload(c, "audio", s.transcription.MaxUploadBytes())
	if err != nil {
		return nil
	}

	text, err := s.transcription.Transcribe(c.UserContext(), service.TranscribeInput{
		UserID:      upload.UserID,
		Filename:    upload.Filename,
		ContentType: upload.ContentType,
		Content:     upload.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"text": text})
}
