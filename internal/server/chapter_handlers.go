package server

import (
	"fableweaver/internal/models"
	"fableweaver/internal/service"

	"github.com/gofiber/fiber/v2"
)

type chapterRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Summary string `json:"summary"`
}

func (r chapterRequest) input() service.ChapterInput {
	return service.ChapterInput{Title: r.Title, Content: r.Content, Summary: r.Summary}
}

// parseChapterRef reads the :id and :number params shared by chapter routes.
func (s *Server) parseChapterRef(c *fiber.Ctx) (uint, int, error) {
	novelID, err := s.parseID(c, "id")
	if err != nil {
		return 0, 0, err
	}
	number, err := s.parseID(c, "number")
	if err != nil {
		return 0, 0, err
	}
	return novelID, int(number), nil
}

// GetChapters handles GET /api/novels/:id/chapters
func (s *Server) GetChapters(c *fiber.Ctx) error {
	novelID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	chapters, err := s.chapters.List(c.UserContext(), s.optionalUserID(c), novelID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(chapters)
}

// ReadChapter handles GET /api/novels/:id/chapters/:number
func (s *Server) ReadChapter(c *fiber.Ctx) error {
	novelID, number, err := s.parseChapterRef(c)
	if err != nil {
		return nil
	}

	chapter, err := s.chapters.Read(c.UserContext(), s.optionalUserID(c), novelID, number)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(chapter)
}

// CreateChapter handles POST /api/novels/:id/chapters
func (s *Server) CreateChapter(c *fiber.Ctx) error {
	novelID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req chapterRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	chapter, err := s.chapters.Create(c.UserContext(), currentUserID(c), novelID, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(chapter)
}

// UpdateChapter handles PUT /api/novels/:id/chapters/:number
func (s *Server) UpdateChapter(c *fiber.Ctx) error {
	novelID, number, err := s.parseChapterRef(c)
	if err != nil {
		return nil
	}
	var req chapterRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	chapter, err := s.chapters.Update(c.UserContext(), currentUserID(c), novelID, number, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(chapter)
}

// GetChapterRevisions handles GET /api/novels/:id/chapters/:number/revisions
func (s *Server) GetChapterRevisions(c *fiber.Ctx) error {
	novelID, number, err := s.parseChapterRef(c)
	if err != nil {
		return nil
	}

	revisions, err := s.chapters.Revisions(c.UserContext(), currentUserID(c), novelID, number)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(revisions)
}

// DiffChapter handles GET /api/novels/:id/chapters/:number/diff?from=&to=.
// Without "to" the revision is compared with the current text.
func (s *Server) DiffChapter(c *fiber.Ctx) error {
	novelID, number, err := s.parseChapterRef(c)
	if err != nil {
		return nil
	}

	from := c.QueryInt("from")
	if from <= 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("from must be a revision ID"))
	}
	var to *uint
	if raw := c.QueryInt("to"); raw > 0 {
		id := uint(raw)
		to = &id
	}

	diff, err := s.chapters.Diff(c.UserContext(), currentUserID(c), novelID, number, uint(from), to)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(diff)
}

// GenerateChapter handles POST /api/novels/:id/chapters/generate
func (s *Server) GenerateChapter(c *fiber.Ctx) error {
	novelID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Prompt    string `json:"prompt"`
		TitleHint string `json:"title_hint"`
		WordCount int    `json:"word_count"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	generated, err := s.chapters.Generate(c.UserContext(), service.GenerateChapterInput{
		NovelID:   novelID,
		UserID:    currentUserID(c),
		Prompt:    req.Prompt,
		TitleHint: req.TitleHint,
		WordCount: req.WordCount,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(generated)
}
