package server

import (
	"fableweaver/internal/models"
	"fableweaver/internal/service"

	"github.com/gofiber/fiber/v2"
)

// parseCommentKind reads the :kind route param ("chapter" or "novel").
func parseCommentKind(c *fiber.Ctx) (models.CommentKind, error) {
	kind := models.CommentKind(c.Params("kind"))
	if kind != models.CommentKindChapter && kind != models.CommentKindNovel {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("kind must be chapter or novel"))
		return "", errResponseWritten
	}
	return kind, nil
}

// GetChapterComments handles GET /api/chapters/:id/comments
func (s *Server) GetChapterComments(c *fiber.Ctx) error {
	chapterID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	p := parsePagination(c, 50)
	comments, err := s.comments.ListChapterComments(c.UserContext(), chapterID, p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comments)
}

// CreateChapterComment handles POST /api/chapters/:id/comments
func (s *Server) CreateChapterComment(c *fiber.Ctx) error {
	chapterID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.comments.CreateChapterComment(c.UserContext(), service.CreateChapterCommentInput{
		UserID:    currentUserID(c),
		ChapterID: chapterID,
		Content:   req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// GetNovelComments handles GET /api/novels/:id/comments
func (s *Server) GetNovelComments(c *fiber.Ctx) error {
	novelID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	p := parsePagination(c, 50)
	comments, err := s.comments.ListNovelComments(c.UserContext(), novelID, p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comments)
}

// CreateNovelComment handles POST /api/novels/:id/comments
func (s *Server) CreateNovelComment(c *fiber.Ctx) error {
	novelID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
		Rating  int    `json:"rating"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.comments.CreateNovelComment(c.UserContext(), service.CreateNovelCommentInput{
		UserID:  currentUserID(c),
		NovelID: novelID,
		Content: req.Content,
		Rating:  req.Rating,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// DeleteComment handles DELETE /api/comments/:kind/:id
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	kind, err := parseCommentKind(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.comments.DeleteComment(c.UserContext(), currentUserID(c), kind, id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
