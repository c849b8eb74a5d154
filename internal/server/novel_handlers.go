package server

import (
	"fableweaver/internal/models"
	"fableweaver/internal/service"

	"github.com/gofiber/fiber/v2"
)

type novelRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Genre       string             `json:"genre"`
	Tags        []string           `json:"tags"`
	Status      models.NovelStatus `json:"status"`
	IsPublic    *bool              `json:"is_public"`
}

// GetLibrary handles GET /api/novels?genre=&status=&q=&sort=
func (s *Server) GetLibrary(c *fiber.Ctx) error {
	p := parsePagination(c, 20)
	novels, total, err := s.novels.Library(c.UserContext(), service.LibraryQuery{
		Genre:  c.Query("genre"),
		Status: models.NovelStatus(c.Query("status")),
		Query:  c.Query("q"),
		Sort:   c.Query("sort"),
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newPage(novels, total, p))
}

// GetMyNovels handles GET /api/novels/mine
func (s *Server) GetMyNovels(c *fiber.Ctx) error {
	p := parsePagination(c, 20)
	novels, total, err := s.novels.ListMine(c.UserContext(), currentUserID(c), p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newPage(novels, total, p))
}

// GetNovel handles GET /api/novels/:id. Authors also see their unlisted novels.
func (s *Server) GetNovel(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	detail, err := s.novels.Get(c.UserContext(), s.optionalUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail)
}

// CreateNovel handles POST /api/novels
func (s *Server) CreateNovel(c *fiber.Ctx) error {
	var req novelRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	novel, err := s.novels.Create(c.UserContext(), currentUserID(c), service.NovelInput{
		Title:       req.Title,
		Description: req.Description,
		Genre:       req.Genre,
		Tags:        req.Tags,
		Status:      req.Status,
		IsPublic:    req.IsPublic == nil || *req.IsPublic,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(novel)
}

// UpdateNovel handles PATCH /api/novels/:id
func (s *Server) UpdateNovel(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Title       *string             `json:"title"`
		Description *string             `json:"description"`
		Genre       *string             `json:"genre"`
		Tags        *[]string           `json:"tags"`
		Status      *models.NovelStatus `json:"status"`
		IsPublic    *bool               `json:"is_public"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	novel, err := s.novels.Update(c.UserContext(), currentUserID(c), id, service.UpdateNovelInput{
		Title:       optional(req.Title),
		Description: optional(req.Description),
		Genre:       optional(req.Genre),
		Tags:        optional(req.Tags),
		Status:      optional(req.Status),
		IsPublic:    optional(req.IsPublic),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(novel)
}

// DeleteNovel handles DELETE /api/novels/:id
func (s *Server) DeleteNovel(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.novels.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UploadNovelCover handles POST /api/novels/:id/cover (multipart field "image")
func (s *Server) UploadNovelCover(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	in, err := readUpload(c, "image", s.images.MaxUploadBytes())
	if err != nil {
		return nil
	}

	novel, err := s.novels.UploadCover(c.UserContext(), currentUserID(c), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(novel)
}

// GetRecommendations handles GET /api/recommendations
func (s *Server) GetRecommendations(c *fiber.Ctx) error {
	feed, err := s.recommendations.Feed(c.UserContext(), currentUserID(c), c.QueryInt("limit", 20))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(feed)
}
