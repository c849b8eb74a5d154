package server

import (
	"fableweaver/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPublicCharacters handles GET /api/characters?q=
func (s *Server) GetPublicCharacters(c *fiber.Ctx) error {
	p := parsePagination(c, 20)
	characters, total, err := s.characters.ListPublic(c.UserContext(), c.Query("q"), p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newPage(characters, total, p))
}

// GetMyCharacters handles GET /api/characters/mine
func (s *Server) GetMyCharacters(c *fiber.Ctx) error {
	p := parsePagination(c, 50)
	characters, err := s.characters.ListMine(c.UserContext(), currentUserID(c), p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(characters)
}

// GetNovelCharacters handles GET /api/novels/:id/characters
func (s *Server) GetNovelCharacters(c *fiber.Ctx) error {
	novelID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	cast, err := s.characters.ListForNovel(c.UserContext(), novelID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(cast)
}

// GetCharacter handles GET /api/characters/:id
func (s *Server) GetCharacter(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	character, err := s.characters.Get(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(character)
}

// CreateCharacter handles POST /api/characters
func (s *Server) CreateCharacter(c *fiber.Ctx) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Personality string `json:"personality"`
		Background  string `json:"background"`
		Appearance  string `json:"appearance"`
		IsPublic    bool   `json:"is_public"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	character, err := s.characters.Create(c.UserContext(), currentUserID(c), service.CharacterInput{
		Name:        req.Name,
		Description: req.Description,
		Personality: req.Personality,
		Background:  req.Background,
		Appearance:  req.Appearance,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(character)
}

// GenerateCharacter handles POST /api/characters/generate
func (s *Server) GenerateCharacter(c *fiber.Ctx) error {
	var req struct {
		Concept  string `json:"concept"`
		NovelID  *uint  `json:"novel_id"`
		IsPublic bool   `json:"is_public"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	character, err := s.characters.Generate(c.UserContext(), service.GenerateCharacterInput{
		UserID:   currentUserID(c),
		Concept:  req.Concept,
		NovelID:  req.NovelID,
		IsPublic: req.IsPublic,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(character)
}

// UpdateCharacter handles PATCH /api/characters/:id
func (s *Server) UpdateCharacter(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Personality *string `json:"personality"`
		Background  *string `json:"background"`
		Appearance  *string `json:"appearance"`
		IsPublic    *bool   `json:"is_public"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	character, err := s.characters.Update(c.UserContext(), currentUserID(c), id, service.UpdateCharacterInput{
		Name:        optional(req.Name),
		Description: optional(req.Description),
		Personality: optional(req.Personality),
		Background:  optional(req.Background),
		Appearance:  optional(req.Appearance),
		IsPublic:    optional(req.IsPublic),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(character)
}

// DeleteCharacter handles DELETE /api/characters/:id
func (s *Server) DeleteCharacter(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.characters.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UploadCharacterAvatar handles POST /api/characters/:id/avatar (multipart field "image")
func (s *Server) UploadCharacterAvatar(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	in, err := readUpload(c, "image", s.images.MaxUploadBytes())
	if err != nil {
		return nil
	}

	character, err := s.characters.UploadAvatar(c.UserContext(), currentUserID(c), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(character)
}
