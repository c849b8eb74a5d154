package server

import (
	"strings"

	"fableweaver/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.users.GetUserByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PATCH /api/users/me
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		Username *string `json:"username"`
		Bio      *string `json:"bio"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.users.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:   currentUserID(c),
		Username: optional(req.Username),
		Bio:      optional(req.Bio),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// UploadMyAvatar handles POST /api/users/me/avatar (multipart field "image")
func (s *Server) UploadMyAvatar(c *fiber.Ctx) error {
	in, err := readUpload(c, "image", s.images.MaxUploadBytes())
	if err != nil {
		return nil
	}

	user, err := s.users.UploadAvatar(c.UserContext(), currentUserID(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// SearchUsers handles GET /api/users/search?q=
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	p := parsePagination(c, 20)
	users, err := s.users.Search(c.UserContext(), strings.TrimSpace(c.Query("q")), p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}

// GetUserProfile handles GET /api/users/:id. Email is only shown to the owner.
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.users.GetUserByID(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	profile := *user
	if profile.ID != currentUserID(c) {
		profile.Email = ""
	}
	return c.JSON(profile)
}
