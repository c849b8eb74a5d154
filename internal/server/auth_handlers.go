package server

import (
	"log/slog"
	"time"

	"fableweaver/internal/cache"
	"fableweaver/internal/middleware"
	"fableweaver/internal/models"
	"fableweaver/internal/service"

	"github.com/gofiber/fiber/v2"
)

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Signup handles POST /api/auth/signup
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.users.Signup(c.UserContext(), service.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}

	token, err := s.generateToken(user)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}

	slog.InfoContext(c.UserContext(), "user signed up", slog.Uint64("user_id", uint64(user.ID)))
	return c.Status(fiber.StatusCreated).JSON(authResponse{Token: token, User: user})
}

// Login handles POST /api/auth/login
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.users.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	token, err := s.generateToken(user)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}

	return c.JSON(authResponse{Token: token, User: user})
}

// Refresh handles POST /api/auth/refresh. The presented token is revoked and
// a fresh one returned.
func (s *Server) Refresh(c *fiber.Ctx) error {
	user, _ := c.Locals(localUser).(*models.User)
	if user == nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization required"))
	}

	token, err := s.generateToken(user)
	if err != nil {
		return respondError(c, models.NewInternalError(err))
	}
	s.revokeCurrentToken(c)

	return c.JSON(authResponse{Token: token, User: user})
}

// Logout handles POST /api/auth/logout
func (s *Server) Logout(c *fiber.Ctx) error {
	s.revokeCurrentToken(c)
	return c.SendStatus(fiber.StatusNoContent)
}

// IssueWSTicket handles POST /api/ws/ticket
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	ticket, err := cache.IssueWSTicket(c.UserContext(), currentUserID(c))
	if err != nil {
		if err == cache.ErrNoRedis {
			return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
				Error: "Realtime updates are unavailable",
			})
		}
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"ticket":     ticket,
		"expires_in": int(cache.WSTicketTTL / time.Second),
	})
}

func (s *Server) revokeCurrentToken(c *fiber.Ctx) {
	claims := currentClaims(c)
	if claims == nil || claims.JTI == "" {
		return
	}
	if err := cache.RevokeToken(c.UserContext(), claims.JTI, time.Until(claims.ExpiresAt)); err != nil {
		slog.WarnContext(c.UserContext(), "failed to revoke token", slog.String("error", err.Error()))
	}
}

// generateToken creates a JWT token for user
func (s *Server) generateToken(user *models.User) (string, error) {
	return middleware.IssueToken(s.config.JWTSecret, user.ID, user.Username, middleware.TokenTTL)
}
