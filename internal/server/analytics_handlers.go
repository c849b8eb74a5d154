package server

import (
	"github.com/gofiber/fiber/v2"
)

// GetAdminDashboard handles GET /api/admin/dashboard. Sections that failed are
// listed under "warnings"; the rest of the payload is still served.
func (s *Server) GetAdminDashboard(c *fiber.Ctx) error {
	dashboard, err := s.analytics.Dashboard(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dashboard)
}

// GetUserAnalytics handles GET /api/admin/analytics/users
func (s *Server) GetUserAnalytics(c *fiber.Ctx) error {
	users, err := s.analytics.Users(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}

// GetGroupAnalytics handles GET /api/admin/analytics/groups
func (s *Server) GetGroupAnalytics(c *fiber.Ctx) error {
	return c.JSON(s.analytics.Groups(c.UserContext()))
}

// GetContentAnalytics handles GET /api/admin/analytics/content
func (s *Server) GetContentAnalytics(c *fiber.Ctx) error {
	return c.JSON(s.analytics.Content(c.UserContext()))
}
