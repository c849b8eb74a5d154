package server

import (
	"context"
	"strings"

	"fableweaver/internal/models"
	"fableweaver/internal/service"

	"github.com/gofiber/fiber/v2"
)

const maxAdminUserSearchLen = 64

// queryBoolPtr returns nil when key is absent so filters can tell "any" from false.
func queryBoolPtr(c *fiber.Ctx, key string) *bool {
	if c.Query(key) == "" {
		return nil
	}
	v := c.QueryBool(key)
	return &v
}

// GetModerationQueue handles GET /api/admin/novels?status=pending
func (s *Server) GetModerationQueue(c *fiber.Ctx) error {
	status := models.ModerationStatus(c.Query("status", string(models.ModerationPending)))
	if !status.Valid() {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("status must be pending, approved or rejected"))
	}

	p := parsePagination(c, 50)
	novels, total, err := s.moderation.ListNovels(c.UserContext(), service.ModerationQueueQuery{
		Status: status,
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newPage(novels, total, p))
}

// ApproveNovel handles POST /api/admin/novels/:id/approve
func (s *Server) ApproveNovel(c *fiber.Ctx) error {
	return s.moderateNovel(c, s.moderation.ApproveNovel)
}

// RejectNovel handles POST /api/admin/novels/:id/reject with {"note": "..."}
func (s *Server) RejectNovel(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Note string `json:"note"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	novel, err := s.moderation.RejectNovel(c.UserContext(), id, req.Note)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(novel)
}

// HideNovel handles POST /api/admin/novels/:id/hide
func (s *Server) HideNovel(c *fiber.Ctx) error {
	return s.moderateNovel(c, s.moderation.HideNovel)
}

// RestoreNovel handles POST /api/admin/novels/:id/restore
func (s *Server) RestoreNovel(c *fiber.Ctx) error {
	return s.moderateNovel(c, s.moderation.RestoreNovel)
}

func (s *Server) moderateNovel(c *fiber.Ctx, action func(ctx context.Context, id uint) (*models.Novel, error)) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	novel, err := action(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(novel)
}

// GetAdminUsers handles GET /api/admin/users?q=&banned=&admins=
func (s *Server) GetAdminUsers(c *fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	if len(q) > maxAdminUserSearchLen {
		q = q[:maxAdminUserSearchLen]
	}

	p := parsePagination(c, 50)
	users, total, err := s.moderation.ListUsers(c.UserContext(), service.UserQuery{
		Query:      q,
		Banned:     queryBoolPtr(c, "banned"),
		AdminsOnly: c.QueryBool("admins"),
		Limit:      p.Limit,
		Offset:     p.Offset,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newPage(users, total, p))
}

// GetAdminUserDetail handles GET /api/admin/users/:id
func (s *Server) GetAdminUserDetail(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	detail, err := s.moderation.GetUserDetail(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail)
}

// BanUser handles POST /api/admin/users/:id/ban
func (s *Server) BanUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.moderation.BanUser(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// UnbanUser handles POST /api/admin/users/:id/unban
func (s *Server) UnbanUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.moderation.UnbanUser(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// PromoteUser handles POST /api/admin/users/:id/promote
func (s *Server) PromoteUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.moderation.PromoteUser(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// DemoteUser handles POST /api/admin/users/:id/demote
func (s *Server) DemoteUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.moderation.DemoteUser(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// GetAdminComments handles GET /api/admin/comments?kind=&include_deleted=&hidden=
func (s *Server) GetAdminComments(c *fiber.Ctx) error {
	kind := models.CommentKind(c.Query("kind"))
	if kind != "" && kind != models.CommentKindChapter && kind != models.CommentKindNovel {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("kind must be chapter or novel"))
	}

	p := parsePagination(c, 50)
	comments, err := s.comments.AdminList(c.UserContext(), service.AdminCommentQuery{
		Kind:           kind,
		IncludeDeleted: c.QueryBool("include_deleted"),
		Hidden:         queryBoolPtr(c, "hidden"),
		Limit:          p.Limit,
		Offset:         p.Offset,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comments)
}

// ModerateComment handles POST /api/admin/comments/:kind/:id/:action
// where action is hide, unhide, delete or restore.
func (s *Server) ModerateComment(c *fiber.Ctx) error {
	kind, err := parseCommentKind(c)
	if err != nil {
		return nil
	}
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	action := c.Params("action")
	if err := s.comments.Moderate(c.UserContext(), kind, id, action); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"kind": kind, "id": id, "action": action})
}
