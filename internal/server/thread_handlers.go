package server

import (
	"fableweaver/internal/service"

	"github.com/gofiber/fiber/v2"
)

type threadRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

func (r threadRequest) input() service.ThreadInput {
	return service.ThreadInput{Title: r.Title, Content: r.Content, Category: r.Category}
}

// GetThreads handles GET /api/threads?category=
func (s *Server) GetThreads(c *fiber.Ctx) error {
	p := parsePagination(c, 20)
	threads, err := s.threads.List(c.UserContext(), c.Query("category"), p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(threads)
}

// GetThread handles GET /api/threads/:id
func (s *Server) GetThread(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	thread, err := s.threads.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(thread)
}

// CreateThread handles POST /api/threads
func (s *Server) CreateThread(c *fiber.Ctx) error {
	var req threadRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	thread, err := s.threads.Create(c.UserContext(), currentUserID(c), req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(thread)
}

// UpdateThread handles PUT /api/threads/:id
func (s *Server) UpdateThread(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req threadRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	thread, err := s.threads.Update(c.UserContext(), currentUserID(c), id, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(thread)
}

// DeleteThread handles DELETE /api/threads/:id
func (s *Server) DeleteThread(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.threads.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetThreadComments handles GET /api/threads/:id/comments
func (s *Server) GetThreadComments(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	comments, err := s.threads.ListComments(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comments)
}

// CreateThreadComment handles POST /api/threads/:id/comments
func (s *Server) CreateThreadComment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content  string `json:"content"`
		ParentID *uint  `json:"parent_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.threads.AddComment(c.UserContext(), currentUserID(c), id, req.Content, req.ParentID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// DeleteThreadComment handles DELETE /api/threads/comments/:commentId
func (s *Server) DeleteThreadComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}

	if err := s.threads.DeleteComment(c.UserContext(), currentUserID(c), commentID); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetSavedThreads handles GET /api/threads/saved
func (s *Server) GetSavedThreads(c *fiber.Ctx) error {
	p := parsePagination(c, 20)
	threads, err := s.threads.ListSaved(c.UserContext(), currentUserID(c), p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(threads)
}

// SaveThread handles POST /api/threads/:id/save
func (s *Server) SaveThread(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.threads.Save(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"saved": true})
}

// UnsaveThread handles DELETE /api/threads/:id/save
func (s *Server) UnsaveThread(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.threads.Unsave(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"saved": false})
}

// ToggleReaction handles POST /api/reactions
func (s *Server) ToggleReaction(c *fiber.Ctx) error {
	var req struct {
		TargetType string `json:"target_type"`
		TargetID   uint   `json:"target_id"`
		Emoji      string `json:"emoji"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	reacted, counts, err := s.threads.ToggleReaction(c.UserContext(), currentUserID(c), req.TargetType, req.TargetID, req.Emoji)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"reacted": reacted, "counts": counts})
}

// GetReactions handles GET /api/reactions/:targetType/:targetId
func (s *Server) GetReactions(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "targetId")
	if err != nil {
		return nil
	}

	counts, err := s.threads.Reactions(c.UserContext(), c.Params("targetType"), targetID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(counts)
}
