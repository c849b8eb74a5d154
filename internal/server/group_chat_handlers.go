package server

import (
	"fableweaver/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetGroupChats handles GET /api/group-chats
func (s *Server) GetGroupChats(c *fiber.Ctx) error {
	p := parsePagination(c, 20)
	sessions, err := s.groupChats.ListSessions(c.UserContext(), currentUserID(c), p.Limit, p.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(sessions)
}

// CreateGroupChat handles POST /api/group-chats
func (s *Server) CreateGroupChat(c *fiber.Ctx) error {
	var req struct {
		Title        string `json:"title"`
		CharacterIDs []uint `json:"character_ids"`
		AutoChat     bool   `json:"auto_chat"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	session, err := s.groupChats.CreateSession(c.UserContext(), currentUserID(c), service.CreateSessionInput{
		Title:        req.Title,
		CharacterIDs: req.CharacterIDs,
		AutoChat:     req.AutoChat,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// GetGroupChat handles GET /api/group-chats/:id
func (s *Server) GetGroupChat(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	session, err := s.groupChats.GetSession(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(session)
}

// UpdateGroupChat handles PATCH /api/group-chats/:id
func (s *Server) UpdateGroupChat(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Title        *string `json:"title"`
		CharacterIDs *[]uint `json:"character_ids"`
		AutoChat     *bool   `json:"auto_chat"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	session, err := s.groupChats.UpdateSession(c.UserContext(), currentUserID(c), id, service.UpdateSessionInput{
		Title:        optional(req.Title),
		CharacterIDs: optional(req.CharacterIDs),
		AutoChat:     optional(req.AutoChat),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(session)
}

// DeactivateGroupChat handles DELETE /api/group-chats/:id
func (s *Server) DeactivateGroupChat(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.groupChats.DeactivateSession(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ClearGroupChat handles DELETE /api/group-chats/:id/messages
func (s *Server) ClearGroupChat(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.groupChats.ClearMessages(c.UserContext(), currentUserID(c), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SendGroupChatMessage handles POST /api/group-chats/:id/messages. The
// response carries every message appended during the turn; the same update is
// pushed to the owner's sockets.
func (s *Server) SendGroupChatMessage(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content  string `json:"content"`
		AutoChat *bool  `json:"auto_chat"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	result, err := s.groupChats.SendMessage(c.UserContext(), service.TurnInput{
		SessionID: id,
		UserID:    currentUserID(c),
		Content:   req.Content,
		AutoChat:  req.AutoChat,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}
