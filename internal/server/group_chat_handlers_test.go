package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"fableweaver/internal/ai"
	"fableweaver/internal/models"
	"fableweaver/internal/service"
	"fableweaver/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupChatTurn(t *testing.T) {
	env := newTestEnv(t, nil)
	user, token := env.user("reader")
	mira := testutil.CreateCharacter(t, env.db, user.ID, "Mira")
	env.gen.Respond = func(_ context.Context, req ai.Request) (string, error) {
		if strings.Contains(req.System, "Mira") {
			return "Mira: The tide is turning.", nil
		}
		return "...", nil
	}

	var session models.GroupChatSession
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/group-chats", token, fiber.Map{
		"title":         "Harbour talk",
		"character_ids": []uint{mira.ID, mira.ID},
	}, &session))
	assert.Equal(t, []uint{mira.ID}, []uint(session.CharacterIDs))
	assert.True(t, session.IsActive)

	path := fmt.Sprintf("/api/group-chats/%d", session.ID)
	var turn service.TurnResult
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, path+"/messages", token, fiber.Map{
		"content":   "What do you see?",
		"auto_chat": false,
	}, &turn))
	assert.Equal(t, 1, turn.Rounds)
	require.Len(t, turn.Messages, 2)
	assert.Equal(t, models.ChatRoleUser, turn.Messages[0].Role)
	assert.Equal(t, models.ChatRoleCharacter, turn.Messages[1].Role)
	assert.Equal(t, "Mira", turn.Messages[1].SenderName)
	assert.Equal(t, "The tide is turning.", turn.Messages[1].Content)

	var stored models.GroupChatSession
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, path, token, nil, &stored))
	assert.Len(t, stored.Messages, 2)

	require.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, path+"/messages", token, nil, nil))
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, path, token, nil, &stored))
	assert.Empty(t, stored.Messages)
}

func TestGroupChatBelongsToOwner(t *testing.T) {
	env := newTestEnv(t, nil)
	owner, ownerToken := env.user("owner")
	_, otherToken := env.user("other")
	mira := testutil.CreateCharacter(t, env.db, owner.ID, "Mira")

	var session models.GroupChatSession
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/group-chats", ownerToken, fiber.Map{
		"character_ids": []uint{mira.ID},
	}, &session))
	path := fmt.Sprintf("/api/group-chats/%d", session.ID)

	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, path, otherToken, nil, nil))
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, path+"/messages", otherToken, fiber.Map{"content": "hi"}, nil))
	assert.Empty(t, env.gen.Calls())

	var renamed models.GroupChatSession
	require.Equal(t, http.StatusOK, env.do(http.MethodPatch, path, ownerToken, fiber.Map{"title": "Renamed"}, &renamed))
	assert.Equal(t, "Renamed", renamed.Title)

	require.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, path, ownerToken, nil, nil))
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, path, ownerToken, nil, nil))
}

func TestCreateGroupChatValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	owner, _ := env.user("owner")
	_, token := env.user("reader")
	private := testutil.CreateCharacter(t, env.db, owner.ID, "Hidden")
	require.NoError(t, env.db.Model(private).Update("is_public", false).Error)

	tests := []struct {
		name string
		body fiber.Map
	}{
		{"no characters", fiber.Map{"title": "Empty"}},
		{"someone else's private character", fiber.Map{"character_ids": []uint{private.ID}}},
		{"unknown character", fiber.Map{"character_ids": []uint{private.ID + 100}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body models.ErrorResponse
			assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/group-chats", token, tt.body, &body))
			assert.Equal(t, models.CodeValidation, body.Code)
		})
	}
}
