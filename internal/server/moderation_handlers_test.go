package server

import (
	"fmt"
	"net/http"
	"testing"

	"fableweaver/internal/models"
	"fableweaver/internal/service"
	"fableweaver/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.user("reader")

	for _, path := range []string{
		"/api/admin/dashboard",
		"/api/admin/novels",
		"/api/admin/users",
		"/api/admin/comments",
		"/api/admin/analytics/content",
	} {
		t.Run(path, func(t *testing.T) {
			var body models.ErrorResponse
			assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, path, token, nil, &body))
			assert.Equal(t, models.CodeForbidden, body.Code)
		})
	}
}

func TestModerationQueueFilters(t *testing.T) {
	env := newTestEnv(t, nil)
	author, _ := env.user("author")
	_, adminToken := env.admin()
	approved := testutil.CreateNovel(t, env.db, author.ID, "Approved", "fantasy")
	pending := testutil.CreateNovel(t, env.db, author.ID, "Pending", "mystery")
	require.NoError(t, env.db.Model(pending).Update("moderation_status", models.ModerationPending).Error)

	var queue page[models.Novel]
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/admin/novels", adminToken, nil, &queue))
	require.Len(t, queue.Items, 1)
	assert.Equal(t, pending.ID, queue.Items[0].ID)

	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/admin/novels?status=approved", adminToken, nil, &queue))
	require.Len(t, queue.Items, 1)
	assert.Equal(t, approved.ID, queue.Items[0].ID)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/admin/novels?status=bogus", adminToken, nil, nil))
}

func TestRejectAndHideNovel(t *testing.T) {
	env := newTestEnv(t, nil)
	author, authorToken := env.user("author")
	_, adminToken := env.admin()
	novel := testutil.CreateNovel(t, env.db, author.ID, "Drafty", "fantasy")
	path := fmt.Sprintf("/api/admin/novels/%d", novel.ID)

	var hidden models.Novel
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, path+"/hide", adminToken, nil, &hidden))
	assert.False(t, hidden.IsPublic)
	var library page[models.Novel]
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/novels", "", nil, &library))
	assert.Zero(t, library.Total)

	require.Equal(t, http.StatusOK, env.do(http.MethodPost, path+"/restore", adminToken, nil, &hidden))
	assert.True(t, hidden.IsPublic)

	var rejected models.Novel
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, path+"/reject", adminToken,
		fiber.Map{"note": "Please add a description"}, &rejected))
	assert.Equal(t, models.ModerationRejected, rejected.ModerationStatus)

	// the author is told why
	var unread struct {
		Count int64 `json:"count"`
	}
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/notifications/unread-count", authorToken, nil, &unread))
	assert.EqualValues(t, 3, unread.Count)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, "/api/admin/novels/9999/approve", adminToken, nil, nil))
}

func TestBanAndUnbanUser(t *testing.T) {
	env := newTestEnv(t, nil)
	admin, adminToken := env.admin()
	troll, trollToken := env.user("troll")
	path := fmt.Sprintf("/api/admin/users/%d", troll.ID)

	var banned models.User
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, path+"/ban", adminToken, nil, &banned))
	assert.True(t, banned.IsBanned)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/users/me", trollToken, nil, nil))

	var list page[models.User]
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/admin/users?banned=true", adminToken, nil, &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, troll.ID, list.Items[0].ID)

	require.Equal(t, http.StatusOK, env.do(http.MethodPost, path+"/unban", adminToken, nil, &banned))
	assert.False(t, banned.IsBanned)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/users/me", trollToken, nil, nil))

	var body models.ErrorResponse
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost,
		fmt.Sprintf("/api/admin/users/%d/ban", admin.ID), adminToken, nil, &body))
	assert.Equal(t, models.CodeValidation, body.Code)
}

func TestPromoteAndDemoteUser(t *testing.T) {
	env := newTestEnv(t, nil)
	admin, adminToken := env.admin()
	helper, helperToken := env.user("helper")
	path := fmt.Sprintf("/api/admin/users/%d", helper.ID)

	require.Equal(t, http.StatusOK, env.do(http.MethodPost, path+"/promote", adminToken, nil, nil))
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/admin/users", helperToken, nil, nil))

	require.Equal(t, http.StatusOK, env.do(http.MethodPost, path+"/demote", adminToken, nil, nil))
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/admin/users", helperToken, nil, nil))

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost,
		fmt.Sprintf("/api/admin/users/%d/demote", admin.ID), adminToken, nil, nil))

	var detail service.AdminUserDetail
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, path, adminToken, nil, &detail))
	assert.Equal(t, helper.ID, detail.User.ID)
	assert.False(t, detail.User.IsAdmin)
}

func TestModerateComments(t *testing.T) {
	env := newTestEnv(t, nil)
	author, _ := env.user("author")
	_, readerToken := env.user("reader")
	_, adminToken := env.admin()
	novel := testutil.CreateNovel(t, env.db, author.ID, "Lanterns", "fantasy")
	novelPath := fmt.Sprintf("/api/novels/%d/comments", novel.ID)

	var comment models.NovelComment
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, novelPath, readerToken,
		fiber.Map{"content": "spam spam spam"}, &comment))

	var listed []models.AdminComment
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/admin/comments?kind=novel", adminToken, nil, &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, novel.ID, listed[0].TargetID)

	var result struct {
		Kind   string `json:"kind"`
		ID     uint   `json:"id"`
		Action string `json:"action"`
	}
	require.Equal(t, http.StatusOK, env.do(http.MethodPost,
		fmt.Sprintf("/api/admin/comments/novel/%d/hide", comment.ID), adminToken, nil, &result))
	assert.Equal(t, "hide", result.Action)

	var public []models.NovelComment
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, novelPath, "", nil, &public))
	assert.Empty(t, public)

	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/admin/comments?hidden=true", adminToken, nil, &listed))
	require.Len(t, listed, 1)
	assert.True(t, listed[0].IsHidden)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost,
		fmt.Sprintf("/api/admin/comments/novel/%d/shred", comment.ID), adminToken, nil, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/api/admin/comments?kind=post", adminToken, nil, nil))
}

func TestAdminDashboard(t *testing.T) {
	env := newTestEnv(t, nil)
	author, _ := env.user("author")
	_, adminToken := env.admin()
	testutil.CreateNovel(t, env.db, author.ID, "Lanterns", "fantasy")

	var dashboard service.Dashboard
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/admin/dashboard", adminToken, nil, &dashboard))
	assert.EqualValues(t, 2, dashboard.Users.Total)
}
