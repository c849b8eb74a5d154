package service

import (
	"context"
	"strings"
	"testing"

	"fableweaver/internal/models"
	"fableweaver/internal/notifications"
	"fableweaver/internal/repository"
	"fableweaver/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type moderationFixture struct {
	svc    *ModerationService
	notes  *notificationRepoStub
	pub    *recordingPublisher
	admin  *models.User
	author *models.User
	novel  *models.Novel
}

func newModerationFixture(t *testing.T) *moderationFixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &moderationFixture{notes: &notificationRepoStub{}, pub: &recordingPublisher{}}
	f.admin = testutil.CreateUser(t, db, "admin")
	f.author = testutil.CreateUser(t, db, "author")
	f.novel = testutil.CreateNovel(t, db, f.author.ID, "Ashfall", "fantasy")
	require.NoError(t, db.Model(f.novel).Update("moderation_status", models.ModerationPending).Error)
	testutil.CreateCharacter(t, db, f.author.ID, "Wren")

	f.svc = NewModerationService(
		repository.NewUserRepository(db),
		repository.NewNovelRepository(db),
		repository.NewCharacterRepository(db),
		NewNotificationService(f.notes, nil),
		f.pub,
	)
	return f
}

func TestModerationService_NovelQueue(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()

	queue, total, err := f.svc.ListNovels(ctx, ModerationQueueQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, queue, 1)
	assert.Equal(t, f.novel.ID, queue[0].ID)

	_, _, err = f.svc.ListNovels(ctx, ModerationQueueQuery{Status: "lost"})
	assertCode(t, err, models.CodeValidation)

	approved, err := f.svc.ApproveNovel(ctx, f.novel.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ModerationApproved, approved.ModerationStatus)
	assert.True(t, approved.Listable())

	queue, _, err = f.svc.ListNovels(ctx, ModerationQueueQuery{})
	require.NoError(t, err)
	assert.Empty(t, queue)

	notes := f.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, f.author.ID, notes[0].UserID)
	assert.Equal(t, models.NotificationModeration, notes[0].Type)
	assert.Contains(t, notes[0].Title, "approved")
	assert.Len(t, f.pub.ofType(notifications.EventNovelModerated), 1)
}

func TestModerationService_RejectNeedsNote(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()

	_, err := f.svc.RejectNovel(ctx, f.novel.ID, "   ")
	assertCode(t, err, models.CodeValidation)
	_, err = f.svc.RejectNovel(ctx, f.novel.ID, strings.Repeat("n", maxModerationNote+1))
	assertCode(t, err, models.CodeValidation)

	rejected, err := f.svc.RejectNovel(ctx, f.novel.ID, " Plagiarised opening ")
	require.NoError(t, err)
	assert.Equal(t, models.ModerationRejected, rejected.ModerationStatus)
	assert.Equal(t, "Plagiarised opening", rejected.ModerationNote)

	notes := f.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, "Plagiarised opening", notes[0].Body)

	_, err = f.svc.ApproveNovel(ctx, 9999)
	assertCode(t, err, models.CodeNotFound)
}

func TestModerationService_HideAndRestore(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()
	_, err := f.svc.ApproveNovel(ctx, f.novel.ID)
	require.NoError(t, err)

	hidden, err := f.svc.HideNovel(ctx, f.novel.ID)
	require.NoError(t, err)
	assert.False(t, hidden.IsPublic)
	assert.False(t, hidden.Listable())
	assert.Equal(t, models.ModerationApproved, hidden.ModerationStatus)

	restored, err := f.svc.RestoreNovel(ctx, f.novel.ID)
	require.NoError(t, err)
	assert.True(t, restored.Listable())
	assert.Len(t, f.notes.all(), 3)
}

func TestModerationService_Users(t *testing.T) {
	f := newModerationFixture(t)
	ctx := context.Background()

	_, err := f.svc.BanUser(ctx, f.admin.ID, f.admin.ID)
	assertCode(t, err, models.CodeValidation)

	banned, err := f.svc.BanUser(ctx, f.admin.ID, f.author.ID)
	require.NoError(t, err)
	assert.True(t, banned.IsBanned)
	assert.NotNil(t, banned.BannedAt)

	yes := true
	users, total, err := f.svc.ListUsers(ctx, UserQuery{Banned: &yes})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, f.author.ID, users[0].ID)

	users, _, err = f.svc.ListUsers(ctx, UserQuery{Query: strings.ToUpper(f.admin.Username)})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, f.admin.ID, users[0].ID)

	unbanned, err := f.svc.UnbanUser(ctx, f.author.ID)
	require.NoError(t, err)
	assert.False(t, unbanned.IsBanned)
	assert.Nil(t, unbanned.BannedAt)

	promoted, err := f.svc.PromoteUser(ctx, f.author.ID)
	require.NoError(t, err)
	assert.True(t, promoted.IsAdmin)

	_, err = f.svc.DemoteUser(ctx, f.admin.ID, f.admin.ID)
	assertCode(t, err, models.CodeValidation)
	demoted, err := f.svc.DemoteUser(ctx, f.admin.ID, f.author.ID)
	require.NoError(t, err)
	assert.False(t, demoted.IsAdmin)

	_, err = f.svc.PromoteUser(ctx, 4242)
	assertCode(t, err, models.CodeNotFound)
}

func TestModerationService_UserDetail(t *testing.T) {
	f := newModerationFixture(t)

	detail, err := f.svc.GetUserDetail(context.Background(), f.author.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Warnings)
	assert.Equal(t, f.author.Username, detail.User.Username)
	require.Len(t, detail.Novels, 1)
	require.Len(t, detail.Characters, 1)
	assert.Equal(t, "Wren", detail.Characters[0].Name)
}
