package service

import (
	"context"
	"strings"
	"testing"

	"fableweaver/internal/models"
	"fableweaver/internal/repository"
	"fableweaver/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type commentFixture struct {
	db      *gorm.DB
	svc     *CommentService
	notes   *notificationRepoStub
	author  *models.User
	reader  *models.User
	admin   *models.User
	novel   *models.Novel
	chapter *models.Chapter
}

func newCommentFixture(t *testing.T) *commentFixture {
	t.Helper()
	db := testutil.NewDB(t)
	f := &commentFixture{db: db, notes: &notificationRepoStub{}}
	f.author = testutil.CreateUser(t, db, "author")
	f.reader = testutil.CreateUser(t, db, "reader")
	f.admin = testutil.CreateUser(t, db, "admin")
	f.novel = testutil.CreateNovel(t, db, f.author.ID, "Embers", "fantasy")
	chapters := repository.NewChapterRepository(db)
	f.chapter = &models.Chapter{NovelID: f.novel.ID, Title: "One", Content: "It began."}
	require.NoError(t, chapters.Append(context.Background(), f.chapter))

	isAdmin := func(_ context.Context, userID uint) (bool, error) { return userID == f.admin.ID, nil }
	f.svc = NewCommentService(
		repository.NewCommentRepository(db),
		chapters,
		repository.NewNovelRepository(db),
		NewNotificationService(f.notes, nil),
		isAdmin,
	)
	return f
}

func TestCommentService_Validation(t *testing.T) {
	f := newCommentFixture(t)
	ctx := context.Background()

	t.Run("empty content", func(t *testing.T) {
		_, err := f.svc.CreateChapterComment(ctx, CreateChapterCommentInput{UserID: f.reader.ID, ChapterID: f.chapter.ID, Content: "  "})
		assertCode(t, err, models.CodeValidation)
	})
	t.Run("too long", func(t *testing.T) {
		_, err := f.svc.CreateNovelComment(ctx, CreateNovelCommentInput{UserID: f.reader.ID, NovelID: f.novel.ID, Content: strings.Repeat("x", maxCommentLen+1)})
		assertCode(t, err, models.CodeValidation)
	})
	t.Run("rating out of range", func(t *testing.T) {
		_, err := f.svc.CreateNovelComment(ctx, CreateNovelCommentInput{UserID: f.reader.ID, NovelID: f.novel.ID, Content: "ok", Rating: 6})
		assertCode(t, err, models.CodeValidation)
	})
	t.Run("missing chapter", func(t *testing.T) {
		_, err := f.svc.CreateChapterComment(ctx, CreateChapterCommentInput{UserID: f.reader.ID, ChapterID: 999, Content: "hi"})
		assertCode(t, err, models.CodeNotFound)
	})
}

func TestCommentService_ChapterCommentNotifiesAuthor(t *testing.T) {
	f := newCommentFixture(t)
	ctx := context.Background()

	c, err := f.svc.CreateChapterComment(ctx, CreateChapterCommentInput{UserID: f.reader.ID, ChapterID: f.chapter.ID, Content: " Loved it "})
	require.NoError(t, err)
	assert.Equal(t, "Loved it", c.Content)
	assert.Equal(t, f.reader.Username, c.User.Username)

	notes := f.notes.all()
	require.Len(t, notes, 1)
	assert.Equal(t, f.author.ID, notes[0].UserID)
	assert.Equal(t, models.NotificationChapterComment, notes[0].Type)

	// commenting on your own chapter is silent
	_, err = f.svc.CreateChapterComment(ctx, CreateChapterCommentInput{UserID: f.author.ID, ChapterID: f.chapter.ID, Content: "thanks"})
	require.NoError(t, err)
	assert.Len(t, f.notes.all(), 1)

	list, err := f.svc.ListChapterComments(ctx, f.chapter.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCommentService_DeletePermissions(t *testing.T) {
	f := newCommentFixture(t)
	ctx := context.Background()
	c, err := f.svc.CreateNovelComment(ctx, CreateNovelCommentInput{UserID: f.reader.ID, NovelID: f.novel.ID, Content: "fine", Rating: 3})
	require.NoError(t, err)

	err = f.svc.DeleteComment(ctx, f.author.ID, models.CommentKindNovel, c.ID)
	assertCode(t, err, models.CodeForbidden)

	require.NoError(t, f.svc.DeleteComment(ctx, f.admin.ID, models.CommentKindNovel, c.ID))
	list, err := f.svc.ListNovelComments(ctx, f.novel.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	err = f.svc.DeleteComment(ctx, f.reader.ID, "post", c.ID)
	assertCode(t, err, models.CodeValidation)
}

func TestCommentService_AdminModeration(t *testing.T) {
	f := newCommentFixture(t)
	ctx := context.Background()
	c, err := f.svc.CreateChapterComment(ctx, CreateChapterCommentInput{UserID: f.reader.ID, ChapterID: f.chapter.ID, Content: "spam"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Moderate(ctx, models.CommentKindChapter, c.ID, CommentActionHide))
	visible, err := f.svc.ListChapterComments(ctx, f.chapter.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, visible)

	hidden := true
	rows, err := f.svc.AdminList(ctx, AdminCommentQuery{Kind: models.CommentKindChapter, Hidden: &hidden})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, f.reader.Username, rows[0].Username)
	assert.Equal(t, f.chapter.ID, rows[0].TargetID)

	require.NoError(t, f.svc.Moderate(ctx, models.CommentKindChapter, c.ID, CommentActionDelete))
	rows, err = f.svc.AdminList(ctx, AdminCommentQuery{Kind: models.CommentKindChapter})
	require.NoError(t, err)
	assert.Empty(t, rows)
	rows, err = f.svc.AdminList(ctx, AdminCommentQuery{Kind: models.CommentKindChapter, IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	require.NoError(t, f.svc.Moderate(ctx, models.CommentKindChapter, c.ID, CommentActionRestore))
	require.NoError(t, f.svc.Moderate(ctx, models.CommentKindChapter, c.ID, CommentActionUnhide))
	visible, err = f.svc.ListChapterComments(ctx, f.chapter.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, visible, 1)

	assertCode(t, f.svc.Moderate(ctx, models.CommentKindChapter, c.ID, "burn"), models.CodeValidation)
	assertCode(t, f.svc.Moderate(ctx, models.CommentKindNovel, 4242, CommentActionHide), models.CodeNotFound)
}
