package service

import (
	"context"
	"strings"
	"testing"

	"fableweaver/internal/models"
	"fableweaver/internal/repository"
	"fableweaver/internal/testutil"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newNovelService(t *testing.T) (*NovelService, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	images, _ := newTestImageService(t, 2)
	return NewNovelService(
		repository.NewNovelRepository(db),
		repository.NewChapterRepository(db),
		repository.NewCommentRepository(db),
		images,
	), db
}

func TestCreateNovelStartsPendingAndStaysOutOfLibrary(t *testing.T) {
	svc, db := newNovelService(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "author")

	_, err := svc.Create(ctx, author.ID, NovelInput{Title: " "})
	assertCode(t, err, models.CodeValidation)

	novel, err := svc.Create(ctx, author.ID, NovelInput{
		Title:    "The Salt Road",
		Genre:    " Fantasy ",
		Tags:     []string{"Sea", "sea", " ", "quest"},
		IsPublic: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ModerationPending, novel.ModerationStatus)
	assert.Equal(t, models.NovelStatusDraft, novel.Status)
	assert.Equal(t, "fantasy", novel.Genre)
	assert.Equal(t, []string{"sea", "quest"}, []string(novel.Tags))

	list, total, err := svc.Library(ctx, LibraryQuery{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)

	mine, total, err := svc.ListMine(ctx, author.ID, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, mine, 1)

	// the author still sees it
	detail, err := svc.Get(ctx, author.ID, novel.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Salt Road", detail.Title)

	reader := testutil.CreateUser(t, db, "reader")
	_, err = svc.Get(ctx, reader.ID, novel.ID)
	assertCode(t, err, models.CodeNotFound)
}

func TestLibraryFiltersAndSorts(t *testing.T) {
	svc, db := newNovelService(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "author")
	quiet := testutil.CreateNovel(t, db, author.ID, "Quiet Hills", "fantasy")
	loud := testutil.CreateNovel(t, db, author.ID, "Loud Stars", "scifi")
	require.NoError(t, db.Model(loud).Update("view_count", 50).Error)

	list, total, err := svc.Library(ctx, LibraryQuery{Sort: repository.NovelSortPopular})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, loud.ID, list[0].ID)

	list, _, err = svc.Library(ctx, LibraryQuery{Genre: "Fantasy"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, quiet.ID, list[0].ID)

	list, _, err = svc.Library(ctx, LibraryQuery{Query: "stars"})
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, _, err = svc.Library(ctx, LibraryQuery{Sort: "random"})
	assertCode(t, err, models.CodeValidation)
}

func TestNovelDetailIncludesChaptersAndRating(t *testing.T) {
	svc, db := newNovelService(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "author")
	reader := testutil.CreateUser(t, db, "reader")
	novel := testutil.CreateNovel(t, db, author.ID, "Tides", "drama")

	chapters := repository.NewChapterRepository(db)
	require.NoError(t, chapters.Append(ctx, &models.Chapter{NovelID: novel.ID, Title: "One", Content: "a"}))
	require.NoError(t, chapters.Append(ctx, &models.Chapter{NovelID: novel.ID, Title: "Two", Content: "b"}))
	require.NoError(t, db.Create(&models.NovelComment{NovelID: novel.ID, UserID: reader.ID, Content: "good", Rating: 4}).Error)
	require.NoError(t, db.Create(&models.NovelComment{NovelID: novel.ID, UserID: author.ID, Content: "meh", Rating: 2}).Error)

	detail, err := svc.Get(ctx, reader.ID, novel.ID)
	require.NoError(t, err)
	require.Len(t, detail.Chapters, 2)
	assert.Equal(t, "Two", detail.Chapters[1].Title)
	assert.Empty(t, detail.Chapters[0].Content)
	assert.InDelta(t, 3.0, detail.AverageRating, 0.001)
	assert.Equal(t, 2, detail.ChapterCount)
}

func TestUpdateAndDeleteNovelAuthorOnly(t *testing.T) {
	svc, db := newNovelService(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "author")
	other := testutil.CreateUser(t, db, "other")
	novel := testutil.CreateNovel(t, db, author.ID, "Draft", "mystery")

	_, err := svc.Update(ctx, other.ID, novel.ID, UpdateNovelInput{Title: mo.Some("Mine now")})
	assertCode(t, err, models.CodeForbidden)

	updated, err := svc.Update(ctx, author.ID, novel.ID, UpdateNovelInput{
		Status: mo.Some(models.NovelStatusCompleted),
		Tags:   mo.Some([]string{"Noir"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "Draft", updated.Title)
	assert.Equal(t, models.NovelStatusCompleted, updated.Status)
	assert.Equal(t, []string{"noir"}, []string(updated.Tags))

	_, err = svc.Update(ctx, author.ID, novel.ID, UpdateNovelInput{Status: mo.Some(models.NovelStatus("lost"))})
	assertCode(t, err, models.CodeValidation)

	assertCode(t, svc.Delete(ctx, other.ID, novel.ID), models.CodeForbidden)
	require.NoError(t, svc.Delete(ctx, author.ID, novel.ID))
	_, err = svc.Get(ctx, author.ID, novel.ID)
	assertCode(t, err, models.CodeNotFound)
}

func TestUploadCoverSetsURL(t *testing.T) {
	svc, db := newNovelService(t)
	ctx := context.Background()
	author := testutil.CreateUser(t, db, "author")
	novel := testutil.CreateNovel(t, db, author.ID, "Covers", "art")

	updated, err := svc.UploadCover(ctx, author.ID, novel.ID, UploadImageInput{
		Filename:    "c.png",
		ContentType: "image/png",
		Content:     testutil.TinyPNG(t, 300, 300),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(updated.CoverURL, "/media/covers/"))

	var stored models.Novel
	require.NoError(t, db.First(&stored, novel.ID).Error)
	assert.Equal(t, updated.CoverURL, stored.CoverURL)
}
