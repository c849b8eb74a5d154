package repository

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"fableweaver/internal/cache"
	"fableweaver/internal/models"
	"fableweaver/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNovelRepository_ListLibrary(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewNovelRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	visible := testutil.CreateNovel(t, db, author.ID, "The Glass Harbor", "Fantasy")
	popular := testutil.CreateNovel(t, db, author.ID, "Iron Tide", "SciFi")
	require.NoError(t, db.Model(popular).Update("view_count", 500).Error)

	pending := testutil.CreateNovel(t, db, author.ID, "Pending Glass", "Fantasy")
	require.NoError(t, repo.SetModeration(ctx, pending.ID, models.ModerationPending, ""))
	hidden := testutil.CreateNovel(t, db, author.ID, "Hidden Glass", "Fantasy")
	require.NoError(t, repo.SetPublic(ctx, hidden.ID, false))
	deleted := testutil.CreateNovel(t, db, author.ID, "Deleted Glass", "Fantasy")
	require.NoError(t, repo.SoftDelete(ctx, deleted.ID))

	t.Run("Public Only", func(t *testing.T) {
		novels, total, err := repo.List(ctx, NovelFilter{PublicOnly: true, Limit: 20})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, novels, 2)
	})

	t.Run("Title Search Is Case Insensitive", func(t *testing.T) {
		novels, _, err := repo.List(ctx, NovelFilter{PublicOnly: true, Query: "glass", Limit: 20})
		require.NoError(t, err)
		require.Len(t, novels, 1)
		assert.Equal(t, visible.ID, novels[0].ID)
	})

	t.Run("Genre Filter", func(t *testing.T) {
		novels, _, err := repo.List(ctx, NovelFilter{PublicOnly: true, Genre: "scifi", Limit: 20})
		require.NoError(t, err)
		require.Len(t, novels, 1)
		assert.Equal(t, popular.ID, novels[0].ID)
	})

	t.Run("Popular Sort", func(t *testing.T) {
		novels, _, err := repo.List(ctx, NovelFilter{PublicOnly: true, Sort: NovelSortPopular, Limit: 20})
		require.NoError(t, err)
		assert.Equal(t, popular.ID, novels[0].ID)
	})

	t.Run("Admin Sees Deleted", func(t *testing.T) {
		_, total, err := repo.List(ctx, NovelFilter{IncludeDeleted: true, Limit: 20})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)

		_, total, err = repo.List(ctx, NovelFilter{ModerationStatus: models.ModerationPending, Limit: 20})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("Candidates Skip Own And Read", func(t *testing.T) {
		reader := testutil.CreateUser(t, db, "reader")
		other := testutil.CreateNovel(t, db, reader.ID, "Reader's Own", "Fantasy")

		got, err := repo.ListCandidates(ctx, reader.ID, []uint{visible.ID}, 10)
		require.NoError(t, err)
		ids := make([]uint, 0, len(got))
		for _, n := range got {
			ids = append(ids, n.ID)
		}
		assert.ElementsMatch(t, []uint{popular.ID}, ids)
		assert.NotContains(t, ids, other.ID)
	})
}

func TestNovelRepository_ViewBuffer(t *testing.T) {
	db := testutil.NewDB(t)
	mr, _ := testutil.NewRedis(t)
	repo := NewNovelRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	novel := testutil.CreateNovel(t, db, author.ID, "Counted", "Drama")

	for i := 0; i < 3; i++ {
		repo.BufferView(ctx, novel.ID)
	}
	buffered, err := mr.Get(cache.NovelViewsKey(novel.ID))
	require.NoError(t, err)
	assert.Equal(t, "3", buffered)

	n, err := repo.FlushViews(ctx, novel.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.False(t, mr.Exists(cache.NovelViewsKey(novel.ID)))

	var stored models.Novel
	require.NoError(t, db.First(&stored, novel.ID).Error)
	assert.Equal(t, int64(3), stored.ViewCount)

	n, err = repo.FlushViews(ctx, novel.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNovelRepository_ViewWithoutRedis(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewNovelRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	novel := testutil.CreateNovel(t, db, author.ID, "Direct", "Drama")
	repo.BufferView(ctx, novel.ID)

	var stored models.Novel
	require.NoError(t, db.First(&stored, novel.ID).Error)
	assert.Equal(t, int64(1), stored.ViewCount)
}

// captureLogs routes the default slog logger into a buffer for one test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestNovelRepository_ViewFallbackFailuresAreLogged(t *testing.T) {
	db := testutil.NewDB(t)
	mr, _ := testutil.NewRedis(t)
	repo := NewNovelRepository(db)
	ctx := context.Background()
	logs := captureLogs(t)

	author := testutil.CreateUser(t, db, "author")
	novel := testutil.CreateNovel(t, db, author.ID, "Outage", "Drama")

	mr.Close()
	repo.BufferView(ctx, novel.ID)
	assert.Contains(t, logs.String(), "view buffer unavailable")

	var stored models.Novel
	require.NoError(t, db.First(&stored, novel.ID).Error)
	assert.Equal(t, int64(1), stored.ViewCount, "the read still counts on the row")

	require.NoError(t, db.Migrator().DropTable(&models.Novel{}))
	repo.BufferView(ctx, novel.ID)
	assert.Contains(t, logs.String(), "failed to count novel view")
	assert.Contains(t, logs.String(), fmt.Sprintf("novel_id=%d", novel.ID))
}

func TestChapterRepository_Append(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewChapterRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	novel := testutil.CreateNovel(t, db, author.ID, "Serial", "Mystery")

	for i := 1; i <= 3; i++ {
		ch := &models.Chapter{NovelID: novel.ID, Title: "Part", Content: "words here", WordCount: 2}
		require.NoError(t, repo.Append(ctx, ch))
		assert.Equal(t, i, ch.ChapterNumber)
	}

	var stored models.Novel
	require.NoError(t, db.First(&stored, novel.ID).Error)
	assert.Equal(t, 3, stored.ChapterCount)

	latest, err := repo.Latest(ctx, novel.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, latest.ChapterNumber)

	toc, err := repo.ListByNovel(ctx, novel.ID)
	require.NoError(t, err)
	require.Len(t, toc, 3)
	assert.Empty(t, toc[0].Content)

	empty := testutil.CreateNovel(t, db, author.ID, "Empty", "Mystery")
	none, err := repo.Latest(ctx, empty.ID)
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func TestChapterRepository_AppendConcurrent(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewChapterRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	novel := testutil.CreateNovel(t, db, author.ID, "Race", "Thriller")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.Append(ctx, &models.Chapter{NovelID: novel.ID, Title: "x", Content: "y"})
		}()
	}
	wg.Wait()

	var count int64
	require.NoError(t, db.Model(&models.Chapter{}).Where("novel_id = ?", novel.ID).Count(&count).Error)
	var stored models.Novel
	require.NoError(t, db.First(&stored, novel.ID).Error)
	assert.Equal(t, int(count), stored.ChapterCount)
}

func TestChapterRepository_Revisions(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewChapterRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	novel := testutil.CreateNovel(t, db, author.ID, "Edited", "Drama")
	ch := &models.Chapter{NovelID: novel.ID, Title: "Old", Content: "old text"}
	require.NoError(t, repo.Append(ctx, ch))

	prev := models.ChapterRevision{EditorID: author.ID, Title: ch.Title, Content: ch.Content}
	ch.Title, ch.Content = "New", "new text"
	require.NoError(t, repo.UpdateWithRevision(ctx, ch, prev))

	got, err := repo.GetByID(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, "new text", got.Content)

	revs, err := repo.ListRevisions(ctx, ch.ID)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, "Old", revs[0].Title)
	assert.Equal(t, "old text", revs[0].Content)

	rev, err := repo.GetRevision(ctx, revs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "old text", rev.Content)
}

func TestReadingHistoryRepository(t *testing.T) {
	db := testutil.NewDB(t)
	mr, _ := testutil.NewRedis(t)
	repo := NewReadingHistoryRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	reader := testutil.CreateUser(t, db, "reader")
	fantasy := testutil.CreateNovel(t, db, author.ID, "A", "Fantasy")
	fantasy2 := testutil.CreateNovel(t, db, author.ID, "B", "fantasy")
	scifi := testutil.CreateNovel(t, db, author.ID, "C", "SciFi")

	require.NoError(t, mr.Set(cache.RecommendationKey(reader.ID), "[]"))
	require.NoError(t, repo.Record(ctx, reader.ID, fantasy.ID, 1))
	require.NoError(t, repo.Record(ctx, reader.ID, fantasy.ID, 2))
	require.NoError(t, repo.Record(ctx, reader.ID, fantasy2.ID, 1))
	require.NoError(t, repo.Record(ctx, reader.ID, scifi.ID, 1))
	assert.False(t, mr.Exists(cache.RecommendationKey(reader.ID)))

	var entry models.ReadingHistory
	require.NoError(t, db.Where("user_id = ? AND novel_id = ?", reader.ID, fantasy.ID).First(&entry).Error)
	assert.Equal(t, 2, entry.LastChapterNumber)

	ids, err := repo.ReadNovelIDs(ctx, reader.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{fantasy.ID, fantasy2.ID, scifi.ID}, ids)

	genres, err := repo.GenreCounts(ctx, reader.ID)
	require.NoError(t, err)
	byGenre := map[string]int64{}
	for _, g := range genres {
		byGenre[g.Genre] = g.Count
	}
	assert.Equal(t, map[string]int64{"fantasy": 2, "scifi": 1}, byGenre)
}
