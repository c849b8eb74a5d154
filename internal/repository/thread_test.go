package repository

import (
	"context"
	"testing"
	"time"

	"fableweaver/internal/models"
	"fableweaver/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreadRepository(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewThreadRepository(db)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, "poster")
	other := testutil.CreateUser(t, db, "poster")

	general := &models.Thread{UserID: u.ID, Title: "Favourite villains?", Content: "Discuss", Category: "general"}
	require.NoError(t, repo.Create(ctx, general))
	craft := &models.Thread{UserID: u.ID, Title: "Pacing tips", Content: "Help", Category: "craft"}
	require.NoError(t, repo.Create(ctx, craft))

	t.Run("List And Filter", func(t *testing.T) {
		all, err := repo.List(ctx, "", 10, 0)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		filtered, err := repo.List(ctx, "craft", 10, 0)
		require.NoError(t, err)
		require.Len(t, filtered, 1)
		assert.Equal(t, craft.ID, filtered[0].ID)
		assert.Equal(t, u.Username, filtered[0].User.Username)
	})

	t.Run("Comments And Counts", func(t *testing.T) {
		parent := &models.ThreadComment{ThreadID: general.ID, UserID: other.ID, Content: "The Joker"}
		require.NoError(t, repo.CreateComment(ctx, parent))
		reply := &models.ThreadComment{ThreadID: general.ID, UserID: u.ID, ParentID: &parent.ID, Content: "Classic"}
		require.NoError(t, repo.CreateComment(ctx, reply))
		gone := &models.ThreadComment{ThreadID: general.ID, UserID: u.ID, Content: "oops"}
		require.NoError(t, repo.CreateComment(ctx, gone))
		require.NoError(t, repo.SoftDeleteComment(ctx, gone.ID))

		comments, err := repo.ListComments(ctx, general.ID)
		require.NoError(t, err)
		assert.Len(t, comments, 2)

		got, err := repo.GetByID(ctx, general.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.CommentCount)

		_, err = repo.GetComment(ctx, gone.ID)
		assert.Error(t, err)
	})

	t.Run("Toggle Reactions", func(t *testing.T) {
		set, err := repo.ToggleReaction(ctx, &models.Reaction{UserID: u.ID, TargetType: models.ReactionTargetThread, TargetID: general.ID, Emoji: "🔥"})
		require.NoError(t, err)
		assert.True(t, set)
		_, err = repo.ToggleReaction(ctx, &models.Reaction{UserID: other.ID, TargetType: models.ReactionTargetThread, TargetID: general.ID, Emoji: "🔥"})
		require.NoError(t, err)
		_, err = repo.ToggleReaction(ctx, &models.Reaction{UserID: other.ID, TargetType: models.ReactionTargetThread, TargetID: general.ID, Emoji: "👍"})
		require.NoError(t, err)

		counts, err := repo.CountReactions(ctx, models.ReactionTargetThread, general.ID)
		require.NoError(t, err)
		require.Len(t, counts, 2)
		assert.Equal(t, models.ReactionCount{Emoji: "🔥", Count: 2}, counts[0])

		set, err = repo.ToggleReaction(ctx, &models.Reaction{UserID: u.ID, TargetType: models.ReactionTargetThread, TargetID: general.ID, Emoji: "🔥"})
		require.NoError(t, err)
		assert.False(t, set)
		counts, _ = repo.CountReactions(ctx, models.ReactionTargetThread, general.ID)
		for _, c := range counts {
			assert.Equal(t, int64(1), c.Count)
		}
	})

	t.Run("Saved Threads", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, other.ID, general.ID))
		require.NoError(t, repo.Save(ctx, other.ID, general.ID))
		require.NoError(t, repo.Save(ctx, other.ID, craft.ID))

		saved, err := repo.ListSaved(ctx, other.ID, 10, 0)
		require.NoError(t, err)
		assert.Len(t, saved, 2)

		require.NoError(t, repo.Unsave(ctx, other.ID, craft.ID))
		saved, err = repo.ListSaved(ctx, other.ID, 10, 0)
		require.NoError(t, err)
		require.Len(t, saved, 1)
		assert.Equal(t, general.ID, saved[0].ID)
	})

	t.Run("Soft Delete And Views", func(t *testing.T) {
		require.NoError(t, repo.IncrementViews(ctx, craft.ID))
		got, err := repo.GetByID(ctx, craft.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.ViewCount)

		require.NoError(t, repo.SoftDelete(ctx, craft.ID))
		_, err = repo.GetByID(ctx, craft.ID)
		appErr, ok := models.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, models.CodeNotFound, appErr.Code)
	})
}

func TestAnalyticsRepository(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewAnalyticsRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	testutil.CreateUser(t, db, "reader")
	mira := testutil.CreateCharacter(t, db, author.ID, "Mira")
	kade := testutil.CreateCharacter(t, db, author.ID, "Kade")
	novel := testutil.CreateNovel(t, db, author.ID, "Top", "Fantasy")
	require.NoError(t, db.Model(novel).Update("view_count", 10).Error)
	testutil.CreateNovel(t, db, author.ID, "Second", "Fantasy")
	testutil.CreateNovel(t, db, author.ID, "Third", "Horror")

	sessions := []models.GroupChatSession{
		{UserID: author.ID, CharacterIDs: []uint{mira.ID, kade.ID}, IsActive: true, Messages: []models.ChatMessage{
			{Role: models.ChatRoleUser, Content: "hi"},
			{Role: models.ChatRoleCharacter, Content: "hello"},
			{Role: models.ChatRoleCharacter, Content: "hey"},
		}},
		{UserID: author.ID, CharacterIDs: []uint{mira.ID}, IsActive: false, Messages: []models.ChatMessage{}},
	}
	require.NoError(t, db.Create(&sessions).Error)

	total, err := repo.Count(ctx, &models.User{}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	active, err := repo.Count(ctx, &models.GroupChatSession{}, "is_active = ?", true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), active)

	genres, err := repo.GroupCount(ctx, &models.Novel{}, "genre", "is_deleted = ?", false)
	require.NoError(t, err)
	require.Len(t, genres, 2)
	assert.Equal(t, KeyCount{Key: "Fantasy", Count: 2}, genres[0])

	roles, err := repo.MessagesByRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, []KeyCount{{Key: models.ChatRoleCharacter, Count: 2}, {Key: models.ChatRoleUser, Count: 1}}, roles)

	top, err := repo.TopCharactersBySessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, RankedItem{ID: mira.ID, Name: "Mira", Value: 2}, top[0])

	novels, err := repo.TopNovelsByViews(ctx, 1)
	require.NoError(t, err)
	require.Len(t, novels, 1)
	assert.Equal(t, "Top", novels[0].Name)

	days, err := repo.CreatedPerDay(ctx, &models.User{}, time.Now().AddDate(0, 0, -6))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(days), 7)
	var sum int64
	for _, d := range days {
		sum += d.Count
	}
	assert.Equal(t, int64(2), sum)
}
