package repository

import (
	"context"
	"testing"

	"fableweaver/internal/models"
	"fableweaver/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCharacterRepository(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewCharacterRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db, "author")
	novel := testutil.CreateNovel(t, db, author.ID, "Linked", "Fantasy")
	mira := testutil.CreateCharacter(t, db, author.ID, "Mira")
	kade := testutil.CreateCharacter(t, db, author.ID, "Kade")

	t.Run("Link Is Idempotent", func(t *testing.T) {
		require.NoError(t, repo.Link(ctx, novel.ID, mira.ID, models.CharacterRoleProtagonist))
		require.NoError(t, repo.Link(ctx, novel.ID, mira.ID, models.CharacterRoleAntagonist))
		require.NoError(t, repo.Link(ctx, novel.ID, kade.ID, models.CharacterRoleSupporting))

		links, err := repo.ListNovelCharacters(ctx, novel.ID)
		require.NoError(t, err)
		require.Len(t, links, 2)
		assert.Equal(t, "Mira", links[0].Character.Name)
		assert.Equal(t, models.CharacterRoleProtagonist, links[0].Role)
	})

	t.Run("Recent Progressions", func(t *testing.T) {
		for i := 1; i <= 12; i++ {
			require.NoError(t, repo.AddProgression(ctx, &models.CharacterProgression{
				NovelID: novel.ID, CharacterID: mira.ID, ChapterID: uint(i), ChapterNumber: i, Development: "grows",
			}))
		}
		rows, err := repo.RecentProgressions(ctx, novel.ID, 10)
		require.NoError(t, err)
		require.Len(t, rows, 10)
		assert.Equal(t, 12, rows[0].ChapterNumber)
		assert.Equal(t, "Mira", rows[0].Character.Name)
	})

	t.Run("Deactivate Hides From Listings", func(t *testing.T) {
		require.NoError(t, repo.Deactivate(ctx, kade.ID))

		mine, err := repo.ListByCreator(ctx, author.ID, 10, 0)
		require.NoError(t, err)
		assert.Len(t, mine, 1)

		public, total, err := repo.ListPublic(ctx, "", 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, "Mira", public[0].Name)

		err = repo.Deactivate(ctx, 9999)
		appErr, ok := models.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, models.CodeNotFound, appErr.Code)
	})

	t.Run("Public Search", func(t *testing.T) {
		found, _, err := repo.ListPublic(ctx, "MI", 10, 0)
		require.NoError(t, err)
		assert.Len(t, found, 1)
		found, _, err = repo.ListPublic(ctx, "zed", 10, 0)
		require.NoError(t, err)
		assert.Empty(t, found)
	})
}

func TestGroupChatRepository(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewGroupChatRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "chatter")
	session := &models.GroupChatSession{UserID: user.ID, Title: "Tavern", CharacterIDs: []uint{3, 1}, IsActive: true}
	require.NoError(t, repo.Create(ctx, session))

	msgs := []models.ChatMessage{
		{Role: models.ChatRoleUser, SenderID: user.ID, Content: "hello"},
		{Role: models.ChatRoleCharacter, SenderID: 3, SenderName: "Mira", Content: "hi"},
	}
	require.NoError(t, repo.SaveMessages(ctx, session.ID, msgs))

	got, err := repo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{3, 1}, []uint(got.CharacterIDs))
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "Mira", got.Messages[1].SenderName)

	got.Title = "Inn"
	got.AutoChat = true
	require.NoError(t, repo.Update(ctx, got))

	list, err := repo.ListByUser(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Inn", list[0].Title)
	assert.True(t, list[0].AutoChat)
	assert.Empty(t, list[0].Messages)

	require.NoError(t, repo.Deactivate(ctx, session.ID))
	list, err = repo.ListByUser(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = repo.GetByID(ctx, 999)
	appErr, ok := models.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, models.CodeNotFound, appErr.Code)
}
