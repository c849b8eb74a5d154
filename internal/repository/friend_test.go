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

func TestFriendRepository_Integration(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewFriendRepository(db)
	ctx := context.Background()

	u1 := testutil.CreateUser(t, db, "f")
	u2 := testutil.CreateUser(t, db, "f")

	t.Run("Create and GetPendingRequests", func(t *testing.T) {
		friendship := &models.Friendship{
			RequesterID: u1.ID,
			AddresseeID: u2.ID,
			Status:      models.FriendshipStatusPending,
		}

		err := repo.Create(ctx, friendship)
		require.NoError(t, err)

		reqs, err := repo.GetPendingRequests(ctx, u2.ID)
		assert.NoError(t, err)
		assert.Len(t, reqs, 1)
		assert.Equal(t, u1.ID, reqs[0].RequesterID)

		sent, err := repo.GetSentRequests(ctx, u1.ID)
		assert.NoError(t, err)
		assert.Len(t, sent, 1)
	})

	t.Run("Duplicate Request Conflicts", func(t *testing.T) {
		err := repo.Create(ctx, &models.Friendship{RequesterID: u1.ID, AddresseeID: u2.ID, Status: models.FriendshipStatusPending})
		appErr, ok := models.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, models.CodeConflict, appErr.Code)
	})

	t.Run("UpdateStatus and GetFriends", func(t *testing.T) {
		f, _ := repo.GetFriendshipBetweenUsers(ctx, u2.ID, u1.ID)
		require.NotNil(t, f)
		err := repo.UpdateStatus(ctx, f.ID, models.FriendshipStatusAccepted)
		assert.NoError(t, err)

		friends, err := repo.GetFriends(ctx, u1.ID)
		assert.NoError(t, err)
		assert.Len(t, friends, 1)
		assert.Equal(t, u2.Username, friends[0].Username)

		ok, err := repo.AreFriends(ctx, u2.ID, u1.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("RemoveFriendship", func(t *testing.T) {
		require.NoError(t, repo.RemoveFriendship(ctx, u2.ID, u1.ID))

		friends, _ := repo.GetFriends(ctx, u1.ID)
		assert.Empty(t, friends)
		f, err := repo.GetFriendshipBetweenUsers(ctx, u1.ID, u2.ID)
		assert.NoError(t, err)
		assert.Nil(t, f)
	})
}

func TestDirectMessageRepository(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewDirectMessageRepository(db)
	ctx := context.Background()

	me := testutil.CreateUser(t, db, "me")
	ann := testutil.CreateUser(t, db, "ann")
	bo := testutil.CreateUser(t, db, "bo")

	send := func(from, to uint, content string) {
		require.NoError(t, repo.Create(ctx, &models.FriendMessage{SenderID: from, ReceiverID: to, Content: content}))
	}
	send(ann.ID, me.ID, "hi")
	send(me.ID, ann.ID, "hey")
	send(ann.ID, me.ID, "how are you")
	send(bo.ID, me.ID, "yo")

	t.Run("Conversation Newest First", func(t *testing.T) {
		msgs, err := repo.ListConversation(ctx, me.ID, ann.ID, 10, 0)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, "how are you", msgs[0].Content)

		page, err := repo.ListConversation(ctx, me.ID, ann.ID, 2, 2)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "hi", page[0].Content)
	})

	t.Run("Conversations With Unread Counts", func(t *testing.T) {
		convs, err := repo.ListConversations(ctx, me.ID)
		require.NoError(t, err)
		require.Len(t, convs, 2)
		assert.Equal(t, bo.ID, convs[0].Friend.ID)
		assert.Equal(t, int64(1), convs[0].UnreadCount)
		assert.Equal(t, ann.ID, convs[1].Friend.ID)
		assert.Equal(t, int64(2), convs[1].UnreadCount)
		assert.Equal(t, "how are you", convs[1].LastMessage.Content)
	})

	t.Run("Mark Read", func(t *testing.T) {
		n, err := repo.MarkRead(ctx, me.ID, ann.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		convs, err := repo.ListConversations(ctx, me.ID)
		require.NoError(t, err)
		for _, c := range convs {
			if c.Friend.ID == ann.ID {
				assert.Zero(t, c.UnreadCount)
			}
		}

		var msg models.FriendMessage
		require.NoError(t, db.Where("sender_id = ?", ann.ID).First(&msg).Error)
		require.NotNil(t, msg.ReadAt)
		assert.WithinDuration(t, time.Now(), *msg.ReadAt, time.Minute)
	})

	t.Run("Empty Inbox", func(t *testing.T) {
		lonely := testutil.CreateUser(t, db, "lonely")
		convs, err := repo.ListConversations(ctx, lonely.ID)
		require.NoError(t, err)
		assert.Empty(t, convs)
	})
}

func TestNotificationRepository(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, "n")
	other := testutil.CreateUser(t, db, "n")
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.Notification{UserID: u.ID, Type: models.NotificationFriendRequest, Title: "hello"}))
	}
	require.NoError(t, repo.Create(ctx, &models.Notification{UserID: other.ID, Type: models.NotificationDirectMessage, Title: "dm"}))

	count, err := repo.UnreadCount(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	list, err := repo.List(ctx, u.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	require.NoError(t, repo.MarkRead(ctx, u.ID, list[0].ID))
	count, _ = repo.UnreadCount(ctx, u.ID)
	assert.Equal(t, int64(2), count)

	var foreign models.Notification
	require.NoError(t, db.Where("user_id = ?", other.ID).First(&foreign).Error)
	err = repo.MarkRead(ctx, u.ID, foreign.ID)
	appErr, ok := models.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, models.CodeNotFound, appErr.Code)

	n, err := repo.MarkAllRead(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	count, _ = repo.UnreadCount(ctx, u.ID)
	assert.Zero(t, count)
}
