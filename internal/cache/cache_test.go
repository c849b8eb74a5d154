package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() {
		SetClient(nil)
		mr.Close()
	})
	return mr
}

type cachedNovel struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

func TestAsideCachesFetchResult(t *testing.T) {
	mr := setupRedis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *cachedNovel) func() error {
		return func() error {
			calls++
			*dest = cachedNovel{ID: 3, Title: "The Glass Orchard"}
			return nil
		}
	}

	var first cachedNovel
	require.NoError(t, Aside(ctx, NovelKey(3), &first, NovelTTL, fetch(&first)))
	var second cachedNovel
	require.NoError(t, Aside(ctx, NovelKey(3), &second, NovelTTL, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, "The Glass Orchard", second.Title)
	assert.True(t, mr.Exists("novel:3"))
	assert.Equal(t, NovelTTL, mr.TTL("novel:3"))
}

func TestAsidePropagatesFetchError(t *testing.T) {
	setupRedis(t)
	want := errors.New("boom")

	var dest cachedNovel
	err := Aside(context.Background(), NovelKey(9), &dest, NovelTTL, func() error { return want })
	assert.ErrorIs(t, err, want)
}

func TestAsideWithoutRedisFallsThrough(t *testing.T) {
	SetClient(nil)
	calls := 0
	var dest cachedNovel
	for i := 0; i < 2; i++ {
		require.NoError(t, Aside(context.Background(), NovelKey(1), &dest, NovelTTL, func() error {
			calls++
			return nil
		}))
	}
	assert.Equal(t, 2, calls)
}

func TestAcquireLockIsExclusive(t *testing.T) {
	mr := setupRedis(t)
	ctx := context.Background()

	lock, err := AcquireLock(ctx, ChatTurnKey(5), time.Minute)
	require.NoError(t, err)

	_, err = AcquireLock(ctx, ChatTurnKey(5), time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, lock.Release(ctx))
	assert.False(t, mr.Exists("chat:turn:5"))

	again, err := AcquireLock(ctx, ChatTurnKey(5), time.Minute)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestReleaseDoesNotDropForeignLock(t *testing.T) {
	mr := setupRedis(t)
	ctx := context.Background()

	lock, err := AcquireLock(ctx, ChatTurnKey(8), time.Second)
	require.NoError(t, err)

	// Simulate expiry followed by another holder taking the key.
	require.NoError(t, mr.Set("chat:turn:8", "someone-else"))
	require.NoError(t, lock.Release(ctx))

	v, err := mr.Get("chat:turn:8")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}

func TestRefreshExtendsOwnLockOnly(t *testing.T) {
	mr := setupRedis(t)
	ctx := context.Background()

	lock, err := AcquireLock(ctx, ChatTurnKey(9), time.Minute)
	require.NoError(t, err)

	mr.FastForward(50 * time.Second)
	require.NoError(t, lock.Refresh(ctx, time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("chat:turn:9"))

	mr.FastForward(61 * time.Second)
	assert.False(t, mr.Exists("chat:turn:9"))
	assert.ErrorIs(t, lock.Refresh(ctx, time.Minute), ErrLockHeld)

	require.NoError(t, mr.Set("chat:turn:9", "someone-else"))
	assert.ErrorIs(t, lock.Refresh(ctx, time.Minute), ErrLockHeld)
	assert.Zero(t, mr.TTL("chat:turn:9"), "foreign key left untouched")
}

func TestAcquireLockWithoutRedis(t *testing.T) {
	SetClient(nil)
	_, err := AcquireLock(context.Background(), ChatTurnKey(1), time.Minute)
	assert.ErrorIs(t, err, ErrNoRedis)
}

func TestWSTicketSingleUse(t *testing.T) {
	setupRedis(t)
	ctx := context.Background()

	ticket, err := IssueWSTicket(ctx, 42)
	require.NoError(t, err)

	userID, ok, err := RedeemWSTicket(ctx, ticket)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint(42), userID)

	_, ok, err = RedeemWSTicket(ctx, ticket)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRevokeToken(t *testing.T) {
	setupRedis(t)
	ctx := context.Background()

	assert.False(t, IsTokenRevoked(ctx, "jti-1"))
	require.NoError(t, RevokeToken(ctx, "jti-1", time.Hour))
	assert.True(t, IsTokenRevoked(ctx, "jti-1"))
}

func TestImageSearchKeyNormalizes(t *testing.T) {
	assert.Equal(t, ImageSearchKey("Castle at Dusk"), ImageSearchKey("  castle at dusk "))
	assert.NotEqual(t, ImageSearchKey("castle"), ImageSearchKey("forest"))
}
