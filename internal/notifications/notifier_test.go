package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.PublishUser(context.Background(), 1, EventNotification, map[string]any{"id": 1}))
	assert.NoError(t, n.PublishBroadcast(context.Background(), EventNotification, nil))
	assert.NoError(t, n.StartPatternSubscriber(context.Background(), func(string, string) {}))
}

func TestUserChannel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "notifications:user:1", UserChannel(1))
	assert.Equal(t, "notifications:user:100", UserChannel(100))

	id, ok := ParseUserChannel("notifications:user:42")
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)

	for _, bad := range []string{"notifications:user:", "notifications:user:0", "chat:conv:1", "notifications:user:x"} {
		_, ok := ParseUserChannel(bad)
		assert.False(t, ok, bad)
	}
}

func TestEncode(t *testing.T) {
	raw, err := Encode(EventFriendMessage, map[string]any{"content": "hi"})
	require.NoError(t, err)

	var env struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
		TS      int64          `json:"ts"`
	}
	require.NoError(t, sonic.UnmarshalString(raw, &env))
	assert.Equal(t, EventFriendMessage, env.Type)
	assert.Equal(t, "hi", env.Payload["content"])
	assert.NotZero(t, env.TS)
}

func TestNotifier_PublishReachesHub(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	hub := NewHub(nil)
	defer func() { _ = hub.Shutdown(context.Background()) }()
	client, err := hub.Register(9, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n := NewNotifier(rdb)
	require.NoError(t, hub.StartWiring(ctx, n))

	require.NoError(t, n.PublishUser(context.Background(), 9, EventChapterGenerated, map[string]any{"chapter_number": 3}))

	select {
	case msg := <-client.send:
		assert.Contains(t, string(msg), `"type":"chapter_generated"`)
		assert.Contains(t, string(msg), `"chapter_number":3`)
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestNotifier_SubscriberStopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())

	payloads := make(chan string, 4)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(_ string, payload string) {
		payloads <- payload
	}))

	require.NoError(t, n.PublishUser(context.Background(), 1, EventNotification, "before"))
	assert.Eventually(t, func() bool { return len(payloads) == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	assert.Eventually(t, func() bool {
		return mr.PubSubNumPat() == 0
	}, time.Second, 10*time.Millisecond)
}
