package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"fableweaver/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

const (
	maxConnsPerUser = 12
	maxTotalConns   = 10000
)

var (
	ErrUserConnLimit   = errors.New("user connection limit reached")
	ErrServerConnLimit = errors.New("server connection limit reached")
)

// Hub maps user ids to their live websocket clients.
type Hub struct {
	mu       sync.RWMutex
	conns    map[uint]map[*Client]struct{}
	total    int
	presence *Presence
}

// NewHub creates a Hub. Passing a Redis client enables cross-instance presence.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		conns:    make(map[uint]map[*Client]struct{}),
		presence: NewPresence(rdb, defaultReaperInterval),
	}
}

func (h *Hub) Name() string { return "notifications" }

// Presence exposes the hub's presence tracker.
func (h *Hub) Presence() *Presence { return h.presence }

// Register attaches conn for userID and enforces connection limits.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	if h.total >= maxTotalConns {
		h.mu.Unlock()
		return nil, ErrServerConnLimit
	}
	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, ErrUserConnLimit
	}
	client := newClient(h, conn, userID)
	client.OnActivity = func(uid uint) { h.presence.Touch(context.Background(), uid) }
	m[client] = struct{}{}
	h.total++
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Inc()
	h.presence.Connected(context.Background(), userID)
	return client, nil
}

// Unregister detaches client. Calling it twice is harmless.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	removed := false
	if m, ok := h.conns[client.UserID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.total--
			removed = true
		}
		if len(m) == 0 {
			delete(h.conns, client.UserID)
		}
	}
	h.mu.Unlock()

	if removed {
		client.close()
		observability.WebSocketConnectionsTotal.Dec()
		h.presence.Disconnected(client.UserID)
	}
}

// Send delivers message to every connection of userID and returns how many
// connections accepted it.
func (h *Hub) Send(userID uint, message string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	delivered := 0
	for c := range h.conns[userID] {
		if c.TrySend(data) {
			delivered++
		}
	}
	return delivered
}

// SendAll delivers message to every connected client.
func (h *Hub) SendAll(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	data := []byte(message)
	for _, clients := range h.conns {
		for c := range clients {
			c.TrySend(data)
		}
	}
}

// ConnectionCount returns the number of live connections for userID.
func (h *Hub) ConnectionCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID])
}

// Dispatch routes one pub/sub message to the matching connections.
func (h *Hub) Dispatch(channel, payload string) {
	if channel == broadcastChannel {
		h.SendAll(payload)
		return
	}
	userID, ok := ParseUserChannel(channel)
	if !ok {
		slog.Warn("invalid notification channel", slog.String("channel", channel))
		return
	}
	h.Send(userID, payload)
}

// StartWiring subscribes the hub to n's channels until ctx is done.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, h.Dispatch)
}

// Shutdown closes every client's queue; WritePump then sends the close frame
// and tears the connection down.
func (h *Hub) Shutdown(_ context.Context) error {
	h.presence.Stop()

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.conns {
		for client := range clients {
			client.close()
			observability.WebSocketConnectionsTotal.Dec()
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.total = 0
	return nil
}
