package notifications

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceOnlineSetKey  = "ws:online_users"
	presenceLastSeenKeyNS = "ws:last_seen:"
	presenceTTL           = 90 * time.Second
	defaultOfflineGrace   = 5 * time.Second
	defaultReaperInterval = time.Minute
)

// Presence counts local connections per user, mirrors them into Redis so
// other instances can see them, and reports online/offline transitions.
// Going offline waits for a grace period so quick reconnects stay silent.
type Presence struct {
	rdb *redis.Client

	mu              sync.Mutex
	local           map[uint]int
	offlineTimers   map[uint]*time.Timer
	offlineNotified map[uint]bool
	offlineGrace    time.Duration

	onOnline  func(userID uint)
	onOffline func(userID uint)

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewPresence starts the stale-entry reaper when rdb is set.
func NewPresence(rdb *redis.Client, reaperInterval time.Duration) *Presence {
	p := &Presence{
		rdb:             rdb,
		local:           make(map[uint]int),
		offlineTimers:   make(map[uint]*time.Timer),
		offlineNotified: make(map[uint]bool),
		offlineGrace:    defaultOfflineGrace,
		stopCh:          make(chan struct{}),
	}
	if rdb != nil && reaperInterval > 0 {
		go p.reaperLoop(reaperInterval)
	}
	return p
}

// SetCallbacks installs the transition hooks. Either may be nil.
func (p *Presence) SetCallbacks(onOnline, onOffline func(userID uint)) {
	p.mu.Lock()
	p.onOnline, p.onOffline = onOnline, onOffline
	p.mu.Unlock()
}

func (p *Presence) SetOfflineGracePeriod(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	p.offlineGrace = d
	p.mu.Unlock()
}

func (p *Presence) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.mu.Lock()
		for id, t := range p.offlineTimers {
			t.Stop()
			delete(p.offlineTimers, id)
		}
		p.mu.Unlock()
	})
}

// Connected records a new connection for userID.
func (p *Presence) Connected(ctx context.Context, userID uint) {
	wasOnline := p.IsOnline(ctx, userID)

	p.mu.Lock()
	if t, ok := p.offlineTimers[userID]; ok {
		t.Stop()
		delete(p.offlineTimers, userID)
	}
	p.local[userID]++
	p.offlineNotified[userID] = false
	cb := p.onOnline
	p.mu.Unlock()

	p.Touch(ctx, userID)
	if !wasOnline && cb != nil {
		cb(userID)
	}
}

// Disconnected drops one connection. The last one arms the offline timer.
func (p *Presence) Disconnected(userID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := p.local[userID] - 1; n > 0 {
		p.local[userID] = n
		return
	}
	delete(p.local, userID)
	if t, ok := p.offlineTimers[userID]; ok {
		t.Stop()
	}
	p.offlineTimers[userID] = time.AfterFunc(p.offlineGrace, func() {
		p.finalizeOffline(context.Background(), userID)
	})
}

// Touch refreshes the user's last-seen key.
func (p *Presence) Touch(ctx context.Context, userID uint) {
	if p.rdb == nil {
		return
	}
	uid := strconv.FormatUint(uint64(userID), 10)
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, presenceOnlineSetKey, uid)
		pipe.Set(ctx, presenceLastSeenKeyNS+uid, time.Now().Unix(), presenceTTL)
		return nil
	})
	if err != nil {
		slog.WarnContext(ctx, "presence touch failed", slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
	}
}

// IsOnline checks local connections first, then Redis.
func (p *Presence) IsOnline(ctx context.Context, userID uint) bool {
	p.mu.Lock()
	n := p.local[userID]
	p.mu.Unlock()
	if n > 0 {
		return true
	}
	if p.rdb == nil {
		return false
	}
	exists, err := p.rdb.Exists(ctx, presenceLastSeenKeyNS+strconv.FormatUint(uint64(userID), 10)).Result()
	return err == nil && exists > 0
}

func (p *Presence) finalizeOffline(ctx context.Context, userID uint) {
	p.mu.Lock()
	delete(p.offlineTimers, userID)
	if p.local[userID] > 0 {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	if p.rdb != nil {
		uid := strconv.FormatUint(uint64(userID), 10)
		if exists, err := p.rdb.Exists(ctx, presenceLastSeenKeyNS+uid).Result(); err == nil && exists > 0 {
			// still refreshed by another instance
			return
		}
		_ = p.rdb.SRem(ctx, presenceOnlineSetKey, uid).Err()
	}
	p.emitOffline(userID)
}

// reapOnce removes online-set members whose last-seen key expired.
func (p *Presence) reapOnce(ctx context.Context) {
	if p.rdb == nil {
		return
	}
	members, err := p.rdb.SMembers(ctx, presenceOnlineSetKey).Result()
	if err != nil {
		return
	}
	for _, raw := range members {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			continue
		}
		if exists, err := p.rdb.Exists(ctx, presenceLastSeenKeyNS+raw).Result(); err != nil || exists > 0 {
			continue
		}
		_ = p.rdb.SRem(ctx, presenceOnlineSetKey, raw).Err()

		p.mu.Lock()
		hasLocal := p.local[uint(id)] > 0
		p.mu.Unlock()
		if !hasLocal {
			p.emitOffline(uint(id))
		}
	}
}

func (p *Presence) reaperLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.reapOnce(context.Background())
		}
	}
}

func (p *Presence) emitOffline(userID uint) {
	p.mu.Lock()
	if p.offlineNotified[userID] {
		p.mu.Unlock()
		return
	}
	p.offlineNotified[userID] = true
	cb := p.onOffline
	p.mu.Unlock()
	if cb != nil {
		cb(userID)
	}
}
