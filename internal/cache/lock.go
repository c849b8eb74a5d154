package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/ksuid"
)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock already held")

// ErrNoRedis is returned by distributed primitives when Redis is not configured.
var ErrNoRedis = errors.New("redis unavailable")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Lock is a held Redis lock. Release is safe to call more than once.
type Lock struct {
	key   string
	token string
}

// AcquireLock takes key with SET NX and an expiry so a crashed holder cannot wedge it.
func AcquireLock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	if client == nil {
		return nil, ErrNoRedis
	}
	token := ksuid.New().String()
	ok, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}
	return &Lock{key: key, token: token}, nil
}

// Release deletes the lock only if this holder still owns it.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil || client == nil {
		return nil
	}
	return releaseScript.Run(ctx, client, []string{l.key}, l.token).Err()
}

// Refresh pushes the expiry out to ttl. It returns ErrLockHeld when the key
// expired or now belongs to another holder.
func (l *Lock) Refresh(ctx context.Context, ttl time.Duration) error {
	if client == nil {
		return ErrNoRedis
	}
	n, err := refreshScript.Run(ctx, client, []string{l.key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockHeld
	}
	return nil
}
