package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/ksuid"
)

// IssueWSTicket stores a short-lived single-use ticket for a WebSocket upgrade.
func IssueWSTicket(ctx context.Context, userID uint) (string, error) {
	if client == nil {
		return "", ErrNoRedis
	}
	ticket := ksuid.New().String()
	if err := client.Set(ctx, WSTicketKey(ticket), userID, WSTicketTTL).Err(); err != nil {
		return "", err
	}
	return ticket, nil
}

// RedeemWSTicket consumes ticket and returns its user. A ticket works once.
func RedeemWSTicket(ctx context.Context, ticket string) (uint, bool, error) {
	if client == nil {
		return 0, false, ErrNoRedis
	}
	raw, err := client.GetDel(ctx, WSTicketKey(ticket)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, false, nil
	}
	return uint(id), true, nil
}

// RevokeToken blacklists a JWT ID until the token would have expired anyway.
func RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if client == nil || jti == "" || ttl <= 0 {
		return nil
	}
	return client.Set(ctx, "blacklist:"+jti, 1, ttl).Err()
}

// IsTokenRevoked reports whether jti was blacklisted by RevokeToken.
func IsTokenRevoked(ctx context.Context, jti string) bool {
	if client == nil || jti == "" {
		return false
	}
	n, err := client.Exists(ctx, "blacklist:"+jti).Result()
	return err == nil && n > 0
}
