package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	UserKeyPrefix           = "user:%d"
	NovelKeyPrefix          = "novel:%d"
	NovelViewsKeyPrefix     = "novel:views:%d"
	RecommendationKeyPrefix = "recs:user:%d"
	ChatTurnKeyPrefix       = "chat:turn:%d"
	WSTicketKeyPrefix       = "ws_ticket:%s"
	ImageSearchKeyPrefix    = "image_search:%s"
	AdminDashboardKey       = "admin:dashboard"
	AdminUserAnalyticsKey   = "admin:user_analytics"
)

const (
	UserTTL           = 5 * time.Minute
	NovelTTL          = 10 * time.Minute
	ListTTL           = 2 * time.Minute
	RecommendationTTL = 10 * time.Minute
	DashboardTTL      = time.Minute
	ImageSearchTTL    = time.Hour
	WSTicketTTL       = time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func NovelKey(novelID uint) string {
	return fmt.Sprintf(NovelKeyPrefix, novelID)
}

// NovelViewsKey buffers view increments until the next flush.
func NovelViewsKey(novelID uint) string {
	return fmt.Sprintf(NovelViewsKeyPrefix, novelID)
}

func RecommendationKey(userID uint) string {
	return fmt.Sprintf(RecommendationKeyPrefix, userID)
}

func ChatTurnKey(sessionID uint) string {
	return fmt.Sprintf(ChatTurnKeyPrefix, sessionID)
}

func WSTicketKey(ticket string) string {
	return fmt.Sprintf(WSTicketKeyPrefix, ticket)
}

// ImageSearchKey hashes the normalized query so arbitrary user input stays out of key names.
func ImageSearchKey(query string) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(query))))
	return fmt.Sprintf(ImageSearchKeyPrefix, hex.EncodeToString(sum[:]))
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID), RecommendationKey(userID))
}

func InvalidateNovel(ctx context.Context, novelID uint) {
	Invalidate(ctx, NovelKey(novelID), AdminDashboardKey)
}
