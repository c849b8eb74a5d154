// Package service holds FableWeaver's business logic on top of the repositories.
package service

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
	"unicode/utf8"

	"fableweaver/internal/notifications"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ClampPage bounds limit to 1..MaxPageSize (DefaultPageSize when unset) and
// offset to >= 0.
func ClampPage(limit, offset int) (int, int) {
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	return limit, max(offset, 0)
}

// publish sends a realtime event and only logs failures; the write that
// triggered it has already succeeded.
func publish(ctx context.Context, pub notifications.Publisher, userID uint, eventType string, payload any) {
	if pub == nil || userID == 0 {
		return
	}
	if err := pub.PublishUser(ctx, userID, eventType, payload); err != nil {
		slog.WarnContext(ctx, "realtime publish failed",
			slog.String("event", eventType),
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()))
	}
}

// goSafe runs fn on its own goroutine and logs a panic instead of crashing.
func goSafe(ctx context.Context, name string, fn func(context.Context)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "panic in background task",
					slog.String("task", name),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
			}
		}()
		fn(ctx)
	}()
}

// truncateRunes cuts s to at most n runes, ending with an ellipsis when cut.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n == 1 {
		return "…"
	}
	return strings.TrimRightFunc(string(runes[:n-1]), isSpace) + "…"
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}

// wordCount counts whitespace separated words.
func wordCount(s string) int {
	return len(strings.Fields(s))
}
