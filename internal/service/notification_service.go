package service

import (
	"context"
	"log/slog"

	"fableweaver/internal/models"
	"fableweaver/internal/notifications"
	"fableweaver/internal/repository"
)

// NotificationService persists inbox entries and pushes them realtime.
type NotificationService struct {
	repo      repository.NotificationRepository
	publisher notifications.Publisher
}

func NewNotificationService(repo repository.NotificationRepository, publisher notifications.Publisher) *NotificationService {
	return &NotificationService{repo: repo, publisher: publisher}
}

// NotifyInput describes one notification.
type NotifyInput struct {
	UserID  uint
	ActorID uint
	Type    models.NotificationType
	Title   string
	Body    string
	Link    string
}

// Notify stores the notification and publishes it. Callers treat a failure as
// a side effect that never undoes their own write, so errors are only logged.
func (s *NotificationService) Notify(ctx context.Context, in NotifyInput) *models.Notification {
	if s == nil || in.UserID == 0 || in.UserID == in.ActorID {
		return nil
	}
	n := &models.Notification{
		UserID: in.UserID,
		Type:   in.Type,
		Title:  in.Title,
		Body:   in.Body,
		Link:   in.Link,
	}
	if in.ActorID != 0 {
		actor := in.ActorID
		n.ActorID = &actor
	}
	if err := s.repo.Create(ctx, n); err != nil {
		slog.WarnContext(ctx, "failed to store notification",
			slog.String("type", string(in.Type)),
			slog.Uint64("user_id", uint64(in.UserID)),
			slog.String("error", err.Error()))
		return nil
	}
	publish(ctx, s.publisher, in.UserID, notifications.EventNotification, n)
	return n
}

func (s *NotificationService) List(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error) {
	limit, offset = ClampPage(limit, offset)
	return s.repo.List(ctx, userID, limit, offset)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}
