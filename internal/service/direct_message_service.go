package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"fableweaver/internal/models"
	"fableweaver/internal/notifications"
	"fableweaver/internal/repository"
)

const maxDirectMessageLen = 2000

// DirectMessageService carries messages between accepted friends.
type DirectMessageService struct {
	repo       repository.DirectMessageRepository
	friendRepo repository.FriendRepository
	userRepo   repository.UserRepository
	notifier   *NotificationService
	publisher  notifications.Publisher
}

func NewDirectMessageService(
	repo repository.DirectMessageRepository,
	friendRepo repository.FriendRepository,
	userRepo repository.UserRepository,
	notifier *NotificationService,
	publisher notifications.Publisher,
) *DirectMessageService {
	return &DirectMessageService{
		repo:       repo,
		friendRepo: friendRepo,
		userRepo:   userRepo,
		notifier:   notifier,
		publisher:  publisher,
	}
}

func (s *DirectMessageService) requireFriends(ctx context.Context, userID, otherID uint) error {
	if userID == otherID {
		return models.NewValidationError("Cannot message yourself")
	}
	ok, err := s.friendRepo.AreFriends(ctx, userID, otherID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewForbiddenError("You can only message friends")
	}
	return nil
}

// Send stores a message from senderID to receiverID and pushes it to the receiver.
func (s *DirectMessageService) Send(ctx context.Context, senderID, receiverID uint, content string) (*models.FriendMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.NewValidationError("Message cannot be empty")
	}
	if utf8.RuneCountInString(content) > maxDirectMessageLen {
		return nil, models.NewValidationError(fmt.Sprintf("Message too long (max %d characters)", maxDirectMessageLen))
	}
	if err := s.requireFriends(ctx, senderID, receiverID); err != nil {
		return nil, err
	}

	msg := &models.FriendMessage{SenderID: senderID, ReceiverID: receiverID, Content: content}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, receiverID, notifications.EventFriendMessage, msg)

	title := "New message"
	if sender, err := s.userRepo.GetByID(ctx, senderID); err == nil {
		title = fmt.Sprintf("New message from %s", sender.Username)
	}
	s.notifier.Notify(ctx, NotifyInput{
		UserID:  receiverID,
		ActorID: senderID,
		Type:    models.NotificationDirectMessage,
		Title:   title,
		Body:    truncateRunes(content, 140),
		Link:    fmt.Sprintf("/messages/%d", senderID),
	})
	return msg, nil
}

// Conversation lists messages between userID and otherID, newest first.
func (s *DirectMessageService) Conversation(ctx context.Context, userID, otherID uint, limit, offset int) ([]models.FriendMessage, error) {
	if err := s.requireFriends(ctx, userID, otherID); err != nil {
		return nil, err
	}
	limit, offset = ClampPage(limit, offset)
	return s.repo.ListConversation(ctx, userID, otherID, limit, offset)
}

// MarkRead marks every message otherID sent to userID as read.
func (s *DirectMessageService) MarkRead(ctx context.Context, userID, otherID uint) (int64, error) {
	return s.repo.MarkRead(ctx, userID, otherID)
}

func (s *DirectMessageService) Conversations(ctx context.Context, userID uint) ([]models.DirectConversation, error) {
	return s.repo.ListConversations(ctx, userID)
}
