package service

import (
	"context"
	"strings"
	"testing"

	"fableweaver/internal/models"
	"fableweaver/internal/notifications"
)

type dmRepoStub struct {
	created  []models.FriendMessage
	listArgs [2]int
}

func (s *dmRepoStub) Create(_ context.Context, msg *models.FriendMessage) error {
	msg.ID = uint(len(s.created) + 1)
	s.created = append(s.created, *msg)
	return nil
}
func (s *dmRepoStub) ListConversation(_ context.Context, _, _ uint, limit, offset int) ([]models.FriendMessage, error) {
	s.listArgs = [2]int{limit, offset}
	return s.created, nil
}
func (s *dmRepoStub) MarkRead(context.Context, uint, uint) (int64, error) {
	return int64(len(s.created)), nil
}
func (s *dmRepoStub) ListConversations(context.Context, uint) ([]models.DirectConversation, error) {
	return nil, nil
}

func friendsWith(ids ...uint) *friendRepoStub {
	return &friendRepoStub{
		areFriendsFn: func(_ context.Context, a, b uint) (bool, error) {
			for _, id := range ids {
				if a == id || b == id {
					return true, nil
				}
			}
			return false, nil
		},
	}
}

func TestDirectMessageSendNotifiesReceiver(t *testing.T) {
	repo := &dmRepoStub{}
	notes := &notificationRepoStub{}
	pub := &recordingPublisher{}
	users := &userRepoStub{getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
		return &models.User{ID: id, Username: "ada"}, nil
	}}
	svc := NewDirectMessageService(repo, friendsWith(2), users, NewNotificationService(notes, pub), pub)

	msg, err := svc.Send(context.Background(), 1, 2, "  see you at the lighthouse  ")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if msg.Content != "see you at the lighthouse" || msg.ReceiverID != 2 {
		t.Fatalf("unexpected message %+v", msg)
	}

	events := pub.ofType(notifications.EventFriendMessage)
	if len(events) != 1 || events[0].UserID != 2 {
		t.Fatalf("expected friend_message event for receiver, got %+v", events)
	}
	got := notes.all()
	if len(got) != 1 || got[0].Type != models.NotificationDirectMessage || got[0].Title != "New message from ada" {
		t.Fatalf("unexpected notifications %+v", got)
	}
}

func TestDirectMessageRules(t *testing.T) {
	svc := NewDirectMessageService(&dmRepoStub{}, friendsWith(2), &userRepoStub{}, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		to       uint
		content  string
		wantCode string
	}{
		{"blank", 2, "   ", models.CodeValidation},
		{"too long", 2, strings.Repeat("é", maxDirectMessageLen+1), models.CodeValidation},
		{"self", 1, "hello me", models.CodeValidation},
		{"stranger", 3, "hello", models.CodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Send(ctx, 1, tt.to, tt.content)
			assertCode(t, err, tt.wantCode)
		})
	}
}

func TestDirectMessageConversationClampsPage(t *testing.T) {
	repo := &dmRepoStub{}
	svc := NewDirectMessageService(repo, friendsWith(2), &userRepoStub{}, nil, nil)

	if _, err := svc.Conversation(context.Background(), 1, 2, 500, -4); err != nil {
		t.Fatalf("conversation failed: %v", err)
	}
	if repo.listArgs != [2]int{100, 0} {
		t.Fatalf("expected clamped page, got %v", repo.listArgs)
	}

	_, err := svc.Conversation(context.Background(), 1, 3, 20, 0)
	assertCode(t, err, models.CodeForbidden)
}
