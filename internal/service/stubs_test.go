package service

import (
	"context"
	"sync"

	"fableweaver/internal/models"
	"fableweaver/internal/repository"
)

type userRepoStub struct {
	getByIDFn       func(context.Context, uint) (*models.User, error)
	getByIDsFn      func(context.Context, []uint) ([]models.User, error)
	getByEmailFn    func(context.Context, string) (*models.User, error)
	getByUsernameFn func(context.Context, string) (*models.User, error)
	createFn        func(context.Context, *models.User) error
	updateFn        func(context.Context, *models.User) error
	listFn          func(context.Context, repository.UserFilter) ([]models.User, int64, error)
	setBannedFn     func(context.Context, uint, bool) error
	setAdminFn      func(context.Context, uint, bool) error
	touched         []uint
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	if s.getByIDFn == nil {
		return &models.User{ID: id, Username: "user"}, nil
	}
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	if s.getByIDsFn == nil {
		return nil, nil
	}
	return s.getByIDsFn(ctx, ids)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.getByEmailFn == nil {
		return nil, nil
	}
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if s.getByUsernameFn == nil {
		return nil, nil
	}
	return s.getByUsernameFn(ctx, username)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, user)
}
func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, user)
}
func (s *userRepoStub) List(ctx context.Context, filter repository.UserFilter) ([]models.User, int64, error) {
	if s.listFn == nil {
		return nil, 0, nil
	}
	return s.listFn(ctx, filter)
}
func (s *userRepoStub) SetBanned(ctx context.Context, id uint, banned bool) error {
	if s.setBannedFn == nil {
		return nil
	}
	return s.setBannedFn(ctx, id, banned)
}
func (s *userRepoStub) SetAdmin(ctx context.Context, id uint, admin bool) error {
	if s.setAdminFn == nil {
		return nil
	}
	return s.setAdminFn(ctx, id, admin)
}
func (s *userRepoStub) TouchLastActive(_ context.Context, id uint) error {
	s.touched = append(s.touched, id)
	return nil
}

type friendRepoStub struct {
	createFn                    func(context.Context, *models.Friendship) error
	getByIDFn                   func(context.Context, uint) (*models.Friendship, error)
	getFriendshipBetweenUsersFn func(context.Context, uint, uint) (*models.Friendship, error)
	areFriendsFn                func(context.Context, uint, uint) (bool, error)
	updateStatusFn              func(context.Context, uint, models.FriendshipStatus) error
	deleteFn                    func(context.Context, uint) error
	removeFriendshipFn          func(context.Context, uint, uint) error
}

func (s *friendRepoStub) Create(ctx context.Context, friendship *models.Friendship) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, friendship)
}
func (s *friendRepoStub) GetByID(ctx context.Context, id uint) (*models.Friendship, error) {
	if s.getByIDFn == nil {
		return &models.Friendship{ID: id}, nil
	}
	return s.getByIDFn(ctx, id)
}
func (s *friendRepoStub) GetFriendshipBetweenUsers(ctx context.Context, userID1, userID2 uint) (*models.Friendship, error) {
	if s.getFriendshipBetweenUsersFn == nil {
		return nil, nil
	}
	return s.getFriendshipBetweenUsersFn(ctx, userID1, userID2)
}
func (s *friendRepoStub) GetFriends(context.Context, uint) ([]models.User, error) { return nil, nil }
func (s *friendRepoStub) AreFriends(ctx context.Context, userID1, userID2 uint) (bool, error) {
	if s.areFriendsFn == nil {
		return false, nil
	}
	return s.areFriendsFn(ctx, userID1, userID2)
}
func (s *friendRepoStub) GetPendingRequests(context.Context, uint) ([]models.Friendship, error) {
	return nil, nil
}
func (s *friendRepoStub) GetSentRequests(context.Context, uint) ([]models.Friendship, error) {
	return nil, nil
}
func (s *friendRepoStub) UpdateStatus(ctx context.Context, friendshipID uint, status models.FriendshipStatus) error {
	if s.updateStatusFn == nil {
		return nil
	}
	return s.updateStatusFn(ctx, friendshipID, status)
}
func (s *friendRepoStub) Delete(ctx context.Context, friendshipID uint) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, friendshipID)
}
func (s *friendRepoStub) RemoveFriendship(ctx context.Context, userID1, userID2 uint) error {
	if s.removeFriendshipFn == nil {
		return nil
	}
	return s.removeFriendshipFn(ctx, userID1, userID2)
}

type notificationRepoStub struct {
	mu      sync.Mutex
	created []models.Notification
}

func (s *notificationRepoStub) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = uint(len(s.created) + 1)
	s.created = append(s.created, *n)
	return nil
}
func (s *notificationRepoStub) List(context.Context, uint, int, int) ([]models.Notification, error) {
	return nil, nil
}
func (s *notificationRepoStub) UnreadCount(context.Context, uint) (int64, error) { return 0, nil }
func (s *notificationRepoStub) MarkRead(context.Context, uint, uint) error       { return nil }
func (s *notificationRepoStub) MarkAllRead(context.Context, uint) (int64, error) { return 0, nil }

func (s *notificationRepoStub) all() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Notification(nil), s.created...)
}

type publishedEvent struct {
	UserID  uint
	Type    string
	Payload any
}

// recordingPublisher captures realtime events instead of sending them.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishUser(_ context.Context, userID uint, eventType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{UserID: userID, Type: eventType, Payload: payload})
	return nil
}

func (p *recordingPublisher) ofType(eventType string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type staticFlags map[string]bool

func (f staticFlags) Enabled(name string, _ uint) bool { return f[name] }
