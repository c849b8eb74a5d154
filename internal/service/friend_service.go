package service

import (
	"context"
	"fmt"

	"fableweaver/internal/models"
	"fableweaver/internal/repository"
)

// FriendService provides friend-request and friendship business logic.
type FriendService struct {
	friendRepo repository.FriendRepository
	userRepo   repository.UserRepository
	notifier   *NotificationService
}

// NewFriendService returns a new FriendService. notifier may be nil.
func NewFriendService(friendRepo repository.FriendRepository, userRepo repository.UserRepository, notifier *NotificationService) *FriendService {
	return &FriendService{
		friendRepo: friendRepo,
		userRepo:   userRepo,
		notifier:   notifier,
	}
}

// SendFriendRequest sends a friend request to the target user.
func (s *FriendService) SendFriendRequest(ctx context.Context, userID, targetUserID uint) (*models.Friendship, error) {
	if userID == targetUserID {
		return nil, models.NewValidationError("Cannot send friend request to yourself")
	}

	target, err := s.userRepo.GetByID(ctx, targetUserID)
	if err != nil {
		return nil, err
	}
	if target.IsBanned {
		return nil, models.NewNotFoundError("User", targetUserID)
	}

	existing, err := s.friendRepo.GetFriendshipBetweenUsers(ctx, userID, targetUserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		switch existing.Status {
		case models.FriendshipStatusAccepted:
			return nil, models.NewConflictError("You are already friends")
		case models.FriendshipStatusPending:
			if existing.RequesterID == userID {
				return nil, models.NewConflictError("Friend request already sent")
			}
			return nil, models.NewConflictError("You already have a pending friend request from this user")
		case models.FriendshipStatusBlocked:
			return nil, models.NewForbiddenError("Friend requests to this user are blocked")
		}
	}

	friendship := &models.Friendship{
		RequesterID: userID,
		AddresseeID: targetUserID,
		Status:      models.FriendshipStatusPending,
	}
	if err := s.friendRepo.Create(ctx, friendship); err != nil {
		return nil, err
	}

	created, err := s.friendRepo.GetByID(ctx, friendship.ID)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, NotifyInput{
		UserID:  targetUserID,
		ActorID: userID,
		Type:    models.NotificationFriendRequest,
		Title:   fmt.Sprintf("%s sent you a friend request", created.Requester.Username),
		Link:    "/friends/requests",
	})
	return created, nil
}

// GetPendingRequests returns pending friend requests for the user.
func (s *FriendService) GetPendingRequests(ctx context.Context, userID uint) ([]models.Friendship, error) {
	return s.friendRepo.GetPendingRequests(ctx, userID)
}

// GetSentRequests returns friend requests sent by the user.
func (s *FriendService) GetSentRequests(ctx context.Context, userID uint) ([]models.Friendship, error) {
	return s.friendRepo.GetSentRequests(ctx, userID)
}

func (s *FriendService) pendingRequest(ctx context.Context, requestID uint) (*models.Friendship, error) {
	friendship, err := s.friendRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if friendship.Status != models.FriendshipStatusPending {
		return nil, models.NewValidationError("Friend request is not pending")
	}
	return friendship, nil
}

// AcceptFriendRequest accepts a pending friend request addressed to userID.
func (s *FriendService) AcceptFriendRequest(ctx context.Context, userID, requestID uint) (*models.Friendship, error) {
	friendship, err := s.friendRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if friendship.AddresseeID != userID {
		return nil, models.NewForbiddenError("You can only accept friend requests sent to you")
	}
	if friendship.Status != models.FriendshipStatusPending {
		return nil, models.NewValidationError("Friend request is not pending")
	}

	if err := s.friendRepo.UpdateStatus(ctx, requestID, models.FriendshipStatusAccepted); err != nil {
		return nil, err
	}

	accepted, err := s.friendRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, NotifyInput{
		UserID:  accepted.RequesterID,
		ActorID: userID,
		Type:    models.NotificationFriendAccepted,
		Title:   fmt.Sprintf("%s accepted your friend request", accepted.Addressee.Username),
		Link:    fmt.Sprintf("/messages/%d", userID),
	})
	return accepted, nil
}

// RejectFriendRequest declines a pending request addressed to userID.
func (s *FriendService) RejectFriendRequest(ctx context.Context, userID, requestID uint) (*models.Friendship, error) {
	friendship, err := s.pendingRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if friendship.AddresseeID != userID {
		return nil, models.NewForbiddenError("You can only reject friend requests sent to you")
	}
	if err := s.friendRepo.Delete(ctx, requestID); err != nil {
		return nil, err
	}
	return friendship, nil
}

// CancelFriendRequest withdraws a pending request sent by userID.
func (s *FriendService) CancelFriendRequest(ctx context.Context, userID, requestID uint) (*models.Friendship, error) {
	friendship, err := s.pendingRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if friendship.RequesterID != userID {
		return nil, models.NewForbiddenError("You can only cancel requests you sent")
	}
	if err := s.friendRepo.Delete(ctx, requestID); err != nil {
		return nil, err
	}
	return friendship, nil
}

// GetFriends returns the list of friends for the user.
func (s *FriendService) GetFriends(ctx context.Context, userID uint) ([]models.User, error) {
	return s.friendRepo.GetFriends(ctx, userID)
}

// GetFriendshipStatus returns the friendship status between two users.
func (s *FriendService) GetFriendshipStatus(ctx context.Context, userID, targetUserID uint) (string, uint, error) {
	if _, err := s.userRepo.GetByID(ctx, targetUserID); err != nil {
		return "", 0, err
	}

	friendship, err := s.friendRepo.GetFriendshipBetweenUsers(ctx, userID, targetUserID)
	if err != nil {
		return "", 0, err
	}

	status := "none"
	var requestID uint
	if friendship != nil {
		switch friendship.Status {
		case models.FriendshipStatusAccepted:
			status = "friends"
		case models.FriendshipStatusPending:
			requestID = friendship.ID
			if friendship.RequesterID == userID {
				status = "pending_sent"
			} else {
				status = "pending_received"
			}
		default:
			status = string(friendship.Status)
		}
	}

	return status, requestID, nil
}

// RemoveFriend removes an accepted friendship between two users.
func (s *FriendService) RemoveFriend(ctx context.Context, userID, targetUserID uint) (*models.Friendship, error) {
	friendship, err := s.friendRepo.GetFriendshipBetweenUsers(ctx, userID, targetUserID)
	if err != nil {
		return nil, err
	}
	if friendship == nil || friendship.Status != models.FriendshipStatusAccepted {
		return nil, models.NewNotFoundError("Friendship", targetUserID)
	}

	if err := s.friendRepo.RemoveFriendship(ctx, userID, targetUserID); err != nil {
		return nil, err
	}
	return friendship, nil
}
