package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"fableweaver/internal/models"
	"fableweaver/internal/notifications"
	"fableweaver/internal/repository"
)

const maxModerationNote = 1000

// AdminUserDetail aggregates a user and what they created for admin views.
type AdminUserDetail struct {
	User       models.User               `json:"user"`
	Novels     []models.Novel            `json:"novels"`
	Characters []models.CharacterProfile `json:"characters"`
	Warnings   []string                  `json:"warnings,omitempty"`
}

// NovelModeratedEvent is pushed to the author when a decision is made.
type NovelModeratedEvent struct {
	NovelID          uint                    `json:"novel_id"`
	ModerationStatus models.ModerationStatus `json:"moderation_status"`
	IsPublic         bool                    `json:"is_public"`
	Note             string                  `json:"note,omitempty"`
}

// ModerationService provides admin moderation of novels and accounts.
type ModerationService struct {
	users      repository.UserRepository
	novels     repository.NovelRepository
	characters repository.CharacterRepository
	notifier   *NotificationService
	publisher  notifications.Publisher
}

// NewModerationService returns a new ModerationService.
func NewModerationService(
	users repository.UserRepository,
	novels repository.NovelRepository,
	characters repository.CharacterRepository,
	notifier *NotificationService,
	publisher notifications.Publisher,
) *ModerationService {
	return &ModerationService{
		users:      users,
		novels:     novels,
		characters: characters,
		notifier:   notifier,
		publisher:  publisher,
	}
}

// ModerationQueueQuery filters the admin novel list.
type ModerationQueueQuery struct {
	Status models.ModerationStatus
	Limit  int
	Offset int
}

// ListNovels returns novels in a moderation state, pending first by default.
func (s *ModerationService) ListNovels(ctx context.Context, q ModerationQueueQuery) ([]models.Novel, int64, error) {
	if q.Status == "" {
		q.Status = models.ModerationPending
	}
	if !q.Status.Valid() {
		return nil, 0, models.NewValidationError("status must be pending, approved or rejected")
	}
	limit, offset := ClampPage(q.Limit, q.Offset)
	return s.novels.List(ctx, repository.NovelFilter{
		ModerationStatus: q.Status,
		Sort:             repository.NovelSortLatest,
		Limit:            limit,
		Offset:           offset,
	})
}

func (s *ModerationService) ApproveNovel(ctx context.Context, novelID uint) (*models.Novel, error) {
	return s.decide(ctx, novelID, func(ctx context.Context) error {
		return s.novels.SetModeration(ctx, novelID, models.ModerationApproved, "")
	}, "")
}

// RejectNovel requires a note; the author sees it.
func (s *ModerationService) RejectNovel(ctx context.Context, novelID uint, note string) (*models.Novel, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, models.NewValidationError("A note is required when rejecting a novel")
	}
	if len(note) > maxModerationNote {
		return nil, models.NewValidationError(fmt.Sprintf("Note too long (max %d characters)", maxModerationNote))
	}
	return s.decide(ctx, novelID, func(ctx context.Context) error {
		return s.novels.SetModeration(ctx, novelID, models.ModerationRejected, note)
	}, note)
}

// HideNovel takes a novel out of the library without touching its review state.
func (s *ModerationService) HideNovel(ctx context.Context, novelID uint) (*models.Novel, error) {
	return s.decide(ctx, novelID, func(ctx context.Context) error {
		return s.novels.SetPublic(ctx, novelID, false)
	}, "")
}

func (s *ModerationService) RestoreNovel(ctx context.Context, novelID uint) (*models.Novel, error) {
	return s.decide(ctx, novelID, func(ctx context.Context) error {
		return s.novels.SetPublic(ctx, novelID, true)
	}, "")
}

func (s *ModerationService) decide(ctx context.Context, novelID uint, apply func(context.Context) error, note string) (*models.Novel, error) {
	if _, err := s.novels.GetByID(ctx, novelID); err != nil {
		return nil, err
	}
	if err := apply(ctx); err != nil {
		return nil, err
	}
	novel, err := s.novels.GetByID(ctx, novelID)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, NotifyInput{
		UserID: novel.AuthorID,
		Type:   models.NotificationModeration,
		Title:  moderationTitle(novel),
		Body:   note,
		Link:   fmt.Sprintf("/novels/%d", novel.ID),
	})
	publish(ctx, s.publisher, novel.AuthorID, notifications.EventNovelModerated, NovelModeratedEvent{
		NovelID:          novel.ID,
		ModerationStatus: novel.ModerationStatus,
		IsPublic:         novel.IsPublic,
		Note:             note,
	})
	slog.InfoContext(ctx, "novel moderated",
		slog.Uint64("novel_id", uint64(novel.ID)),
		slog.String("moderation_status", string(novel.ModerationStatus)),
		slog.Bool("is_public", novel.IsPublic))
	return novel, nil
}

func moderationTitle(n *models.Novel) string {
	switch {
	case !n.IsPublic:
		return fmt.Sprintf("%q was hidden from the library", n.Title)
	case n.ModerationStatus == models.ModerationApproved:
		return fmt.Sprintf("%q was approved", n.Title)
	case n.ModerationStatus == models.ModerationRejected:
		return fmt.Sprintf("%q was rejected", n.Title)
	default:
		return fmt.Sprintf("%q is awaiting review", n.Title)
	}
}

// UserQuery filters the admin user list.
type UserQuery struct {
	Query      string
	Banned     *bool
	AdminsOnly bool
	Limit      int
	Offset     int
}

func (s *ModerationService) ListUsers(ctx context.Context, q UserQuery) ([]models.User, int64, error) {
	limit, offset := ClampPage(q.Limit, q.Offset)
	return s.users.List(ctx, repository.UserFilter{
		Query:      q.Query,
		Banned:     q.Banned,
		AdminsOnly: q.AdminsOnly,
		Limit:      limit,
		Offset:     offset,
	})
}

// GetUserDetail returns a user with their novels and characters. Lists that
// fail to load are reported as warnings.
func (s *ModerationService) GetUserDetail(ctx context.Context, userID uint) (*AdminUserDetail, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	detail := &AdminUserDetail{User: *user}

	novels, _, err := s.novels.List(ctx, repository.NovelFilter{
		AuthorID:       userID,
		IncludeDeleted: true,
		Sort:           repository.NovelSortLatest,
		Limit:          MaxPageSize,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to load novels for user", "user_id", userID, "err", err)
		detail.Warnings = append(detail.Warnings, "Partial data: Novels could not be loaded.")
	}
	detail.Novels = novels

	characters, err := s.characters.ListByCreator(ctx, userID, MaxPageSize, 0)
	if err != nil {
		slog.WarnContext(ctx, "failed to load characters for user", "user_id", userID, "err", err)
		detail.Warnings = append(detail.Warnings, "Partial data: Characters could not be loaded.")
	}
	detail.Characters = characters
	return detail, nil
}

func (s *ModerationService) BanUser(ctx context.Context, adminID, userID uint) (*models.User, error) {
	if adminID == userID {
		return nil, models.NewValidationError("You cannot ban yourself")
	}
	return s.setUserFlag(ctx, userID, func(ctx context.Context) error {
		return s.users.SetBanned(ctx, userID, true)
	}, "user banned")
}

func (s *ModerationService) UnbanUser(ctx context.Context, userID uint) (*models.User, error) {
	return s.setUserFlag(ctx, userID, func(ctx context.Context) error {
		return s.users.SetBanned(ctx, userID, false)
	}, "user unbanned")
}

func (s *ModerationService) PromoteUser(ctx context.Context, userID uint) (*models.User, error) {
	return s.setUserFlag(ctx, userID, func(ctx context.Context) error {
		return s.users.SetAdmin(ctx, userID, true)
	}, "user promoted")
}

// DemoteUser removes admin rights. Admins cannot demote themselves.
func (s *ModerationService) DemoteUser(ctx context.Context, adminID, userID uint) (*models.User, error) {
	if adminID == userID {
		return nil, models.NewValidationError("You cannot demote yourself")
	}
	return s.setUserFlag(ctx, userID, func(ctx context.Context) error {
		return s.users.SetAdmin(ctx, userID, false)
	}, "user demoted")
}

func (s *ModerationService) setUserFlag(ctx context.Context, userID uint, apply func(context.Context) error, msg string) (*models.User, error) {
	if err := apply(ctx); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, msg, slog.Uint64("target_user_id", uint64(userID)))
	return user, nil
}
