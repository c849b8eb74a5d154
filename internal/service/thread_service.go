package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"fableweaver/internal/models"
	"fableweaver/internal/repository"
)

const (
	maxThreadTitleLen   = 200
	maxThreadContentLen = 20000
	maxEmojiLen         = 32
)

// ThreadService runs the community discussion board.
type ThreadService struct {
	repo     repository.ThreadRepository
	userRepo repository.UserRepository
}

func NewThreadService(repo repository.ThreadRepository, userRepo repository.UserRepository) *ThreadService {
	return &ThreadService{repo: repo, userRepo: userRepo}
}

type ThreadInput struct {
	Title    string
	Content  string
	Category string
}

func (in *ThreadInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	if in.Title == "" || in.Content == "" {
		return models.NewValidationError("Title and content are required")
	}
	if utf8.RuneCountInString(in.Title) > maxThreadTitleLen {
		return models.NewValidationError("Title too long (max 200 characters)")
	}
	if utf8.RuneCountInString(in.Content) > maxThreadContentLen {
		return models.NewValidationError("Content too long")
	}
	if in.Category == "" {
		in.Category = "general"
	}
	return nil
}

// canModerate reports whether userID owns the row or is an admin.
func (s *ThreadService) canModerate(ctx context.Context, userID, ownerID uint) (bool, error) {
	if userID == ownerID {
		return true, nil
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}

func (s *ThreadService) Create(ctx context.Context, userID uint, in ThreadInput) (*models.Thread, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	thread := &models.Thread{UserID: userID, Title: in.Title, Content: in.Content, Category: in.Category}
	if err := s.repo.Create(ctx, thread); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, thread.ID)
}

func (s *ThreadService) List(ctx context.Context, category string, limit, offset int) ([]models.Thread, error) {
	limit, offset = ClampPage(limit, offset)
	return s.repo.List(ctx, strings.ToLower(strings.TrimSpace(category)), limit, offset)
}

// Get returns the thread and counts the view.
func (s *ThreadService) Get(ctx context.Context, id uint) (*models.Thread, error) {
	thread, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.IncrementViews(ctx, id); err != nil {
		slog.WarnContext(ctx, "failed to count thread view", slog.Uint64("thread_id", uint64(id)), slog.String("error", err.Error()))
	} else {
		thread.ViewCount++
	}
	return thread, nil
}

func (s *ThreadService) Update(ctx context.Context, userID, id uint, in ThreadInput) (*models.Thread, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	thread, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.canModerate(ctx, userID, thread.UserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewForbiddenError("You can only edit your own threads")
	}
	thread.Title, thread.Content, thread.Category = in.Title, in.Content, in.Category
	if err := s.repo.Update(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

func (s *ThreadService) Delete(ctx context.Context, userID, id uint) error {
	thread, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	ok, err := s.canModerate(ctx, userID, thread.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewForbiddenError("You can only delete your own threads")
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *ThreadService) ListComments(ctx context.Context, threadID uint) ([]models.ThreadComment, error) {
	if _, err := s.repo.GetByID(ctx, threadID); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, threadID)
}

// AddComment replies to a thread. A parent must belong to the same thread and
// be top-level, so nesting stays one level deep.
func (s *ThreadService) AddComment(ctx context.Context, userID, threadID uint, content string, parentID *uint) (*models.ThreadComment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, models.NewValidationError("Comment cannot be empty")
	}
	if utf8.RuneCountInString(content) > maxThreadContentLen {
		return nil, models.NewValidationError("Comment too long")
	}
	if _, err := s.repo.GetByID(ctx, threadID); err != nil {
		return nil, err
	}
	if parentID != nil {
		parent, err := s.repo.GetComment(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if parent.ThreadID != threadID {
			return nil, models.NewValidationError("Parent comment belongs to another thread")
		}
		if parent.ParentID != nil {
			return nil, models.NewValidationError("Replies can only be one level deep")
		}
	}
	comment := &models.ThreadComment{ThreadID: threadID, UserID: userID, ParentID: parentID, Content: content}
	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *ThreadService) DeleteComment(ctx context.Context, userID, commentID uint) error {
	comment, err := s.repo.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	ok, err := s.canModerate(ctx, userID, comment.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewForbiddenError("You can only delete your own comments")
	}
	return s.repo.SoftDeleteComment(ctx, commentID)
}

// ToggleReaction flips emoji on a thread or comment and returns the new counts.
func (s *ThreadService) ToggleReaction(ctx context.Context, userID uint, targetType string, targetID uint, emoji string) (bool, []models.ReactionCount, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" || len(emoji) > maxEmojiLen {
		return false, nil, models.NewValidationError("Invalid emoji")
	}
	switch targetType {
	case models.ReactionTargetThread:
		if _, err := s.repo.GetByID(ctx, targetID); err != nil {
			return false, nil, err
		}
	case models.ReactionTargetComment:
		if _, err := s.repo.GetComment(ctx, targetID); err != nil {
			return false, nil, err
		}
	default:
		return false, nil, models.NewValidationError("Reactions target a thread or a comment")
	}

	set, err := s.repo.ToggleReaction(ctx, &models.Reaction{UserID: userID, TargetType: targetType, TargetID: targetID, Emoji: emoji})
	if err != nil {
		return false, nil, err
	}
	counts, err := s.repo.CountReactions(ctx, targetType, targetID)
	if err != nil {
		return false, nil, err
	}
	return set, counts, nil
}

func (s *ThreadService) Reactions(ctx context.Context, targetType string, targetID uint) ([]models.ReactionCount, error) {
	return s.repo.CountReactions(ctx, targetType, targetID)
}

func (s *ThreadService) Save(ctx context.Context, userID, threadID uint) error {
	if _, err := s.repo.GetByID(ctx, threadID); err != nil {
		return err
	}
	return s.repo.Save(ctx, userID, threadID)
}

func (s *ThreadService) Unsave(ctx context.Context, userID, threadID uint) error {
	return s.repo.Unsave(ctx, userID, threadID)
}

func (s *ThreadService) ListSaved(ctx context.Context, userID uint, limit, offset int) ([]models.Thread, error) {
	limit, offset = ClampPage(limit, offset)
	return s.repo.ListSaved(ctx, userID, limit, offset)
}
