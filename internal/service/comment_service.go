package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"fableweaver/internal/models"
	"fableweaver/internal/repository"
)

const maxCommentLen = 5000

type CommentService struct {
	commentRepo repository.CommentRepository
	chapterRepo repository.ChapterRepository
	novelRepo   repository.NovelRepository
	notifier    *NotificationService
	isAdmin     func(ctx context.Context, userID uint) (bool, error)
}

type CreateChapterCommentInput struct {
	UserID    uint
	ChapterID uint
	Content   string
}

type CreateNovelCommentInput struct {
	UserID  uint
	NovelID uint
	Content string
	// Rating is 1..5, or 0 for a comment without a rating.
	Rating int
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	chapterRepo repository.ChapterRepository,
	novelRepo repository.NovelRepository,
	notifier *NotificationService,
	isAdmin func(ctx context.Context, userID uint) (bool, error),
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		chapterRepo: chapterRepo,
		novelRepo:   novelRepo,
		notifier:    notifier,
		isAdmin:     isAdmin,
	}
}

func validateCommentContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", models.NewValidationError("Content is required")
	}
	if utf8.RuneCountInString(content) > maxCommentLen {
		return "", models.NewValidationError(fmt.Sprintf("Comment too long (max %d characters)", maxCommentLen))
	}
	return content, nil
}

// listableNovel returns the novel when it is open for reader comments.
func (s *CommentService) listableNovel(ctx context.Context, userID, novelID uint) (*models.Novel, error) {
	novel, err := s.novelRepo.GetByID(ctx, novelID)
	if err != nil {
		return nil, err
	}
	if novel.IsDeleted || (!novel.Listable() && novel.AuthorID != userID) {
		return nil, models.NewNotFoundError("Novel", novelID)
	}
	return novel, nil
}

// CreateChapterComment stores a comment and tells the novel's author.
func (s *CommentService) CreateChapterComment(ctx context.Context, in CreateChapterCommentInput) (*models.ChapterComment, error) {
	content, err := validateCommentContent(in.Content)
	if err != nil {
		return nil, err
	}
	chapter, err := s.chapterRepo.GetByID(ctx, in.ChapterID)
	if err != nil {
		return nil, err
	}
	novel, err := s.listableNovel(ctx, in.UserID, chapter.NovelID)
	if err != nil {
		return nil, err
	}

	comment := &models.ChapterComment{ChapterID: chapter.ID, UserID: in.UserID, Content: content}
	if err := s.commentRepo.CreateChapterComment(ctx, comment); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, NotifyInput{
		UserID:  novel.AuthorID,
		ActorID: in.UserID,
		Type:    models.NotificationChapterComment,
		Title:   fmt.Sprintf("New comment on %s, chapter %d", novel.Title, chapter.ChapterNumber),
		Body:    truncateRunes(content, 140),
		Link:    fmt.Sprintf("/novels/%d/chapters/%d", novel.ID, chapter.ChapterNumber),
	})
	return s.commentRepo.GetChapterComment(ctx, comment.ID)
}

func (s *CommentService) ListChapterComments(ctx context.Context, chapterID uint, limit, offset int) ([]models.ChapterComment, error) {
	if _, err := s.chapterRepo.GetByID(ctx, chapterID); err != nil {
		return nil, err
	}
	limit, offset = ClampPage(limit, offset)
	return s.commentRepo.ListByChapter(ctx, chapterID, limit, offset)
}

func (s *CommentService) CreateNovelComment(ctx context.Context, in CreateNovelCommentInput) (*models.NovelComment, error) {
	content, err := validateCommentContent(in.Content)
	if err != nil {
		return nil, err
	}
	if in.Rating < 0 || in.Rating > 5 {
		return nil, models.NewValidationError("Rating must be between 1 and 5")
	}
	if _, err := s.listableNovel(ctx, in.UserID, in.NovelID); err != nil {
		return nil, err
	}
	comment := &models.NovelComment{NovelID: in.NovelID, UserID: in.UserID, Content: content, Rating: in.Rating}
	if err := s.commentRepo.CreateNovelComment(ctx, comment); err != nil {
		return nil, err
	}
	return s.commentRepo.GetNovelComment(ctx, comment.ID)
}

func (s *CommentService) ListNovelComments(ctx context.Context, novelID uint, limit, offset int) ([]models.NovelComment, error) {
	limit, offset = ClampPage(limit, offset)
	return s.commentRepo.ListByNovel(ctx, novelID, limit, offset)
}

// DeleteComment soft-deletes a comment. Owners and admins may do this.
func (s *CommentService) DeleteComment(ctx context.Context, userID uint, kind models.CommentKind, id uint) error {
	var ownerID uint
	switch kind {
	case models.CommentKindChapter:
		c, err := s.commentRepo.GetChapterComment(ctx, id)
		if err != nil {
			return err
		}
		ownerID = c.UserID
	case models.CommentKindNovel:
		c, err := s.commentRepo.GetNovelComment(ctx, id)
		if err != nil {
			return err
		}
		ownerID = c.UserID
	default:
		return models.NewValidationError("kind must be chapter or novel")
	}

	if ownerID != userID {
		admin := false
		if s.isAdmin != nil {
			var err error
			if admin, err = s.isAdmin(ctx, userID); err != nil {
				return err
			}
		}
		if !admin {
			return models.NewForbiddenError("You can only delete your own comments")
		}
	}
	return s.commentRepo.SetDeleted(ctx, kind, id, true)
}

// AdminCommentQuery filters the back-office comment list.
type AdminCommentQuery struct {
	Kind           models.CommentKind
	IncludeDeleted bool
	Hidden         *bool
	Limit          int
	Offset         int
}

func (s *CommentService) AdminList(ctx context.Context, q AdminCommentQuery) ([]models.AdminComment, error) {
	switch q.Kind {
	case "", models.CommentKindChapter, models.CommentKindNovel:
	default:
		return nil, models.NewValidationError("kind must be chapter or novel")
	}
	limit, offset := ClampPage(q.Limit, q.Offset)
	return s.commentRepo.ListAdmin(ctx, repository.AdminCommentFilter{
		Kind:           q.Kind,
		IncludeDeleted: q.IncludeDeleted,
		Hidden:         q.Hidden,
		Limit:          limit,
		Offset:         offset,
	})
}

// Comment moderation actions.
const (
	CommentActionHide    = "hide"
	CommentActionUnhide  = "unhide"
	CommentActionDelete  = "delete"
	CommentActionRestore = "restore"
)

// Moderate applies an admin action to a comment.
func (s *CommentService) Moderate(ctx context.Context, kind models.CommentKind, id uint, action string) error {
	if kind != models.CommentKindChapter && kind != models.CommentKindNovel {
		return models.NewValidationError("kind must be chapter or novel")
	}
	switch action {
	case CommentActionHide:
		return s.commentRepo.SetHidden(ctx, kind, id, true)
	case CommentActionUnhide:
		return s.commentRepo.SetHidden(ctx, kind, id, false)
	case CommentActionDelete:
		return s.commentRepo.SetDeleted(ctx, kind, id, true)
	case CommentActionRestore:
		return s.commentRepo.SetDeleted(ctx, kind, id, false)
	default:
		return models.NewValidationError("action must be hide, unhide, delete or restore")
	}
}
