package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"fableweaver/internal/models"
	"fableweaver/internal/repository"
	"fableweaver/internal/validation"

	"github.com/samber/lo"
	"github.com/samber/mo"
)

const (
	maxNovelTitleLen       = 200
	maxNovelDescriptionLen = 5000
	maxNovelTags           = 10
)

// NovelService covers the novel library and authoring.
type NovelService struct {
	novels   repository.NovelRepository
	chapters repository.ChapterRepository
	comments repository.CommentRepository
	images   *ImageService
}

func NewNovelService(
	novels repository.NovelRepository,
	chapters repository.ChapterRepository,
	comments repository.CommentRepository,
	images *ImageService,
) *NovelService {
	return &NovelService{novels: novels, chapters: chapters, comments: comments, images: images}
}

// NovelInput is the author-editable part of a novel.
type NovelInput struct {
	Title       string
	Description string
	Genre       string
	Tags        []string
	Status      models.NovelStatus
	IsPublic    bool
}

func (in *NovelInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	genre, err := validation.NormalizeGenre(in.Genre)
	if err != nil {
		return models.NewValidationError(err.Error())
	}
	in.Genre = genre
	if in.Title == "" {
		return models.NewValidationError("Title is required")
	}
	if utf8.RuneCountInString(in.Title) > maxNovelTitleLen {
		return models.NewValidationError("Title too long (max 200 characters)")
	}
	if utf8.RuneCountInString(in.Description) > maxNovelDescriptionLen {
		return models.NewValidationError("Description too long (max 5000 characters)")
	}
	in.Tags = lo.Uniq(lo.FilterMap(in.Tags, func(tag string, _ int) (string, bool) {
		tag = strings.ToLower(strings.TrimSpace(tag))
		return tag, tag != ""
	}))
	if len(in.Tags) > maxNovelTags {
		return models.NewValidationError("At most 10 tags")
	}
	for _, tag := range in.Tags {
		if err := validation.ValidateTag(tag); err != nil {
			return models.NewValidationError(err.Error())
		}
	}
	switch in.Status {
	case "":
		in.Status = models.NovelStatusDraft
	case models.NovelStatusDraft, models.NovelStatusOngoing, models.NovelStatusCompleted:
	default:
		return models.NewValidationError("Status must be draft, ongoing or completed")
	}
	return nil
}

// Create stores a new novel. It waits in the moderation queue until approved.
func (s *NovelService) Create(ctx context.Context, userID uint, in NovelInput) (*models.Novel, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	novel := &models.Novel{
		AuthorID:         userID,
		Title:            in.Title,
		Description:      in.Description,
		Genre:            in.Genre,
		Tags:             in.Tags,
		Status:           in.Status,
		ModerationStatus: models.ModerationPending,
		IsPublic:         in.IsPublic,
	}
	if err := s.novels.Create(ctx, novel); err != nil {
		return nil, err
	}
	return novel, nil
}

func (s *NovelService) authored(ctx context.Context, userID, id uint) (*models.Novel, error) {
	novel, err := s.novels.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if novel.IsDeleted {
		return nil, models.NewNotFoundError("Novel", id)
	}
	if novel.AuthorID != userID {
		return nil, models.NewForbiddenError("Only the author can change this novel")
	}
	return novel, nil
}

// UpdateNovelInput is a partial update of a novel.
type UpdateNovelInput struct {
	Title       mo.Option[string]
	Description mo.Option[string]
	Genre       mo.Option[string]
	Tags        mo.Option[[]string]
	Status      mo.Option[models.NovelStatus]
	IsPublic    mo.Option[bool]
}

func (s *NovelService) Update(ctx context.Context, userID, id uint, in UpdateNovelInput) (*models.Novel, error) {
	novel, err := s.authored(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	merged := NovelInput{
		Title:       in.Title.OrElse(novel.Title),
		Description: in.Description.OrElse(novel.Description),
		Genre:       in.Genre.OrElse(novel.Genre),
		Tags:        in.Tags.OrElse(novel.Tags),
		Status:      in.Status.OrElse(novel.Status),
		IsPublic:    in.IsPublic.OrElse(novel.IsPublic),
	}
	if err := merged.normalize(); err != nil {
		return nil, err
	}
	novel.Title, novel.Description, novel.Genre = merged.Title, merged.Description, merged.Genre
	novel.Tags, novel.Status, novel.IsPublic = merged.Tags, merged.Status, merged.IsPublic
	if err := s.novels.Update(ctx, novel); err != nil {
		return nil, err
	}
	return novel, nil
}

func (s *NovelService) Delete(ctx context.Context, userID, id uint) error {
	if _, err := s.authored(ctx, userID, id); err != nil {
		return err
	}
	return s.novels.SoftDelete(ctx, id)
}

// LibraryQuery filters the public library.
type LibraryQuery struct {
	Genre  string
	Status models.NovelStatus
	Query  string
	Sort   string
	Limit  int
	Offset int
}

// Library lists public, approved, live novels.
func (s *NovelService) Library(ctx context.Context, q LibraryQuery) ([]models.Novel, int64, error) {
	switch q.Sort {
	case "", repository.NovelSortLatest, repository.NovelSortPopular, repository.NovelSortChapters:
	default:
		return nil, 0, models.NewValidationError("sort must be latest, popular or chapters")
	}
	limit, offset := ClampPage(q.Limit, q.Offset)
	return s.novels.List(ctx, repository.NovelFilter{
		Genre:      strings.TrimSpace(q.Genre),
		Status:     q.Status,
		Query:      q.Query,
		Sort:       q.Sort,
		PublicOnly: true,
		Limit:      limit,
		Offset:     offset,
	})
}

// ListMine returns every live novel of the author, whatever its moderation state.
func (s *NovelService) ListMine(ctx context.Context, userID uint, limit, offset int) ([]models.Novel, int64, error) {
	limit, offset = ClampPage(limit, offset)
	return s.novels.List(ctx, repository.NovelFilter{AuthorID: userID, Limit: limit, Offset: offset})
}

// NovelDetail is a novel with its table of contents.
type NovelDetail struct {
	*models.Novel
	Chapters []models.Chapter `json:"chapters"`
}

// Get returns a readable novel with its chapter list and rating. Buffered
// view counts are flushed into the row first.
func (s *NovelService) Get(ctx context.Context, userID, id uint) (*NovelDetail, error) {
	if flushed, err := s.novels.FlushViews(ctx, id); err != nil {
		slog.WarnContext(ctx, "failed to flush novel views", slog.Uint64("novel_id", uint64(id)), slog.String("error", err.Error()))
	} else if flushed > 0 {
		slog.DebugContext(ctx, "flushed novel views", slog.Uint64("novel_id", uint64(id)), slog.Int64("views", flushed))
	}
	novel, err := s.novels.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if novel.IsDeleted || (!novel.Listable() && novel.AuthorID != userID) {
		return nil, models.NewNotFoundError("Novel", id)
	}
	chapters, err := s.chapters.ListByNovel(ctx, id)
	if err != nil {
		return nil, err
	}
	rating, err := s.comments.AverageRating(ctx, id)
	if err != nil {
		return nil, err
	}
	novel.AverageRating = rating
	return &NovelDetail{Novel: novel, Chapters: chapters}, nil
}

// UploadCover stores a 600x900 cover and replaces the previous one.
func (s *NovelService) UploadCover(ctx context.Context, userID, id uint, in UploadImageInput) (*models.Novel, error) {
	novel, err := s.authored(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	in.UserID = userID
	img, err := s.images.Store(ctx, in, CoverPreset)
	if err != nil {
		return nil, err
	}
	previous := novel.CoverURL
	novel.CoverURL = img.URL
	if err := s.novels.Update(ctx, novel); err != nil {
		return nil, err
	}
	if previous != "" {
		s.images.Remove(ctx, previous)
	}
	return novel, nil
}
