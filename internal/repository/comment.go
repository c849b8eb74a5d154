package repository

import (
	"context"
	"sort"

	"fableweaver/internal/models"

	"gorm.io/gorm"
)

// AdminCommentFilter narrows the admin comment listing.
type AdminCommentFilter struct {
	Kind           models.CommentKind
	IncludeDeleted bool
	Hidden         *bool
	Limit          int
	Offset         int
}

// CommentRepository defines persistence for chapter and novel comments.
type CommentRepository interface {
	CreateChapterComment(ctx context.Context, comment *models.ChapterComment) error
	GetChapterComment(ctx context.Context, id uint) (*models.ChapterComment, error)
	ListByChapter(ctx context.Context, chapterID uint, limit, offset int) ([]models.ChapterComment, error)

	CreateNovelComment(ctx context.Context, comment *models.NovelComment) error
	GetNovelComment(ctx context.Context, id uint) (*models.NovelComment, error)
	ListByNovel(ctx context.Context, novelID uint, limit, offset int) ([]models.NovelComment, error)
	AverageRating(ctx context.Context, novelID uint) (float64, error)

	ListAdmin(ctx context.Context, filter AdminCommentFilter) ([]models.AdminComment, error)
	SetHidden(ctx context.Context, kind models.CommentKind, id uint, hidden bool) error
	SetDeleted(ctx context.Context, kind models.CommentKind, id uint, deleted bool) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) CreateChapterComment(ctx context.Context, comment *models.ChapterComment) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) GetChapterComment(ctx context.Context, id uint) (*models.ChapterComment, error) {
	var comment models.ChapterComment
	if err := r.db.WithContext(ctx).Preload("User").First(&comment, id).Error; err != nil {
		return nil, mapErr(err, "Comment", id)
	}
	return &comment, nil
}

func (r *commentRepository) ListByChapter(ctx context.Context, chapterID uint, limit, offset int) ([]models.ChapterComment, error) {
	var comments []models.ChapterComment
	err := readDB(r.db).WithContext(ctx).
		Preload("User").
		Where("chapter_id = ? AND is_deleted = ? AND is_hidden = ?", chapterID, false, false).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *commentRepository) CreateNovelComment(ctx context.Context, comment *models.NovelComment) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) GetNovelComment(ctx context.Context, id uint) (*models.NovelComment, error) {
	var comment models.NovelComment
	if err := r.db.WithContext(ctx).Preload("User").First(&comment, id).Error; err != nil {
		return nil, mapErr(err, "Comment", id)
	}
	return &comment, nil
}

func (r *commentRepository) ListByNovel(ctx context.Context, novelID uint, limit, offset int) ([]models.NovelComment, error) {
	var comments []models.NovelComment
	err := readDB(r.db).WithContext(ctx).
		Preload("User").
		Where("novel_id = ? AND is_deleted = ? AND is_hidden = ?", novelID, false, false).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

// AverageRating ignores unrated comments.
func (r *commentRepository) AverageRating(ctx context.Context, novelID uint) (float64, error) {
	var avg *float64
	err := readDB(r.db).WithContext(ctx).
		Model(&models.NovelComment{}).
		Select("AVG(rating)").
		Where("novel_id = ? AND rating > 0 AND is_deleted = ? AND is_hidden = ?", novelID, false, false).
		Scan(&avg).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

// ListAdmin lists comments of one kind, or of both kinds merged newest first
// when filter.Kind is empty.
func (r *commentRepository) ListAdmin(ctx context.Context, filter AdminCommentFilter) ([]models.AdminComment, error) {
	if filter.Kind != "" {
		return r.listAdminKind(ctx, filter.Kind, filter, filter.Limit, filter.Offset)
	}

	// each kind contributes at most offset+limit rows to the merged page
	window := filter.Offset + filter.Limit
	var merged []models.AdminComment
	for _, kind := range []models.CommentKind{models.CommentKindChapter, models.CommentKindNovel} {
		rows, err := r.listAdminKind(ctx, kind, filter, window, 0)
		if err != nil {
			return nil, err
		}
		merged = append(merged, rows...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].ID > merged[j].ID
		}
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	if filter.Offset >= len(merged) {
		return []models.AdminComment{}, nil
	}
	return merged[filter.Offset:min(window, len(merged))], nil
}

func (r *commentRepository) listAdminKind(ctx context.Context, kind models.CommentKind, filter AdminCommentFilter, limit, offset int) ([]models.AdminComment, error) {
	table, target := commentTable(kind)
	q := readDB(r.db).WithContext(ctx).
		Table(table + " c").
		Select("c.id, c." + target + " AS target_id, c.user_id, u.username, c.content, c.is_deleted, c.is_hidden, c.created_at").
		Joins("LEFT JOIN users u ON u.id = c.user_id")
	if !filter.IncludeDeleted {
		q = q.Where("c.is_deleted = ?", false)
	}
	if filter.Hidden != nil {
		q = q.Where("c.is_hidden = ?", *filter.Hidden)
	}

	var rows []models.AdminComment
	if err := q.Order("c.created_at DESC").Order("c.id DESC").Limit(limit).Offset(offset).Scan(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for i := range rows {
		rows[i].Kind = kind
	}
	return rows, nil
}

func (r *commentRepository) SetHidden(ctx context.Context, kind models.CommentKind, id uint, hidden bool) error {
	return r.setFlag(ctx, kind, id, "is_hidden", hidden)
}

func (r *commentRepository) SetDeleted(ctx context.Context, kind models.CommentKind, id uint, deleted bool) error {
	return r.setFlag(ctx, kind, id, "is_deleted", deleted)
}

func (r *commentRepository) setFlag(ctx context.Context, kind models.CommentKind, id uint, column string, value bool) error {
	table, _ := commentTable(kind)
	res := r.db.WithContext(ctx).Table(table).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

func commentTable(kind models.CommentKind) (table, targetColumn string) {
	if kind == models.CommentKindNovel {
		return models.NovelComment{}.TableName(), "novel_id"
	}
	return models.ChapterComment{}.TableName(), "chapter_id"
}
