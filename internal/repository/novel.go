package repository

import (
	"context"
	"log/slog"
	"strings"

	"fableweaver/internal/cache"
	"fableweaver/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Library sort orders.
const (
	NovelSortLatest   = "latest"
	NovelSortPopular  = "popular"
	NovelSortChapters = "chapters"
)

// NovelFilter narrows library and admin listings.
type NovelFilter struct {
	Genre            string
	Status           models.NovelStatus
	Query            string
	Sort             string
	AuthorID         uint
	ModerationStatus models.ModerationStatus
	// PublicOnly restricts to public, approved, non-deleted novels.
	PublicOnly     bool
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// NovelRepository defines persistence operations for novels.
type NovelRepository interface {
	Create(ctx context.Context, novel *models.Novel) error
	GetByID(ctx context.Context, id uint) (*models.Novel, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Novel, error)
	Update(ctx context.Context, novel *models.Novel) error
	SoftDelete(ctx context.Context, id uint) error
	List(ctx context.Context, filter NovelFilter) ([]models.Novel, int64, error)
	ListCandidates(ctx context.Context, excludeAuthorID uint, excludeIDs []uint, limit int) ([]models.Novel, error)
	SetModeration(ctx context.Context, id uint, status models.ModerationStatus, note string) error
	SetPublic(ctx context.Context, id uint, public bool) error
	BufferView(ctx context.Context, id uint)
	FlushViews(ctx context.Context, id uint) (int64, error)
}

type novelRepository struct {
	db *gorm.DB
}

// NewNovelRepository returns a NovelRepository backed by db.
func NewNovelRepository(db *gorm.DB) NovelRepository {
	return &novelRepository{db: db}
}

func (r *novelRepository) Create(ctx context.Context, novel *models.Novel) error {
	if err := r.db.WithContext(ctx).Omit("Author").Create(novel).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.AdminDashboardKey)
	return nil
}

func (r *novelRepository) GetByID(ctx context.Context, id uint) (*models.Novel, error) {
	var novel models.Novel
	err := cache.Aside(ctx, cache.NovelKey(id), &novel, cache.NovelTTL, func() error {
		return mapErr(readDB(r.db).WithContext(ctx).Preload("Author").First(&novel, id).Error, "Novel", id)
	})
	if err != nil {
		return nil, err
	}
	return &novel, nil
}

func (r *novelRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Novel, error) {
	var novels []models.Novel
	if len(ids) == 0 {
		return novels, nil
	}
	if err := readDB(r.db).WithContext(ctx).Preload("Author").Where("id IN ?", ids).Find(&novels).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return novels, nil
}

func (r *novelRepository) Update(ctx context.Context, novel *models.Novel) error {
	if err := r.db.WithContext(ctx).Omit("Author", "view_count", "chapter_count").Save(novel).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateNovel(ctx, novel.ID)
	return nil
}

func (r *novelRepository) SoftDelete(ctx context.Context, id uint) error {
	return r.updateColumns(ctx, id, map[string]interface{}{"is_deleted": true})
}

func (r *novelRepository) List(ctx context.Context, filter NovelFilter) ([]models.Novel, int64, error) {
	q := readDB(r.db).WithContext(ctx).Model(&models.Novel{})
	if filter.PublicOnly {
		q = q.Where("is_public = ? AND moderation_status = ?", true, models.ModerationApproved)
	}
	if !filter.IncludeDeleted || filter.PublicOnly {
		q = q.Where("is_deleted = ?", false)
	}
	if filter.AuthorID != 0 {
		q = q.Where("author_id = ?", filter.AuthorID)
	}
	if filter.ModerationStatus != "" {
		q = q.Where("moderation_status = ?", filter.ModerationStatus)
	}
	if filter.Genre != "" {
		q = q.Where("LOWER(genre) = ?", strings.ToLower(filter.Genre))
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if s := strings.TrimSpace(filter.Query); s != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(s)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var novels []models.Novel
	err := applyNovelSort(q, filter.Sort).
		Preload("Author").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&novels).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return novels, total, nil
}

func applyNovelSort(db *gorm.DB, sort string) *gorm.DB {
	switch sort {
	case NovelSortPopular:
		return db.Order("view_count DESC").Order("id DESC")
	case NovelSortChapters:
		return db.Order("chapter_count DESC").Order("id DESC")
	default:
		return db.Order("created_at DESC").Order("id DESC")
	}
}

// ListCandidates returns listable novels for recommendations, skipping the
// reader's own work and anything in excludeIDs.
func (r *novelRepository) ListCandidates(ctx context.Context, excludeAuthorID uint, excludeIDs []uint, limit int) ([]models.Novel, error) {
	q := readDB(r.db).WithContext(ctx).
		Where("is_public = ? AND is_deleted = ? AND moderation_status = ?", true, false, models.ModerationApproved).
		Where("author_id <> ?", excludeAuthorID)
	if len(excludeIDs) > 0 {
		q = q.Where("id NOT IN ?", excludeIDs)
	}
	var novels []models.Novel
	if err := q.Order("created_at DESC").Limit(limit).Find(&novels).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return novels, nil
}

func (r *novelRepository) SetModeration(ctx context.Context, id uint, status models.ModerationStatus, note string) error {
	return r.updateColumns(ctx, id, map[string]interface{}{
		"moderation_status": status,
		"moderation_note":   note,
	})
}

func (r *novelRepository) SetPublic(ctx context.Context, id uint, public bool) error {
	return r.updateColumns(ctx, id, map[string]interface{}{"is_public": public})
}

// BufferView counts a read in Redis. Without Redis the increment is written
// straight to the row.
func (r *novelRepository) BufferView(ctx context.Context, id uint) {
	if client := cache.GetClient(); client != nil {
		err := client.Incr(ctx, cache.NovelViewsKey(id)).Err()
		if err == nil {
			return
		}
		slog.WarnContext(ctx, "view buffer unavailable, counting on the row",
			slog.Uint64("novel_id", uint64(id)),
			slog.String("error", err.Error()))
	}
	err := r.db.WithContext(ctx).Model(&models.Novel{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1)).Error
	if err != nil {
		slog.WarnContext(ctx, "failed to count novel view",
			slog.Uint64("novel_id", uint64(id)),
			slog.String("error", err.Error()))
	}
}

// FlushViews moves buffered views into novels.view_count with one UPDATE.
func (r *novelRepository) FlushViews(ctx context.Context, id uint) (int64, error) {
	client := cache.GetClient()
	if client == nil {
		return 0, nil
	}
	n, err := client.GetDel(ctx, cache.NovelViewsKey(id)).Int64()
	if err == redis.Nil || n == 0 {
		return 0, nil
	}
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	if err := r.db.WithContext(ctx).Model(&models.Novel{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", n)).Error; err != nil {
		client.IncrBy(ctx, cache.NovelViewsKey(id), n)
		return 0, models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.NovelKey(id))
	return n, nil
}

func (r *novelRepository) updateColumns(ctx context.Context, id uint, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.Novel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Novel", id)
	}
	cache.InvalidateNovel(ctx, id)
	return nil
}
