package repository

import (
	"context"
	"time"

	"fableweaver/internal/cache"
	"fableweaver/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GenreCount is the number of novels a reader opened in one genre.
type GenreCount struct {
	Genre string
	Count int64
}

// ReadingHistoryRepository tracks what each user has read.
type ReadingHistoryRepository interface {
	Record(ctx context.Context, userID, novelID uint, chapterNumber int) error
	ReadNovelIDs(ctx context.Context, userID uint) ([]uint, error)
	GenreCounts(ctx context.Context, userID uint) ([]GenreCount, error)
}

type readingHistoryRepository struct {
	db *gorm.DB
}

// NewReadingHistoryRepository returns a ReadingHistoryRepository backed by db.
func NewReadingHistoryRepository(db *gorm.DB) ReadingHistoryRepository {
	return &readingHistoryRepository{db: db}
}

// Record upserts the reader's position and drops their cached recommendations.
func (r *readingHistoryRepository) Record(ctx context.Context, userID, novelID uint, chapterNumber int) error {
	entry := models.ReadingHistory{
		UserID:            userID,
		NovelID:           novelID,
		LastChapterNumber: chapterNumber,
		UpdatedAt:         time.Now().UTC(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "novel_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_chapter_number", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.RecommendationKey(userID))
	return nil
}

func (r *readingHistoryRepository) ReadNovelIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	if err := readDB(r.db).WithContext(ctx).
		Model(&models.ReadingHistory{}).
		Where("user_id = ?", userID).
		Pluck("novel_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *readingHistoryRepository) GenreCounts(ctx context.Context, userID uint) ([]GenreCount, error) {
	var counts []GenreCount
	if err := readDB(r.db).WithContext(ctx).
		Table("reading_history rh").
		Select("LOWER(n.genre) AS genre, COUNT(*) AS count").
		Joins("JOIN novels n ON n.id = rh.novel_id").
		Where("rh.user_id = ? AND n.genre <> ''", userID).
		Group("LOWER(n.genre)").
		Scan(&counts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return counts, nil
}
