package repository

import (
	"context"

	"fableweaver/internal/cache"
	"fableweaver/internal/database"
	"fableweaver/internal/models"

	"gorm.io/gorm"
)

// ChapterRepository defines persistence operations for chapters and revisions.
type ChapterRepository interface {
	// Append inserts chapter as the novel's next chapter and bumps
	// novels.chapter_count in the same transaction.
	Append(ctx context.Context, chapter *models.Chapter) error
	GetByID(ctx context.Context, id uint) (*models.Chapter, error)
	GetByNumber(ctx context.Context, novelID uint, number int) (*models.Chapter, error)
	Latest(ctx context.Context, novelID uint) (*models.Chapter, error)
	ListByNovel(ctx context.Context, novelID uint) ([]models.Chapter, error)
	ListSummaries(ctx context.Context, novelID uint) ([]models.Chapter, error)
	// UpdateWithRevision stores the previous text as a revision, then saves chapter.
	UpdateWithRevision(ctx context.Context, chapter *models.Chapter, previous models.ChapterRevision) error
	ListRevisions(ctx context.Context, chapterID uint) ([]models.ChapterRevision, error)
	GetRevision(ctx context.Context, id uint) (*models.ChapterRevision, error)
}

type chapterRepository struct {
	db *gorm.DB
}

// NewChapterRepository returns a ChapterRepository backed by db.
func NewChapterRepository(db *gorm.DB) ChapterRepository {
	return &chapterRepository{db: db}
}

func (r *chapterRepository) Append(ctx context.Context, chapter *models.Chapter) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int
		if err := tx.Model(&models.Chapter{}).
			Where("novel_id = ?", chapter.NovelID).
			Select("COALESCE(MAX(chapter_number), 0)").
			Scan(&last).Error; err != nil {
			return err
		}
		chapter.ChapterNumber = last + 1
		if err := tx.Create(chapter).Error; err != nil {
			return err
		}
		return tx.Model(&models.Novel{}).
			Where("id = ?", chapter.NovelID).
			UpdateColumn("chapter_count", gorm.Expr("chapter_count + ?", 1)).Error
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.NewConflictError("Another chapter was added concurrently, please retry")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateNovel(ctx, chapter.NovelID)
	return nil
}

func (r *chapterRepository) GetByID(ctx context.Context, id uint) (*models.Chapter, error) {
	var chapter models.Chapter
	if err := readDB(r.db).WithContext(ctx).First(&chapter, id).Error; err != nil {
		return nil, mapErr(err, "Chapter", id)
	}
	return &chapter, nil
}

func (r *chapterRepository) GetByNumber(ctx context.Context, novelID uint, number int) (*models.Chapter, error) {
	var chapter models.Chapter
	if err := readDB(r.db).WithContext(ctx).
		Where("novel_id = ? AND chapter_number = ?", novelID, number).
		First(&chapter).Error; err != nil {
		return nil, mapErr(err, "Chapter", number)
	}
	return &chapter, nil
}

// Latest returns nil without error for a novel with no chapters.
func (r *chapterRepository) Latest(ctx context.Context, novelID uint) (*models.Chapter, error) {
	var chapters []models.Chapter
	if err := r.db.WithContext(ctx).
		Where("novel_id = ?", novelID).
		Order("chapter_number DESC").
		Limit(1).
		Find(&chapters).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(chapters) == 0 {
		return nil, nil
	}
	return &chapters[0], nil
}

// ListByNovel returns the table of contents without chapter bodies.
func (r *chapterRepository) ListByNovel(ctx context.Context, novelID uint) ([]models.Chapter, error) {
	var chapters []models.Chapter
	if err := readDB(r.db).WithContext(ctx).
		Select("id", "novel_id", "chapter_number", "title", "word_count", "is_ai_generated", "created_at", "updated_at").
		Where("novel_id = ?", novelID).
		Order("chapter_number ASC").
		Find(&chapters).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return chapters, nil
}

func (r *chapterRepository) ListSummaries(ctx context.Context, novelID uint) ([]models.Chapter, error) {
	var chapters []models.Chapter
	if err := r.db.WithContext(ctx).
		Select("id", "novel_id", "chapter_number", "title", "summary").
		Where("novel_id = ?", novelID).
		Order("chapter_number ASC").
		Find(&chapters).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return chapters, nil
}

func (r *chapterRepository) UpdateWithRevision(ctx context.Context, chapter *models.Chapter, previous models.ChapterRevision) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		previous.ChapterID = chapter.ID
		if err := tx.Create(&previous).Error; err != nil {
			return err
		}
		return tx.Model(&models.Chapter{}).Where("id = ?", chapter.ID).Updates(map[string]interface{}{
			"title":      chapter.Title,
			"content":    chapter.Content,
			"summary":    chapter.Summary,
			"word_count": chapter.WordCount,
		}).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *chapterRepository) ListRevisions(ctx context.Context, chapterID uint) ([]models.ChapterRevision, error) {
	var revisions []models.ChapterRevision
	if err := readDB(r.db).WithContext(ctx).
		Select("id", "chapter_id", "editor_id", "title", "content", "created_at").
		Where("chapter_id = ?", chapterID).
		Order("id DESC").
		Find(&revisions).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return revisions, nil
}

func (r *chapterRepository) GetRevision(ctx context.Context, id uint) (*models.ChapterRevision, error) {
	var revision models.ChapterRevision
	if err := readDB(r.db).WithContext(ctx).First(&revision, id).Error; err != nil {
		return nil, mapErr(err, "Revision", id)
	}
	return &revision, nil
}
