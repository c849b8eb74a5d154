package repository

import (
	"context"

	"fableweaver/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ThreadRepository defines persistence for discussion threads, their comments,
// reactions and bookmarks.
type ThreadRepository interface {
	Create(ctx context.Context, thread *models.Thread) error
	GetByID(ctx context.Context, id uint) (*models.Thread, error)
	List(ctx context.Context, category string, limit, offset int) ([]models.Thread, error)
	Update(ctx context.Context, thread *models.Thread) error
	SoftDelete(ctx context.Context, id uint) error
	IncrementViews(ctx context.Context, id uint) error

	CreateComment(ctx context.Context, comment *models.ThreadComment) error
	GetComment(ctx context.Context, id uint) (*models.ThreadComment, error)
	ListComments(ctx context.Context, threadID uint) ([]models.ThreadComment, error)
	SoftDeleteComment(ctx context.Context, id uint) error

	// ToggleReaction adds the reaction or removes it when present and reports
	// whether it is now set.
	ToggleReaction(ctx context.Context, reaction *models.Reaction) (bool, error)
	CountReactions(ctx context.Context, targetType string, targetID uint) ([]models.ReactionCount, error)

	Save(ctx context.Context, userID, threadID uint) error
	Unsave(ctx context.Context, userID, threadID uint) error
	ListSaved(ctx context.Context, userID uint, limit, offset int) ([]models.Thread, error)
}

type threadRepository struct {
	db *gorm.DB
}

// NewThreadRepository returns a ThreadRepository backed by db.
func NewThreadRepository(db *gorm.DB) ThreadRepository {
	return &threadRepository{db: db}
}

func (r *threadRepository) Create(ctx context.Context, thread *models.Thread) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(thread).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *threadRepository) GetByID(ctx context.Context, id uint) (*models.Thread, error) {
	var thread models.Thread
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("is_deleted = ?", false).
		First(&thread, id).Error; err != nil {
		return nil, mapErr(err, "Thread", id)
	}
	threads := []models.Thread{thread}
	if err := r.attachCommentCounts(ctx, threads); err != nil {
		return nil, err
	}
	return &threads[0], nil
}

func (r *threadRepository) List(ctx context.Context, category string, limit, offset int) ([]models.Thread, error) {
	q := readDB(r.db).WithContext(ctx).
		Preload("User").
		Where("is_deleted = ?", false)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var threads []models.Thread
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&threads).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := r.attachCommentCounts(ctx, threads); err != nil {
		return nil, err
	}
	return threads, nil
}

type threadCommentCount struct {
	ThreadID uint
	Count    int64
}

func (r *threadRepository) attachCommentCounts(ctx context.Context, threads []models.Thread) error {
	if len(threads) == 0 {
		return nil
	}
	ids := make([]uint, len(threads))
	for i, t := range threads {
		ids[i] = t.ID
	}
	var counts []threadCommentCount
	if err := readDB(r.db).WithContext(ctx).
		Model(&models.ThreadComment{}).
		Select("thread_id, COUNT(*) AS count").
		Where("thread_id IN ? AND is_deleted = ?", ids, false).
		Group("thread_id").
		Scan(&counts).Error; err != nil {
		return models.NewInternalError(err)
	}
	byThread := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byThread[c.ThreadID] = c.Count
	}
	for i := range threads {
		threads[i].CommentCount = byThread[threads[i].ID]
	}
	return nil
}

func (r *threadRepository) Update(ctx context.Context, thread *models.Thread) error {
	err := r.db.WithContext(ctx).Model(&models.Thread{}).Where("id = ?", thread.ID).Updates(map[string]interface{}{
		"title":    thread.Title,
		"content":  thread.Content,
		"category": thread.Category,
	}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *threadRepository) SoftDelete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&models.Thread{}).Where("id = ?", id).Update("is_deleted", true).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *threadRepository) IncrementViews(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&models.Thread{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1)).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *threadRepository) CreateComment(ctx context.Context, comment *models.ThreadComment) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *threadRepository) GetComment(ctx context.Context, id uint) (*models.ThreadComment, error) {
	var comment models.ThreadComment
	if err := r.db.WithContext(ctx).Where("is_deleted = ?", false).First(&comment, id).Error; err != nil {
		return nil, mapErr(err, "Comment", id)
	}
	return &comment, nil
}

func (r *threadRepository) ListComments(ctx context.Context, threadID uint) ([]models.ThreadComment, error) {
	var comments []models.ThreadComment
	if err := readDB(r.db).WithContext(ctx).
		Preload("User").
		Where("thread_id = ? AND is_deleted = ?", threadID, false).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *threadRepository) SoftDeleteComment(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&models.ThreadComment{}).Where("id = ?", id).Update("is_deleted", true).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *threadRepository) ToggleReaction(ctx context.Context, reaction *models.Reaction) (bool, error) {
	set := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND target_type = ? AND target_id = ? AND emoji = ?",
			reaction.UserID, reaction.TargetType, reaction.TargetID, reaction.Emoji).
			Delete(&models.Reaction{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		set = true
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(reaction).Error
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return set, nil
}

func (r *threadRepository) CountReactions(ctx context.Context, targetType string, targetID uint) ([]models.ReactionCount, error) {
	var counts []models.ReactionCount
	if err := readDB(r.db).WithContext(ctx).
		Model(&models.Reaction{}).
		Select("emoji, COUNT(*) AS count").
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Group("emoji").
		Order("count DESC").
		Scan(&counts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return counts, nil
}

func (r *threadRepository) Save(ctx context.Context, userID, threadID uint) error {
	saved := models.SavedThread{UserID: userID, ThreadID: threadID}
	if err := r.db.WithContext(ctx).Omit("Thread").Clauses(clause.OnConflict{DoNothing: true}).Create(&saved).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *threadRepository) Unsave(ctx context.Context, userID, threadID uint) error {
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND thread_id = ?", userID, threadID).
		Delete(&models.SavedThread{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *threadRepository) ListSaved(ctx context.Context, userID uint, limit, offset int) ([]models.Thread, error) {
	var threads []models.Thread
	if err := readDB(r.db).WithContext(ctx).
		Preload("User").
		Joins("JOIN saved_threads st ON st.thread_id = threads.id").
		Where("st.user_id = ? AND threads.is_deleted = ?", userID, false).
		Order("st.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&threads).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return threads, nil
}
