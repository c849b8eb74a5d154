package repository

import (
	"context"

	"fableweaver/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GroupChatRepository defines persistence for group chat sessions.
type GroupChatRepository interface {
	Create(ctx context.Context, session *models.GroupChatSession) error
	GetByID(ctx context.Context, id uint) (*models.GroupChatSession, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.GroupChatSession, error)
	Update(ctx context.Context, session *models.GroupChatSession) error
	// SaveMessages replaces the transcript in a single UPDATE.
	SaveMessages(ctx context.Context, id uint, messages []models.ChatMessage) error
	Deactivate(ctx context.Context, id uint) error
}

type groupChatRepository struct {
	db *gorm.DB
}

// NewGroupChatRepository returns a GroupChatRepository backed by db.
func NewGroupChatRepository(db *gorm.DB) GroupChatRepository {
	return &groupChatRepository{db: db}
}

func (r *groupChatRepository) Create(ctx context.Context, session *models.GroupChatSession) error {
	if session.Messages == nil {
		session.Messages = datatypes.JSONSlice[models.ChatMessage]{}
	}
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// GetByID always reads the primary so a turn sees the latest transcript.
func (r *groupChatRepository) GetByID(ctx context.Context, id uint) (*models.GroupChatSession, error) {
	var session models.GroupChatSession
	if err := r.db.WithContext(ctx).First(&session, id).Error; err != nil {
		return nil, mapErr(err, "Group chat", id)
	}
	return &session, nil
}

// ListByUser omits transcripts; callers fetch a session to read its messages.
func (r *groupChatRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.GroupChatSession, error) {
	var sessions []models.GroupChatSession
	if err := readDB(r.db).WithContext(ctx).
		Select("id", "user_id", "title", "character_ids", "auto_chat", "is_active", "created_at", "updated_at").
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&sessions).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return sessions, nil
}

func (r *groupChatRepository) Update(ctx context.Context, session *models.GroupChatSession) error {
	err := r.db.WithContext(ctx).Model(&models.GroupChatSession{}).Where("id = ?", session.ID).Updates(map[string]interface{}{
		"title":         session.Title,
		"character_ids": session.CharacterIDs,
		"auto_chat":     session.AutoChat,
	}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *groupChatRepository) SaveMessages(ctx context.Context, id uint, messages []models.ChatMessage) error {
	err := r.db.WithContext(ctx).Model(&models.GroupChatSession{}).
		Where("id = ?", id).
		Update("messages", datatypes.JSONSlice[models.ChatMessage](messages)).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *groupChatRepository) Deactivate(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&models.GroupChatSession{}).
		Where("id = ?", id).
		Update("is_active", false).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
