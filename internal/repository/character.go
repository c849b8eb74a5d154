package repository

import (
	"context"
	"strings"

	"fableweaver/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CharacterRepository defines persistence for character profiles, their novel
// links and per-chapter progression.
type CharacterRepository interface {
	Create(ctx context.Context, character *models.CharacterProfile) error
	GetByID(ctx context.Context, id uint) (*models.CharacterProfile, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.CharacterProfile, error)
	Update(ctx context.Context, character *models.CharacterProfile) error
	Deactivate(ctx context.Context, id uint) error
	ListByCreator(ctx context.Context, creatorID uint, limit, offset int) ([]models.CharacterProfile, error)
	ListPublic(ctx context.Context, query string, limit, offset int) ([]models.CharacterProfile, int64, error)

	// Link attaches a character to a novel. An existing link is left untouched.
	Link(ctx context.Context, novelID, characterID uint, role string) error
	ListNovelCharacters(ctx context.Context, novelID uint) ([]models.NovelCharacter, error)
	AddProgression(ctx context.Context, progression *models.CharacterProgression) error
	RecentProgressions(ctx context.Context, novelID uint, limit int) ([]models.CharacterProgression, error)
}

type characterRepository struct {
	db *gorm.DB
}

// NewCharacterRepository returns a CharacterRepository backed by db.
func NewCharacterRepository(db *gorm.DB) CharacterRepository {
	return &characterRepository{db: db}
}

func (r *characterRepository) Create(ctx context.Context, character *models.CharacterProfile) error {
	if err := r.db.WithContext(ctx).Create(character).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *characterRepository) GetByID(ctx context.Context, id uint) (*models.CharacterProfile, error) {
	var character models.CharacterProfile
	if err := readDB(r.db).WithContext(ctx).First(&character, id).Error; err != nil {
		return nil, mapErr(err, "Character", id)
	}
	return &character, nil
}

// GetByIDs returns the matching profiles in no particular order.
func (r *characterRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.CharacterProfile, error) {
	var characters []models.CharacterProfile
	if len(ids) == 0 {
		return characters, nil
	}
	if err := readDB(r.db).WithContext(ctx).Where("id IN ?", ids).Find(&characters).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return characters, nil
}

func (r *characterRepository) Update(ctx context.Context, character *models.CharacterProfile) error {
	if err := r.db.WithContext(ctx).Save(character).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *characterRepository) Deactivate(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Model(&models.CharacterProfile{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Character", id)
	}
	return nil
}

func (r *characterRepository) ListByCreator(ctx context.Context, creatorID uint, limit, offset int) ([]models.CharacterProfile, error) {
	var characters []models.CharacterProfile
	if err := readDB(r.db).WithContext(ctx).
		Where("creator_id = ? AND is_active = ?", creatorID, true).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&characters).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return characters, nil
}

func (r *characterRepository) ListPublic(ctx context.Context, query string, limit, offset int) ([]models.CharacterProfile, int64, error) {
	q := readDB(r.db).WithContext(ctx).Model(&models.CharacterProfile{}).
		Where("is_public = ? AND is_active = ?", true, true)
	if s := strings.TrimSpace(query); s != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(s)+"%")
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	var characters []models.CharacterProfile
	if err := q.Order("name ASC").Limit(limit).Offset(offset).Find(&characters).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return characters, total, nil
}

func (r *characterRepository) Link(ctx context.Context, novelID, characterID uint, role string) error {
	link := models.NovelCharacter{NovelID: novelID, CharacterID: characterID, Role: role}
	if err := r.db.WithContext(ctx).
		Omit("Character").
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&link).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *characterRepository) ListNovelCharacters(ctx context.Context, novelID uint) ([]models.NovelCharacter, error) {
	var links []models.NovelCharacter
	if err := r.db.WithContext(ctx).
		Preload("Character").
		Where("novel_id = ?", novelID).
		Order("created_at ASC").
		Find(&links).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return links, nil
}

func (r *characterRepository) AddProgression(ctx context.Context, progression *models.CharacterProgression) error {
	if err := r.db.WithContext(ctx).Omit("Character").Create(progression).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *characterRepository) RecentProgressions(ctx context.Context, novelID uint, limit int) ([]models.CharacterProgression, error) {
	var rows []models.CharacterProgression
	if err := r.db.WithContext(ctx).
		Preload("Character").
		Where("novel_id = ?", novelID).
		Order("chapter_number DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}
