package models

import "time"

// CharacterProfile is a reusable fictional persona. It can be linked to
// novels and take part in group chats.
type CharacterProfile struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatorID   uint      `gorm:"not null;index" json:"creator_id"`
	Name        string    `gorm:"size:100;not null;index" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Personality string    `gorm:"type:text" json:"personality"`
	Background  string    `gorm:"type:text" json:"background"`
	Appearance  string    `gorm:"type:text" json:"appearance"`
	AvatarURL   string    `json:"avatar_url"`
	IsPublic    bool      `gorm:"not null" json:"is_public"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (CharacterProfile) TableName() string {
	return "character_profiles"
}

// Character roles inside a novel.
const (
	CharacterRoleProtagonist = "protagonist"
	CharacterRoleSupporting  = "supporting"
	CharacterRoleAntagonist  = "antagonist"
)

// NovelCharacter links a character profile to a novel.
type NovelCharacter struct {
	NovelID     uint      `gorm:"primaryKey;autoIncrement:false" json:"novel_id"`
	CharacterID uint      `gorm:"primaryKey;autoIncrement:false" json:"character_id"`
	Role        string    `gorm:"size:30;not null;default:'supporting'" json:"role"`
	CreatedAt   time.Time `json:"created_at"`

	Character CharacterProfile `gorm:"foreignKey:CharacterID" json:"character,omitempty"`
}

func (NovelCharacter) TableName() string {
	return "novels_characters"
}

// CharacterProgression records how a character changed in one chapter.
type CharacterProgression struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	NovelID        uint      `gorm:"not null;index:idx_progression_novel_chapter" json:"novel_id"`
	CharacterID    uint      `gorm:"not null;index" json:"character_id"`
	ChapterID      uint      `gorm:"not null" json:"chapter_id"`
	ChapterNumber  int       `gorm:"not null;index:idx_progression_novel_chapter" json:"chapter_number"`
	Development    string    `gorm:"type:text" json:"development"`
	EmotionalState string    `gorm:"size:200" json:"emotional_state"`
	Relationships  string    `gorm:"type:text" json:"relationships"`
	CreatedAt      time.Time `json:"created_at"`

	Character CharacterProfile `gorm:"foreignKey:CharacterID" json:"character,omitempty"`
}

func (CharacterProgression) TableName() string {
	return "character_progression"
}
