package models

import (
	"time"

	"gorm.io/datatypes"
)

// NovelStatus is the author's publication state.
type NovelStatus string

const (
	NovelStatusDraft     NovelStatus = "draft"
	NovelStatusOngoing   NovelStatus = "ongoing"
	NovelStatusCompleted NovelStatus = "completed"
)

// ModerationStatus is the back-office review state of a novel.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// Valid reports whether s is a known moderation status.
func (s ModerationStatus) Valid() bool {
	switch s {
	case ModerationPending, ModerationApproved, ModerationRejected:
		return true
	}
	return false
}

// Novel is a story owned by an author.
type Novel struct {
	ID               uint                        `gorm:"primaryKey" json:"id"`
	AuthorID         uint                        `gorm:"not null;index" json:"author_id"`
	Author           User                        `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Title            string                      `gorm:"size:200;not null" json:"title"`
	Description      string                      `gorm:"type:text" json:"description"`
	Genre            string                      `gorm:"size:50;index" json:"genre"`
	Tags             datatypes.JSONSlice[string] `json:"tags"`
	CoverURL         string                      `json:"cover_url"`
	Status           NovelStatus                 `gorm:"type:varchar(20);not null;default:'draft'" json:"status"`
	ModerationStatus ModerationStatus            `gorm:"type:varchar(20);not null;default:'pending';index" json:"moderation_status"`
	ModerationNote   string                      `json:"moderation_note,omitempty"`
	IsPublic         bool                        `gorm:"not null" json:"is_public"`
	IsDeleted        bool                        `gorm:"not null;default:false;index" json:"is_deleted"`
	ViewCount        int64                       `gorm:"not null;default:0" json:"view_count"`
	ChapterCount     int                         `gorm:"not null;default:0" json:"chapter_count"`
	CreatedAt        time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`

	// AverageRating is computed from novel comments at query time.
	AverageRating float64 `gorm:"-" json:"average_rating,omitempty"`
}

func (Novel) TableName() string {
	return "novels"
}

// Listable reports whether the novel may appear in the public library.
func (n Novel) Listable() bool {
	return n.IsPublic && !n.IsDeleted && n.ModerationStatus == ModerationApproved
}

// Chapter is one numbered installment of a novel.
type Chapter struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	NovelID       uint      `gorm:"not null;uniqueIndex:idx_chapters_novel_number" json:"novel_id"`
	ChapterNumber int       `gorm:"not null;uniqueIndex:idx_chapters_novel_number" json:"chapter_number"`
	Title         string    `gorm:"size:200;not null" json:"title"`
	Content       string    `gorm:"type:text;not null" json:"content,omitempty"`
	Summary       string    `gorm:"type:text" json:"summary,omitempty"`
	WordCount     int       `gorm:"not null;default:0" json:"word_count"`
	IsAIGenerated bool      `gorm:"column:is_ai_generated;not null;default:false" json:"is_ai_generated"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Chapter) TableName() string {
	return "chapters"
}

// ChapterRevision keeps the text a chapter had before an edit.
type ChapterRevision struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChapterID uint      `gorm:"not null;index" json:"chapter_id"`
	EditorID  uint      `gorm:"not null" json:"editor_id"`
	Title     string    `gorm:"size:200" json:"title"`
	Content   string    `gorm:"type:text" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (ChapterRevision) TableName() string {
	return "chapter_revisions"
}

// ReadingHistory tracks the furthest chapter a user opened in a novel.
type ReadingHistory struct {
	UserID            uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	NovelID           uint      `gorm:"primaryKey;autoIncrement:false" json:"novel_id"`
	LastChapterNumber int       `gorm:"not null;default:0" json:"last_chapter_number"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (ReadingHistory) TableName() string {
	return "reading_history"
}
