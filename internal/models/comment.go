package models

import "time"

// ChapterComment is a reader comment under a chapter.
type ChapterComment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChapterID uint      `gorm:"not null;index" json:"chapter_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	IsDeleted bool      `gorm:"not null;default:false" json:"is_deleted"`
	IsHidden  bool      `gorm:"not null;default:false" json:"is_hidden"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ChapterComment) TableName() string {
	return "chapter_comments"
}

// NovelComment is a review-style comment on a whole novel.
type NovelComment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	NovelID   uint      `gorm:"not null;index" json:"novel_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Rating    int       `gorm:"not null;default:0" json:"rating"`
	IsDeleted bool      `gorm:"not null;default:false" json:"is_deleted"`
	IsHidden  bool      `gorm:"not null;default:false" json:"is_hidden"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (NovelComment) TableName() string {
	return "novel_comments"
}

// CommentKind selects between the two comment tables in admin views.
type CommentKind string

const (
	CommentKindChapter CommentKind = "chapter"
	CommentKindNovel   CommentKind = "novel"
)

// AdminComment is the unified admin projection over both comment tables.
type AdminComment struct {
	ID        uint        `json:"id"`
	Kind      CommentKind `json:"kind"`
	TargetID  uint        `json:"target_id"`
	UserID    uint        `json:"user_id"`
	Username  string      `json:"username"`
	Content   string      `json:"content"`
	IsDeleted bool        `json:"is_deleted"`
	IsHidden  bool        `json:"is_hidden"`
	CreatedAt time.Time   `json:"created_at"`
}
