package models

import "time"

// Thread is a discussion thread on the community board.
type Thread struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Title     string    `gorm:"size:200;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Category  string    `gorm:"size:50;index" json:"category"`
	IsDeleted bool      `gorm:"not null;default:false;index" json:"is_deleted"`
	ViewCount int64     `gorm:"not null;default:0" json:"view_count"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CommentCount int64 `gorm:"-" json:"comment_count"`
}

func (Thread) TableName() string {
	return "threads"
}

// ThreadComment is a reply in a thread. ParentID allows one level of nesting.
type ThreadComment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ThreadID  uint      `gorm:"not null;index" json:"thread_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ParentID  *uint     `gorm:"index" json:"parent_id,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	IsDeleted bool      `gorm:"not null;default:false" json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ThreadComment) TableName() string {
	return "comments"
}

// Reaction targets.
const (
	ReactionTargetThread  = "thread"
	ReactionTargetComment = "comment"
)

// Reaction is an emoji reaction on a thread or comment.
type Reaction struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_reactions_unique" json:"user_id"`
	TargetType string    `gorm:"size:20;not null;uniqueIndex:idx_reactions_unique;index:idx_reactions_target" json:"target_type"`
	TargetID   uint      `gorm:"not null;uniqueIndex:idx_reactions_unique;index:idx_reactions_target" json:"target_id"`
	Emoji      string    `gorm:"size:32;not null;uniqueIndex:idx_reactions_unique" json:"emoji"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Reaction) TableName() string {
	return "reactions"
}

// ReactionCount is an aggregated emoji count.
type ReactionCount struct {
	Emoji string `json:"emoji"`
	Count int64  `json:"count"`
}

// SavedThread is a user's bookmark on a thread.
type SavedThread struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	ThreadID  uint      `gorm:"primaryKey;autoIncrement:false" json:"thread_id"`
	CreatedAt time.Time `json:"created_at"`

	Thread Thread `gorm:"foreignKey:ThreadID" json:"thread,omitempty"`
}

func (SavedThread) TableName() string {
	return "saved_threads"
}
