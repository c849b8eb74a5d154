package models

import (
	"time"

	"gorm.io/datatypes"
)

// Chat message roles stored in a group chat transcript.
const (
	ChatRoleUser      = "user"
	ChatRoleCharacter = "character"
)

// ChatMessage is one entry of a group chat transcript.
type ChatMessage struct {
	Role       string    `json:"role"`
	SenderID   uint      `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	IsFallback bool      `json:"is_fallback,omitempty"`
	Round      int       `json:"round"`
	CreatedAt  time.Time `json:"created_at"`
}

// GroupChatSession is a user's conversation with a set of AI characters.
// Messages is the full transcript, appended to on every turn.
type GroupChatSession struct {
	ID           uint                             `gorm:"primaryKey" json:"id"`
	UserID       uint                             `gorm:"not null;index" json:"user_id"`
	Title        string                           `gorm:"size:200" json:"title"`
	CharacterIDs datatypes.JSONSlice[uint]        `json:"character_ids"`
	Messages     datatypes.JSONSlice[ChatMessage] `json:"messages"`
	AutoChat     bool                             `gorm:"not null" json:"auto_chat"`
	IsActive     bool                             `gorm:"not null;index" json:"is_active"`
	CreatedAt    time.Time                        `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time                        `json:"updated_at"`
}

func (GroupChatSession) TableName() string {
	return "group_chat_history"
}
