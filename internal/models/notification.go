package models

import "time"

// NotificationType enumerates persisted notification kinds.
type NotificationType string

const (
	NotificationFriendRequest  NotificationType = "friend_request"
	NotificationFriendAccepted NotificationType = "friend_accepted"
	NotificationDirectMessage  NotificationType = "direct_message"
	NotificationChapterComment NotificationType = "chapter_comment"
	NotificationModeration     NotificationType = "moderation"
)

// Notification is an inbox entry for a user.
type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;index:idx_notifications_user_read" json:"user_id"`
	ActorID   *uint            `json:"actor_id,omitempty"`
	Type      NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	Title     string           `gorm:"size:200;not null" json:"title"`
	Body      string           `gorm:"type:text" json:"body"`
	Link      string           `json:"link,omitempty"`
	IsRead    bool             `gorm:"not null;default:false;index:idx_notifications_user_read" json:"is_read"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
