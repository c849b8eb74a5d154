package models

import (
	"time"
)

// User is an account on FableWeaver.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"uniqueIndex;size:30;not null" json:"username"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email,omitempty"`
	Password     string     `gorm:"not null" json:"-"`
	Bio          string     `json:"bio"`
	Avatar       string     `json:"avatar"`
	IsAdmin      bool       `gorm:"not null;default:false" json:"is_admin"`
	IsBanned     bool       `gorm:"not null;default:false;index" json:"is_banned"`
	BannedAt     *time.Time `json:"banned_at,omitempty"`
	LastActiveAt *time.Time `gorm:"index" json:"last_active_at,omitempty"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// UserSummary is the public projection of a user embedded in other payloads.
type UserSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Summary returns the public projection of u.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}
