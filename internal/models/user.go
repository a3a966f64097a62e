package models

import (
	"time"

	"gorm.io/gorm"
)

// User mirrors the identity resolved by the external auth collaborator.
// Rows are created lazily the first time a user acts on a circle; the engine
// never authenticates and stores no credentials.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"size:64;not null;default:''" json:"username"`
	Role      string         `gorm:"size:20;not null;default:'MEMBER';index" json:"role"` // MEMBER | ADMIN
	Banned    bool           `gorm:"default:false;index" json:"banned"`
	BannedAt  *time.Time     `json:"banned_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}
