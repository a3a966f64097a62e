package models

import (
	"time"

	"gorm.io/gorm"
)

// Membership is the (circle, user) projection maintained from the ledger.
// PayoutRound is 0 until the rotation order is assigned at activation.
type Membership struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CircleID    uint      `gorm:"not null;index:idx_circle_user,unique" json:"circle_id"`
	UserID      uint      `gorm:"not null;index:idx_circle_user,unique" json:"user_id"`
	Role        string    `gorm:"size:20;not null;default:'MEMBER'" json:"role"` // ADMIN | MEMBER
	JoinStatus  string    `gorm:"size:20;not null;default:'REQUESTED';index" json:"join_status"`
	PayoutRound int       `gorm:"default:0" json:"payout_round"`
	Preference  string    `gorm:"size:10;default:'ANY'" json:"preference"` // EARLY | LATE | ANY
	JoinedAt    time.Time `json:"joined_at"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Circle Circle `gorm:"foreignKey:CircleID" json:"-"`
	User   User   `gorm:"foreignKey:UserID" json:"-"`
}

func (Membership) TableName() string {
	return "memberships"
}
