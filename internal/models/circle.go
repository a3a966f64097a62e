package models

import (
	"time"

	"gorm.io/gorm"
)

// Circle holds the immutable configuration of one rotating savings cycle plus
// a few materialized columns (Status, CurrentRound, Frozen, LastSeq) that are
// projections of the ledger and can be rebuilt by replaying it.
type Circle struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"size:128;not null" json:"name"`
	AmountCents int64      `gorm:"not null" json:"amount_cents"`
	Currency    string     `gorm:"size:3;default:'KES'" json:"currency"`
	Frequency   string     `gorm:"size:10;not null" json:"frequency"` // WEEKLY | BIWEEKLY | MONTHLY
	Capacity    int        `gorm:"not null" json:"capacity"`
	StartDate   *time.Time `json:"start_date"`
	CreatedBy   uint       `gorm:"not null;index" json:"created_by"`

	// Materialized from the ledger.
	Status       string `gorm:"size:20;not null;default:'RECRUITING';index" json:"status"`
	Frozen       bool   `gorm:"default:false" json:"frozen"`
	CurrentRound int    `gorm:"default:0" json:"current_round"`
	LastSeq      uint64 `gorm:"default:0" json:"last_seq"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Circle) TableName() string {
	return "circles"
}

// PayoutTotalCents is the pooled amount one recipient receives per round.
func (c *Circle) PayoutTotalCents() int64 {
	return c.AmountCents * int64(c.Capacity)
}
