package models

import "time"

// CircleSnapshot is the materialized read model for one circle: the result of
// folding the circle's ledger, serialized as JSON. It can always be rebuilt
// from scratch by replaying the ledger; LastSeq records how fresh it is.
type CircleSnapshot struct {
	CircleID  uint      `gorm:"primaryKey" json:"circle_id"`
	LastSeq   uint64    `gorm:"not null;default:0" json:"last_seq"`
	Data      []byte    `gorm:"type:json" json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CircleSnapshot) TableName() string {
	return "circle_snapshots"
}
