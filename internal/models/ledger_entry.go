package models

import "time"

// LedgerEntry is the atomic, write-once unit of circle history. Entries are
// never updated or deleted except for flipping Status to VOIDED, which is
// always paired with a new compensating entry appended in the same transaction.
//
// Seq is assigned at append time and is the ordering contract for
// every reader: downstream consumers sort by (circle_id, seq), never by wall
// clock, so clock skew cannot reorder history.
type LedgerEntry struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	CircleID uint   `gorm:"not null;index:idx_circle_seq,unique;index:idx_circle_idem,unique" json:"circle_id"`
	Seq      uint64 `gorm:"not null;index:idx_circle_seq,unique" json:"seq"`

	Type      string `gorm:"size:30;not null;index" json:"type"`
	Direction string `gorm:"size:10;not null;default:'NONE'" json:"direction"` // CREDIT | DEBIT | NONE

	// AmountCents is nil for entries that do not move value.
	AmountCents *int64 `json:"amount_cents,omitempty"`

	// Round the entry applies to; 0 for entries not scoped to a round.
	// For ROTATION_ASSIGNED this is the assigned payout round.
	Round int `gorm:"default:0;index" json:"round"`

	ActorType string `gorm:"size:10;not null" json:"actor_type"` // MEMBER | ADMIN | SYSTEM
	ActorID   uint   `gorm:"index" json:"actor_id"`              // 0 for SYSTEM

	// SubjectUserID is the member the entry is about (payer, recipient,
	// approved member). 0 for circle-level entries.
	SubjectUserID uint `gorm:"index" json:"subject_user_id"`

	// Preference is recorded on MEMBER_JOINED so order assignment is
	// reconstructable purely from the ledger.
	Preference string `gorm:"size:10" json:"preference,omitempty"`

	Reference      string  `gorm:"size:36;not null" json:"reference"` // uuid
	IdempotencyKey *string `gorm:"size:64;index:idx_circle_idem,unique" json:"idempotency_key,omitempty"`

	Description string `gorm:"size:255" json:"description"`
	Reason      string `gorm:"size:255" json:"reason,omitempty"`

	Status string `gorm:"size:10;not null;default:'ACTIVE';index" json:"status"` // ACTIVE | VOIDED
	// VoidsSeq references the entry this one supersedes (compensating entries only).
	VoidsSeq *uint64 `json:"voids_seq,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
