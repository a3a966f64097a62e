// Package storage abstracts persistence for the circle ledger so the service
// layer can run against MySQL in production and an in-memory store in tests.
package storage

import (
	"context"

	"mzunguko/internal/models"
	"mzunguko/internal/snapshot"
)

// AppendRequest is one logical, atomic write against a circle's ledger.
// Either every part is persisted (entries appended with fresh sequence
// numbers, void flips applied, projections saved) or none is.
type AppendRequest struct {
	CircleID uint
	// ExpectedSeq is the circle's last sequence number as observed by the
	// caller. A mismatch at commit time means a concurrent writer won the
	// race; the append fails with domain.ErrSequenceConflict and nothing is
	// written.
	ExpectedSeq uint64
	// Entries to append, already numbered ExpectedSeq+1..ExpectedSeq+len(Entries)
	// by the caller (the fold needs sequence numbers before the write).
	Entries []*models.LedgerEntry
	// VoidSeqs are previously appended entries whose status flips to VOIDED
	// in the same transaction (compensating entries must be in Entries).
	VoidSeqs []uint64
	// Snapshot is the post-fold state to materialize alongside the append:
	// the snapshot blob, the circle's projection columns, and membership rows.
	Snapshot *snapshot.Snapshot
}

// HistoryFilter narrows the admin audit explorer query.
type HistoryFilter struct {
	CircleID uint   // 0 = all circles
	Type     string // "" = all types
	ActorID  uint   // 0 = all actors
	Status   string // "" = ACTIVE and VOIDED
	Page     int
	Limit    int
}

// Store is the persistence contract for the ledger engine.
type Store interface {
	// Circles.
	CreateCircle(ctx context.Context, c *models.Circle) error
	GetCircle(ctx context.Context, id uint) (*models.Circle, error)
	ListActiveCircles(ctx context.Context) ([]models.Circle, error)

	// Ledger.
	Append(ctx context.Context, req AppendRequest) ([]models.LedgerEntry, error)
	GetEntry(ctx context.Context, circleID uint, seq uint64) (*models.LedgerEntry, error)
	FindByIdempotencyKey(ctx context.Context, circleID uint, key string) (*models.LedgerEntry, error)
	// ListByCircle returns entries ordered by seq ascending, starting after
	// afterSeq. The seq ordering is the compatibility contract for every
	// downstream reader.
	ListByCircle(ctx context.Context, circleID uint, afterSeq uint64, limit int) ([]models.LedgerEntry, error)
	ListHistory(ctx context.Context, f HistoryFilter) ([]models.LedgerEntry, int64, error)

	// Snapshot projection.
	GetSnapshot(ctx context.Context, circleID uint) (*snapshot.Snapshot, error)
	// SaveProjections persists snapshot-derived state outside an append
	// (used by ledger replay/rebuild).
	SaveProjections(ctx context.Context, snap *snapshot.Snapshot) error

	// Membership projection reads.
	GetMembership(ctx context.Context, circleID, userID uint) (*models.Membership, error)
	ListMemberships(ctx context.Context, circleID uint) ([]models.Membership, error)
	ListActiveMembershipsByUser(ctx context.Context, userID uint) ([]models.Membership, error)

	// Users.
	GetOrCreateUser(ctx context.Context, id uint, username string) (*models.User, error)
	GetUser(ctx context.Context, id uint) (*models.User, error)
	SetUserBanned(ctx context.Context, id uint, banned bool) error

	// Notifications.
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID uint) error
}
