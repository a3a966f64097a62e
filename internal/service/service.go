// Package service implements the circle ledger workflows: membership,
// contributions, payouts, rotation and admin overrides. Every mutation is
// expressed as ledger entries appended through storage.Store; derived state is
// the fold of those entries.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mzunguko/internal/domain"
	"mzunguko/internal/models"
	"mzunguko/internal/snapshot"
	"mzunguko/internal/storage"
	"mzunguko/pkg/metrics"
)

// Actor is the resolved identity passed into every engine call. The engine
// never reads identity from ambient state and never authenticates.
type Actor struct {
	UserID uint
	Role   string // platform role: MEMBER | ADMIN
}

// IsPlatformAdmin reports whether the actor holds the platform ADMIN role.
func (a Actor) IsPlatformAdmin() bool { return a.Role == domain.RoleAdmin }

func (a Actor) actorType() string {
	if a.UserID == 0 {
		return domain.ActorSystem
	}
	if a.IsPlatformAdmin() {
		return domain.ActorAdmin
	}
	return domain.ActorMember
}

// maxRetries bounds automatic retries after a sequence conflict.
const maxRetries = 3

// withRetry reruns fn while it fails with ErrSequenceConflict. fn must reload
// circle state on each attempt.
func withRetry(fn func() error) error {
	var err error
	for i := 0; i < maxRetries; i++ {
		err = fn()
		if !errors.Is(err, domain.ErrSequenceConflict) {
			return err
		}
		metrics.SequenceConflicts.Inc()
	}
	return err
}

// loadState returns the circle and its current snapshot. A missing or stale
// snapshot is repaired by replaying the ledger, so reads never depend on the
// materialized copy being up to date.
func loadState(ctx context.Context, store storage.Store, circleID uint) (*models.Circle, *snapshot.Snapshot, error) {
	circle, err := store.GetCircle(ctx, circleID)
	if err != nil {
		return nil, nil, err
	}
	snap, err := store.GetSnapshot(ctx, circleID)
	if errors.Is(err, domain.ErrNotFound) {
		snap = snapshot.New(circle)
	} else if err != nil {
		return nil, nil, err
	}
	if snap.LastSeq < circle.LastSeq {
		if err := replayInto(ctx, store, snap); err != nil {
			return nil, nil, err
		}
	}
	return circle, snap, nil
}

const replayPageSize = 200

// replayInto folds all entries after the snapshot's last sequence.
func replayInto(ctx context.Context, store storage.Store, snap *snapshot.Snapshot) error {
	for {
		entries, err := store.ListByCircle(ctx, snap.CircleID, snap.LastSeq, replayPageSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		for i := range entries {
			if err := snap.Apply(&entries[i]); err != nil {
				return fmt.Errorf("replay circle %d: %w", snap.CircleID, err)
			}
		}
	}
}

// appendOp performs one logical ledger operation: it numbers the entries
// after the snapshot's last sequence, folds them into the snapshot, and hands
// entries + snapshot to the store for one atomic write. A concurrent writer
// surfaces as ErrSequenceConflict with nothing persisted.
func appendOp(ctx context.Context, store storage.Store, snap *snapshot.Snapshot, entries []*models.LedgerEntry, voidSeqs []uint64) ([]models.LedgerEntry, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	expected := snap.LastSeq
	seq := expected
	for _, e := range entries {
		seq++
		e.CircleID = snap.CircleID
		e.Seq = seq
		e.CreatedAt = now
		if e.Reference == "" {
			e.Reference = uuid.NewString()
		}
		if e.Status == "" {
			e.Status = domain.EntryActive
		}
		if e.Direction == "" {
			e.Direction = domain.DirectionNone
		}
	}
	for _, e := range entries {
		if err := snap.Apply(e); err != nil {
			return nil, err
		}
	}
	out, err := store.Append(ctx, storage.AppendRequest{
		CircleID:    snap.CircleID,
		ExpectedSeq: expected,
		Entries:     entries,
		VoidSeqs:    voidSeqs,
		Snapshot:    snap,
	})
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		metrics.LedgerAppends.WithLabelValues(e.Type).Inc()
	}
	return out, nil
}

// requireApprovedMember returns the member state or ErrNotAMember.
func requireApprovedMember(snap *snapshot.Snapshot, userID uint) (*snapshot.MemberState, error) {
	m, ok := snap.Members[userID]
	if !ok || m.JoinStatus != domain.JoinApproved {
		return nil, domain.ErrNotAMember
	}
	return m, nil
}

// requireCircleAdmin allows the circle admin or a platform admin.
func requireCircleAdmin(snap *snapshot.Snapshot, actor Actor) error {
	if actor.IsPlatformAdmin() {
		return nil
	}
	if adminID, ok := snap.AdminID(); ok && adminID == actor.UserID {
		return nil
	}
	return domain.ErrNotCircleAdmin
}

func amountPtr(v int64) *int64 { return &v }
