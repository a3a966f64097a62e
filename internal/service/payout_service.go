package service

import (
	"context"
	"errors"
	"fmt"

	"mzunguko/internal/domain"
	"mzunguko/internal/models"
	"mzunguko/internal/rotation"
	"mzunguko/internal/snapshot"
	"mzunguko/internal/storage"
	"mzunguko/pkg/metrics"
)

// PayoutService issues round payouts and advances the rotation.
type PayoutService struct {
	store storage.Store
	notif *NotificationService
}

func NewPayoutService(store storage.Store, notif *NotificationService) *PayoutService {
	return &PayoutService{store: store, notif: notif}
}

// IssuePayoutInput describes one payout of the pooled round amount.
type IssuePayoutInput struct {
	CircleID    uint
	Round       int  // 0 means the current round
	RecipientID uint // must match the round's assigned recipient
	AmountCents int64
	// Partial permits an amount below the pooled total (recorded short
	// payout agreed offline). The amount can never exceed the pool.
	Partial        bool
	IdempotencyKey string
}

// IssuePayout records the round payout and, atomically in the same append,
// advances the rotation: ROUND_ADVANCED plus next-round obligations, or
// CIRCLE_COMPLETED after the final round. Circle admin only.
func (s *PayoutService) IssuePayout(ctx context.Context, actor Actor, in IssuePayoutInput) (*snapshot.Snapshot, error) {
	if in.IdempotencyKey != "" {
		snap, err := s.priorPayout(ctx, in.CircleID, in.IdempotencyKey)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	var snap *snapshot.Snapshot
	var completed bool
	var paidRound int
	var paidRecipient uint
	err := withRetry(func() error {
		_, cur, err := loadState(ctx, s.store, in.CircleID)
		if err != nil {
			return err
		}
		if err := requireCircleAdmin(cur, actor); err != nil {
			return err
		}
		round := in.Round
		if round == 0 {
			round = cur.CurrentRound
		}
		if err := rotation.CanAdvance(cur, round); err != nil {
			return err
		}
		recipient, ok := cur.Recipient(round)
		if !ok {
			return fmt.Errorf("%w: no recipient assigned for round %d", domain.ErrInvalidTransition, round)
		}
		if in.RecipientID != 0 && in.RecipientID != recipient {
			return fmt.Errorf("%w: round %d recipient is user %d", domain.ErrRecipientMismatch, round, recipient)
		}
		pool := cur.PayoutTotalCents()
		amount := in.AmountCents
		if amount == 0 {
			amount = pool
		}
		if amount > pool {
			return fmt.Errorf("%w: amount %d exceeds pooled total %d", domain.ErrValidation, amount, pool)
		}
		if amount != pool && !in.Partial {
			return fmt.Errorf("%w: amount %d is not the pooled total %d (partial not set)", domain.ErrValidation, amount, pool)
		}

		payout := &models.LedgerEntry{
			Type: domain.EntryPayoutIssued, Direction: domain.DirectionDebit,
			ActorType: actor.actorType(), ActorID: actor.UserID,
			SubjectUserID: recipient, Round: round,
			AmountCents: amountPtr(amount),
			Description: fmt.Sprintf("round %d payout issued", round),
		}
		if in.IdempotencyKey != "" {
			key := in.IdempotencyKey
			payout.IdempotencyKey = &key
		}
		entries := []*models.LedgerEntry{payout}

		completed = rotation.IsFinalRound(cur, round)
		if completed {
			entries = append(entries, &models.LedgerEntry{
				Type: domain.EntryCircleCompleted, ActorType: domain.ActorSystem,
				Round: round, Description: "final payout issued, rotation complete",
			})
		} else {
			next := round + 1
			entries = append(entries, &models.LedgerEntry{
				Type: domain.EntryRoundAdvanced, ActorType: domain.ActorSystem,
				Round: next, Description: fmt.Sprintf("round %d open", next),
			})
			for _, m := range cur.ApprovedMembers() {
				entries = append(entries, &models.LedgerEntry{
					Type: domain.EntryObligationCreated, ActorType: domain.ActorSystem,
					SubjectUserID: m.UserID, Round: next,
					AmountCents: amountPtr(cur.AmountCents),
					Description: fmt.Sprintf("round %d contribution due", next),
				})
			}
		}
		if _, err := appendOp(ctx, s.store, cur, entries, nil); err != nil {
			return err
		}
		snap = cur
		paidRound = round
		paidRecipient = recipient
		return nil
	})
	if errors.Is(err, domain.ErrIdempotencyReplay) {
		// A concurrent request with the same key already issued this payout.
		return s.priorPayout(ctx, in.CircleID, in.IdempotencyKey)
	}
	if err != nil {
		return nil, err
	}

	metrics.PayoutsIssued.Inc()
	s.notif.User(ctx, snap, paidRecipient, domain.NotifPayoutIssued, "Payout issued",
		fmt.Sprintf("your round %d payout from %s has been issued", paidRound, snap.Name), paidRound)
	if completed {
		s.notif.CircleMembers(ctx, snap, domain.NotifRoundAdvanced, "Circle completed",
			fmt.Sprintf("%s has completed its rotation", snap.Name), snap.CurrentRound)
	} else {
		s.notif.CircleMembers(ctx, snap, domain.NotifRoundAdvanced, "Round advanced",
			fmt.Sprintf("%s moved to round %d", snap.Name, snap.CurrentRound), snap.CurrentRound)
	}
	return snap, nil
}

// priorPayout resolves an idempotency key to the snapshot after the payout it
// originally issued. ErrNotFound when the key was never used.
func (s *PayoutService) priorPayout(ctx context.Context, circleID uint, key string) (*snapshot.Snapshot, error) {
	prior, err := s.store.FindByIdempotencyKey(ctx, circleID, key)
	if err != nil {
		return nil, err
	}
	if prior.Type != domain.EntryPayoutIssued {
		return nil, fmt.Errorf("%w: idempotency key already used by a %s entry", domain.ErrValidation, prior.Type)
	}
	_, snap, err := loadState(ctx, s.store, circleID)
	if err != nil {
		return nil, err
	}
	return snap, nil
}
