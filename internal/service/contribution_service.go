package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mzunguko/internal/domain"
	"mzunguko/internal/models"
	"mzunguko/internal/snapshot"
	"mzunguko/internal/storage"
)

// ContributionService handles the per-round contribution state machine:
// PENDING -> PAID -> CONFIRMED, with VOID reverting to PENDING.
type ContributionService struct {
	store storage.Store
	notif *NotificationService
}

func NewContributionService(store storage.Store, notif *NotificationService) *ContributionService {
	return &ContributionService{store: store, notif: notif}
}

// MarkPaidInput records a member's claim of payment for the current round.
type MarkPaidInput struct {
	CircleID       uint
	Round          int
	AmountCents    int64 // 0 means the circle's fixed amount
	IdempotencyKey string
}

// MarkPaid records a contribution as paid. The payer marks their own
// obligation; the circle admin may mark on a member's behalf (cash received in
// person), in which case UserID names the payer. Replays with the same
// idempotency key return the original entry without a second write.
func (s *ContributionService) MarkPaid(ctx context.Context, actor Actor, userID uint, in MarkPaidInput) (*models.LedgerEntry, error) {
	if userID == 0 {
		userID = actor.UserID
	}
	if in.IdempotencyKey != "" {
		if prior, err := s.store.FindByIdempotencyKey(ctx, in.CircleID, in.IdempotencyKey); err == nil {
			return prior, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
	}

	var entry *models.LedgerEntry
	err := withRetry(func() error {
		_, cur, err := loadState(ctx, s.store, in.CircleID)
		if err != nil {
			return err
		}
		round := in.Round
		if round == 0 {
			round = cur.CurrentRound
		}
		if err := s.checkMutableRound(cur, round); err != nil {
			return err
		}
		if userID != actor.UserID {
			if err := requireCircleAdmin(cur, actor); err != nil {
				return err
			}
		}
		if _, err := requireApprovedMember(cur, userID); err != nil {
			return err
		}
		status, err := cur.MemberStatus(round, userID, time.Time{})
		if err != nil {
			return fmt.Errorf("%w: no obligation for user %d in round %d", domain.ErrNotFound, userID, round)
		}
		if status != domain.ContributionPending {
			return fmt.Errorf("%w: contribution is %s, expected PENDING", domain.ErrInvalidTransition, status)
		}
		amount := in.AmountCents
		if amount == 0 {
			amount = cur.AmountCents
		}
		if amount != cur.AmountCents {
			return fmt.Errorf("%w: amount %d does not match circle amount %d", domain.ErrValidation, amount, cur.AmountCents)
		}

		e := &models.LedgerEntry{
			Type: domain.EntryContributionPaid, Direction: domain.DirectionCredit,
			ActorType: actor.actorType(), ActorID: actor.UserID,
			SubjectUserID: userID, Round: round,
			AmountCents: amountPtr(amount),
			Description: fmt.Sprintf("round %d contribution paid", round),
		}
		if in.IdempotencyKey != "" {
			key := in.IdempotencyKey
			e.IdempotencyKey = &key
		}
		written, err := appendOp(ctx, s.store, cur, []*models.LedgerEntry{e}, nil)
		if err != nil {
			return err
		}
		entry = &written[0]
		s.notifyRecipient(ctx, cur, round, userID)
		return nil
	})
	if errors.Is(err, domain.ErrIdempotencyReplay) {
		// Another request with the same key won the race; its entry is the answer.
		return s.store.FindByIdempotencyKey(ctx, in.CircleID, in.IdempotencyKey)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Confirm acknowledges receipt of a paid contribution. Only the round's payout
// recipient or the circle admin may confirm.
func (s *ContributionService) Confirm(ctx context.Context, actor Actor, circleID uint, round int, userID uint) (*models.LedgerEntry, error) {
	var entry *models.LedgerEntry
	err := withRetry(func() error {
		_, cur, err := loadState(ctx, s.store, circleID)
		if err != nil {
			return err
		}
		if round == 0 {
			round = cur.CurrentRound
		}
		if err := s.checkMutableRound(cur, round); err != nil {
			return err
		}
		recipient, _ := cur.Recipient(round)
		if actor.UserID != recipient {
			if err := requireCircleAdmin(cur, actor); err != nil {
				return err
			}
		}
		status, err := cur.MemberStatus(round, userID, time.Time{})
		if err != nil {
			return err
		}
		if status != domain.ContributionPaid {
			return fmt.Errorf("%w: contribution is %s, expected PAID", domain.ErrInvalidTransition, status)
		}

		e := &models.LedgerEntry{
			Type:      domain.EntryContributionConfirmed,
			ActorType: actor.actorType(), ActorID: actor.UserID,
			SubjectUserID: userID, Round: round,
			Description: fmt.Sprintf("round %d contribution confirmed", round),
		}
		written, err := appendOp(ctx, s.store, cur, []*models.LedgerEntry{e}, nil)
		if err != nil {
			return err
		}
		entry = &written[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Void reverses a recorded contribution: the original entry's status flips to
// VOIDED and a compensating entry reverts the obligation to PENDING, both in
// one transaction. Circle admin only, and a reason is mandatory.
func (s *ContributionService) Void(ctx context.Context, actor Actor, circleID uint, seq uint64, reason string) (*models.LedgerEntry, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: void reason is required", domain.ErrValidation)
	}
	var entry *models.LedgerEntry
	err := withRetry(func() error {
		_, cur, err := loadState(ctx, s.store, circleID)
		if err != nil {
			return err
		}
		if err := requireCircleAdmin(cur, actor); err != nil {
			return err
		}
		target, err := s.store.GetEntry(ctx, circleID, seq)
		if err != nil {
			return err
		}
		if target.Type != domain.EntryContributionPaid && target.Type != domain.EntryContributionConfirmed {
			return fmt.Errorf("%w: entry %d is %s, not a contribution", domain.ErrInvalidTransition, seq, target.Type)
		}
		if target.Status == domain.EntryVoided {
			return domain.ErrAlreadyVoided
		}
		if cur.Rounds[target.Round] != nil && cur.Rounds[target.Round].Payout != nil {
			return fmt.Errorf("%w: round %d payout already issued", domain.ErrAlreadyIssued, target.Round)
		}

		e := &models.LedgerEntry{
			Type:      domain.EntryContributionVoided,
			ActorType: actor.actorType(), ActorID: actor.UserID,
			SubjectUserID: target.SubjectUserID, Round: target.Round,
			Reason:      reason,
			VoidsSeq:    &seq,
			Description: fmt.Sprintf("voids entry %d", seq),
		}
		written, err := appendOp(ctx, s.store, cur, []*models.LedgerEntry{e}, []uint64{seq})
		if err != nil {
			return err
		}
		entry = &written[0]
		s.notif.User(ctx, cur, target.SubjectUserID, domain.NotifContributionVoided, "Contribution voided",
			fmt.Sprintf("your round %d contribution was voided: %s", target.Round, reason), target.Round)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// checkMutableRound rejects contribution writes against inactive circles,
// rounds that never opened, and rounds whose payout already went out. A freeze
// does not block contributions, only payouts and round advancement.
func (s *ContributionService) checkMutableRound(cur *snapshot.Snapshot, round int) error {
	if cur.Status != domain.CircleActive {
		return fmt.Errorf("%w: circle is %s", domain.ErrInvalidTransition, cur.Status)
	}
	if round < 1 || round > cur.CurrentRound {
		return fmt.Errorf("%w: round %d is not open", domain.ErrValidation, round)
	}
	if r := cur.Rounds[round]; r != nil && r.Payout != nil {
		return fmt.Errorf("%w: round %d payout already issued", domain.ErrAlreadyIssued, round)
	}
	return nil
}

func (s *ContributionService) notifyRecipient(ctx context.Context, cur *snapshot.Snapshot, round int, payer uint) {
	if recipient, ok := cur.Recipient(round); ok && recipient != payer {
		s.notif.User(ctx, cur, recipient, domain.NotifContributionPaid, "Contribution received",
			fmt.Sprintf("user %d marked their round %d contribution as paid", payer, round), round)
	}
}
