package service

import (
	"context"
	"fmt"

	"mzunguko/internal/domain"
	"mzunguko/internal/models"
	"mzunguko/internal/rotation"
	"mzunguko/internal/snapshot"
	"mzunguko/internal/storage"
)

// OverrideService covers admin interventions: freeze, void, admin transfer,
// order reassignment, bans and projection rebuilds. Every override lands in
// the ledger like any other fact, so the audit trail is the ledger itself.
type OverrideService struct {
	store storage.Store
	notif *NotificationService
}

func NewOverrideService(store storage.Store, notif *NotificationService) *OverrideService {
	return &OverrideService{store: store, notif: notif}
}

// Freeze suspends payouts and round advancement. Contributions keep flowing.
// Freezing an already-frozen circle appends an ADMIN_OVERRIDE audit entry
// instead of failing, so repeated admin action is visible but harmless.
// Platform admin only, reason mandatory.
func (s *OverrideService) Freeze(ctx context.Context, actor Actor, circleID uint, reason string) (*snapshot.Snapshot, error) {
	return s.setFrozen(ctx, actor, circleID, reason, true)
}

// Unfreeze lifts a freeze. Same idempotency rule as Freeze.
func (s *OverrideService) Unfreeze(ctx context.Context, actor Actor, circleID uint, reason string) (*snapshot.Snapshot, error) {
	return s.setFrozen(ctx, actor, circleID, reason, false)
}

func (s *OverrideService) setFrozen(ctx context.Context, actor Actor, circleID uint, reason string, frozen bool) (*snapshot.Snapshot, error) {
	if !actor.IsPlatformAdmin() {
		return nil, domain.ErrNotCircleAdmin
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", domain.ErrValidation)
	}
	var snap *snapshot.Snapshot
	err := withRetry(func() error {
		_, cur, err := loadState(ctx, s.store, circleID)
		if err != nil {
			return err
		}
		if cur.Status != domain.CircleActive {
			return fmt.Errorf("%w: circle is %s", domain.ErrInvalidTransition, cur.Status)
		}
		typ := domain.EntryCircleFrozen
		desc := "circle frozen"
		if !frozen {
			typ = domain.EntryCircleUnfrozen
			desc = "circle unfrozen"
		}
		if cur.Frozen == frozen {
			typ = domain.EntryAdminOverride
			desc = fmt.Sprintf("no-op: circle already %s", map[bool]string{true: "frozen", false: "unfrozen"}[frozen])
		}
		entries := []*models.LedgerEntry{
			{Type: typ, ActorType: domain.ActorAdmin, ActorID: actor.UserID,
				Reason: reason, Description: desc},
		}
		if _, err := appendOp(ctx, s.store, cur, entries, nil); err != nil {
			return err
		}
		snap = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	if frozen {
		s.notif.CircleMembers(ctx, snap, domain.NotifCircleFrozen, "Circle frozen",
			fmt.Sprintf("%s was frozen by an administrator: %s", snap.Name, reason), 0)
	}
	return snap, nil
}

// TransferAdmin moves the circle admin role to another approved member. The
// revoke and grant land in one append, so there is never a moment with zero
// or two admins. Current circle admin or platform admin.
func (s *OverrideService) TransferAdmin(ctx context.Context, actor Actor, circleID, toUserID uint) (*snapshot.Snapshot, error) {
	var snap *snapshot.Snapshot
	err := withRetry(func() error {
		_, cur, err := loadState(ctx, s.store, circleID)
		if err != nil {
			return err
		}
		if err := requireCircleAdmin(cur, actor); err != nil {
			return err
		}
		fromID, ok := cur.AdminID()
		if !ok {
			return fmt.Errorf("%w: circle has no admin", domain.ErrInvalidTransition)
		}
		if fromID == toUserID {
			return fmt.Errorf("%w: user %d is already the circle admin", domain.ErrInvalidTransition, toUserID)
		}
		if _, err := requireApprovedMember(cur, toUserID); err != nil {
			return err
		}
		entries := []*models.LedgerEntry{
			{Type: domain.EntryAdminRevoked, ActorType: actor.actorType(), ActorID: actor.UserID,
				SubjectUserID: fromID, Description: "admin role transferred away"},
			{Type: domain.EntryAdminGranted, ActorType: actor.actorType(), ActorID: actor.UserID,
				SubjectUserID: toUserID, Description: "admin role received"},
		}
		if _, err := appendOp(ctx, s.store, cur, entries, nil); err != nil {
			return err
		}
		snap = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notif.User(ctx, snap, toUserID, domain.NotifMemberApproved, "You are now circle admin",
		fmt.Sprintf("you were made admin of %s", snap.Name), 0)
	return snap, nil
}

// ReassignOrder rewrites the payout order of an active circle. The new order
// must be a bijection over the approved members, and members whose round
// already paid out keep their slot: history cannot be reassigned. When a
// member was removed mid-rotation the bijection shrinks with them — the
// effective capacity drops to the remaining member count (recorded as a
// CAPACITY_ADJUSTED entry, like a force-start shrink) so the rotation can
// still reach every remaining slot and complete. If every remaining member
// has already been paid the circle completes immediately.
func (s *OverrideService) ReassignOrder(ctx context.Context, actor Actor, circleID uint, order []uint, reason string) (*snapshot.Snapshot, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", domain.ErrValidation)
	}
	var snap *snapshot.Snapshot
	err := withRetry(func() error {
		_, cur, err := loadState(ctx, s.store, circleID)
		if err != nil {
			return err
		}
		if err := requireCircleAdmin(cur, actor); err != nil {
			return err
		}
		if cur.Status != domain.CircleActive {
			return fmt.Errorf("%w: circle is %s", domain.ErrInvalidTransition, cur.Status)
		}
		if cur.Frozen {
			return domain.ErrCircleFrozen
		}
		members := cur.ApprovedMembers()
		assignment, err := rotation.AssignOrder(members, order)
		if err != nil {
			return err
		}
		capacity := len(members)
		if err := rotation.ValidateBijection(assignment, capacity); err != nil {
			return err
		}
		for userID, slot := range assignment {
			m := cur.Members[userID]
			if m == nil || m.PayoutRound == slot {
				continue
			}
			if roundIssued(cur, m.PayoutRound) {
				return fmt.Errorf("%w: user %d already received round %d, slot is fixed", domain.ErrInvalidTransition, userID, m.PayoutRound)
			}
			if roundIssued(cur, slot) {
				return fmt.Errorf("%w: round %d already paid out", domain.ErrInvalidTransition, slot)
			}
		}

		var entries []*models.LedgerEntry
		if capacity != cur.Capacity {
			entries = append(entries, &models.LedgerEntry{
				Type: domain.EntryCapacityAdjusted, ActorType: actor.actorType(), ActorID: actor.UserID,
				Round: capacity, Reason: reason,
				Description: fmt.Sprintf("rotation shrunk to %d members", capacity),
			})
		}
		for userID, slot := range assignment {
			if m := cur.Members[userID]; m != nil && m.PayoutRound == slot {
				continue
			}
			entries = append(entries, &models.LedgerEntry{
				Type: domain.EntryRotationAssigned, ActorType: actor.actorType(), ActorID: actor.UserID,
				SubjectUserID: userID, Round: slot, Reason: reason,
				Description: "payout round reassigned",
			})
		}
		if capacity < cur.CurrentRound {
			// Every remaining slot already paid out; nothing left to rotate.
			entries = append(entries, &models.LedgerEntry{
				Type: domain.EntryCircleCompleted, ActorType: domain.ActorSystem,
				Round: capacity, Description: "all remaining members paid, rotation complete",
			})
		}
		if len(entries) == 0 {
			entries = append(entries, &models.LedgerEntry{
				Type: domain.EntryAdminOverride, ActorType: actor.actorType(), ActorID: actor.UserID,
				Reason: reason, Description: "no-op: payout order unchanged",
			})
		}
		if _, err := appendOp(ctx, s.store, cur, entries, nil); err != nil {
			return err
		}
		snap = cur
		return nil
	})
	return snap, err
}

// VoidEntry flips a non-monetary ledger entry to VOIDED with an audit entry.
// Contribution entries go through ContributionService.Void, which also reverts
// derived state; structural entries (membership, rotation) cannot be voided
// because the follow-on history depends on them. Platform admin only.
func (s *OverrideService) VoidEntry(ctx context.Context, actor Actor, circleID uint, seq uint64, reason string) (*models.LedgerEntry, error) {
	if !actor.IsPlatformAdmin() {
		return nil, domain.ErrNotCircleAdmin
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: reason is required", domain.ErrValidation)
	}
	var entry *models.LedgerEntry
	err := withRetry(func() error {
		_, cur, err := loadState(ctx, s.store, circleID)
		if err != nil {
			return err
		}
		target, err := s.store.GetEntry(ctx, circleID, seq)
		if err != nil {
			return err
		}
		if target.Status == domain.EntryVoided {
			return domain.ErrAlreadyVoided
		}
		switch target.Type {
		case domain.EntryAdminOverride:
			// Audit entries carry no derived state, so the flip suffices.
		default:
			return fmt.Errorf("%w: %s entries cannot be voided directly", domain.ErrInvalidTransition, target.Type)
		}
		e := &models.LedgerEntry{
			Type: domain.EntryAdminOverride, ActorType: domain.ActorAdmin, ActorID: actor.UserID,
			Reason: reason, VoidsSeq: &seq,
			Description: fmt.Sprintf("voids entry %d", seq),
		}
		written, err := appendOp(ctx, s.store, cur, []*models.LedgerEntry{e}, []uint64{seq})
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

// BanUser bans a user platform-wide and removes them from every active circle
// they belong to, appending a MEMBER_REMOVED entry per circle. A removed
// member's payout slot stays assigned until the circle admin reassigns it.
// Platform admin only.
func (s *OverrideService) BanUser(ctx context.Context, actor Actor, userID uint, reason string) error {
	if !actor.IsPlatformAdmin() {
		return domain.ErrNotCircleAdmin
	}
	if reason == "" {
		return fmt.Errorf("%w: reason is required", domain.ErrValidation)
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return err
	}
	if err := s.store.SetUserBanned(ctx, userID, true); err != nil {
		return err
	}

	memberships, err := s.store.ListActiveMembershipsByUser(ctx, userID)
	if err != nil {
		return err
	}
	for _, m := range memberships {
		err := withRetry(func() error {
			_, cur, err := loadState(ctx, s.store, m.CircleID)
			if err != nil {
				return err
			}
			ms, ok := cur.Members[userID]
			if !ok || ms.JoinStatus != domain.JoinApproved && ms.JoinStatus != domain.JoinRequested {
				return nil
			}
			entries := []*models.LedgerEntry{
				{Type: domain.EntryMemberRemoved, ActorType: domain.ActorAdmin, ActorID: actor.UserID,
					SubjectUserID: userID, Reason: reason, Description: "member banned platform-wide"},
			}
			if _, err := appendOp(ctx, s.store, cur, entries, nil); err != nil {
				return err
			}
			s.notif.CircleAdmins(ctx, cur, domain.NotifMemberRemoved, "Member removed",
				fmt.Sprintf("user %d was banned and removed from %s", userID, cur.Name), 0)
			return nil
		})
		if err != nil {
			return fmt.Errorf("ban cascade: circle %d: %w", m.CircleID, err)
		}
	}
	return nil
}

// UnbanUser lifts a platform ban. Circle memberships removed by the ban are
// not restored; the user rejoins through the normal request flow.
func (s *OverrideService) UnbanUser(ctx context.Context, actor Actor, userID uint) error {
	if !actor.IsPlatformAdmin() {
		return domain.ErrNotCircleAdmin
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return err
	}
	return s.store.SetUserBanned(ctx, userID, false)
}

// Rebuild replays a circle's full ledger into a fresh snapshot and overwrites
// the materialized projections. Used after snapshot corruption or code changes
// to the fold. Platform admin only.
func (s *OverrideService) Rebuild(ctx context.Context, actor Actor, circleID uint) (*snapshot.Snapshot, error) {
	if !actor.IsPlatformAdmin() {
		return nil, domain.ErrNotCircleAdmin
	}
	circle, err := s.store.GetCircle(ctx, circleID)
	if err != nil {
		return nil, err
	}
	snap := snapshot.New(circle)
	if err := replayInto(ctx, s.store, snap); err != nil {
		return nil, err
	}
	if err := s.store.SaveProjections(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// History exposes the cross-circle audit explorer.
func (s *OverrideService) History(ctx context.Context, actor Actor, f storage.HistoryFilter) ([]models.LedgerEntry, int64, error) {
	if !actor.IsPlatformAdmin() {
		return nil, 0, domain.ErrNotCircleAdmin
	}
	return s.store.ListHistory(ctx, f)
}

func roundIssued(s *snapshot.Snapshot, round int) bool {
	r, ok := s.Rounds[round]
	return ok && r.Payout != nil
}
