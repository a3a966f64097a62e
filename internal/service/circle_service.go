package service

import (
	"context"
	"fmt"
	"time"

	"mzunguko/internal/domain"
	"mzunguko/internal/models"
	"mzunguko/internal/rotation"
	"mzunguko/internal/snapshot"
	"mzunguko/internal/storage"
)

// CircleService covers circle lifecycle and membership workflows.
type CircleService struct {
	store storage.Store
	notif *NotificationService
}

func NewCircleService(store storage.Store, notif *NotificationService) *CircleService {
	return &CircleService{store: store, notif: notif}
}

// CreateCircleInput is the immutable configuration of a new circle.
type CreateCircleInput struct {
	Name        string
	AmountCents int64
	Currency    string
	Frequency   string
	Capacity    int
	StartDate   *time.Time
	Username    string // creator display name, from resolved identity
	Preference  string // creator payout preference
}

// CreateCircle creates a circle in RECRUITING and makes the creator its admin.
// The genesis entries (join, approval, admin grant) go through the ledger like
// every other fact.
func (s *CircleService) CreateCircle(ctx context.Context, actor Actor, in CreateCircleInput) (*snapshot.Snapshot, error) {
	if in.Name == "" || in.AmountCents <= 0 || in.Capacity < 2 {
		return nil, fmt.Errorf("%w: name, positive amount and capacity >= 2 required", domain.ErrValidation)
	}
	if !domain.ValidFrequency(in.Frequency) {
		return nil, fmt.Errorf("%w: invalid frequency %q", domain.ErrValidation, in.Frequency)
	}
	if in.Preference != "" && !domain.ValidPreference(in.Preference) {
		return nil, fmt.Errorf("%w: invalid preference %q", domain.ErrValidation, in.Preference)
	}
	if _, err := s.store.GetOrCreateUser(ctx, actor.UserID, in.Username); err != nil {
		return nil, err
	}

	circle := &models.Circle{
		Name:        in.Name,
		AmountCents: in.AmountCents,
		Currency:    in.Currency,
		Frequency:   in.Frequency,
		Capacity:    in.Capacity,
		StartDate:   in.StartDate,
		CreatedBy:   actor.UserID,
	}
	if err := s.store.CreateCircle(ctx, circle); err != nil {
		return nil, err
	}

	snap := snapshot.New(circle)
	entries := []*models.LedgerEntry{
		{Type: domain.EntryMemberJoined, ActorType: actor.actorType(), ActorID: actor.UserID,
			SubjectUserID: actor.UserID, Preference: in.Preference, Description: "circle created"},
		{Type: domain.EntryMemberApproved, ActorType: domain.ActorSystem,
			SubjectUserID: actor.UserID, Description: "creator auto-approved"},
		{Type: domain.EntryAdminGranted, ActorType: domain.ActorSystem,
			SubjectUserID: actor.UserID, Description: "creator is circle admin"},
	}
	if _, err := appendOp(ctx, s.store, snap, entries, nil); err != nil {
		return nil, err
	}
	return snap, nil
}

// RequestJoin records a membership request for the acting user.
func (s *CircleService) RequestJoin(ctx context.Context, actor Actor, circleID uint, username, preference string) (*snapshot.Snapshot, error) {
	if preference == "" {
		preference = domain.PreferenceAny
	}
	if !domain.ValidPreference(preference) {
		return nil, fmt.Errorf("%w: invalid preference %q", domain.ErrValidation, preference)
	}
	u, err := s.store.GetOrCreateUser(ctx, actor.UserID, username)
	if err != nil {
		return nil, err
	}
	if u.Banned {
		return nil, fmt.Errorf("%w: user is banned", domain.ErrInvalidTransition)
	}

	var snap *snapshot.Snapshot
	err = withRetry(func() error {
		_, cur, err := loadState(ctx, s.store, circleID)
		if err != nil {
			return err
		}
		if cur.Status != domain.CircleRecruiting {
			return fmt.Errorf("%w: circle is %s, not recruiting", domain.ErrInvalidTransition, cur.Status)
		}
		if m, ok := cur.Members[actor.UserID]; ok && m.JoinStatus != domain.JoinLeft && m.JoinStatus != domain.JoinRejected {
			return fmt.Errorf("%w: membership already exists", domain.ErrInvalidTransition)
		}
		entries := []*models.LedgerEntry{
			{Type: domain.EntryMemberJoined, ActorType: actor.actorType(), ActorID: actor.UserID,
				SubjectUserID: actor.UserID, Preference: preference, Description: "membership requested"},
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
	s.notif.CircleAdmins(ctx, snap, domain.NotifJoinRequested, "Join request",
		fmt.Sprintf("user %d asked to join %s", actor.UserID, snap.Name), 0)
	return snap, nil
}

// Approve admits a requested member. Circle admin only.
func (s *CircleService) Approve(ctx context.Context, actor Actor, circleID, userID uint) (*snapshot.Snapshot, error) {
	return s.resolveJoin(ctx, actor, circleID, userID, true)
}

// Reject declines a requested member. Circle admin only.
func (s *CircleService) Reject(ctx context.Context, actor Actor, circleID, userID uint) (*snapshot.Snapshot, error) {
	return s.resolveJoin(ctx, actor, circleID, userID, false)
}

func (s *CircleService) resolveJoin(ctx context.Context, actor Actor, circleID, userID uint, approve bool) (*snapshot.Snapshot, error) {
	var snap *snapshot.Snapshot
	err := withRetry(func() error {
		_, cur, err := loadState(ctx, s.store, circleID)
		if err != nil {
			return err
		}
		if err := requireCircleAdmin(cur, actor); err != nil {
			return err
		}
		m, ok := cur.Members[userID]
		if !ok || m.JoinStatus != domain.JoinRequested {
			return fmt.Errorf("%w: no pending request for user %d", domain.ErrInvalidTransition, userID)
		}
		if approve && len(cur.ApprovedMembers()) >= cur.Capacity {
			return fmt.Errorf("%w: circle is full", domain.ErrInvalidTransition)
		}
		typ := domain.EntryMemberApproved
		desc := "membership approved"
		if !approve {
			typ = domain.EntryMemberRejected
			desc = "membership rejected"
		}
		entries := []*models.LedgerEntry{
			{Type: typ, ActorType: actor.actorType(), ActorID: actor.UserID,
				SubjectUserID: userID, Description: desc},
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
	if approve {
		s.notif.User(ctx, snap, userID, domain.NotifMemberApproved, "Membership approved",
			fmt.Sprintf("you are now a member of %s", snap.Name), 0)
	}
	return snap, nil
}

// Leave withdraws the acting user's membership. Allowed only before activation.
func (s *CircleService) Leave(ctx context.Context, actor Actor, circleID uint) (*snapshot.Snapshot, error) {
	var snap *snapshot.Snapshot
	err := withRetry(func() error {
		_, cur, err := loadState(ctx, s.store, circleID)
		if err != nil {
			return err
		}
		if cur.Status != domain.CircleRecruiting {
			return fmt.Errorf("%w: cannot leave a %s circle", domain.ErrInvalidTransition, cur.Status)
		}
		m, ok := cur.Members[actor.UserID]
		if !ok || (m.JoinStatus != domain.JoinApproved && m.JoinStatus != domain.JoinRequested) {
			return domain.ErrNotAMember
		}
		if m.Role == domain.MembershipAdmin {
			return fmt.Errorf("%w: circle admin must transfer admin before leaving", domain.ErrInvalidTransition)
		}
		entries := []*models.LedgerEntry{
			{Type: domain.EntryMemberLeft, ActorType: actor.actorType(), ActorID: actor.UserID,
				SubjectUserID: actor.UserID, Description: "membership withdrawn"},
		}
		if _, err := appendOp(ctx, s.store, cur, entries, nil); err != nil {
			return err
		}
		snap = cur
		return nil
	})
	return snap, err
}

// Activate starts the rotation: assigns payout order, opens round 1 and
// creates one obligation per member. Requires the circle to be at capacity
// unless force is set, in which case capacity shrinks to the approved count.
// explicitOrder, when given, is the admin-defined payout sequence.
func (s *CircleService) Activate(ctx context.Context, actor Actor, circleID uint, explicitOrder []uint, force bool) (*snapshot.Snapshot, error) {
	var snap *snapshot.Snapshot
	err := withRetry(func() error {
		_, cur, err := loadState(ctx, s.store, circleID)
		if err != nil {
			return err
		}
		if err := requireCircleAdmin(cur, actor); err != nil {
			return err
		}
		if cur.Status != domain.CircleRecruiting {
			return fmt.Errorf("%w: circle is %s", domain.ErrInvalidTransition, cur.Status)
		}
		members := cur.ApprovedMembers()
		if len(members) < cur.Capacity && !force {
			return fmt.Errorf("%w: %d of %d members approved", domain.ErrInvalidTransition, len(members), cur.Capacity)
		}
		if len(members) < 2 {
			return fmt.Errorf("%w: at least 2 approved members required", domain.ErrValidation)
		}

		assignment, err := rotation.AssignOrder(members, explicitOrder)
		if err != nil {
			return err
		}
		capacity := len(members)
		if err := rotation.ValidateBijection(assignment, capacity); err != nil {
			return err
		}

		var entries []*models.LedgerEntry
		for _, m := range members {
			entries = append(entries, &models.LedgerEntry{
				Type: domain.EntryRotationAssigned, ActorType: actor.actorType(), ActorID: actor.UserID,
				SubjectUserID: m.UserID, Round: assignment[m.UserID],
				Description: "payout round assigned",
			})
		}
		// Round carries the effective capacity so force-started circles
		// replay to the same shrunken size.
		entries = append(entries, &models.LedgerEntry{
			Type: domain.EntryCircleActivated, ActorType: actor.actorType(), ActorID: actor.UserID,
			Round: capacity, Description: "circle activated, round 1 open",
		})
		for _, m := range members {
			entries = append(entries, &models.LedgerEntry{
				Type: domain.EntryObligationCreated, ActorType: domain.ActorSystem,
				SubjectUserID: m.UserID, Round: 1,
				AmountCents: amountPtr(cur.AmountCents),
				Description: "round 1 contribution due",
			})
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
	s.notif.CircleMembers(ctx, snap, domain.NotifRoundAdvanced, "Circle started",
		fmt.Sprintf("%s is active, round 1 contributions are due", snap.Name), 1)
	return snap, nil
}

// Cancel terminates a circle that never activated.
func (s *CircleService) Cancel(ctx context.Context, actor Actor, circleID uint, reason string) (*snapshot.Snapshot, error) {
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
		if cur.Status != domain.CircleRecruiting {
			return fmt.Errorf("%w: only recruiting circles can be cancelled", domain.ErrInvalidTransition)
		}
		entries := []*models.LedgerEntry{
			{Type: domain.EntryCircleCancelled, ActorType: actor.actorType(), ActorID: actor.UserID,
				Reason: reason, Description: "circle cancelled"},
		}
		if _, err := appendOp(ctx, s.store, cur, entries, nil); err != nil {
			return err
		}
		snap = cur
		return nil
	})
	return snap, err
}

// GetSnapshot returns the circle's derived state.
func (s *CircleService) GetSnapshot(ctx context.Context, circleID uint) (*snapshot.Snapshot, error) {
	_, snap, err := loadState(ctx, s.store, circleID)
	return snap, err
}

// GetGrid returns the transparency grid with lateness computed at read time.
func (s *CircleService) GetGrid(ctx context.Context, circleID uint, now time.Time) (*snapshot.Grid, error) {
	_, snap, err := loadState(ctx, s.store, circleID)
	if err != nil {
		return nil, err
	}
	return snap.BuildGrid(now), nil
}

// GetMemberStatus returns the derived contribution status for (round, user).
func (s *CircleService) GetMemberStatus(ctx context.Context, circleID uint, round int, userID uint, now time.Time) (string, error) {
	_, snap, err := loadState(ctx, s.store, circleID)
	if err != nil {
		return "", err
	}
	return snap.MemberStatus(round, userID, now)
}

// ListLedger pages through the circle's ledger in sequence order.
func (s *CircleService) ListLedger(ctx context.Context, circleID uint, afterSeq uint64, limit int) ([]models.LedgerEntry, error) {
	if _, err := s.store.GetCircle(ctx, circleID); err != nil {
		return nil, err
	}
	return s.store.ListByCircle(ctx, circleID, afterSeq, limit)
}
