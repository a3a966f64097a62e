// Package snapshot derives the queryable state of a circle by folding its
// ledger entries in sequence order. Apply is deterministic: replaying the full
// entry sequence from an empty snapshot always reproduces the state of the
// incrementally maintained one.
package snapshot

import (
	"fmt"
	"time"

	"mzunguko/internal/domain"
	"mzunguko/internal/models"
)

// MemberState is the derived state of one membership.
type MemberState struct {
	UserID      uint      `json:"user_id"`
	Role        string    `json:"role"`
	JoinStatus  string    `json:"join_status"`
	PayoutRound int       `json:"payout_round"`
	Preference  string    `json:"preference"`
	JoinedAt    time.Time `json:"joined_at"`
}

// ContributionState is the latest non-voided contribution fact for one
// (round, member) key. A void reverts the status to PENDING while the voided
// entry stays in the ledger.
type ContributionState struct {
	Status      string    `json:"status"`
	AmountCents int64     `json:"amount_cents"`
	ActorType   string    `json:"actor_type"` // who recorded it: MEMBER self-report or ADMIN
	Seq         uint64    `json:"seq"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// PayoutState records an issued round payout.
type PayoutState struct {
	RecipientID uint      `json:"recipient_id"`
	AmountCents int64     `json:"amount_cents"`
	Seq         uint64    `json:"seq"`
	IssuedAt    time.Time `json:"issued_at"`
}

// RoundState holds per-round derived state.
type RoundState struct {
	// Contributions keyed by user ID; present once the obligation exists.
	Contributions map[uint]*ContributionState `json:"contributions"`
	Payout        *PayoutState                `json:"payout,omitempty"`
}

// Snapshot is the derived state of one circle.
type Snapshot struct {
	CircleID     uint   `json:"circle_id"`
	Name         string `json:"name"`
	AmountCents  int64  `json:"amount_cents"`
	Currency     string `json:"currency"`
	Frequency    string `json:"frequency"`
	Capacity     int    `json:"capacity"`
	StartDate    time.Time `json:"start_date"`
	Status       string `json:"status"`
	Frozen       bool   `json:"frozen"`
	CurrentRound int    `json:"current_round"`
	LastSeq      uint64 `json:"last_seq"`

	Members map[uint]*MemberState `json:"members"`
	Rounds  map[int]*RoundState   `json:"rounds"`
}

// New returns the empty snapshot for a circle's immutable configuration.
// Everything else is reconstructed by folding ledger entries.
func New(c *models.Circle) *Snapshot {
	start := time.Time{}
	if c.StartDate != nil {
		start = *c.StartDate
	}
	return &Snapshot{
		CircleID:    c.ID,
		Name:        c.Name,
		AmountCents: c.AmountCents,
		Currency:    c.Currency,
		Frequency:   c.Frequency,
		Capacity:    c.Capacity,
		StartDate:   start,
		Status:      domain.CircleRecruiting,
		Members:     make(map[uint]*MemberState),
		Rounds:      make(map[int]*RoundState),
	}
}

// Apply folds one ledger entry into the snapshot. Entries must be applied in
// sequence order. Unknown entry types fail rather than being silently skipped.
func (s *Snapshot) Apply(e *models.LedgerEntry) error {
	if e.CircleID != s.CircleID {
		return fmt.Errorf("%w: entry belongs to circle %d, snapshot is circle %d", domain.ErrValidation, e.CircleID, s.CircleID)
	}
	if e.Seq <= s.LastSeq {
		return fmt.Errorf("%w: entry seq %d already applied (snapshot at %d)", domain.ErrValidation, e.Seq, s.LastSeq)
	}

	switch e.Type {
	case domain.EntryMemberJoined:
		s.Members[e.SubjectUserID] = &MemberState{
			UserID:     e.SubjectUserID,
			Role:       domain.MembershipMember,
			JoinStatus: domain.JoinRequested,
			Preference: orAny(e.Preference),
			JoinedAt:   e.CreatedAt,
		}
	case domain.EntryMemberApproved:
		if m := s.Members[e.SubjectUserID]; m != nil {
			m.JoinStatus = domain.JoinApproved
		}
	case domain.EntryMemberRejected:
		if m := s.Members[e.SubjectUserID]; m != nil {
			m.JoinStatus = domain.JoinRejected
		}
	case domain.EntryMemberLeft:
		if m := s.Members[e.SubjectUserID]; m != nil {
			m.JoinStatus = domain.JoinLeft
		}
	case domain.EntryMemberRemoved:
		if m := s.Members[e.SubjectUserID]; m != nil {
			m.JoinStatus = domain.JoinRemoved
		}
	case domain.EntryAdminGranted:
		if m := s.Members[e.SubjectUserID]; m != nil {
			m.Role = domain.MembershipAdmin
		}
	case domain.EntryAdminRevoked:
		if m := s.Members[e.SubjectUserID]; m != nil {
			m.Role = domain.MembershipMember
		}
	case domain.EntryRotationAssigned:
		if m := s.Members[e.SubjectUserID]; m != nil {
			m.PayoutRound = e.Round
		}
	case domain.EntryCapacityAdjusted:
		// After a mid-rotation removal the rotation shrinks to the remaining
		// members; Round carries the new effective capacity.
		if e.Round > 0 {
			s.Capacity = e.Round
		}
	case domain.EntryCircleActivated:
		s.Status = domain.CircleActive
		s.CurrentRound = 1
		if e.Round > 0 {
			// Force-start shrinks capacity to the approved member count.
			s.Capacity = e.Round
		}
		if s.StartDate.IsZero() {
			s.StartDate = e.CreatedAt
		}
	case domain.EntryObligationCreated:
		r := s.round(e.Round)
		if _, ok := r.Contributions[e.SubjectUserID]; !ok {
			r.Contributions[e.SubjectUserID] = &ContributionState{
				Status: domain.ContributionPending,
			}
		}
	case domain.EntryContributionPaid:
		c := s.contribution(e.Round, e.SubjectUserID)
		c.Status = domain.ContributionPaid
		c.AmountCents = amount(e)
		c.ActorType = e.ActorType
		c.Seq = e.Seq
		c.RecordedAt = e.CreatedAt
	case domain.EntryContributionConfirmed:
		c := s.contribution(e.Round, e.SubjectUserID)
		c.Status = domain.ContributionConfirmed
		c.Seq = e.Seq
		c.RecordedAt = e.CreatedAt
	case domain.EntryContributionVoided:
		// The void supersedes the prior PAID/CONFIRMED fact; the obligation
		// reverts to PENDING. History stays in the ledger.
		c := s.contribution(e.Round, e.SubjectUserID)
		c.Status = domain.ContributionPending
		c.AmountCents = 0
		c.ActorType = ""
		c.Seq = e.Seq
		c.RecordedAt = e.CreatedAt
	case domain.EntryPayoutIssued:
		r := s.round(e.Round)
		r.Payout = &PayoutState{
			RecipientID: e.SubjectUserID,
			AmountCents: amount(e),
			Seq:         e.Seq,
			IssuedAt:    e.CreatedAt,
		}
	case domain.EntryRoundAdvanced:
		s.CurrentRound = e.Round
	case domain.EntryCircleCompleted:
		s.Status = domain.CircleCompleted
	case domain.EntryCircleCancelled:
		s.Status = domain.CircleCancelled
	case domain.EntryCircleFrozen:
		s.Frozen = true
	case domain.EntryCircleUnfrozen:
		s.Frozen = false
	case domain.EntryAdminOverride:
		// Audit-only: no derived state change.
	default:
		return fmt.Errorf("%w: unknown ledger entry type %q", domain.ErrValidation, e.Type)
	}

	s.LastSeq = e.Seq
	return nil
}

// Replay folds entries into a fresh snapshot for the given circle config.
func Replay(c *models.Circle, entries []models.LedgerEntry) (*Snapshot, error) {
	s := New(c)
	for i := range entries {
		if err := s.Apply(&entries[i]); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// MemberStatus returns the contribution status for (round, user), defaulting
// to PENDING once the obligation exists. When the round's due date has passed
// and nothing was paid, the derived status is LATE. Returns ErrNotFound when
// no obligation exists for the key.
func (s *Snapshot) MemberStatus(round int, userID uint, now time.Time) (string, error) {
	r, ok := s.Rounds[round]
	if !ok {
		return "", domain.ErrNotFound
	}
	c, ok := r.Contributions[userID]
	if !ok {
		return "", domain.ErrNotFound
	}
	if c.Status == domain.ContributionPending && now.After(s.DueDate(round)) {
		return domain.ContributionLate, nil
	}
	return c.Status, nil
}

// DueDate is when round r's contributions fall due: start date plus r
// frequency intervals, with no grace period.
func (s *Snapshot) DueDate(round int) time.Time {
	switch s.Frequency {
	case domain.FrequencyWeekly:
		return s.StartDate.AddDate(0, 0, 7*round)
	case domain.FrequencyBiweekly:
		return s.StartDate.AddDate(0, 0, 14*round)
	default: // MONTHLY
		return s.StartDate.AddDate(0, round, 0)
	}
}

// Recipient returns the member assigned to receive round r's payout.
func (s *Snapshot) Recipient(round int) (uint, bool) {
	for id, m := range s.Members {
		if m.JoinStatus == domain.JoinApproved && m.PayoutRound == round {
			return id, true
		}
	}
	return 0, false
}

// AdminID returns the current circle admin, if any.
func (s *Snapshot) AdminID() (uint, bool) {
	for id, m := range s.Members {
		if m.Role == domain.MembershipAdmin && m.JoinStatus == domain.JoinApproved {
			return id, true
		}
	}
	return 0, false
}

// ApprovedMembers returns approved member states.
func (s *Snapshot) ApprovedMembers() []*MemberState {
	var out []*MemberState
	for _, m := range s.Members {
		if m.JoinStatus == domain.JoinApproved {
			out = append(out, m)
		}
	}
	return out
}

// PayoutTotalCents is the pooled payout for one round.
func (s *Snapshot) PayoutTotalCents() int64 {
	return s.AmountCents * int64(s.Capacity)
}

func (s *Snapshot) round(n int) *RoundState {
	r, ok := s.Rounds[n]
	if !ok {
		r = &RoundState{Contributions: make(map[uint]*ContributionState)}
		s.Rounds[n] = r
	}
	return r
}

func (s *Snapshot) contribution(round int, userID uint) *ContributionState {
	r := s.round(round)
	c, ok := r.Contributions[userID]
	if !ok {
		c = &ContributionState{Status: domain.ContributionPending}
		r.Contributions[userID] = c
	}
	return c
}

func amount(e *models.LedgerEntry) int64 {
	if e.AmountCents == nil {
		return 0
	}
	return *e.AmountCents
}

func orAny(p string) string {
	if p == "" {
		return domain.PreferenceAny
	}
	return p
}
