package rotation

import (
	"errors"
	"testing"
	"time"

	"mzunguko/internal/domain"
	"mzunguko/internal/snapshot"
)

func member(id uint, pref string, joinedOffset int) *snapshot.MemberState {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &snapshot.MemberState{
		UserID:     id,
		JoinStatus: domain.JoinApproved,
		Preference: pref,
		JoinedAt:   base.Add(time.Duration(joinedOffset) * time.Hour),
	}
}

func TestAssignOrderPreferences(t *testing.T) {
	tests := []struct {
		name    string
		members []*snapshot.MemberState
		want    map[uint]int
	}{
		{
			name: "early and late take opposite ends",
			members: []*snapshot.MemberState{
				member(1, domain.PreferenceLate, 0),
				member(2, domain.PreferenceEarly, 1),
				member(3, domain.PreferenceAny, 2),
			},
			want: map[uint]int{2: 1, 1: 3, 3: 2},
		},
		{
			name: "two early tie broken by join time",
			members: []*snapshot.MemberState{
				member(5, domain.PreferenceEarly, 2),
				member(4, domain.PreferenceEarly, 1),
				member(6, domain.PreferenceAny, 3),
			},
			want: map[uint]int{4: 1, 5: 2, 6: 3},
		},
		{
			name: "all any fills in join order",
			members: []*snapshot.MemberState{
				member(3, domain.PreferenceAny, 3),
				member(1, domain.PreferenceAny, 1),
				member(2, domain.PreferenceAny, 2),
			},
			want: map[uint]int{1: 1, 2: 2, 3: 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AssignOrder(tt.members, nil)
			if err != nil {
				t.Fatalf("AssignOrder: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d assignments, want %d", len(got), len(tt.want))
			}
			for userID, slot := range tt.want {
				if got[userID] != slot {
					t.Errorf("user %d: got slot %d, want %d", userID, got[userID], slot)
				}
			}
		})
	}
}

func TestAssignOrderDeterministic(t *testing.T) {
	members := []*snapshot.MemberState{
		member(1, domain.PreferenceAny, 0),
		member(2, domain.PreferenceEarly, 0),
		member(3, domain.PreferenceLate, 0),
		member(4, domain.PreferenceAny, 0),
	}
	first, err := AssignOrder(members, nil)
	if err != nil {
		t.Fatalf("AssignOrder: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := AssignOrder(members, nil)
		if err != nil {
			t.Fatalf("AssignOrder: %v", err)
		}
		for userID, slot := range first {
			if again[userID] != slot {
				t.Fatalf("run %d: user %d moved from slot %d to %d", i, userID, slot, again[userID])
			}
		}
	}
}

func TestAssignOrderExplicit(t *testing.T) {
	members := []*snapshot.MemberState{
		member(1, domain.PreferenceAny, 0),
		member(2, domain.PreferenceAny, 1),
		member(3, domain.PreferenceAny, 2),
	}

	got, err := AssignOrder(members, []uint{3, 1, 2})
	if err != nil {
		t.Fatalf("AssignOrder: %v", err)
	}
	want := map[uint]int{3: 1, 1: 2, 2: 3}
	for userID, slot := range want {
		if got[userID] != slot {
			t.Errorf("user %d: got slot %d, want %d", userID, got[userID], slot)
		}
	}

	if _, err := AssignOrder(members, []uint{1, 2}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("short order: got %v, want ErrValidation", err)
	}
	if _, err := AssignOrder(members, []uint{1, 2, 9}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unknown member: got %v, want ErrValidation", err)
	}
	if _, err := AssignOrder(members, []uint{1, 1, 2}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("duplicate member: got %v, want ErrValidation", err)
	}
}

func TestValidateBijection(t *testing.T) {
	if err := ValidateBijection(map[uint]int{1: 1, 2: 2, 3: 3}, 3); err != nil {
		t.Errorf("valid bijection rejected: %v", err)
	}
	if err := ValidateBijection(map[uint]int{1: 1, 2: 2}, 3); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("short assignment: got %v, want ErrValidation", err)
	}
	if err := ValidateBijection(map[uint]int{1: 1, 2: 1, 3: 3}, 3); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("duplicate slot: got %v, want ErrValidation", err)
	}
	if err := ValidateBijection(map[uint]int{1: 0, 2: 2, 3: 3}, 3); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("slot out of range: got %v, want ErrValidation", err)
	}
}

func TestCanAdvance(t *testing.T) {
	snap := &snapshot.Snapshot{
		Status:       domain.CircleActive,
		CurrentRound: 2,
		Capacity:     3,
		Rounds:       map[int]*snapshot.RoundState{},
	}

	if err := CanAdvance(snap, 2); err != nil {
		t.Errorf("current round: %v", err)
	}
	if err := CanAdvance(snap, 1); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("stale round: got %v, want ErrInvalidTransition", err)
	}

	snap.Frozen = true
	if err := CanAdvance(snap, 2); !errors.Is(err, domain.ErrCircleFrozen) {
		t.Errorf("frozen: got %v, want ErrCircleFrozen", err)
	}
	snap.Frozen = false

	snap.Rounds[2] = &snapshot.RoundState{Payout: &snapshot.PayoutState{RecipientID: 1}}
	if err := CanAdvance(snap, 2); !errors.Is(err, domain.ErrAlreadyIssued) {
		t.Errorf("issued round: got %v, want ErrAlreadyIssued", err)
	}

	snap.Status = domain.CircleCompleted
	if err := CanAdvance(snap, 2); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("completed circle: got %v, want ErrInvalidTransition", err)
	}
}

func TestIsFinalRound(t *testing.T) {
	snap := &snapshot.Snapshot{Capacity: 3}
	if IsFinalRound(snap, 2) {
		t.Error("round 2 of 3 reported final")
	}
	if !IsFinalRound(snap, 3) {
		t.Error("round 3 of 3 not reported final")
	}
}
