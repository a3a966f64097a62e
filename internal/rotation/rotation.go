// Package rotation decides payout order and round boundaries.
package rotation

import (
	"fmt"
	"sort"

	"mzunguko/internal/domain"
	"mzunguko/internal/snapshot"
)

// AssignOrder maps approved members onto payout rounds 1..len(members).
//
// When explicit is non-empty it is the admin-defined order (user IDs in payout
// sequence) and must cover every approved member exactly once. Otherwise the
// payout preference recorded at join time is consulted once: EARLY members take
// the lowest free slots, LATE members the highest, ANY members fill the rest,
// ties broken by earliest join (then user ID, for determinism).
func AssignOrder(members []*snapshot.MemberState, explicit []uint) (map[uint]int, error) {
	n := len(members)
	if n == 0 {
		return nil, fmt.Errorf("%w: no approved members to assign", domain.ErrValidation)
	}

	if len(explicit) > 0 {
		if len(explicit) != n {
			return nil, fmt.Errorf("%w: explicit order has %d entries for %d members", domain.ErrValidation, len(explicit), n)
		}
		byID := make(map[uint]*snapshot.MemberState, n)
		for _, m := range members {
			byID[m.UserID] = m
		}
		out := make(map[uint]int, n)
		for i, userID := range explicit {
			if byID[userID] == nil {
				return nil, fmt.Errorf("%w: user %d in explicit order is not an approved member", domain.ErrValidation, userID)
			}
			if _, dup := out[userID]; dup {
				return nil, fmt.Errorf("%w: user %d appears twice in explicit order", domain.ErrValidation, userID)
			}
			out[userID] = i + 1
		}
		return out, nil
	}

	sorted := make([]*snapshot.MemberState, n)
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].JoinedAt.Equal(sorted[j].JoinedAt) {
			return sorted[i].JoinedAt.Before(sorted[j].JoinedAt)
		}
		return sorted[i].UserID < sorted[j].UserID
	})

	taken := make([]bool, n+1) // slots 1..n
	out := make(map[uint]int, n)

	lowestFree := func() int {
		for s := 1; s <= n; s++ {
			if !taken[s] {
				return s
			}
		}
		return 0
	}
	highestFree := func() int {
		for s := n; s >= 1; s-- {
			if !taken[s] {
				return s
			}
		}
		return 0
	}

	for _, m := range sorted {
		if m.Preference == domain.PreferenceEarly {
			slot := lowestFree()
			taken[slot] = true
			out[m.UserID] = slot
		}
	}
	for _, m := range sorted {
		if m.Preference == domain.PreferenceLate {
			slot := highestFree()
			taken[slot] = true
			out[m.UserID] = slot
		}
	}
	for _, m := range sorted {
		if _, done := out[m.UserID]; done {
			continue
		}
		slot := lowestFree()
		taken[slot] = true
		out[m.UserID] = slot
	}
	return out, nil
}

// ValidateBijection checks that assignment maps the given members onto exactly
// {1..capacity} with no duplicates.
func ValidateBijection(assignment map[uint]int, capacity int) error {
	if len(assignment) != capacity {
		return fmt.Errorf("%w: %d assignments for capacity %d", domain.ErrValidation, len(assignment), capacity)
	}
	seen := make(map[int]bool, capacity)
	for userID, slot := range assignment {
		if slot < 1 || slot > capacity {
			return fmt.Errorf("%w: user %d assigned slot %d outside 1..%d", domain.ErrValidation, userID, slot, capacity)
		}
		if seen[slot] {
			return fmt.Errorf("%w: slot %d assigned twice", domain.ErrValidation, slot)
		}
		seen[slot] = true
	}
	return nil
}

// CanAdvance reports whether the circle may advance past the given round.
// Contribution completeness is deliberately not a gate: circles tolerate late
// payers, and outstanding obligations stay visible in the grid.
func CanAdvance(s *snapshot.Snapshot, round int) error {
	if s.Status != domain.CircleActive {
		return fmt.Errorf("%w: circle is %s", domain.ErrInvalidTransition, s.Status)
	}
	if s.Frozen {
		return domain.ErrCircleFrozen
	}
	if r, ok := s.Rounds[round]; ok && r.Payout != nil {
		return domain.ErrAlreadyIssued
	}
	if round != s.CurrentRound {
		return fmt.Errorf("%w: round %d is not the current round %d", domain.ErrInvalidTransition, round, s.CurrentRound)
	}
	return nil
}

// IsFinalRound reports whether round is the circle's last.
func IsFinalRound(s *snapshot.Snapshot, round int) bool {
	return round >= s.Capacity
}
