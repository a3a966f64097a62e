package snapshot

import (
	"errors"
	"testing"
	"time"

	"mzunguko/internal/domain"
	"mzunguko/internal/models"
)

var start = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func testCircle() *models.Circle {
	return &models.Circle{
		ID:          7,
		Name:        "chama ya wiki",
		AmountCents: 50000,
		Currency:    domain.DefaultCurrency,
		Frequency:   domain.FrequencyWeekly,
		Capacity:    3,
		StartDate:   &start,
	}
}

func entry(seq uint64, typ string, subject uint, round int) *models.LedgerEntry {
	return &models.LedgerEntry{
		CircleID:      7,
		Seq:           seq,
		Type:          typ,
		ActorType:     domain.ActorSystem,
		SubjectUserID: subject,
		Round:         round,
		Status:        domain.EntryActive,
		Direction:     domain.DirectionNone,
		CreatedAt:     start.Add(time.Duration(seq) * time.Minute),
	}
}

func amountEntry(seq uint64, typ string, subject uint, round int, cents int64) *models.LedgerEntry {
	e := entry(seq, typ, subject, round)
	e.AmountCents = &cents
	return e
}

// activatedEntries is a three-member circle through activation.
func activatedEntries() []models.LedgerEntry {
	return []models.LedgerEntry{
		*entry(1, domain.EntryMemberJoined, 1, 0),
		*entry(2, domain.EntryMemberApproved, 1, 0),
		*entry(3, domain.EntryAdminGranted, 1, 0),
		*entry(4, domain.EntryMemberJoined, 2, 0),
		*entry(5, domain.EntryMemberApproved, 2, 0),
		*entry(6, domain.EntryMemberJoined, 3, 0),
		*entry(7, domain.EntryMemberApproved, 3, 0),
		*entry(8, domain.EntryRotationAssigned, 1, 1),
		*entry(9, domain.EntryRotationAssigned, 2, 2),
		*entry(10, domain.EntryRotationAssigned, 3, 3),
		*entry(11, domain.EntryCircleActivated, 0, 3),
		*amountEntry(12, domain.EntryObligationCreated, 1, 1, 50000),
		*amountEntry(13, domain.EntryObligationCreated, 2, 1, 50000),
		*amountEntry(14, domain.EntryObligationCreated, 3, 1, 50000),
	}
}

func TestReplayActivation(t *testing.T) {
	snap, err := Replay(testCircle(), activatedEntries())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if snap.Status != domain.CircleActive {
		t.Errorf("status = %s, want ACTIVE", snap.Status)
	}
	if snap.CurrentRound != 1 {
		t.Errorf("current round = %d, want 1", snap.CurrentRound)
	}
	if got := len(snap.ApprovedMembers()); got != 3 {
		t.Errorf("approved members = %d, want 3", got)
	}
	if admin, ok := snap.AdminID(); !ok || admin != 1 {
		t.Errorf("admin = %d (%v), want 1", admin, ok)
	}
	if recipient, ok := snap.Recipient(1); !ok || recipient != 1 {
		t.Errorf("round 1 recipient = %d (%v), want 1", recipient, ok)
	}
	if snap.PayoutTotalCents() != 150000 {
		t.Errorf("payout total = %d, want 150000", snap.PayoutTotalCents())
	}
	status, err := snap.MemberStatus(1, 2, start)
	if err != nil {
		t.Fatalf("MemberStatus: %v", err)
	}
	if status != domain.ContributionPending {
		t.Errorf("status = %s, want PENDING", status)
	}
}

func TestReplayMatchesIncrementalFold(t *testing.T) {
	entries := activatedEntries()
	entries = append(entries,
		*amountEntry(15, domain.EntryContributionPaid, 2, 1, 50000),
		*entry(16, domain.EntryContributionConfirmed, 2, 1),
		*amountEntry(17, domain.EntryContributionPaid, 3, 1, 50000),
	)

	incremental := New(testCircle())
	for i := range entries {
		if err := incremental.Apply(&entries[i]); err != nil {
			t.Fatalf("Apply seq %d: %v", entries[i].Seq, err)
		}
	}
	replayed, err := Replay(testCircle(), entries)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if incremental.LastSeq != replayed.LastSeq {
		t.Errorf("last seq: incremental %d, replayed %d", incremental.LastSeq, replayed.LastSeq)
	}
	for round, r := range incremental.Rounds {
		rr := replayed.Rounds[round]
		if rr == nil {
			t.Fatalf("replay missing round %d", round)
		}
		for userID, c := range r.Contributions {
			rc := rr.Contributions[userID]
			if rc == nil || rc.Status != c.Status || rc.AmountCents != c.AmountCents {
				t.Errorf("round %d user %d: incremental %+v, replayed %+v", round, userID, c, rc)
			}
		}
	}
}

func TestApplyRejectsStaleAndUnknown(t *testing.T) {
	snap := New(testCircle())
	e := entry(1, domain.EntryMemberJoined, 1, 0)
	if err := snap.Apply(e); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := snap.Apply(e); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("replayed seq: got %v, want ErrValidation", err)
	}
	bogus := entry(2, "SOMETHING_ELSE", 1, 0)
	if err := snap.Apply(bogus); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("unknown type: got %v, want ErrValidation", err)
	}
	wrongCircle := entry(2, domain.EntryMemberJoined, 1, 0)
	wrongCircle.CircleID = 99
	if err := snap.Apply(wrongCircle); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("wrong circle: got %v, want ErrValidation", err)
	}
}

func TestVoidRevertsToPending(t *testing.T) {
	entries := activatedEntries()
	entries = append(entries, *amountEntry(15, domain.EntryContributionPaid, 2, 1, 50000))
	snap, err := Replay(testCircle(), entries)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if status, _ := snap.MemberStatus(1, 2, start); status != domain.ContributionPaid {
		t.Fatalf("before void: status = %s, want PAID", status)
	}

	void := entry(16, domain.EntryContributionVoided, 2, 1)
	seq := uint64(15)
	void.VoidsSeq = &seq
	if err := snap.Apply(void); err != nil {
		t.Fatalf("Apply void: %v", err)
	}
	status, err := snap.MemberStatus(1, 2, start)
	if err != nil {
		t.Fatalf("MemberStatus: %v", err)
	}
	if status != domain.ContributionPending {
		t.Errorf("after void: status = %s, want PENDING", status)
	}
}

func TestLatenessIsDerivedAtReadTime(t *testing.T) {
	snap, err := Replay(testCircle(), activatedEntries())
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	due := snap.DueDate(1)
	if want := start.AddDate(0, 0, 7); !due.Equal(want) {
		t.Fatalf("weekly due date = %v, want %v", due, want)
	}

	if status, _ := snap.MemberStatus(1, 2, due.Add(-time.Hour)); status != domain.ContributionPending {
		t.Errorf("before due: status = %s, want PENDING", status)
	}
	if status, _ := snap.MemberStatus(1, 2, due.Add(time.Hour)); status != domain.ContributionLate {
		t.Errorf("after due: status = %s, want LATE", status)
	}

	// Paying after the due date clears the derived lateness.
	paid := amountEntry(15, domain.EntryContributionPaid, 2, 1, 50000)
	if err := snap.Apply(paid); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if status, _ := snap.MemberStatus(1, 2, due.Add(48*time.Hour)); status != domain.ContributionPaid {
		t.Errorf("late payment: status = %s, want PAID", status)
	}
}

func TestDueDateFrequencies(t *testing.T) {
	tests := []struct {
		frequency string
		round     int
		want      time.Time
	}{
		{domain.FrequencyWeekly, 1, start.AddDate(0, 0, 7)},
		{domain.FrequencyWeekly, 3, start.AddDate(0, 0, 21)},
		{domain.FrequencyBiweekly, 2, start.AddDate(0, 0, 28)},
		{domain.FrequencyMonthly, 1, start.AddDate(0, 1, 0)},
		{domain.FrequencyMonthly, 12, start.AddDate(0, 12, 0)},
	}
	for _, tt := range tests {
		c := testCircle()
		c.Frequency = tt.frequency
		snap := New(c)
		if got := snap.DueDate(tt.round); !got.Equal(tt.want) {
			t.Errorf("%s round %d: got %v, want %v", tt.frequency, tt.round, got, tt.want)
		}
	}
}

func TestForceStartShrinksCapacity(t *testing.T) {
	entries := []models.LedgerEntry{
		*entry(1, domain.EntryMemberJoined, 1, 0),
		*entry(2, domain.EntryMemberApproved, 1, 0),
		*entry(3, domain.EntryAdminGranted, 1, 0),
		*entry(4, domain.EntryMemberJoined, 2, 0),
		*entry(5, domain.EntryMemberApproved, 2, 0),
		*entry(6, domain.EntryRotationAssigned, 1, 1),
		*entry(7, domain.EntryRotationAssigned, 2, 2),
		*entry(8, domain.EntryCircleActivated, 0, 2), // capacity 3 circle started with 2
	}
	snap, err := Replay(testCircle(), entries)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if snap.Capacity != 2 {
		t.Errorf("capacity = %d, want 2", snap.Capacity)
	}
	if snap.PayoutTotalCents() != 100000 {
		t.Errorf("payout total = %d, want 100000", snap.PayoutTotalCents())
	}
}

// A mid-rotation removal shrinks the rotation: the CAPACITY_ADJUSTED entry
// carries the new member count and the payout pool follows it.
func TestCapacityAdjustedShrinksRotation(t *testing.T) {
	entries := activatedEntries()
	entries = append(entries,
		*entry(15, domain.EntryMemberRemoved, 3, 0),
		*entry(16, domain.EntryCapacityAdjusted, 0, 2),
	)
	snap, err := Replay(testCircle(), entries)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if snap.Capacity != 2 {
		t.Errorf("capacity = %d, want 2", snap.Capacity)
	}
	if snap.PayoutTotalCents() != 100000 {
		t.Errorf("payout total = %d, want 100000", snap.PayoutTotalCents())
	}
	if got := len(snap.ApprovedMembers()); got != 2 {
		t.Errorf("approved members = %d, want 2", got)
	}
}

func TestBuildGrid(t *testing.T) {
	entries := activatedEntries()
	entries = append(entries,
		*amountEntry(15, domain.EntryContributionPaid, 1, 1, 50000),
		*amountEntry(16, domain.EntryPayoutIssued, 1, 1, 150000),
		*entry(17, domain.EntryRoundAdvanced, 0, 2),
		*amountEntry(18, domain.EntryObligationCreated, 1, 2, 50000),
		*amountEntry(19, domain.EntryObligationCreated, 2, 2, 50000),
		*amountEntry(20, domain.EntryObligationCreated, 3, 2, 50000),
	)
	snap, err := Replay(testCircle(), entries)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}

	now := snap.DueDate(1).Add(time.Hour) // round 1 overdue, round 2 not
	grid := snap.BuildGrid(now)

	if grid.CurrentRound != 2 || len(grid.Rounds) != 2 {
		t.Fatalf("grid rounds = %d (current %d), want 2", len(grid.Rounds), grid.CurrentRound)
	}
	if len(grid.Members) != 3 {
		t.Fatalf("grid members = %d, want 3", len(grid.Members))
	}
	if grid.Members[0].PayoutRound != 1 || grid.Members[2].PayoutRound != 3 {
		t.Errorf("members not sorted by payout round: %+v", grid.Members)
	}

	r1 := grid.Rounds[0]
	if !r1.PayoutIssued || r1.Recipient != 1 || r1.PayoutCents != 150000 {
		t.Errorf("round 1 payout: %+v", r1)
	}
	if r1.Contributions[1] != domain.ContributionPaid {
		t.Errorf("round 1 user 1 = %s, want PAID", r1.Contributions[1])
	}
	if r1.Contributions[2] != domain.ContributionLate {
		t.Errorf("round 1 user 2 = %s, want LATE", r1.Contributions[2])
	}

	r2 := grid.Rounds[1]
	if r2.PayoutIssued {
		t.Error("round 2 payout reported issued")
	}
	if r2.Contributions[3] != domain.ContributionPending {
		t.Errorf("round 2 user 3 = %s, want PENDING", r2.Contributions[3])
	}
}
