package memory

import (
	"context"
	"errors"
	"testing"

	"mzunguko/internal/domain"
	"mzunguko/internal/models"
	"mzunguko/internal/snapshot"
	"mzunguko/internal/storage"
)

func newCircle(t *testing.T, s *Store) *models.Circle {
	t.Helper()
	c := &models.Circle{
		Name:        "test",
		AmountCents: 1000,
		Frequency:   domain.FrequencyWeekly,
		Capacity:    3,
	}
	if err := s.CreateCircle(context.Background(), c); err != nil {
		t.Fatalf("CreateCircle: %v", err)
	}
	return c
}

func joinEntry(userID uint) *models.LedgerEntry {
	return &models.LedgerEntry{
		Type:          domain.EntryMemberJoined,
		ActorType:     domain.ActorMember,
		ActorID:       userID,
		SubjectUserID: userID,
	}
}

func TestAppendAssignsSequence(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := newCircle(t, s)

	out, err := s.Append(ctx, storage.AppendRequest{
		CircleID:    c.ID,
		ExpectedSeq: 0,
		Entries:     []*models.LedgerEntry{joinEntry(1), joinEntry(2)},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if out[0].Seq != 1 || out[1].Seq != 2 {
		t.Errorf("seqs = %d, %d, want 1, 2", out[0].Seq, out[1].Seq)
	}
	if out[0].Reference == "" || out[0].Status != domain.EntryActive {
		t.Errorf("defaults not filled: %+v", out[0])
	}

	got, err := s.GetCircle(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCircle: %v", err)
	}
	if got.LastSeq != 2 {
		t.Errorf("circle last seq = %d, want 2", got.LastSeq)
	}
}

func TestAppendSequenceConflict(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := newCircle(t, s)

	if _, err := s.Append(ctx, storage.AppendRequest{
		CircleID: c.ID, ExpectedSeq: 0,
		Entries: []*models.LedgerEntry{joinEntry(1)},
	}); err != nil {
		t.Fatalf("first append: %v", err)
	}

	_, err := s.Append(ctx, storage.AppendRequest{
		CircleID: c.ID, ExpectedSeq: 0,
		Entries: []*models.LedgerEntry{joinEntry(2)},
	})
	if !errors.Is(err, domain.ErrSequenceConflict) {
		t.Fatalf("stale append: got %v, want ErrSequenceConflict", err)
	}

	entries, err := s.ListByCircle(ctx, c.ID, 0, 10)
	if err != nil {
		t.Fatalf("ListByCircle: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("entries = %d, want 1 (losing append must write nothing)", len(entries))
	}
}

func TestAppendRejectsMisnumberedEntries(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := newCircle(t, s)

	e := joinEntry(2)
	e.Seq = 5
	// A valid leading entry must not survive the failure of a later one.
	_, err := s.Append(ctx, storage.AppendRequest{
		CircleID: c.ID, ExpectedSeq: 0,
		Entries: []*models.LedgerEntry{joinEntry(1), e},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("misnumbered entry: got %v, want ErrValidation", err)
	}
	entries, _ := s.ListByCircle(ctx, c.ID, 0, 10)
	if len(entries) != 0 {
		t.Errorf("entries after failed append = %d, want 0", len(entries))
	}
}

func TestAppendRejectsDuplicateIdempotencyKey(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := newCircle(t, s)

	key := "pay-1"
	first := joinEntry(1)
	first.IdempotencyKey = &key
	if _, err := s.Append(ctx, storage.AppendRequest{
		CircleID: c.ID, ExpectedSeq: 0,
		Entries: []*models.LedgerEntry{first},
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	second := joinEntry(2)
	second.IdempotencyKey = &key
	_, err := s.Append(ctx, storage.AppendRequest{
		CircleID: c.ID, ExpectedSeq: 1,
		Entries: []*models.LedgerEntry{second},
	})
	if !errors.Is(err, domain.ErrIdempotencyReplay) {
		t.Fatalf("duplicate key: got %v, want ErrIdempotencyReplay", err)
	}
	entries, _ := s.ListByCircle(ctx, c.ID, 0, 10)
	if len(entries) != 1 {
		t.Errorf("entries = %d, want 1", len(entries))
	}
}

func TestVoidFlipsStatusAtomically(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := newCircle(t, s)

	if _, err := s.Append(ctx, storage.AppendRequest{
		CircleID: c.ID, ExpectedSeq: 0,
		Entries: []*models.LedgerEntry{joinEntry(1)},
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	seq := uint64(1)
	void := &models.LedgerEntry{
		Type:      domain.EntryAdminOverride,
		ActorType: domain.ActorAdmin,
		VoidsSeq:  &seq,
	}
	if _, err := s.Append(ctx, storage.AppendRequest{
		CircleID: c.ID, ExpectedSeq: 1,
		Entries:  []*models.LedgerEntry{void},
		VoidSeqs: []uint64{1},
	}); err != nil {
		t.Fatalf("void append: %v", err)
	}

	target, err := s.GetEntry(ctx, c.ID, 1)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if target.Status != domain.EntryVoided {
		t.Errorf("target status = %s, want VOIDED", target.Status)
	}

	// Second void of the same entry fails and writes nothing.
	_, err = s.Append(ctx, storage.AppendRequest{
		CircleID: c.ID, ExpectedSeq: 2,
		Entries:  []*models.LedgerEntry{joinEntry(9)},
		VoidSeqs: []uint64{1},
	})
	if !errors.Is(err, domain.ErrAlreadyVoided) {
		t.Fatalf("double void: got %v, want ErrAlreadyVoided", err)
	}
	entries, _ := s.ListByCircle(ctx, c.ID, 0, 10)
	if len(entries) != 2 {
		t.Errorf("entries = %d, want 2", len(entries))
	}
}

func TestFindByIdempotencyKey(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := newCircle(t, s)

	key := "pay-1"
	e := joinEntry(1)
	e.IdempotencyKey = &key
	if _, err := s.Append(ctx, storage.AppendRequest{
		CircleID: c.ID, ExpectedSeq: 0,
		Entries: []*models.LedgerEntry{e},
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	found, err := s.FindByIdempotencyKey(ctx, c.ID, key)
	if err != nil {
		t.Fatalf("FindByIdempotencyKey: %v", err)
	}
	if found.Seq != 1 {
		t.Errorf("found seq = %d, want 1", found.Seq)
	}
	if _, err := s.FindByIdempotencyKey(ctx, c.ID, "other"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing key: got %v, want ErrNotFound", err)
	}
}

func TestSnapshotRoundTripAndProjections(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := newCircle(t, s)

	snap := snapshot.New(c)
	e := joinEntry(4)
	e.Seq = 1
	e.CircleID = c.ID
	if err := snap.Apply(e); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := s.Append(ctx, storage.AppendRequest{
		CircleID: c.ID, ExpectedSeq: 0,
		Entries:  []*models.LedgerEntry{e},
		Snapshot: snap,
	}); err != nil {
		t.Fatalf("append with snapshot: %v", err)
	}

	loaded, err := s.GetSnapshot(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if loaded.LastSeq != 1 || loaded.Members[4] == nil {
		t.Errorf("loaded snapshot: lastSeq=%d members=%v", loaded.LastSeq, loaded.Members)
	}

	m, err := s.GetMembership(ctx, c.ID, 4)
	if err != nil {
		t.Fatalf("GetMembership: %v", err)
	}
	if m.JoinStatus != domain.JoinRequested {
		t.Errorf("membership status = %s, want REQUESTED", m.JoinStatus)
	}
}

func TestListHistoryFilters(t *testing.T) {
	s := New()
	ctx := context.Background()
	c := newCircle(t, s)

	if _, err := s.Append(ctx, storage.AppendRequest{
		CircleID: c.ID, ExpectedSeq: 0,
		Entries: []*models.LedgerEntry{joinEntry(1), joinEntry(2), {
			Type: domain.EntryMemberApproved, ActorType: domain.ActorAdmin, ActorID: 9, SubjectUserID: 1,
		}},
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, total, err := s.ListHistory(ctx, storage.HistoryFilter{Type: domain.EntryMemberJoined})
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if total != 2 || len(entries) != 2 {
		t.Errorf("joined filter: total=%d len=%d, want 2", total, len(entries))
	}

	entries, total, err = s.ListHistory(ctx, storage.HistoryFilter{ActorID: 9})
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if total != 1 || entries[0].Type != domain.EntryMemberApproved {
		t.Errorf("actor filter: total=%d entries=%+v", total, entries)
	}
}
