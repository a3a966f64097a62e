// Package memory provides an in-memory storage.Store used by tests. It keeps
// the same concurrency semantics as the MySQL store: appends against one
// circle serialize, and a stale expected sequence fails with
// domain.ErrSequenceConflict with nothing written.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mzunguko/internal/domain"
	"mzunguko/internal/models"
	"mzunguko/internal/snapshot"
	"mzunguko/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	mu            sync.RWMutex
	circles       map[uint]*models.Circle
	entries       map[uint][]*models.LedgerEntry // circleID -> seq-ordered
	snapshots     map[uint][]byte
	memberships   map[uint]map[uint]*models.Membership // circleID -> userID
	users         map[uint]*models.User
	notifications []*models.Notification
	nextCircleID  uint
	nextNotifID   uint
}

func New() *Store {
	return &Store{
		circles:     make(map[uint]*models.Circle),
		entries:     make(map[uint][]*models.LedgerEntry),
		snapshots:   make(map[uint][]byte),
		memberships: make(map[uint]map[uint]*models.Membership),
		users:       make(map[uint]*models.User),
	}
}

func (s *Store) CreateCircle(_ context.Context, c *models.Circle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCircleID++
	c.ID = s.nextCircleID
	if c.Currency == "" {
		c.Currency = domain.DefaultCurrency
	}
	if c.Status == "" {
		c.Status = domain.CircleRecruiting
	}
	c.CreatedAt = time.Now().UTC()
	cp := *c
	s.circles[c.ID] = &cp
	return nil
}

func (s *Store) GetCircle(_ context.Context, id uint) (*models.Circle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.circles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) ListActiveCircles(_ context.Context) ([]models.Circle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Circle
	for _, c := range s.circles {
		if c.Status == domain.CircleActive && !c.Frozen {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Append(_ context.Context, req storage.AppendRequest) ([]models.LedgerEntry, error) {
	if len(req.Entries) == 0 && len(req.VoidSeqs) == 0 {
		return nil, fmt.Errorf("%w: empty append", domain.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	circle, ok := s.circles[req.CircleID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if circle.LastSeq != req.ExpectedSeq {
		return nil, domain.ErrSequenceConflict
	}

	// Validate the whole batch before writing anything: the append is
	// all-or-nothing, so a bad entry must not leave earlier ones behind.
	for _, vs := range req.VoidSeqs {
		target := s.findEntry(req.CircleID, vs)
		if target == nil {
			return nil, domain.ErrNotFound
		}
		if target.Status == domain.EntryVoided {
			return nil, domain.ErrAlreadyVoided
		}
	}
	seq := req.ExpectedSeq
	for _, e := range req.Entries {
		seq++
		if e.Seq != 0 && e.Seq != seq {
			return nil, fmt.Errorf("%w: entry seq %d, expected %d", domain.ErrValidation, e.Seq, seq)
		}
		if e.IdempotencyKey != nil {
			for _, prior := range s.entries[req.CircleID] {
				if prior.IdempotencyKey != nil && *prior.IdempotencyKey == *e.IdempotencyKey {
					return nil, domain.ErrIdempotencyReplay
				}
			}
		}
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	seq = req.ExpectedSeq
	var out []models.LedgerEntry
	for _, e := range req.Entries {
		seq++
		cp := *e
		cp.CircleID = req.CircleID
		cp.Seq = seq
		if cp.CreatedAt.IsZero() {
			cp.CreatedAt = now
		}
		if cp.Reference == "" {
			cp.Reference = uuid.NewString()
		}
		if cp.Status == "" {
			cp.Status = domain.EntryActive
		}
		if cp.Direction == "" {
			cp.Direction = domain.DirectionNone
		}
		s.entries[req.CircleID] = append(s.entries[req.CircleID], &cp)
		out = append(out, cp)
		*e = cp
	}
	for _, vs := range req.VoidSeqs {
		s.findEntry(req.CircleID, vs).Status = domain.EntryVoided
	}

	if req.Snapshot != nil {
		if err := s.saveProjectionsLocked(req.Snapshot); err != nil {
			return nil, err
		}
	} else {
		circle.LastSeq = seq
	}
	return out, nil
}

func (s *Store) GetEntry(_ context.Context, circleID uint, seq uint64) (*models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := s.findEntry(circleID, seq)
	if e == nil {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *Store) FindByIdempotencyKey(_ context.Context, circleID uint, key string) (*models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries[circleID] {
		if e.IdempotencyKey != nil && *e.IdempotencyKey == key {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ListByCircle(_ context.Context, circleID uint, afterSeq uint64, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.LedgerEntry
	for _, e := range s.entries[circleID] {
		if e.Seq > afterSeq {
			out = append(out, *e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) ListHistory(_ context.Context, f storage.HistoryFilter) ([]models.LedgerEntry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []models.LedgerEntry
	for circleID, list := range s.entries {
		if f.CircleID != 0 && circleID != f.CircleID {
			continue
		}
		for _, e := range list {
			if f.Type != "" && e.Type != f.Type {
				continue
			}
			if f.ActorID != 0 && e.ActorID != f.ActorID {
				continue
			}
			if f.Status != "" && e.Status != f.Status {
				continue
			}
			all = append(all, *e)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CircleID != all[j].CircleID {
			return all[i].CircleID < all[j].CircleID
		}
		return all[i].Seq < all[j].Seq
	})
	total := int64(len(all))
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (s *Store) GetSnapshot(_ context.Context, circleID uint) (*snapshot.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.snapshots[circleID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	var snap snapshot.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (s *Store) SaveProjections(_ context.Context, snap *snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveProjectionsLocked(snap)
}

func (s *Store) saveProjectionsLocked(snap *snapshot.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	s.snapshots[snap.CircleID] = data

	if c, ok := s.circles[snap.CircleID]; ok {
		c.Status = snap.Status
		c.Frozen = snap.Frozen
		c.CurrentRound = snap.CurrentRound
		c.LastSeq = snap.LastSeq
		c.Capacity = snap.Capacity
	}

	members := s.memberships[snap.CircleID]
	if members == nil {
		members = make(map[uint]*models.Membership)
		s.memberships[snap.CircleID] = members
	}
	for _, m := range snap.Members {
		row, ok := members[m.UserID]
		if !ok {
			row = &models.Membership{CircleID: snap.CircleID, UserID: m.UserID}
			members[m.UserID] = row
		}
		row.Role = m.Role
		row.JoinStatus = m.JoinStatus
		row.PayoutRound = m.PayoutRound
		row.Preference = m.Preference
		row.JoinedAt = m.JoinedAt
	}
	return nil
}

func (s *Store) GetMembership(_ context.Context, circleID, userID uint) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.memberships[circleID][userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Store) ListMemberships(_ context.Context, circleID uint) ([]models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Membership
	for _, m := range s.memberships[circleID] {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (s *Store) ListActiveMembershipsByUser(_ context.Context, userID uint) ([]models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Membership
	for circleID, members := range s.memberships {
		c := s.circles[circleID]
		if c == nil || (c.Status != domain.CircleRecruiting && c.Status != domain.CircleActive) {
			continue
		}
		if m, ok := members[userID]; ok && m.JoinStatus == domain.JoinApproved {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CircleID < out[j].CircleID })
	return out, nil
}

func (s *Store) GetOrCreateUser(_ context.Context, id uint, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	u := &models.User{ID: id, Username: username, Role: domain.RoleMember, CreatedAt: time.Now().UTC()}
	s.users[id] = u
	cp := *u
	return &cp, nil
}

func (s *Store) GetUser(_ context.Context, id uint) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) SetUserBanned(_ context.Context, id uint, banned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.Banned = banned
	if banned {
		now := time.Now().UTC()
		u.BannedAt = &now
	} else {
		u.BannedAt = nil
	}
	return nil
}

func (s *Store) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextNotifID++
	n.ID = s.nextNotifID
	n.CreatedAt = time.Now().UTC()
	cp := *n
	s.notifications = append(s.notifications, &cp)
	return nil
}

func (s *Store) ListNotifications(_ context.Context, userID uint, limit, offset int) ([]models.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if s.notifications[i].UserID == userID {
			out = append(out, *s.notifications[i])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID == id && n.UserID == userID {
			now := time.Now().UTC()
			n.ReadAt = &now
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *Store) findEntry(circleID uint, seq uint64) *models.LedgerEntry {
	for _, e := range s.entries[circleID] {
		if e.Seq == seq {
			return e
		}
	}
	return nil
}
