package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mzunguko/internal/domain"
	"mzunguko/internal/models"
	"mzunguko/internal/storage"
)

// Append writes one logical operation: every entry in the batch gets the next
// sequence numbers, requested void flips are applied, and the snapshot
// projection is materialized — all inside one transaction. The circle row is
// locked FOR UPDATE so concurrent writers serialize; a caller holding a stale
// ExpectedSeq gets domain.ErrSequenceConflict with nothing written.
func (s *Store) Append(ctx context.Context, req storage.AppendRequest) ([]models.LedgerEntry, error) {
	if len(req.Entries) == 0 && len(req.VoidSeqs) == 0 {
		return nil, fmt.Errorf("%w: empty append", domain.ErrValidation)
	}
	for _, e := range req.Entries {
		if e.Type == "" || e.ActorType == "" {
			return nil, fmt.Errorf("%w: entry type and actor are required", domain.ErrValidation)
		}
	}

	var out []models.LedgerEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var circle models.Circle
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&circle, req.CircleID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock circle: %w", err)
		}
		if circle.LastSeq != req.ExpectedSeq {
			return domain.ErrSequenceConflict
		}

		now := time.Now().UTC().Truncate(time.Millisecond)
		seq := req.ExpectedSeq
		for _, e := range req.Entries {
			seq++
			e.CircleID = req.CircleID
			if e.Seq == 0 {
				e.Seq = seq
			} else if e.Seq != seq {
				return fmt.Errorf("%w: entry seq %d, expected %d", domain.ErrValidation, e.Seq, seq)
			}
			if e.CreatedAt.IsZero() {
				e.CreatedAt = now
			}
			if e.Reference == "" {
				e.Reference = uuid.NewString()
			}
			if e.Status == "" {
				e.Status = domain.EntryActive
			}
			if e.Direction == "" {
				e.Direction = domain.DirectionNone
			}
			if err := tx.Create(e).Error; err != nil {
				// A concurrent writer may land the same idempotency key
				// between the service's pre-check and this insert.
				if e.IdempotencyKey != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
					return domain.ErrIdempotencyReplay
				}
				return fmt.Errorf("append entry: %w", err)
			}
		}

		for _, vs := range req.VoidSeqs {
			res := tx.Model(&models.LedgerEntry{}).
				Where("circle_id = ? AND seq = ? AND status = ?", req.CircleID, vs, domain.EntryActive).
				Update("status", domain.EntryVoided)
			if res.Error != nil {
				return fmt.Errorf("void entry: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				var count int64
				if err := tx.Model(&models.LedgerEntry{}).
					Where("circle_id = ? AND seq = ?", req.CircleID, vs).
					Count(&count).Error; err != nil {
					return fmt.Errorf("void entry lookup: %w", err)
				}
				if count == 0 {
					return domain.ErrNotFound
				}
				return domain.ErrAlreadyVoided
			}
		}

		if req.Snapshot != nil {
			if err := saveProjectionsTx(tx, req.Snapshot); err != nil {
				return err
			}
		} else if err := tx.Model(&circle).Update("last_seq", seq).Error; err != nil {
			return fmt.Errorf("bump sequence: %w", err)
		}

		for _, e := range req.Entries {
			out = append(out, *e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetEntry(ctx context.Context, circleID uint, seq uint64) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := s.db.WithContext(ctx).
		Where("circle_id = ? AND seq = ?", circleID, seq).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return &e, nil
}

func (s *Store) FindByIdempotencyKey(ctx context.Context, circleID uint, key string) (*models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := s.db.WithContext(ctx).
		Where("circle_id = ? AND idempotency_key = ?", circleID, key).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find by idempotency key: %w", err)
	}
	return &e, nil
}

func (s *Store) ListByCircle(ctx context.Context, circleID uint, afterSeq uint64, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var list []models.LedgerEntry
	err := s.db.WithContext(ctx).
		Where("circle_id = ? AND seq > ?", circleID, afterSeq).
		Order("seq ASC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list by circle: %w", err)
	}
	return list, nil
}

func (s *Store) ListHistory(ctx context.Context, f storage.HistoryFilter) ([]models.LedgerEntry, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.LedgerEntry{})
	if f.CircleID != 0 {
		q = q.Where("circle_id = ?", f.CircleID)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.ActorID != 0 {
		q = q.Where("actor_id = ?", f.ActorID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	var list []models.LedgerEntry
	err := q.Order("circle_id ASC, seq ASC").
		Limit(limit).Offset((page - 1) * limit).
		Find(&list).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	return list, total, nil
}
