package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mzunguko/internal/domain"
	"mzunguko/internal/models"
	"mzunguko/internal/snapshot"
)

func (s *Store) GetSnapshot(ctx context.Context, circleID uint) (*snapshot.Snapshot, error) {
	var row models.CircleSnapshot
	err := s.db.WithContext(ctx).First(&row, "circle_id = ?", circleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	var snap snapshot.Snapshot
	if err := json.Unmarshal(row.Data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (s *Store) SaveProjections(ctx context.Context, snap *snapshot.Snapshot) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveProjectionsTx(tx, snap)
	})
}

// saveProjectionsTx materializes the snapshot blob, the circle's derived
// columns and the membership rows inside the caller's transaction.
func saveProjectionsTx(tx *gorm.DB, snap *snapshot.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	row := models.CircleSnapshot{CircleID: snap.CircleID, LastSeq: snap.LastSeq, Data: data}
	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "circle_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_seq", "data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	err = tx.Model(&models.Circle{}).Where("id = ?", snap.CircleID).Updates(map[string]interface{}{
		"status":        snap.Status,
		"frozen":        snap.Frozen,
		"current_round": snap.CurrentRound,
		"last_seq":      snap.LastSeq,
		"capacity":      snap.Capacity,
	}).Error
	if err != nil {
		return fmt.Errorf("update circle projection: %w", err)
	}

	for _, m := range snap.Members {
		row := models.Membership{
			CircleID:    snap.CircleID,
			UserID:      m.UserID,
			Role:        m.Role,
			JoinStatus:  m.JoinStatus,
			PayoutRound: m.PayoutRound,
			Preference:  m.Preference,
			JoinedAt:    m.JoinedAt,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "circle_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role", "join_status", "payout_round", "preference", "joined_at", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("upsert membership: %w", err)
		}
	}
	return nil
}
