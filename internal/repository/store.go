// Package repository implements storage.Store on gorm/MySQL.
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"mzunguko/internal/domain"
	"mzunguko/internal/models"
	"mzunguko/internal/storage"
)

// Ensure Store implements storage.Store.
var _ storage.Store = (*Store)(nil)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateCircle(ctx context.Context, c *models.Circle) error {
	if c.Currency == "" {
		c.Currency = domain.DefaultCurrency
	}
	if c.Status == "" {
		c.Status = domain.CircleRecruiting
	}
	return s.db.WithContext(ctx).Create(c).Error
}

func (s *Store) GetCircle(ctx context.Context, id uint) (*models.Circle, error) {
	var c models.Circle
	err := s.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get circle: %w", err)
	}
	return &c, nil
}

func (s *Store) ListActiveCircles(ctx context.Context) ([]models.Circle, error) {
	var list []models.Circle
	err := s.db.WithContext(ctx).
		Where("status = ? AND frozen = ?", domain.CircleActive, false).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list active circles: %w", err)
	}
	return list, nil
}

func (s *Store) GetMembership(ctx context.Context, circleID, userID uint) (*models.Membership, error) {
	var m models.Membership
	err := s.db.WithContext(ctx).
		Where("circle_id = ? AND user_id = ?", circleID, userID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get membership: %w", err)
	}
	return &m, nil
}

func (s *Store) ListMemberships(ctx context.Context, circleID uint) ([]models.Membership, error) {
	var list []models.Membership
	err := s.db.WithContext(ctx).
		Where("circle_id = ?", circleID).
		Order("joined_at ASC, user_id ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return list, nil
}

func (s *Store) ListActiveMembershipsByUser(ctx context.Context, userID uint) ([]models.Membership, error) {
	var list []models.Membership
	err := s.db.WithContext(ctx).
		Joins("JOIN circles ON circles.id = memberships.circle_id").
		Where("memberships.user_id = ? AND memberships.join_status = ?", userID, domain.JoinApproved).
		Where("circles.status IN ?", []string{domain.CircleRecruiting, domain.CircleActive}).
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list memberships by user: %w", err)
	}
	return list, nil
}

func (s *Store) GetOrCreateUser(ctx context.Context, id uint, username string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u = models.User{ID: id, Username: username, Role: domain.RoleMember}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *Store) SetUserBanned(ctx context.Context, id uint, banned bool) error {
	updates := map[string]interface{}{"banned": banned}
	if banned {
		updates["banned_at"] = gorm.Expr("NOW()")
	} else {
		updates["banned_at"] = nil
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("set banned: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	return s.db.WithContext(ctx).Create(n).Error
}

func (s *Store) ListNotifications(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var list []models.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&list).Error
	return list, err
}

func (s *Store) MarkNotificationRead(ctx context.Context, id, userID uint) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read_at", gorm.Expr("NOW()"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
