package service

import (
	"context"
	"log/slog"

	"mzunguko/internal/domain"
	"mzunguko/internal/models"
	"mzunguko/internal/snapshot"
	"mzunguko/internal/storage"
)

// Broadcaster pushes a notification to connected clients of a circle. The
// websocket hub implements it; a nil Broadcaster disables live pushes.
type Broadcaster interface {
	BroadcastToCircle(circleID uint, n *models.Notification)
}

// NotificationService fans ledger events out to members. Notifications are
// best-effort: failures are logged and never fail the ledger write that
// triggered them. All methods are safe on a nil receiver.
type NotificationService struct {
	store  storage.Store
	hub    Broadcaster
	logger *slog.Logger
}

func NewNotificationService(store storage.Store, hub Broadcaster, logger *slog.Logger) *NotificationService {
	return &NotificationService{store: store, hub: hub, logger: logger}
}

// User notifies a single member of a circle.
func (s *NotificationService) User(ctx context.Context, snap *snapshot.Snapshot, userID uint, typ, title, body string, round int) {
	s.Audience(ctx, snap, domain.UserAudience(userID), typ, title, body, round)
}

// CircleAdmins notifies the circle admin.
func (s *NotificationService) CircleAdmins(ctx context.Context, snap *snapshot.Snapshot, typ, title, body string, round int) {
	s.Audience(ctx, snap, domain.AdminAudience(), typ, title, body, round)
}

// CircleMembers notifies every approved member of the circle.
func (s *NotificationService) CircleMembers(ctx context.Context, snap *snapshot.Snapshot, typ, title, body string, round int) {
	s.Audience(ctx, snap, domain.GlobalAudience(), typ, title, body, round)
}

// Audience resolves an audience value to recipients and delivers to each.
// Every notification goes through here.
func (s *NotificationService) Audience(ctx context.Context, snap *snapshot.Snapshot, aud domain.Audience, typ, title, body string, round int) {
	if s == nil {
		return
	}
	switch aud.Kind {
	case domain.AudienceGlobal:
		for _, m := range snap.ApprovedMembers() {
			s.deliver(ctx, snap.CircleID, m.UserID, typ, title, body, round)
		}
	case domain.AudienceAdminsOnly:
		if adminID, ok := snap.AdminID(); ok {
			s.deliver(ctx, snap.CircleID, adminID, typ, title, body, round)
		}
	case domain.AudienceUser:
		s.deliver(ctx, snap.CircleID, aud.UserID, typ, title, body, round)
	}
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error) {
	return s.store.ListNotifications(ctx, userID, limit, offset)
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID uint) error {
	return s.store.MarkNotificationRead(ctx, id, userID)
}

func (s *NotificationService) deliver(ctx context.Context, circleID, userID uint, typ, title, body string, round int) {
	n := &models.Notification{
		UserID:   userID,
		CircleID: circleID,
		Type:     typ,
		Title:    title,
		Body:     body,
		Round:    round,
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		if s.logger != nil {
			s.logger.Warn("notification write failed",
				"circle_id", circleID, "user_id", userID, "type", typ, "error", err)
		}
		return
	}
	if s.hub != nil {
		s.hub.BroadcastToCircle(circleID, n)
	}
}
