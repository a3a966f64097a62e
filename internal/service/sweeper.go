package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mzunguko/internal/domain"
	"mzunguko/internal/storage"
	"mzunguko/pkg/metrics"
)

// Sweeper periodically scans active circles for contributions past their due
// date and notifies the late member and the circle admin. Lateness is derived,
// never written to the ledger, so the sweep only produces notifications.
type Sweeper struct {
	store    storage.Store
	notif    *NotificationService
	logger   *slog.Logger
	interval time.Duration

	// notified dedupes (circle, round, user) within the process lifetime.
	// Losing it on restart means at worst one repeated notification.
	notified map[string]struct{}
}

// DefaultSweepInterval is used when the configured interval is not positive,
// which would otherwise make the run ticker panic.
const DefaultSweepInterval = time.Hour

func NewSweeper(store storage.Store, notif *NotificationService, logger *slog.Logger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:    store,
		notif:    notif,
		logger:   logger,
		interval: interval,
		notified: make(map[string]struct{}),
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sweep(ctx, time.Now().UTC()); err != nil {
				s.logger.Error("lateness sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one pass over all active circles.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) error {
	circles, err := s.store.ListActiveCircles(ctx)
	if err != nil {
		return err
	}
	for i := range circles {
		_, snap, err := loadState(ctx, s.store, circles[i].ID)
		if err != nil {
			s.logger.Warn("sweep: load circle failed", "circle_id", circles[i].ID, "error", err)
			continue
		}
		if snap.Status != domain.CircleActive {
			continue
		}
		round := snap.CurrentRound
		if now.Before(snap.DueDate(round)) {
			continue
		}
		r := snap.Rounds[round]
		if r == nil {
			continue
		}
		for userID, contrib := range r.Contributions {
			if contrib.Status != domain.ContributionPending {
				continue
			}
			key := fmt.Sprintf("%d:%d:%d", snap.CircleID, round, userID)
			if _, done := s.notified[key]; done {
				continue
			}
			s.notified[key] = struct{}{}
			s.notif.User(ctx, snap, userID, domain.NotifContributionLate, "Contribution overdue",
				fmt.Sprintf("your round %d contribution to %s is overdue", round, snap.Name), round)
			s.notif.CircleAdmins(ctx, snap, domain.NotifContributionLate, "Member overdue",
				fmt.Sprintf("user %d has not paid round %d of %s", userID, round, snap.Name), round)
		}
	}
	metrics.LateSweepsRan.Inc()
	return nil
}
