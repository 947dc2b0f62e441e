package notifications

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/albapepper/matchday/internal/storage"
)

// WorkerConfig controls the dispatch loop.
type WorkerConfig struct {
	Interval  time.Duration
	BatchSize int
}

// DefaultWorkerConfig returns the production dispatch cadence.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{Interval: defaultDispatchInterval, BatchSize: defaultDispatchBatch}
}

// StartWorker runs a background loop that delivers due notifications.
// Blocks until ctx is cancelled. Intended to be called with `go`.
func StartWorker(ctx context.Context, store storage.Store, deliverer Deliverer, clock clockwork.Clock, cfg WorkerConfig, logger *slog.Logger) {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultDispatchInterval
	}
	logger.Info("Notification dispatch worker started", "interval", cfg.Interval)
	ticker := clock.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			sent, failed, err := DispatchBatch(ctx, store, deliverer, clock.Now(), cfg.BatchSize, logger)
			if err != nil {
				logger.Error("Dispatch error", "error", err)
			} else if sent+failed > 0 {
				logger.Info("Dispatch batch", "sent", sent, "failed", failed)
			}
		case <-ctx.Done():
			logger.Info("Notification dispatch worker stopped")
			return
		}
	}
}

// DispatchBatch claims up to limit due notifications and delivers each one.
// A failed delivery marks its row failed and moves on.
func DispatchBatch(ctx context.Context, store storage.Store, deliverer Deliverer, now time.Time, limit int, logger *slog.Logger) (sent, failed int, err error) {
	if limit <= 0 {
		limit = defaultDispatchBatch
	}
	claimed, err := store.ClaimDueNotifications(ctx, now.UTC(), limit)
	if err != nil {
		return 0, 0, err
	}

	for _, n := range claimed {
		if sendErr := deliverer.Deliver(ctx, DeliveryFrom(n)); sendErr != nil {
			logger.Warn("Delivery failed", "notification_id", n.ID, "uid", n.RecipientUID, "error", sendErr)
			if markErr := store.MarkNotificationFailed(ctx, n.ID, sendErr.Error(), now.UTC()); markErr != nil {
				logger.Warn("Failed to mark notification failed", "notification_id", n.ID, "error", markErr)
			}
			failed++
			continue
		}
		if markErr := store.MarkNotificationSent(ctx, n.ID, now.UTC()); markErr != nil {
			logger.Warn("Failed to mark notification sent", "notification_id", n.ID, "error", markErr)
		}
		sent++
	}
	return sent, failed, nil
}
