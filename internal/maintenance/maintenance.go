// Package maintenance runs periodic background tasks as tickers alongside the
// API: outbox retention, score audits and a watch on tournaments that cannot
// start for lack of fixtures.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/albapepper/matchday/internal/fixture"
	"github.com/albapepper/matchday/internal/match"
)

// Store is the subset of storage the tasks touch.
type Store interface {
	fixture.Lister
	PurgeNotifications(ctx context.Context, olderThan time.Time) (int64, error)
}

// Auditor refolds the ledgers of active matches.
type Auditor interface {
	ReconcileActive(ctx context.Context, repair bool) ([]match.Reconciliation, error)
}

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	PurgeInterval    time.Duration // Delete delivered/failed notifications
	Retention        time.Duration // Age after which finished outbox rows are purged
	AuditInterval    time.Duration // Refold live and paused scores
	RepairDrift      bool          // Rewrite drifted scores instead of only logging them
	FixturesInterval time.Duration // Warn about tournaments waiting for fixtures
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		PurgeInterval:    6 * time.Hour,
		Retention:        30 * 24 * time.Hour,
		AuditInterval:    10 * time.Minute,
		RepairDrift:      true,
		FixturesInterval: time.Hour,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, store Store, auditor Auditor, clock clockwork.Clock, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"purge", cfg.PurgeInterval,
		"retention", cfg.Retention,
		"audit", cfg.AuditInterval,
		"fixtures", cfg.FixturesInterval)

	tickers := make([]clockwork.Ticker, 0, 3)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	if cfg.PurgeInterval > 0 && cfg.Retention > 0 {
		t := clock.NewTicker(cfg.PurgeInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.Chan(), func() { Purge(ctx, store, clock.Now(), cfg.Retention, logger) })
	}

	if cfg.AuditInterval > 0 && auditor != nil {
		t := clock.NewTicker(cfg.AuditInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.Chan(), func() { Audit(ctx, auditor, cfg.RepairDrift, logger) })
	}

	if cfg.FixturesInterval > 0 {
		t := clock.NewTicker(cfg.FixturesInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.Chan(), func() { WatchFixtures(ctx, store, clock.Now(), logger) })
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// Purge removes sent and failed notifications last touched before
// now-retention. Scheduled rows are never purged.
func Purge(ctx context.Context, store Store, now time.Time, retention time.Duration, logger *slog.Logger) int64 {
	n, err := store.PurgeNotifications(ctx, now.Add(-retention))
	if err != nil {
		logger.Warn("Cleanup: failed to purge old notifications", "error", err)
		return 0
	}
	if n > 0 {
		logger.Info("Cleanup: purged old notifications", "count", n)
	}
	return n
}

// Audit refolds every active match and reports the drifted ones.
func Audit(ctx context.Context, auditor Auditor, repair bool, logger *slog.Logger) []match.Reconciliation {
	drifted, err := auditor.ReconcileActive(ctx, repair)
	if err != nil {
		logger.Warn("Score audit: failed", "error", err)
		return nil
	}
	if len(drifted) > 0 {
		logger.Warn("Score audit: drifted matches", "count", len(drifted), "repaired", repair)
	}
	return drifted
}

// WatchFixtures logs tournaments that are past their start but have no
// fixtures yet.
func WatchFixtures(ctx context.Context, store fixture.Lister, now time.Time, logger *slog.Logger) fixture.Report {
	report, err := fixture.Pending(ctx, store, now, "")
	if err != nil {
		logger.Warn("Fixture watch: failed", "error", err)
		return report
	}
	for _, row := range report.Rows {
		logger.Warn("Tournament waiting for fixtures",
			"tournament_id", row.TournamentID,
			"name", row.Name,
			"overdue", row.Overdue.Round(time.Minute))
	}
	return report
}
