// Package listener provides a Postgres LISTEN/NOTIFY consumer that starts
// tournaments as soon as their fixtures land. It holds a dedicated pgx
// connection (not from the pool) listening on the `fixtures_generated`
// channel, fed by a statement trigger on the matches table.
//
// Without it a tournament whose start window is already open waits for the
// next periodic sweep after its fixtures are inserted.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"

	"github.com/albapepper/matchday/internal/storage"
	"github.com/albapepper/matchday/internal/tournament"
)

const (
	channel          = "fixtures_generated"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// FixturesEvent is the JSON payload from pg_notify('fixtures_generated', ...).
type FixturesEvent struct {
	TournamentID int64 `json:"tournament_id"`
}

// Start opens a dedicated connection and listens on the fixtures_generated
// channel. It reconnects automatically on connection loss. Blocks until ctx
// is cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, sched tournament.Scheduler, clock clockwork.Clock, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, sched, clock, logger)
		if ctx.Err() != nil {
			logger.Info("Fixtures listener stopped (context cancelled)")
			return
		}

		logger.Error("Fixtures listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-clock.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, sched tournament.Scheduler, clock clockwork.Clock, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+channel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	logger.Info("Fixtures listener connected", "channel", channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		Handle(ctx, notification.Payload, sched, clock, logger)
	}
}

// Handle processes one notification payload by running a sweep. The sweep is
// idempotent, so duplicate or stale notifications are harmless.
func Handle(ctx context.Context, payload string, sched tournament.Scheduler, clock clockwork.Clock, logger *slog.Logger) (tournament.SweepResult, bool) {
	var event FixturesEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		logger.Warn("Failed to parse fixtures event", "payload", payload, "error", err)
		return tournament.SweepResult{}, false
	}
	logger.Info("Fixtures event received", "tournament_id", event.TournamentID)

	res := sched.Tick(ctx, clock.Now())
	if started := res.Moved(storage.PhaseStart); len(started) > 0 {
		logger.Info("Tournaments started after fixtures landed", "tournament_ids", started)
	}
	return res, true
}
