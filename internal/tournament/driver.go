package tournament

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// RunTicker sweeps once immediately, then every interval. Blocks until ctx
// is cancelled. Intended to be called with `go`.
func RunTicker(ctx context.Context, s Scheduler, clock clockwork.Clock, interval time.Duration, logger *slog.Logger) {
	logger.Info("Tournament sweep ticker started", "interval", interval)
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	s.Tick(ctx, clock.Now())
	for {
		select {
		case <-ticker.Chan():
			s.Tick(ctx, clock.Now())
		case <-ctx.Done():
			logger.Info("Tournament sweep ticker stopped")
			return
		}
	}
}

// ScheduleCron registers a sweep on a gocron scheduler using a crontab
// expression. Overlapping runs are rescheduled rather than stacked.
func ScheduleCron(ctx context.Context, sched gocron.Scheduler, expr string, s Scheduler, clock clockwork.Clock) (gocron.Job, error) {
	return sched.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(func() {
			s.Tick(ctx, clock.Now())
		}),
		gocron.WithName("tournament-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
}
