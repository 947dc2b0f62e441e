// Package tournament advances tournaments through their time-driven
// lifecycle:
//
//	open → closed → in_progress → finished
//
// A sweep runs three phases in fixed order (close registration, start,
// finish). Each phase is one conditional bulk update, so a sweep is
// idempotent and safe to run from several instances at once. Notification
// fan-out happens after the update commits, asynchronously per tournament.
package tournament

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/albapepper/matchday/internal/bus"
	"github.com/albapepper/matchday/internal/domain"
	"github.com/albapepper/matchday/internal/storage"
)

const defaultFanoutConcurrency = 8

// Scheduler advances tournaments whose time has come. Any timer may drive it.
type Scheduler interface {
	Tick(ctx context.Context, now time.Time) SweepResult
}

// Notifier fans one lifecycle event out to its recipients.
type Notifier interface {
	Dispatch(ctx context.Context, evt domain.Event) (int, error)
}

// --------------------------------------------------------------------------
// Results
// --------------------------------------------------------------------------

// PhaseResult is the outcome of one phase of a sweep.
type PhaseResult struct {
	Phase storage.Phase
	Moved []int64
	Err   error
}

// SweepResult is the outcome of a full sweep.
type SweepResult struct {
	At               time.Time
	Phases           []PhaseResult
	AwaitingFixtures []int64
	Duration         time.Duration
}

// Moved returns the tournaments a phase transitioned.
func (r SweepResult) Moved(phase storage.Phase) []int64 {
	for _, p := range r.Phases {
		if p.Phase == phase {
			return p.Moved
		}
	}
	return nil
}

// Errors returns the failures of individual phases.
func (r SweepResult) Errors() []error {
	var errs []error
	for _, p := range r.Phases {
		if p.Err != nil {
			errs = append(errs, p.Err)
		}
	}
	return errs
}

// Summary returns a human-readable summary.
func (r SweepResult) Summary() string {
	parts := make([]string, 0, len(r.Phases)+2)
	for _, p := range r.Phases {
		if p.Err != nil {
			parts = append(parts, fmt.Sprintf("%s=FAILED", p.Phase))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%d", p.Phase, len(p.Moved)))
	}
	parts = append(parts,
		fmt.Sprintf("awaiting_fixtures=%d", len(r.AwaitingFixtures)),
		fmt.Sprintf("dur=%s", r.Duration.Round(time.Millisecond)))
	return strings.Join(parts, " ")
}

// --------------------------------------------------------------------------
// Sweeper
// --------------------------------------------------------------------------

// Sweeper is the Scheduler backed by a storage.Store.
type Sweeper struct {
	store       storage.Store
	notifier    Notifier
	pub         bus.Publisher
	concurrency int
	logger      *slog.Logger

	mu       sync.Mutex
	inflight sync.WaitGroup
}

var _ Scheduler = (*Sweeper)(nil)

// NewSweeper wires a Sweeper. concurrency bounds parallel fan-outs; zero
// picks a default. A nil publisher discards events.
func NewSweeper(store storage.Store, notifier Notifier, pub bus.Publisher, concurrency int, logger *slog.Logger) *Sweeper {
	if concurrency <= 0 {
		concurrency = defaultFanoutConcurrency
	}
	if pub == nil {
		pub = bus.Discard
	}
	return &Sweeper{store: store, notifier: notifier, pub: pub, concurrency: concurrency, logger: logger}
}

func kindFor(p storage.Phase) domain.EventKind {
	switch p {
	case storage.PhaseCloseRegistration:
		return domain.KindRegistrationClosed
	case storage.PhaseStart:
		return domain.KindTournamentStarted
	}
	return domain.KindTournamentFinished
}

// Tick runs one sweep at now. A failing phase is logged and recorded; the
// remaining phases still run. Ticks from concurrent callers are serialized.
func (s *Sweeper) Tick(ctx context.Context, now time.Time) SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	now = now.UTC()
	res := SweepResult{At: now}
	var events []domain.Event

	for _, phase := range storage.Phases {
		pr := PhaseResult{Phase: phase}
		moved, err := s.store.TransitionTournaments(ctx, phase, now)
		if err != nil {
			pr.Err = fmt.Errorf("%s: %w", phase, err)
			s.logger.Error("Tournament sweep phase failed", "phase", phase, "error", err)
			res.Phases = append(res.Phases, pr)
			continue
		}
		for _, t := range moved {
			pr.Moved = append(pr.Moved, t.ID)
			events = append(events, domain.TournamentTransitioned(kindFor(phase), t, now))
			s.logger.Info("Tournament transitioned",
				"tournament_id", t.ID, "name", t.Name, "phase", phase, "state", t.State)
		}
		res.Phases = append(res.Phases, pr)
	}

	awaiting, err := s.store.ListAwaitingFixtures(ctx, now)
	if err != nil {
		s.logger.Warn("Failed to list tournaments awaiting fixtures", "error", err)
	}
	for _, t := range awaiting {
		res.AwaitingFixtures = append(res.AwaitingFixtures, t.ID)
		s.logger.Warn("Tournament cannot start without fixtures",
			"tournament_id", t.ID, "name", t.Name, "starts_at", t.StartsAt)
	}

	s.fanOut(ctx, events)
	res.Duration = time.Since(start)
	if len(events) > 0 || len(res.Errors()) > 0 {
		s.logger.Info("Tournament sweep complete", "summary", res.Summary())
	}
	return res
}

// fanOut publishes and dispatches each event on its own goroutine, bounded
// by the configured concurrency. It returns immediately.
func (s *Sweeper) fanOut(ctx context.Context, events []domain.Event) {
	if len(events) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		var g errgroup.Group
		g.SetLimit(s.concurrency)
		for _, evt := range events {
			g.Go(func() error {
				s.pub.Publish(ctx, evt)
				if s.notifier == nil {
					return nil
				}
				if _, err := s.notifier.Dispatch(ctx, evt); err != nil {
					s.logger.Warn("Failed to notify tournament transition",
						"tournament_id", evt.SubjectID(), "kind", evt.Kind, "error", err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// Wait blocks until every fan-out started so far has finished.
func (s *Sweeper) Wait() {
	s.inflight.Wait()
}
