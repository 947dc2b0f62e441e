// Package match implements the referee-driven match state machine.
//
//	scheduled → live ⇄ paused → finished
//
// Only the referee assigned to a match may act on it. Every operation runs in
// one transaction with the match row locked, and either fully applies or
// leaves nothing behind. Events are published only after commit.
package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jonboulle/clockwork"

	"github.com/albapepper/matchday/internal/bus"
	"github.com/albapepper/matchday/internal/domain"
	"github.com/albapepper/matchday/internal/ledger"
	"github.com/albapepper/matchday/internal/storage"
)

// Action is a referee command that moves a match between states.
type Action string

const (
	ActionStart    Action = "start"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionFinalize Action = "finalize"
)

type transition struct {
	from []domain.MatchState
	to   domain.MatchState
}

var transitions = map[Action]transition{
	ActionStart:    {from: []domain.MatchState{domain.MatchScheduled}, to: domain.MatchLive},
	ActionPause:    {from: []domain.MatchState{domain.MatchLive}, to: domain.MatchPaused},
	ActionResume:   {from: []domain.MatchState{domain.MatchPaused}, to: domain.MatchLive},
	ActionFinalize: {from: []domain.MatchState{domain.MatchLive, domain.MatchPaused}, to: domain.MatchFinished},
}

// Manager runs lifecycle commands against the store.
type Manager struct {
	store  storage.Store
	ledger *ledger.Ledger
	pub    bus.Publisher
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewManager wires a Manager. A nil publisher discards events.
func NewManager(store storage.Store, l *ledger.Ledger, pub bus.Publisher, clock clockwork.Clock, logger *slog.Logger) *Manager {
	if pub == nil {
		pub = bus.Discard
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{store: store, ledger: l, pub: pub, clock: clock, logger: logger}
}

// Start moves a scheduled match to live.
func (m *Manager) Start(ctx context.Context, refereeID string, matchID int64) (domain.Match, error) {
	return m.apply(ctx, refereeID, matchID, ActionStart, "")
}

// Pause moves a live match to paused. Pausing twice is an InvalidState error.
func (m *Manager) Pause(ctx context.Context, refereeID string, matchID int64) (domain.Match, error) {
	return m.apply(ctx, refereeID, matchID, ActionPause, "")
}

// Resume moves a paused match back to live.
func (m *Manager) Resume(ctx context.Context, refereeID string, matchID int64) (domain.Match, error) {
	return m.apply(ctx, refereeID, matchID, ActionResume, "")
}

// Finalize freezes the folded score and closes the match.
func (m *Manager) Finalize(ctx context.Context, refereeID string, matchID int64, notes string) (domain.Match, error) {
	return m.apply(ctx, refereeID, matchID, ActionFinalize, notes)
}

func (m *Manager) apply(ctx context.Context, refereeID string, matchID int64, action Action, notes string) (domain.Match, error) {
	tr, ok := transitions[action]
	if !ok {
		return domain.Match{}, fmt.Errorf("unknown action %q", action)
	}

	now := m.clock.Now().UTC()
	var out domain.Match
	var from domain.MatchState

	err := m.store.InTx(ctx, func(q storage.Queries) error {
		cur, err := m.lockOwned(ctx, q, refereeID, matchID)
		if err != nil {
			return err
		}
		if !slices.Contains(tr.from, cur.State) {
			return fmt.Errorf("%w: cannot %s a %s match", domain.ErrInvalidState, action, cur.State)
		}
		from = cur.State

		next := cur
		if action == ActionFinalize {
			if next, _, err = ledger.Refold(ctx, q, next, now); err != nil {
				return err
			}
		}
		next.State = tr.to
		next.UpdatedAt = now
		switch action {
		case ActionStart:
			next.StartedAt = &now
			next.PausedAt = nil
		case ActionPause:
			next.PausedAt = &now
		case ActionResume:
			next.PausedAt = nil
		case ActionFinalize:
			next.FinishedAt = &now
			next.PausedAt = nil
			next.RefereeNotes = notes
		}
		if err := q.UpdateMatch(ctx, next); err != nil {
			return fmt.Errorf("update match: %w", err)
		}
		out = next
		return nil
	})
	if err != nil {
		return domain.Match{}, classify(err)
	}

	m.logger.Info("Match transitioned",
		"match_id", out.ID, "from", from, "to", out.State, "score", out.Score().String())
	m.pub.Publish(context.WithoutCancel(ctx), domain.MatchTransitioned(out, from, now))
	return out, nil
}

// RecordEvent appends a ledger entry to a live or paused match and returns
// the stored event together with the refreshed match.
func (m *Manager) RecordEvent(ctx context.Context, refereeID string, matchID int64, in ledger.EventInput) (domain.MatchEvent, domain.Match, error) {
	now := m.clock.Now().UTC()
	var ev domain.MatchEvent
	var out domain.Match

	err := m.store.InTx(ctx, func(q storage.Queries) error {
		cur, err := m.lockOwned(ctx, q, refereeID, matchID)
		if err != nil {
			return err
		}
		ev, out, err = m.ledger.Append(ctx, q, cur, in, refereeID, now)
		return err
	})
	if err != nil {
		return domain.MatchEvent{}, domain.Match{}, classify(err)
	}

	m.logger.Debug("Match event recorded",
		"match_id", out.ID, "type", ev.Type, "team_id", ev.TeamID, "score", out.Score().String())
	m.pub.Publish(context.WithoutCancel(ctx), domain.EventRecorded(out, ev, now))
	return ev, out, nil
}

// lockOwned locks the match and checks ownership before any state check, so
// a stranger gets Unauthorized whatever state the match is in.
func (m *Manager) lockOwned(ctx context.Context, q storage.Queries, refereeID string, matchID int64) (domain.Match, error) {
	cur, err := q.LockMatch(ctx, matchID)
	if err != nil {
		return domain.Match{}, err
	}
	if !cur.AssignedTo(refereeID) {
		return domain.Match{}, fmt.Errorf("%w: match %d is not assigned to %s", domain.ErrUnauthorized, matchID, refereeID)
	}
	return cur, nil
}

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

// ListAssigned returns the referee's matches ordered by kickoff.
func (m *Manager) ListAssigned(ctx context.Context, refereeID string, f domain.MatchFilter) ([]domain.Match, error) {
	out, err := m.store.ListRefereeMatches(ctx, refereeID, f)
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// ListEvents returns a match's ledger to its referee.
func (m *Manager) ListEvents(ctx context.Context, refereeID string, matchID int64) ([]domain.MatchEvent, error) {
	cur, err := m.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, classify(err)
	}
	if !cur.AssignedTo(refereeID) {
		return nil, fmt.Errorf("%w: match %d is not assigned to %s", domain.ErrUnauthorized, matchID, refereeID)
	}
	evs, err := m.store.ListEvents(ctx, matchID)
	if err != nil {
		return nil, classify(err)
	}
	return evs, nil
}

// Scoreboard is the public view of a match.
type Scoreboard struct {
	Match  domain.Match        `json:"partido"`
	Events []domain.MatchEvent `json:"eventos"`
}

// Scoreboard returns the match and its ledger without an ownership check.
func (m *Manager) Scoreboard(ctx context.Context, matchID int64) (Scoreboard, error) {
	cur, err := m.store.GetMatch(ctx, matchID)
	if err != nil {
		return Scoreboard{}, classify(err)
	}
	evs, err := m.store.ListEvents(ctx, matchID)
	if err != nil {
		return Scoreboard{}, classify(err)
	}
	return Scoreboard{Match: cur, Events: evs}, nil
}

// --------------------------------------------------------------------------
// Reconciliation
// --------------------------------------------------------------------------

// Reconciliation reports a score check against the ledger.
type Reconciliation struct {
	MatchID  int64
	Cached   domain.Score
	Folded   domain.Score
	Repaired bool
}

// Drifted reports whether the cached score disagreed with the fold.
func (r Reconciliation) Drifted() bool { return r.Cached != r.Folded }

// Reconcile refolds a match's ledger under the match lock. With repair set a
// drifted score is rewritten in the same transaction.
func (m *Manager) Reconcile(ctx context.Context, matchID int64, repair bool) (Reconciliation, error) {
	now := m.clock.Now().UTC()
	var rec Reconciliation
	errDryRun := errors.New("dry run")

	err := m.store.InTx(ctx, func(q storage.Queries) error {
		cur, err := q.LockMatch(ctx, matchID)
		if err != nil {
			return err
		}
		rec = Reconciliation{MatchID: cur.ID, Cached: cur.Score()}
		next, changed, err := ledger.Refold(ctx, q, cur, now)
		if err != nil {
			return err
		}
		rec.Folded = next.Score()
		if changed && !repair {
			return errDryRun
		}
		rec.Repaired = changed
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return Reconciliation{}, classify(err)
	}
	return rec, nil
}

// ReconcileActive checks every live or paused match. Per-match failures are
// logged and skipped.
func (m *Manager) ReconcileActive(ctx context.Context, repair bool) ([]Reconciliation, error) {
	active, err := m.store.ListMatchesInState(ctx, domain.MatchLive, domain.MatchPaused)
	if err != nil {
		return nil, classify(err)
	}
	var drifted []Reconciliation
	for _, cur := range active {
		rec, err := m.Reconcile(ctx, cur.ID, repair)
		if err != nil {
			m.logger.Warn("Score audit failed", "match_id", cur.ID, "error", err)
			continue
		}
		if rec.Drifted() {
			m.logger.Warn("Score drift detected",
				"match_id", rec.MatchID, "cached", rec.Cached.String(), "folded", rec.Folded.String(), "repaired", rec.Repaired)
			drifted = append(drifted, rec)
		}
	}
	return drifted, nil
}

// classify keeps domain errors as they are and marks everything else as a
// transient store failure.
func classify(err error) error {
	for _, known := range []error{
		domain.ErrInvalidState,
		domain.ErrUnauthorized,
		domain.ErrInvalidEvent,
		domain.ErrNotFound,
		domain.ErrTransientStore,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrTransientStore, err)
}
