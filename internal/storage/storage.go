// Package storage defines the persistence contract used by the lifecycle
// components. Drivers live in subpackages: postgres (production), sqlite
// (single node) and memory (tests and local runs).
//
// Every mutation the lifecycle performs goes through Store.InTx, which hands
// the callback a transaction-scoped Queries. The transaction commits when the
// callback returns nil and rolls back otherwise, including on panic.
package storage

import (
	"context"
	"time"

	"github.com/albapepper/matchday/internal/domain"
)

// Phase identifies one of the scheduler's conditional bulk updates.
type Phase string

const (
	PhaseCloseRegistration Phase = "close_registration"
	PhaseStart             Phase = "start"
	PhaseFinish            Phase = "finish"
)

// Phases lists the scheduler phases in their fixed execution order.
var Phases = []Phase{PhaseCloseRegistration, PhaseStart, PhaseFinish}

// Target is the state a phase moves tournaments into.
func (p Phase) Target() domain.TournamentState {
	switch p {
	case PhaseCloseRegistration:
		return domain.TournamentClosed
	case PhaseStart:
		return domain.TournamentInProgress
	case PhaseFinish:
		return domain.TournamentFinished
	}
	return ""
}

// Queries is the set of statements available both on the store and inside a
// transaction.
type Queries interface {
	// Matches

	GetMatch(ctx context.Context, id int64) (domain.Match, error)
	// LockMatch reads a match and holds a write lock on it until the
	// enclosing transaction ends.
	LockMatch(ctx context.Context, id int64) (domain.Match, error)
	ListRefereeMatches(ctx context.Context, refereeID string, f domain.MatchFilter) ([]domain.Match, error)
	ListMatchesInState(ctx context.Context, states ...domain.MatchState) ([]domain.Match, error)
	UpdateMatch(ctx context.Context, m domain.Match) error

	// Ledger

	InsertEvent(ctx context.Context, ev domain.MatchEvent) (domain.MatchEvent, error)
	ListEvents(ctx context.Context, matchID int64) ([]domain.MatchEvent, error)

	// Tournaments

	GetTournament(ctx context.Context, id int64) (domain.Tournament, error)
	// TransitionTournaments runs one phase as a single conditional update and
	// returns the rows it moved. Rows already past the phase are untouched.
	TransitionTournaments(ctx context.Context, phase Phase, now time.Time) ([]domain.Tournament, error)
	ListAwaitingFixtures(ctx context.Context, now time.Time) ([]domain.Tournament, error)

	// Recipients

	AdminUIDs(ctx context.Context) ([]string, error)
	CaptainUIDs(ctx context.Context, tournamentID int64, f domain.CaptainFilter) ([]string, error)
	TeamCaptainUIDs(ctx context.Context, teamIDs ...int64) ([]string, error)

	// Notification outbox

	// InsertNotifications writes the whole batch in one statement. Rows that
	// repeat (event_id, recipient_uid) are skipped; the count excludes them.
	InsertNotifications(ctx context.Context, batch []domain.Notification) (int, error)
	ClaimDueNotifications(ctx context.Context, now time.Time, limit int) ([]domain.Notification, error)
	MarkNotificationSent(ctx context.Context, id int64, now time.Time) error
	MarkNotificationFailed(ctx context.Context, id int64, reason string, now time.Time) error
	PurgeNotifications(ctx context.Context, olderThan time.Time) (int64, error)
}

// Store is a Queries bound to the whole database plus transaction control.
type Store interface {
	Queries
	InTx(ctx context.Context, fn func(q Queries) error) error
	Ping(ctx context.Context) error
	Close()
}
