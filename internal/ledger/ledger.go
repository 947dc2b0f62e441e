// Package ledger owns the append-only event log of a match and the fold that
// derives its score.
//
// The running score is never mutated directly. Every append re-reads the full
// log inside the caller's transaction, folds it, and writes the result back
// onto the match row, so the cached score always equals the fold.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/albapepper/matchday/internal/domain"
	"github.com/albapepper/matchday/internal/storage"
)

// EventInput is what a referee submits for one ledger entry.
type EventInput struct {
	Type     string
	TeamID   int64
	PlayerID *int64
	Minute   *int
	Period   *int
}

// Ledger validates and appends events against a scoring table.
type Ledger struct {
	rules *Rules
}

// New returns a ledger using rules, or the built-in table when rules is nil.
func New(rules *Rules) *Ledger {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Ledger{rules: rules}
}

// Rules exposes the scoring table in use.
func (l *Ledger) Rules() *Rules { return l.rules }

// Fold sums point values per team in ledger order. Events for teams outside
// the match contribute nothing.
func Fold(m domain.Match, events []domain.MatchEvent) domain.Score {
	var s domain.Score
	for _, ev := range events {
		switch ev.TeamID {
		case m.HomeTeamID:
			s.Home += ev.PointValue
		case m.AwayTeamID:
			s.Away += ev.PointValue
		}
	}
	return s
}

// Validate checks an input against the match it targets and resolves its
// point value.
func (l *Ledger) Validate(m domain.Match, in EventInput) (domain.MatchEvent, error) {
	typ := strings.ToLower(strings.TrimSpace(in.Type))
	if typ == "" {
		return domain.MatchEvent{}, fmt.Errorf("%w: event type is required", domain.ErrInvalidEvent)
	}
	if in.TeamID == 0 {
		return domain.MatchEvent{}, fmt.Errorf("%w: team is required", domain.ErrInvalidEvent)
	}
	if !m.HasTeam(in.TeamID) {
		return domain.MatchEvent{}, fmt.Errorf("%w: team %d does not play match %d", domain.ErrInvalidEvent, in.TeamID, m.ID)
	}
	points, ok := l.rules.PointValue(m.Sport, typ)
	if !ok {
		return domain.MatchEvent{}, fmt.Errorf("%w: unknown event type %q", domain.ErrInvalidEvent, in.Type)
	}
	if in.Minute != nil && *in.Minute < 0 {
		return domain.MatchEvent{}, fmt.Errorf("%w: minute must not be negative", domain.ErrInvalidEvent)
	}
	if in.Period != nil && *in.Period < 1 {
		return domain.MatchEvent{}, fmt.Errorf("%w: period starts at 1", domain.ErrInvalidEvent)
	}
	return domain.MatchEvent{
		MatchID:    m.ID,
		Type:       typ,
		TeamID:     in.TeamID,
		PlayerID:   in.PlayerID,
		Minute:     in.Minute,
		Period:     in.Period,
		PointValue: points,
	}, nil
}

// Append records one event and refreshes the match score. It must run inside
// the transaction that holds the match lock; m is the locked row.
func (l *Ledger) Append(ctx context.Context, q storage.Queries, m domain.Match, in EventInput, recordedBy string, now time.Time) (domain.MatchEvent, domain.Match, error) {
	if !m.State.Recording() {
		return domain.MatchEvent{}, m, fmt.Errorf("%w: cannot record events while match is %s", domain.ErrInvalidState, m.State)
	}
	ev, err := l.Validate(m, in)
	if err != nil {
		return domain.MatchEvent{}, m, err
	}
	ev.RecordedBy = recordedBy
	ev.CreatedAt = now

	ev, err = q.InsertEvent(ctx, ev)
	if err != nil {
		return domain.MatchEvent{}, m, fmt.Errorf("insert event: %w", err)
	}
	m, _, err = Refold(ctx, q, m, now)
	if err != nil {
		return domain.MatchEvent{}, m, err
	}
	return ev, m, nil
}

// Refold recomputes the score from the full ledger and writes it when it
// differs from the cached one. The bool reports whether a write happened.
func Refold(ctx context.Context, q storage.Queries, m domain.Match, now time.Time) (domain.Match, bool, error) {
	events, err := q.ListEvents(ctx, m.ID)
	if err != nil {
		return m, false, fmt.Errorf("list events: %w", err)
	}
	score := Fold(m, events)
	if score == m.Score() {
		return m, false, nil
	}
	m.ScoreHome, m.ScoreAway = score.Home, score.Away
	m.UpdatedAt = now
	if err := q.UpdateMatch(ctx, m); err != nil {
		return m, false, fmt.Errorf("update score: %w", err)
	}
	return m, true, nil
}
