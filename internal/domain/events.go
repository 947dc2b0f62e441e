package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names a lifecycle event that other components react to.
type EventKind string

const (
	KindRegistrationClosed EventKind = "registration_closed"
	KindTournamentStarted  EventKind = "tournament_started"
	KindTournamentFinished EventKind = "tournament_finished"
	KindMatchTransitioned  EventKind = "match_transitioned"
	KindEventRecorded      EventKind = "event_recorded"
)

// Event is a lifecycle event published after its transaction commits. The
// ID identifies one event instance; notification dedup and JetStream
// message dedup both key on it.
type Event struct {
	ID         uuid.UUID   `json:"id"`
	Kind       EventKind   `json:"kind"`
	OccurredAt time.Time   `json:"occurred_at"`
	Tournament *Tournament `json:"tournament,omitempty"`
	Match      *Match      `json:"match,omitempty"`
	From       MatchState  `json:"from,omitempty"`
	To         MatchState  `json:"to,omitempty"`
	Recorded   *MatchEvent `json:"recorded,omitempty"`
	Score      *Score      `json:"score,omitempty"`
}

// SubjectID is the tournament or match the event is about.
func (e Event) SubjectID() int64 {
	switch {
	case e.Match != nil:
		return e.Match.ID
	case e.Tournament != nil:
		return e.Tournament.ID
	}
	return 0
}

// TournamentTransitioned builds the event for a scheduler phase.
func TournamentTransitioned(kind EventKind, t Tournament, at time.Time) Event {
	return Event{ID: uuid.New(), Kind: kind, OccurredAt: at, Tournament: &t}
}

// MatchTransitioned builds the event for a lifecycle transition.
func MatchTransitioned(m Match, from MatchState, at time.Time) Event {
	return Event{ID: uuid.New(), Kind: KindMatchTransitioned, OccurredAt: at, Match: &m, From: from, To: m.State}
}

// EventRecorded builds the event for a ledger append.
func EventRecorded(m Match, ev MatchEvent, at time.Time) Event {
	score := m.Score()
	return Event{ID: uuid.New(), Kind: KindEventRecorded, OccurredAt: at, Match: &m, Recorded: &ev, Score: &score}
}
