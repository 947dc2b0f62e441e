package domain

import (
	"fmt"
	"time"
)

type MatchState string

const (
	MatchScheduled MatchState = "scheduled"
	MatchLive      MatchState = "live"
	MatchPaused    MatchState = "paused"
	MatchFinished  MatchState = "finished"
	MatchCancelled MatchState = "cancelled"
	MatchSuspended MatchState = "suspended"
)

// ParseMatchState validates a state name coming from the outside.
func ParseMatchState(s string) (MatchState, error) {
	switch st := MatchState(s); st {
	case MatchScheduled, MatchLive, MatchPaused, MatchFinished, MatchCancelled, MatchSuspended:
		return st, nil
	}
	return "", fmt.Errorf("unknown match state %q", s)
}

// Recording reports whether events may be appended in this state.
func (s MatchState) Recording() bool {
	return s == MatchLive || s == MatchPaused
}

type Match struct {
	ID           int64      `json:"id"`
	TournamentID int64      `json:"id_torneo"`
	Sport        string     `json:"deporte"`
	HomeTeamID   int64      `json:"id_equipo_local"`
	AwayTeamID   int64      `json:"id_equipo_visitante"`
	RefereeID    *string    `json:"id_arbitro,omitempty"`
	State        MatchState `json:"estado"`
	ScoreHome    int        `json:"goles_local"`
	ScoreAway    int        `json:"goles_visitante"`
	ScheduledAt  time.Time  `json:"fecha_programada"`
	StartedAt    *time.Time `json:"hora_inicio,omitempty"`
	PausedAt     *time.Time `json:"hora_pausa,omitempty"`
	FinishedAt   *time.Time `json:"hora_fin,omitempty"`
	RefereeNotes string     `json:"notas_arbitro,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// AssignedTo reports whether uid is the referee of the match.
func (m Match) AssignedTo(uid string) bool {
	return m.RefereeID != nil && uid != "" && *m.RefereeID == uid
}

// HasTeam reports whether teamID is one of the two competing teams.
func (m Match) HasTeam(teamID int64) bool {
	return teamID == m.HomeTeamID || teamID == m.AwayTeamID
}

// Score returns the cached score as a Score value.
func (m Match) Score() Score {
	return Score{Home: m.ScoreHome, Away: m.ScoreAway}
}

// Score is the running score of a match.
type Score struct {
	Home int `json:"local"`
	Away int `json:"visitante"`
}

func (s Score) String() string { return fmt.Sprintf("%d-%d", s.Home, s.Away) }

// MatchFilter narrows a referee's match listing. Zero values are ignored.
type MatchFilter struct {
	State MatchState
	From  *time.Time
	To    *time.Time
}

// Match returns true when m satisfies the filter.
func (f MatchFilter) Match(m Match) bool {
	if f.State != "" && m.State != f.State {
		return false
	}
	if f.From != nil && m.ScheduledAt.Before(*f.From) {
		return false
	}
	if f.To != nil && m.ScheduledAt.After(*f.To) {
		return false
	}
	return true
}

// --------------------------------------------------------------------------
// Ledger events
// --------------------------------------------------------------------------

// MatchEvent is one immutable entry in a match's event ledger.
type MatchEvent struct {
	ID         int64     `json:"id"`
	MatchID    int64     `json:"id_partido"`
	Seq        int       `json:"secuencia"`
	Type       string    `json:"tipo_evento"`
	TeamID     int64     `json:"id_equipo"`
	PlayerID   *int64    `json:"id_jugador,omitempty"`
	Minute     *int      `json:"minuto,omitempty"`
	Period     *int      `json:"periodo,omitempty"`
	PointValue int       `json:"valor_puntos"`
	RecordedBy string    `json:"registrado_por"`
	CreatedAt  time.Time `json:"created_at"`
}
