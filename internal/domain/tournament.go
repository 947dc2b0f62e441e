// Package domain holds the tournament and match model shared by the ledger,
// the lifecycle manager, the scheduler and the storage drivers.
//
// Tournaments advance open → closed → in_progress → finished, driven only by
// time. Matches advance scheduled → live ⇄ paused → finished, driven only by
// the assigned referee.
package domain

import "time"

// --------------------------------------------------------------------------
// Tournament
// --------------------------------------------------------------------------

type TournamentState string

const (
	TournamentOpen       TournamentState = "open"
	TournamentClosed     TournamentState = "closed"
	TournamentInProgress TournamentState = "in_progress"
	TournamentFinished   TournamentState = "finished"
)

type Tournament struct {
	ID                  int64           `json:"id"`
	Name                string          `json:"nombre"`
	Sport               string          `json:"deporte"`
	State               TournamentState `json:"estado"`
	RegistrationCloseAt *time.Time      `json:"cierre_inscripcion,omitempty"`
	StartsAt            time.Time       `json:"fecha_inicio"`
	EndsAt              time.Time       `json:"fecha_fin"`
	MaxTeams            int             `json:"max_equipos"`
	ConfirmedTeamCount  int             `json:"equipos_confirmados"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// CanCloseRegistration reports whether the close phase applies: open, with
// registration_close_at <= now <= ends_at. A close date at or after starts_at
// still closes, and the start phase picks the tournament up in the same tick.
func (t Tournament) CanCloseRegistration(now time.Time) bool {
	return t.State == TournamentOpen &&
		t.RegistrationCloseAt != nil &&
		!t.RegistrationCloseAt.After(now) &&
		!now.After(t.EndsAt)
}

// CanStart reports whether the start phase applies: open or closed, inside
// [starts_at, ends_at], and with at least one match generated.
func (t Tournament) CanStart(now time.Time, hasFixtures bool) bool {
	return (t.State == TournamentOpen || t.State == TournamentClosed) &&
		!t.StartsAt.After(now) &&
		!now.After(t.EndsAt) &&
		hasFixtures
}

// CanFinish reports whether the finish phase applies: in progress and past ends_at.
func (t Tournament) CanFinish(now time.Time) bool {
	return t.State == TournamentInProgress && t.EndsAt.Before(now)
}

// AwaitingFixtures reports a tournament that is time-eligible to start but is
// held back only by the missing fixture.
func (t Tournament) AwaitingFixtures(now time.Time, hasFixtures bool) bool {
	return !hasFixtures && t.CanStart(now, true)
}

// --------------------------------------------------------------------------
// Inscriptions
// --------------------------------------------------------------------------

type InscriptionState string

const (
	InscriptionPending    InscriptionState = "pending"
	InscriptionRegistered InscriptionState = "registered"
	InscriptionCancelled  InscriptionState = "cancelled"
	InscriptionEliminated InscriptionState = "eliminated"
)

// Inscription is a team's registration in a tournament. The lifecycle
// components only read it to resolve notification recipients.
type Inscription struct {
	ID           int64
	TournamentID int64
	TeamID       int64
	Approved     bool
	State        InscriptionState
}

// CaptainFilter narrows captain resolution over a tournament's inscriptions.
type CaptainFilter struct {
	// RegisteredOnly keeps only inscriptions in state registered; otherwise
	// every approved inscription counts, eliminated ones included.
	RegisteredOnly bool
}
