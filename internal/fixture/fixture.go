// Package fixture reports tournaments whose start window has opened but that
// still have no fixtures. Fixtures are generated outside this service; the
// tournament sweep cannot start such a tournament until they exist.
package fixture

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/albapepper/matchday/internal/domain"
)

// Lister is the store read the report needs.
type Lister interface {
	ListAwaitingFixtures(ctx context.Context, now time.Time) ([]domain.Tournament, error)
}

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Row is one tournament waiting for fixtures.
type Row struct {
	TournamentID int64
	Name         string
	Sport        string
	State        domain.TournamentState
	StartsAt     time.Time
	EndsAt       time.Time
	// Overdue is how long the start window has been open.
	Overdue time.Duration
}

// Summary returns a human-readable summary.
func (r Row) Summary() string {
	return fmt.Sprintf("tournament=%d sport=%s state=%s starts=%s overdue=%s",
		r.TournamentID, r.Sport, r.State, r.StartsAt.Format(time.RFC3339), r.Overdue.Round(time.Minute))
}

// Report is the outcome of a pending-fixtures scan.
type Report struct {
	At       time.Time
	Rows     []Row
	BySport  map[string]int
	Duration time.Duration
}

// Summary returns a human-readable summary.
func (r Report) Summary() string {
	sports := make([]string, 0, len(r.BySport))
	for s, n := range r.BySport {
		sports = append(sports, fmt.Sprintf("%s=%d", s, n))
	}
	sort.Strings(sports)
	return fmt.Sprintf("found=%d sports=[%s] dur=%s",
		len(r.Rows), strings.Join(sports, " "), r.Duration.Round(time.Millisecond))
}

// Pending lists tournaments awaiting fixtures at now, most overdue first. An
// empty sport matches every sport.
func Pending(ctx context.Context, store Lister, now time.Time, sport string) (Report, error) {
	start := time.Now()
	report := Report{At: now, BySport: map[string]int{}}

	ts, err := store.ListAwaitingFixtures(ctx, now)
	if err != nil {
		return report, fmt.Errorf("list awaiting fixtures: %w", err)
	}
	for _, t := range ts {
		if sport != "" && !strings.EqualFold(t.Sport, sport) {
			continue
		}
		report.Rows = append(report.Rows, Row{
			TournamentID: t.ID,
			Name:         t.Name,
			Sport:        t.Sport,
			State:        t.State,
			StartsAt:     t.StartsAt,
			EndsAt:       t.EndsAt,
			Overdue:      now.Sub(t.StartsAt),
		})
		report.BySport[t.Sport]++
	}
	sort.SliceStable(report.Rows, func(i, j int) bool {
		return report.Rows[i].StartsAt.Before(report.Rows[j].StartsAt)
	})
	report.Duration = time.Since(start)
	return report, nil
}
