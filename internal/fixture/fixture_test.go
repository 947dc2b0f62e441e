package fixture

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/albapepper/matchday/internal/domain"
	"github.com/albapepper/matchday/internal/storage/memory"
)

var now = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func TestPendingListsTournamentsWithoutFixtures(t *testing.T) {
	store := memory.New()
	store.PutTournament(domain.Tournament{ID: 1, Name: "Liga", Sport: "football", State: domain.TournamentClosed,
		StartsAt: now.Add(-time.Hour), EndsAt: now.Add(48 * time.Hour)})
	store.PutTournament(domain.Tournament{ID: 2, Name: "Copa", Sport: "basketball", State: domain.TournamentOpen,
		StartsAt: now.Add(-3 * time.Hour), EndsAt: now.Add(48 * time.Hour)})
	store.PutTournament(domain.Tournament{ID: 3, Name: "Futuro", Sport: "football", State: domain.TournamentOpen,
		StartsAt: now.Add(time.Hour), EndsAt: now.Add(48 * time.Hour)})
	store.PutTournament(domain.Tournament{ID: 4, Name: "Con partidos", Sport: "football", State: domain.TournamentClosed,
		StartsAt: now.Add(-time.Hour), EndsAt: now.Add(48 * time.Hour)})
	store.PutMatch(domain.Match{ID: 40, TournamentID: 4, HomeTeamID: 1, AwayTeamID: 2, State: domain.MatchScheduled, ScheduledAt: now})

	report, err := Pending(context.Background(), store, now, "")
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(report.Rows) != 2 || report.Rows[0].TournamentID != 2 || report.Rows[1].TournamentID != 1 {
		t.Fatalf("rows = %+v, want tournaments 2 then 1", report.Rows)
	}
	if report.Rows[0].Overdue != 3*time.Hour {
		t.Fatalf("overdue = %s, want 3h", report.Rows[0].Overdue)
	}
	if !strings.HasPrefix(report.Summary(), "found=2 sports=[basketball=1 football=1]") {
		t.Fatalf("summary = %q", report.Summary())
	}

	football, _ := Pending(context.Background(), store, now, "Football")
	if len(football.Rows) != 1 || football.Rows[0].TournamentID != 1 {
		t.Fatalf("sport filter rows = %+v", football.Rows)
	}
}

type failingLister struct{}

func (failingLister) ListAwaitingFixtures(context.Context, time.Time) ([]domain.Tournament, error) {
	return nil, errors.New("connection refused")
}

func TestPendingWrapsStoreErrors(t *testing.T) {
	if _, err := Pending(context.Background(), failingLister{}, now, ""); err == nil {
		t.Fatal("expected error")
	}
}
