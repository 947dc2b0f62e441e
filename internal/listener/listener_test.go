package listener

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/albapepper/matchday/internal/domain"
	"github.com/albapepper/matchday/internal/storage"
	"github.com/albapepper/matchday/internal/storage/memory"
	"github.com/albapepper/matchday/internal/tournament"
)

var now = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestHandleStartsTournamentOnceFixturesExist(t *testing.T) {
	store := memory.New()
	store.PutTournament(domain.Tournament{ID: 5, Name: "Liga", Sport: "football", State: domain.TournamentClosed,
		StartsAt: now.Add(-time.Hour), EndsAt: now.Add(72 * time.Hour)})
	sweeper := tournament.NewSweeper(store, nil, nil, 1, quiet())
	clock := clockwork.NewFakeClockAt(now)
	ctx := context.Background()

	res, ok := Handle(ctx, `{"tournament_id":5}`, sweeper, clock, quiet())
	if !ok || len(res.AwaitingFixtures) != 1 {
		t.Fatalf("before fixtures: ok=%v result=%+v", ok, res)
	}

	store.PutMatch(domain.Match{ID: 1, TournamentID: 5, HomeTeamID: 1, AwayTeamID: 2, State: domain.MatchScheduled, ScheduledAt: now})
	res, ok = Handle(ctx, `{"tournament_id":5}`, sweeper, clock, quiet())
	sweeper.Wait()
	if !ok {
		t.Fatal("payload rejected")
	}
	if started := res.Moved(storage.PhaseStart); len(started) != 1 || started[0] != 5 {
		t.Fatalf("started = %v, want [5]", started)
	}
	got, _ := store.GetTournament(ctx, 5)
	if got.State != domain.TournamentInProgress {
		t.Fatalf("state = %s, want in_progress", got.State)
	}
}

type panicScheduler struct{}

func (panicScheduler) Tick(context.Context, time.Time) tournament.SweepResult {
	panic("sweep must not run for a malformed payload")
}

func TestHandleRejectsMalformedPayload(t *testing.T) {
	if _, ok := Handle(context.Background(), "not json", panicScheduler{}, clockwork.NewFakeClock(), quiet()); ok {
		t.Fatal("malformed payload accepted")
	}
}
