package tournament

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/albapepper/matchday/internal/bus"
	"github.com/albapepper/matchday/internal/domain"
	"github.com/albapepper/matchday/internal/notifications"
	"github.com/albapepper/matchday/internal/storage"
	"github.com/albapepper/matchday/internal/storage/memory"
)

var now = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

func logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	store   *memory.Store
	events  *bus.Recorder
	sweeper *Sweeper
}

func newHarness() harness {
	store := memory.New()
	store.AddAdmin("admin")
	rec := bus.NewRecorder(64)
	d := notifications.NewDispatcher(store, notifications.NewRenderer("es", "https://club.example"), time.UTC, clockwork.NewFakeClockAt(now), logger())
	return harness{store: store, events: rec, sweeper: NewSweeper(store, d, rec, 2, logger())}
}

func (h harness) tick(t *testing.T, at time.Time) SweepResult {
	t.Helper()
	res := h.sweeper.Tick(context.Background(), at)
	h.sweeper.Wait()
	return res
}

func (h harness) tournament(t *testing.T, id int64) domain.Tournament {
	t.Helper()
	tt, err := h.store.GetTournament(context.Background(), id)
	if err != nil {
		t.Fatalf("GetTournament(%d): %v", id, err)
	}
	return tt
}

func recipientsOf(rows []domain.Notification, kind domain.EventKind) []string {
	var out []string
	for _, r := range rows {
		if r.Kind == kind {
			out = append(out, r.RecipientUID)
		}
	}
	sort.Strings(out)
	return out
}

func TestSweepClosesRegistrationOnce(t *testing.T) {
	t.Parallel()

	h := newHarness()
	closeAt := now.Add(-day)
	h.store.PutTournament(domain.Tournament{ID: 1, Name: "Copa Otoño", State: domain.TournamentOpen, RegistrationCloseAt: &closeAt, StartsAt: now.Add(day), EndsAt: now.Add(10 * day)})

	res := h.tick(t, now)
	if got := res.Moved(storage.PhaseCloseRegistration); !reflect.DeepEqual(got, []int64{1}) {
		t.Fatalf("closed = %v, want [1]", got)
	}
	if st := h.tournament(t, 1).State; st != domain.TournamentClosed {
		t.Fatalf("state = %s, want closed", st)
	}
	if got := recipientsOf(h.store.Notifications(), domain.KindRegistrationClosed); !reflect.DeepEqual(got, []string{"admin"}) {
		t.Fatalf("notified %v, want [admin]", got)
	}

	again := h.tick(t, now.Add(time.Minute))
	for _, p := range again.Phases {
		if len(p.Moved) != 0 {
			t.Fatalf("second sweep moved %v in %s", p.Moved, p.Phase)
		}
	}
	if n := len(h.store.Notifications()); n != 1 {
		t.Fatalf("outbox has %d rows after second sweep, want 1", n)
	}
}

func TestSweepStartWaitsForFixtures(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.store.PutTournament(domain.Tournament{ID: 2, Name: "Liga Invierno", State: domain.TournamentClosed, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(30 * day)})
	h.store.SetCaptain(21, "captain-x")
	h.store.SetCaptain(22, "captain-x")
	h.store.SetCaptain(23, "captain-y")
	h.store.AddInscription(domain.Inscription{TournamentID: 2, TeamID: 21, Approved: true, State: domain.InscriptionRegistered})
	h.store.AddInscription(domain.Inscription{TournamentID: 2, TeamID: 22, Approved: true, State: domain.InscriptionRegistered})
	h.store.AddInscription(domain.Inscription{TournamentID: 2, TeamID: 23, Approved: true, State: domain.InscriptionCancelled})

	res := h.tick(t, now)
	if got := res.Moved(storage.PhaseStart); len(got) != 0 {
		t.Fatalf("started %v without fixtures", got)
	}
	if !reflect.DeepEqual(res.AwaitingFixtures, []int64{2}) {
		t.Fatalf("awaiting fixtures = %v, want [2]", res.AwaitingFixtures)
	}
	if st := h.tournament(t, 2).State; st != domain.TournamentClosed {
		t.Fatalf("state = %s, want closed", st)
	}

	h.store.PutMatch(domain.Match{ID: 200, TournamentID: 2, HomeTeamID: 21, AwayTeamID: 22, State: domain.MatchScheduled})
	res = h.tick(t, now.Add(5*time.Minute))
	if got := res.Moved(storage.PhaseStart); !reflect.DeepEqual(got, []int64{2}) {
		t.Fatalf("started = %v, want [2]", got)
	}
	if st := h.tournament(t, 2).State; st != domain.TournamentInProgress {
		t.Fatalf("state = %s, want in_progress", st)
	}
	if got := recipientsOf(h.store.Notifications(), domain.KindTournamentStarted); !reflect.DeepEqual(got, []string{"captain-x"}) {
		t.Fatalf("notified %v, want captain-x once", got)
	}
}

func TestSweepFinishNotifiesEliminatedCaptains(t *testing.T) {
	t.Parallel()

	h := newHarness()
	h.store.PutTournament(domain.Tournament{ID: 3, Name: "Torneo Relámpago", State: domain.TournamentInProgress, StartsAt: now.Add(-10 * day), EndsAt: now.Add(-time.Minute)})
	h.store.SetCaptain(31, "winner")
	h.store.SetCaptain(32, "loser")
	h.store.SetCaptain(33, "never-approved")
	h.store.AddInscription(domain.Inscription{TournamentID: 3, TeamID: 31, Approved: true, State: domain.InscriptionRegistered})
	h.store.AddInscription(domain.Inscription{TournamentID: 3, TeamID: 32, Approved: true, State: domain.InscriptionEliminated})
	h.store.AddInscription(domain.Inscription{TournamentID: 3, TeamID: 33, Approved: false, State: domain.InscriptionPending})

	res := h.tick(t, now)
	if got := res.Moved(storage.PhaseFinish); !reflect.DeepEqual(got, []int64{3}) {
		t.Fatalf("finished = %v, want [3]", got)
	}
	if got := recipientsOf(h.store.Notifications(), domain.KindTournamentFinished); !reflect.DeepEqual(got, []string{"loser", "winner"}) {
		t.Fatalf("notified %v, want [loser winner]", got)
	}

	published := h.events.Drain()
	if len(published) != 1 || published[0].Kind != domain.KindTournamentFinished {
		t.Fatalf("published %+v, want one tournament_finished", published)
	}
}

func TestSweepCatchesUpInOneTick(t *testing.T) {
	t.Parallel()

	h := newHarness()
	closeAt := now.Add(-2 * day)
	h.store.PutTournament(domain.Tournament{ID: 4, State: domain.TournamentOpen, RegistrationCloseAt: &closeAt, StartsAt: now.Add(-day), EndsAt: now.Add(day)})
	h.store.PutTournament(domain.Tournament{ID: 5, State: domain.TournamentOpen, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(day)})
	h.store.PutMatch(domain.Match{ID: 40, TournamentID: 4, State: domain.MatchScheduled})
	h.store.PutMatch(domain.Match{ID: 50, TournamentID: 5, State: domain.MatchScheduled})

	res := h.tick(t, now)
	if got := res.Moved(storage.PhaseCloseRegistration); !reflect.DeepEqual(got, []int64{4}) {
		t.Fatalf("closed = %v, want [4]", got)
	}
	if got := res.Moved(storage.PhaseStart); !reflect.DeepEqual(got, []int64{4, 5}) {
		t.Fatalf("started = %v, want [4 5]", got)
	}
	for _, id := range []int64{4, 5} {
		if st := h.tournament(t, id).State; st != domain.TournamentInProgress {
			t.Fatalf("tournament %d state = %s, want in_progress", id, st)
		}
	}
	if got := recipientsOf(h.store.Notifications(), domain.KindRegistrationClosed); !reflect.DeepEqual(got, []string{"admin"}) {
		t.Fatalf("registration closed recipients = %v, want [admin]", got)
	}
}

func TestSweepClosesWhenCloseDateEqualsStart(t *testing.T) {
	t.Parallel()

	h := newHarness()
	at := now.Add(-time.Minute)
	h.store.PutTournament(domain.Tournament{ID: 9, Name: "Copa Relámpago", State: domain.TournamentOpen, RegistrationCloseAt: &at, StartsAt: at, EndsAt: now.Add(day)})

	for i := 0; i < 3; i++ {
		h.tick(t, now.Add(time.Duration(i)*time.Minute))
	}
	if st := h.tournament(t, 9).State; st != domain.TournamentClosed {
		t.Fatalf("state = %s, want closed", st)
	}
	if got := recipientsOf(h.store.Notifications(), domain.KindRegistrationClosed); !reflect.DeepEqual(got, []string{"admin"}) {
		t.Fatalf("registration closed recipients = %v, want exactly one admin notice", got)
	}

	h.store.PutMatch(domain.Match{ID: 90, TournamentID: 9, State: domain.MatchScheduled})
	res := h.tick(t, now.Add(time.Hour))
	if got := res.Moved(storage.PhaseStart); !reflect.DeepEqual(got, []int64{9}) {
		t.Fatalf("started = %v, want [9] once fixtures exist", got)
	}
}

func TestSweepIsolatesPhaseFailures(t *testing.T) {
	t.Parallel()

	h := newHarness()
	closeAt := now.Add(-day)
	h.store.PutTournament(domain.Tournament{ID: 6, State: domain.TournamentOpen, RegistrationCloseAt: &closeAt, StartsAt: now.Add(day), EndsAt: now.Add(5 * day)})
	h.store.PutTournament(domain.Tournament{ID: 7, State: domain.TournamentClosed, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(5 * day)})
	h.store.PutTournament(domain.Tournament{ID: 8, State: domain.TournamentInProgress, StartsAt: now.Add(-5 * day), EndsAt: now.Add(-time.Hour)})
	h.store.PutMatch(domain.Match{ID: 70, TournamentID: 7, State: domain.MatchScheduled})
	h.store.FailPhase(storage.PhaseStart, errors.New("deadlock detected"))

	res := h.tick(t, now)
	errs := res.Errors()
	if len(errs) != 1 || !errors.Is(errs[0], domain.ErrTransientStore) {
		t.Fatalf("errors = %v, want one transient failure", errs)
	}
	if st := h.tournament(t, 6).State; st != domain.TournamentClosed {
		t.Fatalf("phase 1 not committed: state = %s", st)
	}
	if st := h.tournament(t, 7).State; st != domain.TournamentClosed {
		t.Fatalf("failed phase changed state to %s", st)
	}
	if st := h.tournament(t, 8).State; st != domain.TournamentFinished {
		t.Fatalf("phase 3 skipped: state = %s", st)
	}

	h.store.FailPhase(storage.PhaseStart, nil)
	res = h.tick(t, now.Add(time.Minute))
	if got := res.Moved(storage.PhaseStart); !reflect.DeepEqual(got, []int64{7}) {
		t.Fatalf("retry started %v, want [7]", got)
	}
}

type failingNotifier struct{ calls atomic.Int32 }

func (f *failingNotifier) Dispatch(context.Context, domain.Event) (int, error) {
	f.calls.Add(1)
	return 0, errors.New("smtp down")
}

func TestNotificationFailureKeepsTransition(t *testing.T) {
	t.Parallel()

	store := memory.New()
	store.PutTournament(domain.Tournament{ID: 9, State: domain.TournamentInProgress, StartsAt: now.Add(-2 * day), EndsAt: now.Add(-day)})
	n := &failingNotifier{}
	s := NewSweeper(store, n, nil, 1, logger())

	s.Tick(context.Background(), now)
	s.Wait()
	if n.calls.Load() != 1 {
		t.Fatalf("notifier called %d times, want 1", n.calls.Load())
	}
	got, _ := store.GetTournament(context.Background(), 9)
	if got.State != domain.TournamentFinished {
		t.Fatalf("state = %s, want finished", got.State)
	}
}

type countingScheduler struct{ ticks chan time.Time }

func (c countingScheduler) Tick(_ context.Context, at time.Time) SweepResult {
	c.ticks <- at
	return SweepResult{At: at}
}

func TestRunTickerSweepsAtStartAndEveryInterval(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := clockwork.NewFakeClockAt(now)
	s := countingScheduler{ticks: make(chan time.Time, 4)}
	done := make(chan struct{})
	go func() {
		RunTicker(ctx, s, clock, 5*time.Minute, logger())
		close(done)
	}()

	first := <-s.ticks
	if !first.Equal(now) {
		t.Fatalf("first tick at %v, want %v", first, now)
	}
	clock.Advance(5 * time.Minute)
	select {
	case second := <-s.ticks:
		if !second.Equal(now.Add(5 * time.Minute)) {
			t.Fatalf("second tick at %v, want %v", second, now.Add(5*time.Minute))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("ticker did not fire after advancing the clock")
	}
	cancel()
	<-done
}
