package domain

import (
	"testing"
	"time"
)

func TestTournamentPhasePredicates(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour
	yesterday := now.Add(-day)

	tests := []struct {
		name        string
		t           Tournament
		hasFixtures bool
		close       bool
		start       bool
		finish      bool
		awaiting    bool
	}{
		{
			name:  "registration window elapsed before start",
			t:     Tournament{State: TournamentOpen, RegistrationCloseAt: &yesterday, StartsAt: now.Add(day), EndsAt: now.Add(3 * day)},
			close: true,
		},
		{
			name: "no registration close date never closes",
			t:    Tournament{State: TournamentOpen, StartsAt: now.Add(day), EndsAt: now.Add(3 * day)},
		},
		{
			name:     "start window without fixtures",
			t:        Tournament{State: TournamentClosed, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(day)},
			awaiting: true,
		},
		{
			name:        "start window with fixtures",
			t:           Tournament{State: TournamentClosed, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(day)},
			hasFixtures: true,
			start:       true,
		},
		{
			name:        "open closes and starts when start window reached",
			t:           Tournament{State: TournamentOpen, RegistrationCloseAt: &yesterday, StartsAt: now, EndsAt: now.Add(day)},
			hasFixtures: true,
			close:       true,
			start:       true,
		},
		{
			name:     "close date equal to start date still closes",
			t:        Tournament{State: TournamentOpen, RegistrationCloseAt: &yesterday, StartsAt: yesterday, EndsAt: now.Add(day)},
			close:    true,
			awaiting: true,
		},
		{
			name: "open past end never closes",
			t:    Tournament{State: TournamentOpen, RegistrationCloseAt: &yesterday, StartsAt: now.Add(-3 * day), EndsAt: now.Add(-time.Hour)},
		},
		{
			name:        "past end is not startable",
			t:           Tournament{State: TournamentClosed, StartsAt: now.Add(-3 * day), EndsAt: now.Add(-day)},
			hasFixtures: true,
		},
		{
			name:   "in progress past end finishes",
			t:      Tournament{State: TournamentInProgress, StartsAt: now.Add(-3 * day), EndsAt: now.Add(-time.Second)},
			finish: true,
		},
		{
			name: "in progress at end boundary keeps running",
			t:    Tournament{State: TournamentInProgress, StartsAt: now.Add(-3 * day), EndsAt: now},
		},
		{
			name:        "finished is terminal",
			t:           Tournament{State: TournamentFinished, RegistrationCloseAt: &yesterday, StartsAt: now.Add(-3 * day), EndsAt: now.Add(-day)},
			hasFixtures: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.t.CanCloseRegistration(now); got != tt.close {
				t.Fatalf("CanCloseRegistration = %v, want %v", got, tt.close)
			}
			if got := tt.t.CanStart(now, tt.hasFixtures); got != tt.start {
				t.Fatalf("CanStart = %v, want %v", got, tt.start)
			}
			if got := tt.t.CanFinish(now); got != tt.finish {
				t.Fatalf("CanFinish = %v, want %v", got, tt.finish)
			}
			if got := tt.t.AwaitingFixtures(now, tt.hasFixtures); got != tt.awaiting {
				t.Fatalf("AwaitingFixtures = %v, want %v", got, tt.awaiting)
			}
		})
	}
}

func TestMatchFilter(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	from := base.Add(-time.Hour)
	to := base.Add(time.Hour)
	m := Match{State: MatchLive, ScheduledAt: base}

	if !(MatchFilter{}).Match(m) {
		t.Fatal("empty filter should match")
	}
	if !(MatchFilter{State: MatchLive, From: &from, To: &to}).Match(m) {
		t.Fatal("filter inside window should match")
	}
	if (MatchFilter{State: MatchPaused}).Match(m) {
		t.Fatal("state mismatch should not match")
	}
	if (MatchFilter{From: &to}).Match(m) {
		t.Fatal("match before window should not match")
	}
}

func TestMatchAssignedTo(t *testing.T) {
	t.Parallel()

	ref := "ref-1"
	m := Match{RefereeID: &ref}
	if !m.AssignedTo("ref-1") {
		t.Fatal("assigned referee rejected")
	}
	if m.AssignedTo("ref-2") || m.AssignedTo("") {
		t.Fatal("other caller accepted")
	}
	if (Match{}).AssignedTo("ref-1") {
		t.Fatal("unassigned match accepted a referee")
	}
}
