package cache

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/albapepper/matchday/internal/domain"
)

func TestGetHonoursTTL(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	c := New(true, clock)
	etag := c.Set("k", []byte(`{"a":1}`), time.Minute)

	data, got, ok := c.Get("k")
	if !ok || string(data) != `{"a":1}` || got != etag {
		t.Fatalf("Get = %q %q %v", data, got, ok)
	}
	clock.Advance(2 * time.Minute)
	if _, _, ok := c.Get("k"); ok {
		t.Fatal("expired entry served")
	}
	c.evict()
	if n := c.Stats()["total_keys"]; n != 0 {
		t.Fatalf("total_keys after evict = %v", n)
	}
}

func TestDisabledCacheNeverHits(t *testing.T) {
	t.Parallel()

	c := New(false, clockwork.NewFakeClock())
	if etag := c.Set("k", []byte("x"), time.Minute); etag != ComputeETag([]byte("x")) {
		t.Fatalf("etag = %s", etag)
	}
	if _, _, ok := c.Get("k"); ok {
		t.Fatal("disabled cache hit")
	}
}

func TestPublishEvictsScoreboard(t *testing.T) {
	t.Parallel()

	c := New(true, clockwork.NewFakeClock())
	c.Set(ScoreboardKey(1), []byte("a"), time.Minute)
	c.Set(ScoreboardKey(2), []byte("b"), time.Minute)

	c.Publish(context.Background(), domain.Event{Kind: domain.KindTournamentStarted, Tournament: &domain.Tournament{ID: 1}})
	if _, _, ok := c.Get(ScoreboardKey(1)); !ok {
		t.Fatal("tournament event evicted a match scoreboard")
	}

	c.Publish(context.Background(), domain.Event{Kind: domain.KindEventRecorded, Match: &domain.Match{ID: 1}})
	if _, _, ok := c.Get(ScoreboardKey(1)); ok {
		t.Fatal("scoreboard 1 still cached after event")
	}
	if _, _, ok := c.Get(ScoreboardKey(2)); !ok {
		t.Fatal("scoreboard 2 evicted by an unrelated event")
	}
}

func TestCheckETagMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header, etag string
		want         bool
	}{
		{"", `W/"a"`, false},
		{"*", `W/"a"`, true},
		{`W/"a"`, `W/"a"`, true},
		{`W/"b", W/"a"`, `W/"a"`, true},
		{`W/"b"`, `W/"a"`, false},
	}
	for _, tt := range tests {
		if got := CheckETagMatch(tt.header, tt.etag); got != tt.want {
			t.Errorf("CheckETagMatch(%q, %q) = %v, want %v", tt.header, tt.etag, got, tt.want)
		}
	}
}
