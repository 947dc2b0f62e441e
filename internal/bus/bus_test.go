package bus

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/albapepper/matchday/internal/domain"
)

var at = time.Date(2026, 6, 14, 17, 0, 0, 0, time.UTC)

func TestFanoutPublishesInOrderAndSkipsNil(t *testing.T) {
	var order []string
	tag := func(name string) Publisher {
		return Func(func(context.Context, domain.Event) { order = append(order, name) })
	}
	rec := NewRecorder(4)
	f := Fanout{tag("cache"), nil, tag("hub"), rec, Discard}

	evt := domain.MatchTransitioned(domain.Match{ID: 1, State: domain.MatchLive}, domain.MatchScheduled, at)
	f.Publish(context.Background(), evt)

	if len(order) != 2 || order[0] != "cache" || order[1] != "hub" {
		t.Fatalf("order = %v, want [cache hub]", order)
	}
	got := rec.Drain()
	if len(got) != 1 || got[0].ID != evt.ID {
		t.Fatalf("recorded = %+v", got)
	}
	if again := rec.Drain(); len(again) != 0 {
		t.Fatalf("second drain returned %d events", len(again))
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	rec := NewRecorder(1)
	for i := 0; i < 3; i++ {
		rec.Publish(context.Background(), domain.TournamentTransitioned(domain.KindTournamentStarted, domain.Tournament{ID: int64(i)}, at))
	}
	if got := rec.Drain(); len(got) != 1 || got[0].Tournament.ID != 0 {
		t.Fatalf("recorded = %+v, want only the first event", got)
	}
}

func TestJetStreamSubjects(t *testing.T) {
	cfg := DefaultJetStreamConfig()
	cfg.SubjectPrefix = "liga"
	s := &JetStream{config: cfg}

	if got := s.EventSubject(domain.KindEventRecorded); got != "liga.events."+string(domain.KindEventRecorded) {
		t.Fatalf("subject = %q", got)
	}
	sc := s.streamConfig()
	if len(sc.Subjects) != 1 || sc.Subjects[0] != "liga.>" {
		t.Fatalf("stream subjects = %v", sc.Subjects)
	}
	if sc.Duplicates != cfg.DuplicateWindow || sc.Name != "MATCHDAY" {
		t.Fatalf("stream config = %+v", sc)
	}
	if s.Healthy() {
		t.Fatal("unconnected stream reports healthy")
	}
}

type gate struct {
	mu      sync.Mutex
	release chan struct{}
	got     []int64
}

func (g *gate) Publish(_ context.Context, evt domain.Event) {
	<-g.release
	g.mu.Lock()
	defer g.mu.Unlock()
	g.got = append(g.got, evt.Match.ID)
}

func TestQueuePublishesWithoutBlockingAndKeepsOrder(t *testing.T) {
	g := &gate{release: make(chan struct{})}
	q := NewQueue(g, 8, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)

	returned := make(chan struct{})
	go func() {
		for id := int64(1); id <= 3; id++ {
			q.Publish(ctx, domain.MatchTransitioned(domain.Match{ID: id, State: domain.MatchLive}, domain.MatchScheduled, at))
		}
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	close(g.release)
	cancel()
	q.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.got) != 3 || g.got[0] != 1 || g.got[1] != 2 || g.got[2] != 3 {
		t.Fatalf("delivered = %v, want [1 2 3]", g.got)
	}
}

func TestQueuePublishesInlineWhenFull(t *testing.T) {
	rec := NewRecorder(4)
	q := NewQueue(rec, 1, slog.New(slog.NewTextHandler(io.Discard, nil)))

	evt := domain.MatchTransitioned(domain.Match{ID: 1, State: domain.MatchLive}, domain.MatchScheduled, at)
	q.Publish(context.Background(), evt)
	q.Publish(context.Background(), evt)

	if got := rec.Drain(); len(got) != 1 {
		t.Fatalf("inline deliveries = %d, want 1 once the buffer is full", len(got))
	}
}
