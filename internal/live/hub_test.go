package live

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/albapepper/matchday/internal/domain"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, 7, domain.Score{Home: 1, Away: 0})
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestHubSendsSnapshotThenEvents(t *testing.T) {
	t.Parallel()

	hub, srv := newTestHub(t)
	conn := dial(t, srv)

	snap := read(t, conn)
	if snap.Type != "snapshot" || snap.MatchID != 7 {
		t.Fatalf("first frame = %+v, want snapshot for match 7", snap)
	}
	raw, _ := json.Marshal(snap.Payload)
	var score domain.Score
	if err := json.Unmarshal(raw, &score); err != nil || score.Home != 1 {
		t.Fatalf("snapshot payload = %s", raw)
	}

	// Events on other matches and tournament events never reach the room.
	hub.Publish(context.Background(), domain.Event{Kind: domain.KindEventRecorded, Match: &domain.Match{ID: 8}})
	hub.Publish(context.Background(), domain.Event{Kind: domain.KindTournamentStarted, Tournament: &domain.Tournament{ID: 7}})
	hub.Publish(context.Background(), domain.MatchTransitioned(domain.Match{ID: 7, State: domain.MatchPaused}, domain.MatchLive, time.Now()))

	got := read(t, conn)
	if got.Type != string(domain.KindMatchTransitioned) || got.MatchID != 7 {
		t.Fatalf("event frame = %+v, want match_transitioned for match 7", got)
	}
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	t.Parallel()

	hub := NewHub([]string{"https://club.example"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	if hub.upgrader.CheckOrigin(req) {
		t.Fatal("foreign origin accepted")
	}
	req.Header.Set("Origin", "https://club.example")
	if !hub.upgrader.CheckOrigin(req) {
		t.Fatal("allowed origin rejected")
	}
}
