package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"

	"github.com/albapepper/matchday/internal/api/auth"
	"github.com/albapepper/matchday/internal/bus"
	"github.com/albapepper/matchday/internal/cache"
	"github.com/albapepper/matchday/internal/config"
	"github.com/albapepper/matchday/internal/domain"
	"github.com/albapepper/matchday/internal/ledger"
	"github.com/albapepper/matchday/internal/live"
	"github.com/albapepper/matchday/internal/match"
	"github.com/albapepper/matchday/internal/storage"
	"github.com/albapepper/matchday/internal/storage/memory"
	"github.com/albapepper/matchday/internal/tournament"
)

const referee = "ref-1"

var kickoff = time.Date(2026, 6, 14, 17, 0, 0, 0, time.UTC)

type stubScheduler struct{ result tournament.SweepResult }

func (s stubScheduler) Tick(context.Context, time.Time) tournament.SweepResult { return s.result }

type env struct {
	store  *memory.Store
	cache  *cache.Cache
	router chi.Router
}

func newEnv(t *testing.T, sched tournament.Scheduler) env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewFakeClockAt(kickoff)
	store := memory.New()
	ref := referee
	store.PutMatch(domain.Match{
		ID: 1, TournamentID: 3, Sport: "football",
		HomeTeamID: 10, AwayTeamID: 20,
		RefereeID: &ref, State: domain.MatchScheduled, ScheduledAt: kickoff,
	})
	store.PutMatch(domain.Match{
		ID: 2, TournamentID: 3, Sport: "football",
		HomeTeamID: 30, AwayTeamID: 40,
		RefereeID: &ref, State: domain.MatchFinished, ScheduledAt: kickoff.Add(-48 * time.Hour),
	})

	appCache := cache.New(true, clock)
	manager := match.NewManager(store, ledger.New(nil), bus.Fanout{appCache}, clock, logger)
	if sched == nil {
		sched = stubScheduler{}
	}
	h := New(Deps{
		Store:     store,
		Matches:   manager,
		Scheduler: sched,
		Cache:     appCache,
		Hub:       live.NewHub(nil, logger),
		Config:    &config.Config{StoreDriver: config.DriverMemory, CacheTTL: 30 * time.Second},
		Clock:     clock,
		Logger:    logger,
	})

	r := chi.NewRouter()
	r.Get("/health/db", h.HealthCheckDB)
	r.Get("/partidos/{id}/marcador", h.GetScoreboard)
	r.Route("/arbitro/partidos", func(r chi.Router) {
		r.Get("/", h.ListMatches)
		r.Post("/{id}/iniciar", h.StartMatch)
		r.Post("/{id}/pausar", h.PauseMatch)
		r.Post("/{id}/reanudar", h.ResumeMatch)
		r.Post("/{id}/finalizar", h.FinalizeMatch)
		r.Post("/{id}/eventos", h.RecordEvent)
		r.Get("/{id}/eventos", h.ListEvents)
	})
	r.Post("/admin/sweep", h.RunSweep)
	return env{store: store, cache: appCache, router: r}
}

// do sends a request as uid. An empty uid sends it unauthenticated.
func (e env) do(t *testing.T, method, path, uid, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	if uid != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UID: uid, Role: auth.RoleReferee}))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error.Code
}

func TestRefereeFlow(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/arbitro/partidos/1/iniciar", referee, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("start: %d %s", rec.Code, rec.Body)
	}
	if m := decode[domain.Match](t, rec); m.State != domain.MatchLive || m.StartedAt == nil {
		t.Fatalf("start returned %+v", m)
	}

	rec = e.do(t, http.MethodPost, "/arbitro/partidos/1/eventos", referee, `{"tipo_evento":"goal","id_equipo":10,"minuto":5}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("record: %d %s", rec.Code, rec.Body)
	}
	got := decode[eventResponse](t, rec)
	if got.Event.Seq != 1 || got.Event.PointValue != 1 || got.Match.ScoreHome != 1 {
		t.Fatalf("record returned %+v", got)
	}

	rec = e.do(t, http.MethodPost, "/arbitro/partidos/1/pausar", referee, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("pause: %d %s", rec.Code, rec.Body)
	}
	rec = e.do(t, http.MethodPost, "/arbitro/partidos/1/eventos", referee, `{"tipo_evento":"goal","id_equipo":20}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("record while paused: %d %s", rec.Code, rec.Body)
	}
	rec = e.do(t, http.MethodPost, "/arbitro/partidos/1/reanudar", referee, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("resume: %d %s", rec.Code, rec.Body)
	}
	rec = e.do(t, http.MethodPost, "/arbitro/partidos/1/finalizar", referee, `{"notas":"sin incidencias"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("finalize: %d %s", rec.Code, rec.Body)
	}
	final := decode[domain.Match](t, rec)
	if final.State != domain.MatchFinished || final.RefereeNotes != "sin incidencias" || final.Score() != (domain.Score{Home: 1, Away: 1}) {
		t.Fatalf("finalize returned %+v", final)
	}

	rec = e.do(t, http.MethodGet, "/arbitro/partidos/1/eventos", referee, "")
	events := decode[[]domain.MatchEvent](t, rec)
	if len(events) != 2 || events[0].Seq != 1 || events[1].Seq != 2 {
		t.Fatalf("events = %+v", events)
	}

	rec = e.do(t, http.MethodPost, "/arbitro/partidos/1/eventos", referee, `{"tipo_evento":"goal","id_equipo":10}`)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "INVALID_STATE" {
		t.Fatalf("record after finalize: %d %s", rec.Code, rec.Body)
	}
}

func TestRefereeErrors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		uid    string
		body   string
		status int
		code   string
	}{
		{"unauthenticated", http.MethodPost, "/arbitro/partidos/1/iniciar", "", "", http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"other referee", http.MethodPost, "/arbitro/partidos/1/iniciar", "ref-2", "", http.StatusForbidden, "FORBIDDEN"},
		{"unknown match", http.MethodPost, "/arbitro/partidos/99/iniciar", referee, "", http.StatusNotFound, "NOT_FOUND"},
		{"bad id", http.MethodPost, "/arbitro/partidos/abc/iniciar", referee, "", http.StatusBadRequest, "INVALID_PARAM"},
		{"pause scheduled", http.MethodPost, "/arbitro/partidos/1/pausar", referee, "", http.StatusBadRequest, "INVALID_STATE"},
		{"finalize scheduled", http.MethodPost, "/arbitro/partidos/1/finalizar", referee, "", http.StatusBadRequest, "INVALID_STATE"},
		{"restart finished", http.MethodPost, "/arbitro/partidos/2/iniciar", referee, "", http.StatusBadRequest, "INVALID_STATE"},
		{"event body missing", http.MethodPost, "/arbitro/partidos/1/eventos", referee, "", http.StatusBadRequest, "INVALID_BODY"},
		{"event unknown field", http.MethodPost, "/arbitro/partidos/1/eventos", referee, `{"tipo":"goal"}`, http.StatusBadRequest, "INVALID_BODY"},
		{"events of other referee", http.MethodGet, "/arbitro/partidos/1/eventos", "ref-2", "", http.StatusForbidden, "FORBIDDEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, nil)
			rec := e.do(t, tt.method, tt.path, tt.uid, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.status, rec.Body)
			}
			if code := errorCode(t, rec); code != tt.code {
				t.Fatalf("code = %s, want %s", code, tt.code)
			}
		})
	}
}

func TestRecordEventValidation(t *testing.T) {
	e := newEnv(t, nil)
	if rec := e.do(t, http.MethodPost, "/arbitro/partidos/1/iniciar", referee, ""); rec.Code != http.StatusOK {
		t.Fatalf("start: %d", rec.Code)
	}

	for _, body := range []string{
		`{"tipo_evento":"touchdown","id_equipo":10}`,
		`{"tipo_evento":"goal","id_equipo":99}`,
		`{"tipo_evento":"goal","id_equipo":10,"minuto":-1}`,
	} {
		rec := e.do(t, http.MethodPost, "/arbitro/partidos/1/eventos", referee, body)
		if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "INVALID_EVENT" {
			t.Fatalf("%s: %d %s", body, rec.Code, rec.Body)
		}
	}
	events, _ := e.store.ListEvents(context.Background(), 1)
	if len(events) != 0 {
		t.Fatalf("rejected events were stored: %+v", events)
	}
}

func TestListMatchesFilters(t *testing.T) {
	e := newEnv(t, nil)

	tests := []struct {
		query string
		want  []int64
	}{
		{"", []int64{2, 1}},
		{"?estado=finished", []int64{2}},
		{"?fecha_desde=2026-06-14", []int64{1}},
		{"?fecha_hasta=2026-06-12", []int64{2}},
		{"?fecha_desde=2026-06-14T18:00:00Z", nil},
	}
	for _, tt := range tests {
		rec := e.do(t, http.MethodGet, "/arbitro/partidos/"+tt.query, referee, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%q: %d %s", tt.query, rec.Code, rec.Body)
		}
		var ids []int64
		for _, m := range decode[[]domain.Match](t, rec) {
			ids = append(ids, m.ID)
		}
		if len(ids) != len(tt.want) {
			t.Fatalf("%q: got %v, want %v", tt.query, ids, tt.want)
		}
		for i := range ids {
			if ids[i] != tt.want[i] {
				t.Fatalf("%q: got %v, want %v", tt.query, ids, tt.want)
			}
		}
	}

	for _, q := range []string{"?estado=bogus", "?fecha_desde=yesterday", "?fecha_desde=2026-06-15&fecha_hasta=2026-06-14"} {
		if rec := e.do(t, http.MethodGet, "/arbitro/partidos/"+q, referee, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("%q: status %d, want 400", q, rec.Code)
		}
	}
}

func TestScoreboardCachingAndEviction(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/partidos/1/marcador", "", "")
	if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("first read: %d cache=%s", rec.Code, rec.Header().Get("X-Cache"))
	}
	etag := rec.Header().Get("ETag")
	board := decode[match.Scoreboard](t, rec)
	if board.Match.ID != 1 || board.Events == nil {
		t.Fatalf("scoreboard = %+v", board)
	}

	rec = e.do(t, http.MethodGet, "/partidos/1/marcador", "", "")
	if rec.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("second read cache=%s, want HIT", rec.Header().Get("X-Cache"))
	}
	rec = e.do(t, http.MethodGet, "/partidos/1/marcador", "", "", "If-None-Match", etag)
	if rec.Code != http.StatusNotModified {
		t.Fatalf("revalidation status = %d, want 304", rec.Code)
	}

	e.do(t, http.MethodPost, "/arbitro/partidos/1/iniciar", referee, "")
	rec = e.do(t, http.MethodGet, "/partidos/1/marcador", "", "", "If-None-Match", etag)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("read after start: %d cache=%s", rec.Code, rec.Header().Get("X-Cache"))
	}
	if board := decode[match.Scoreboard](t, rec); board.Match.State != domain.MatchLive {
		t.Fatalf("stale scoreboard state %s", board.Match.State)
	}

	if rec := e.do(t, http.MethodGet, "/partidos/404/marcador", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown match status %d", rec.Code)
	}
}

func TestRunSweepReport(t *testing.T) {
	res := tournament.SweepResult{
		At: kickoff,
		Phases: []tournament.PhaseResult{
			{Phase: storage.PhaseCloseRegistration, Moved: []int64{4}},
			{Phase: storage.PhaseStart},
			{Phase: storage.PhaseFinish, Err: errors.New("store down")},
		},
		AwaitingFixtures: []int64{9},
	}
	e := newEnv(t, stubScheduler{result: res})

	rec := e.do(t, http.MethodPost, "/admin/sweep", "root", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("sweep: %d %s", rec.Code, rec.Body)
	}
	report := decode[sweepReport](t, rec)
	if len(report.Phases) != 3 || report.Phases[0].Moved[0] != 4 || report.Phases[1].Moved == nil {
		t.Fatalf("phases = %+v", report.Phases)
	}
	if report.Phases[2].Error != "store down" || report.AwaitingFixtures[0] != 9 {
		t.Fatalf("report = %+v", report)
	}
	if report.Summary != res.Summary() {
		t.Fatalf("summary = %q, want %q", report.Summary, res.Summary())
	}
}

func TestHealthCheckDB(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.do(t, http.MethodGet, "/health/db", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health: %d %s", rec.Code, rec.Body)
	}
}
