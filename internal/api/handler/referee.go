package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/matchday/internal/api/auth"
	"github.com/albapepper/matchday/internal/api/respond"
	"github.com/albapepper/matchday/internal/domain"
	"github.com/albapepper/matchday/internal/ledger"
)

const dateOnly = "2006-01-02"

// finalizeRequest is the optional body of the finalize endpoint.
type finalizeRequest struct {
	Notes string `json:"notas"`
}

// eventRequest is the body of the record-event endpoint.
type eventRequest struct {
	Type     string `json:"tipo_evento"`
	TeamID   int64  `json:"id_equipo"`
	Minute   *int   `json:"minuto,omitempty"`
	Period   *int   `json:"periodo,omitempty"`
	PlayerID *int64 `json:"id_jugador,omitempty"`
}

// eventResponse pairs the appended event with the match's new score.
type eventResponse struct {
	Event domain.MatchEvent `json:"evento"`
	Match domain.Match      `json:"partido"`
}

// ListMatches returns the matches assigned to the calling referee.
// @Summary List assigned matches
// @Description Lists the caller's assigned matches, optionally filtered by state and scheduled date range.
// @Tags arbitro
// @Produce json
// @Security BearerAuth
// @Param estado query string false "Match state" Enums(scheduled, live, paused, finished, cancelled, suspended)
// @Param fecha_desde query string false "Earliest scheduled date (RFC3339 or YYYY-MM-DD)"
// @Param fecha_hasta query string false "Latest scheduled date (RFC3339 or YYYY-MM-DD, inclusive)"
// @Success 200 {array} domain.Match
// @Failure 400 {object} respond.ErrorResponse
// @Failure 401 {object} respond.ErrorResponse
// @Router /arbitro/partidos [get]
func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	filter, err := parseMatchFilter(r)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_PARAM", "Invalid match filter", err.Error())
		return
	}
	matches, err := h.matches.ListAssigned(r.Context(), id.UID, filter)
	if err != nil {
		respond.WriteDomainError(w, h.logger, err)
		return
	}
	if matches == nil {
		matches = []domain.Match{}
	}
	respond.WriteJSONObject(w, http.StatusOK, matches)
}

// StartMatch moves a scheduled match to live.
// @Summary Start a match
// @Tags arbitro
// @Produce json
// @Security BearerAuth
// @Param id path int true "Match ID"
// @Success 200 {object} domain.Match
// @Failure 400 {object} respond.ErrorResponse
// @Failure 403 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /arbitro/partidos/{id}/iniciar [post]
func (h *Handler) StartMatch(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.matches.Start)
}

// PauseMatch moves a live match to paused.
// @Summary Pause a match
// @Tags arbitro
// @Produce json
// @Security BearerAuth
// @Param id path int true "Match ID"
// @Success 200 {object} domain.Match
// @Failure 400 {object} respond.ErrorResponse
// @Failure 403 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /arbitro/partidos/{id}/pausar [post]
func (h *Handler) PauseMatch(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.matches.Pause)
}

// ResumeMatch moves a paused match back to live.
// @Summary Resume a match
// @Tags arbitro
// @Produce json
// @Security BearerAuth
// @Param id path int true "Match ID"
// @Success 200 {object} domain.Match
// @Failure 400 {object} respond.ErrorResponse
// @Failure 403 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /arbitro/partidos/{id}/reanudar [post]
func (h *Handler) ResumeMatch(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.matches.Resume)
}

// FinalizeMatch closes a live or paused match, storing optional referee notes.
// @Summary Finalize a match
// @Tags arbitro
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Match ID"
// @Param body body finalizeRequest false "Referee notes"
// @Success 200 {object} domain.Match
// @Failure 400 {object} respond.ErrorResponse
// @Failure 403 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /arbitro/partidos/{id}/finalizar [post]
func (h *Handler) FinalizeMatch(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := decodeBody(w, r, &req, true); err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body", err.Error())
		return
	}
	h.lifecycle(w, r, func(ctx context.Context, ref string, id int64) (domain.Match, error) {
		return h.matches.Finalize(ctx, ref, id, req.Notes)
	})
}

// RecordEvent appends a scoring event to a live or paused match.
// @Summary Record a match event
// @Description Appends an event to the match ledger and returns it with the updated score.
// @Tags arbitro
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Match ID"
// @Param body body eventRequest true "Event"
// @Success 201 {object} eventResponse
// @Failure 400 {object} respond.ErrorResponse
// @Failure 403 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /arbitro/partidos/{id}/eventos [post]
func (h *Handler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	matchID, ok := matchIDParam(w, r)
	if !ok {
		return
	}
	var req eventRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		respond.WriteErrorDetail(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body", err.Error())
		return
	}

	evt, m, err := h.matches.RecordEvent(r.Context(), id.UID, matchID, ledger.EventInput{
		Type:     req.Type,
		TeamID:   req.TeamID,
		PlayerID: req.PlayerID,
		Minute:   req.Minute,
		Period:   req.Period,
	})
	if err != nil {
		respond.WriteDomainError(w, h.logger, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusCreated, eventResponse{Event: evt, Match: m})
}

// ListEvents returns a match's ledger in sequence order.
// @Summary List match events
// @Tags arbitro
// @Produce json
// @Security BearerAuth
// @Param id path int true "Match ID"
// @Success 200 {array} domain.MatchEvent
// @Failure 403 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /arbitro/partidos/{id}/eventos [get]
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	matchID, ok := matchIDParam(w, r)
	if !ok {
		return
	}
	events, err := h.matches.ListEvents(r.Context(), id.UID, matchID)
	if err != nil {
		respond.WriteDomainError(w, h.logger, err)
		return
	}
	if events == nil {
		events = []domain.MatchEvent{}
	}
	respond.WriteJSONObject(w, http.StatusOK, events)
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

type lifecycleFunc func(ctx context.Context, refereeID string, matchID int64) (domain.Match, error)

func (h *Handler) lifecycle(w http.ResponseWriter, r *http.Request, fn lifecycleFunc) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	matchID, ok := matchIDParam(w, r)
	if !ok {
		return
	}
	m, err := fn(r.Context(), id.UID, matchID)
	if err != nil {
		respond.WriteDomainError(w, h.logger, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, m)
}

func identity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Missing credentials")
	}
	return id, ok
}

func matchIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_PARAM", "Match ID must be a positive integer")
		return 0, false
	}
	return id, true
}

// decodeBody decodes a JSON body into v. An empty body is accepted only when
// optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}

func parseMatchFilter(r *http.Request) (domain.MatchFilter, error) {
	q := r.URL.Query()
	var f domain.MatchFilter
	if raw := q.Get("estado"); raw != "" {
		st, err := domain.ParseMatchState(raw)
		if err != nil {
			return f, err
		}
		f.State = st
	}
	if raw := q.Get("fecha_desde"); raw != "" {
		t, _, err := parseDate(raw)
		if err != nil {
			return f, errors.New("fecha_desde: " + err.Error())
		}
		f.From = &t
	}
	if raw := q.Get("fecha_hasta"); raw != "" {
		t, bare, err := parseDate(raw)
		if err != nil {
			return f, errors.New("fecha_hasta: " + err.Error())
		}
		if bare {
			// A bare date covers the whole day.
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = &t
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, errors.New("fecha_hasta is before fecha_desde")
	}
	return f, nil
}

func parseDate(raw string) (t time.Time, bare bool, err error) {
	if t, err = time.Parse(time.RFC3339, raw); err == nil {
		return t, false, nil
	}
	if t, err = time.Parse(dateOnly, raw); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, errors.New("expected RFC3339 timestamp or YYYY-MM-DD")
}
