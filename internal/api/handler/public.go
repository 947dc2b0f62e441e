package handler

import (
	"encoding/json"
	"net/http"

	"github.com/albapepper/matchday/internal/api/respond"
	"github.com/albapepper/matchday/internal/cache"
	"github.com/albapepper/matchday/internal/domain"
	"github.com/albapepper/matchday/internal/match"
)

// GetScoreboard returns the public scoreboard of a match.
// @Summary Match scoreboard
// @Description Returns the match with its cached score and the full event ledger. Supports ETag revalidation.
// @Tags partidos
// @Produce json
// @Param id path int true "Match ID"
// @Param If-None-Match header string false "ETag from a previous response"
// @Success 200 {object} match.Scoreboard
// @Success 304 "Not modified"
// @Failure 404 {object} respond.ErrorResponse
// @Router /partidos/{id}/marcador [get]
func (h *Handler) GetScoreboard(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDParam(w, r)
	if !ok {
		return
	}
	key := cache.ScoreboardKey(matchID)

	if data, etag, ok := h.cache.Get(key); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, h.cfg.CacheTTL, true)
		return
	}

	board, err := h.scoreboard(r, matchID)
	if err != nil {
		respond.WriteDomainError(w, h.logger, err)
		return
	}
	data, err := json.Marshal(board)
	if err != nil {
		h.logger.Error("Failed to encode scoreboard", "match_id", matchID, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "INTERNAL", "Failed to encode scoreboard")
		return
	}
	etag := h.cache.Set(key, data, h.cfg.CacheTTL)
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag, h.cfg.CacheTTL, false)
}

// LiveFeed streams a match's events over a websocket.
// @Summary Live match feed
// @Description Upgrades to a websocket. The first message is a snapshot of the scoreboard; every later message is a lifecycle event of the match.
// @Tags partidos
// @Param id path int true "Match ID"
// @Success 101 "Switching protocols"
// @Failure 404 {object} respond.ErrorResponse
// @Router /partidos/{id}/en-vivo [get]
func (h *Handler) LiveFeed(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDParam(w, r)
	if !ok {
		return
	}
	board, err := h.scoreboard(r, matchID)
	if err != nil {
		respond.WriteDomainError(w, h.logger, err)
		return
	}
	h.hub.Serve(w, r, matchID, board)
}

func (h *Handler) scoreboard(r *http.Request, matchID int64) (match.Scoreboard, error) {
	board, err := h.matches.Scoreboard(r.Context(), matchID)
	if err != nil {
		return board, err
	}
	if board.Events == nil {
		board.Events = []domain.MatchEvent{}
	}
	return board, nil
}
