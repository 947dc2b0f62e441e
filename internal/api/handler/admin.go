package handler

import (
	"net/http"
	"time"

	"github.com/albapepper/matchday/internal/api/respond"
)

type phaseReport struct {
	Phase string  `json:"phase"`
	Moved []int64 `json:"moved"`
	Error string  `json:"error,omitempty"`
}

type sweepReport struct {
	At               time.Time     `json:"at"`
	Phases           []phaseReport `json:"phases"`
	AwaitingFixtures []int64       `json:"awaiting_fixtures"`
	DurationMS       int64         `json:"duration_ms"`
	Summary          string        `json:"summary"`
}

// RunSweep runs one tournament sweep immediately.
// @Summary Run a tournament sweep
// @Description Closes registrations, starts and finishes tournaments whose time has come. Safe to call at any time; a sweep with nothing due moves nothing.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} sweepReport
// @Failure 401 {object} respond.ErrorResponse
// @Failure 403 {object} respond.ErrorResponse
// @Router /admin/sweep [post]
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	res := h.sched.Tick(r.Context(), h.clock.Now().UTC())

	report := sweepReport{
		At:               res.At,
		Phases:           make([]phaseReport, 0, len(res.Phases)),
		AwaitingFixtures: res.AwaitingFixtures,
		DurationMS:       res.Duration.Milliseconds(),
		Summary:          res.Summary(),
	}
	if report.AwaitingFixtures == nil {
		report.AwaitingFixtures = []int64{}
	}
	for _, p := range res.Phases {
		pr := phaseReport{Phase: string(p.Phase), Moved: p.Moved}
		if pr.Moved == nil {
			pr.Moved = []int64{}
		}
		if p.Err != nil {
			pr.Error = p.Err.Error()
		}
		report.Phases = append(report.Phases, pr)
	}

	h.logger.Info("Manual sweep completed", "summary", report.Summary)
	respond.WriteJSONObject(w, http.StatusOK, report)
}
