package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/albapepper/direct-dispatch/internal/api/respond"
	"github.com/albapepper/direct-dispatch/internal/dispatch"
)

// TriggerDispatch runs the live-event job once and reports the run summary.
// Per-event failures do not change the status; they are counted in the body
// and in the X-Dispatch-Failed header.
// @Summary Dispatch live events
// @Description Announces every event live right now to its nearby, interested audience and retires the announced schedule entries.
// @Tags dispatch
// @Produce json
// @Param Authorization header string false "Bearer dispatch token"
// @Success 200 {object} dispatch.RunResult
// @Failure 401 {object} respond.ErrorResponse
// @Failure 409 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /dispatch/live-events [post]
func (h *Handler) TriggerDispatch(w http.ResponseWriter, r *http.Request) {
	res, err := h.Runner.Run(r.Context())
	if errors.Is(err, dispatch.ErrRunInProgress) {
		respond.WriteError(w, http.StatusConflict, "RUN_IN_PROGRESS", "A dispatch run is already in progress")
		return
	}
	if err != nil {
		h.Logger.Error("Dispatch trigger failed", "error", err)
		respond.WriteErrorDetail(w, http.StatusServiceUnavailable, "DISPATCH_FAILED",
			"Could not read today's schedule", err.Error())
		return
	}

	h.Cache.Delete(scheduleCacheKey(res.Day))
	w.Header().Set("X-Run-ID", res.RunID)
	w.Header().Set("X-Dispatch-Failed", strconv.Itoa(res.Failed))
	respond.WriteJSONObject(w, http.StatusOK, res)
}
