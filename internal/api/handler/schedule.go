package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/direct-dispatch/internal/api/respond"
	"github.com/albapepper/direct-dispatch/internal/cache"
	"github.com/albapepper/direct-dispatch/internal/docstore"
	"github.com/albapepper/direct-dispatch/internal/event"
	"github.com/albapepper/direct-dispatch/internal/notifications"
	"github.com/albapepper/direct-dispatch/internal/schedule"
)

// ScheduledEvent is one entry of a day listing.
type ScheduledEvent struct {
	EventID        string  `json:"event_id"`
	StartTimeStamp float64 `json:"start_timestamp"`
	EndTimeStamp   float64 `json:"end_timestamp"`
	Live           bool    `json:"live"`
}

// DaySchedule is the listing of one partition.
type DaySchedule struct {
	Day       string           `json:"day"`
	Events    []ScheduledEvent `json:"events"`
	Malformed []string         `json:"malformed,omitempty"`
}

func scheduleCacheKey(day string) string { return "schedule:" + day }

// GetSchedule lists the events still waiting to be announced on a day.
// @Summary List a day's schedule
// @Description Returns the pending entries of a UTC day partition with their current liveness. Use "today" for the current UTC day.
// @Tags schedule
// @Produce json
// @Param day path string true "UTC day (YYYY-MM-DD) or today"
// @Success 200 {object} DaySchedule
// @Failure 400 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /schedule/{day} [get]
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	day := chi.URLParam(r, "day")
	if day == "today" {
		day = schedule.DayKey(h.Now())
	}
	if _, err := schedule.ParseDay(day); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_DAY", err.Error())
		return
	}

	cacheKey := scheduleCacheKey(day)
	ttl := cache.TTLSchedule

	if data, etag, ok := h.Cache.Get(cacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, ttl, true)
		return
	}

	p, err := h.Schedule.Load(r.Context(), day)
	if err != nil {
		h.Logger.Warn("Failed to load schedule", "day", day, "error", err)
		respond.WriteError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Could not read the schedule")
		return
	}

	now := h.Now()
	out := DaySchedule{Day: day, Events: make([]ScheduledEvent, 0, len(p.Entries)), Malformed: p.Malformed}
	for _, e := range p.Entries {
		out.Events = append(out.Events, ScheduledEvent{
			EventID:        e.EventID,
			StartTimeStamp: e.StartTimeStamp,
			EndTimeStamp:   e.EndTimeStamp,
			Live:           notifications.IsLive(e, now),
		})
	}

	data, err := json.Marshal(out)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_FAILED", err.Error())
		return
	}
	etag := h.Cache.Set(cacheKey, data, ttl)
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag, ttl, false)
}

// ScheduleEvent indexes an existing event under its start day.
// @Summary Schedule an event
// @Description Reads the event record and writes its entry in the day schedule, so that the dispatcher announces it once it is live.
// @Tags schedule
// @Produce json
// @Param eventID path string true "Event ID"
// @Param Authorization header string false "Bearer dispatch token"
// @Success 201 {object} schedule.Entry
// @Failure 401 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Failure 422 {object} respond.ErrorResponse
// @Failure 503 {object} respond.ErrorResponse
// @Router /schedule/events/{eventID} [post]
func (h *Handler) ScheduleEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "eventID")

	ev, err := h.Events.Get(r.Context(), id)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "event "+id+" not found")
		return
	case errors.Is(err, event.ErrInvalid):
		respond.WriteErrorDetail(w, http.StatusUnprocessableEntity, "INVALID_EVENT", "event "+id+" is malformed", err.Error())
		return
	case err != nil:
		h.Logger.Warn("Failed to load event", "event_id", id, "error", err)
		respond.WriteError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Could not read the event")
		return
	}

	entry, err := h.Schedule.Add(r.Context(), ev)
	if errors.Is(err, event.ErrInvalid) {
		respond.WriteErrorDetail(w, http.StatusUnprocessableEntity, "INVALID_EVENT", "event "+id+" cannot be scheduled", err.Error())
		return
	}
	if err != nil {
		h.Logger.Warn("Failed to schedule event", "event_id", id, "error", err)
		respond.WriteError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Could not write the schedule")
		return
	}

	h.Cache.Delete(scheduleCacheKey(entry.Day))
	h.Logger.Info("Event scheduled", "event_id", entry.EventID, "day", entry.Day)
	respond.WriteJSONObject(w, http.StatusCreated, entry)
}
