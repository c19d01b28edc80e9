package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"sentinel/internal/export"
	"sentinel/internal/models"
	"sentinel/internal/utils"
)

// summaryLimit bounds the events folded into a summary response
const summaryLimit = 1000

type eventsHandler struct {
	events EventReader
}

// EventListResponse is returned by GET /v1/security-events
type EventListResponse struct {
	Events []*models.SecurityEvent `json:"events"`
	Count  int                     `json:"count"`
}

func (h *eventsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEventFilter(r.URL.Query())
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.events.List(r.Context(), filter)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}
	if events == nil {
		events = []*models.SecurityEvent{}
	}

	utils.RespondWithJSON(w, http.StatusOK, EventListResponse{Events: events, Count: len(events)})
}

func (h *eventsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEventFilter(r.URL.Query())
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Limit == 0 {
		filter.Limit = summaryLimit
	}

	events, err := h.events.List(r.Context(), filter)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, export.Summarize(events))
}

// parseEventFilter maps query parameters onto an EventFilter. Times are RFC3339.
func parseEventFilter(q url.Values) (models.EventFilter, error) {
	filter := models.EventFilter{
		Source: q.Get("source"),
		UserID: q.Get("user_id"),
		IPHash: q.Get("ip_hash"),
	}

	if v := q.Get("event_type"); v != "" {
		filter.EventType = models.EventType(v)
		if !filter.EventType.IsValid() {
			return filter, fmt.Errorf("invalid event_type %q", v)
		}
	}
	if v := q.Get("severity"); v != "" {
		filter.Severity = models.Severity(v)
		if !filter.Severity.IsValid() {
			return filter, fmt.Errorf("invalid severity %q", v)
		}
	}

	var err error
	if filter.Since, err = parseTime(q, "since"); err != nil {
		return filter, err
	}
	if filter.Until, err = parseTime(q, "until"); err != nil {
		return filter, err
	}
	if !filter.Since.IsZero() && !filter.Until.IsZero() && filter.Until.Before(filter.Since) {
		return filter, fmt.Errorf("until must not be before since")
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return filter, fmt.Errorf("limit must be a positive integer")
		}
		filter.Limit = limit
	}

	return filter, nil
}

func parseTime(q url.Values, name string) (time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be RFC3339", name)
	}
	return t, nil
}
