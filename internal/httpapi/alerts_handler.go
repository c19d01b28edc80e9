package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"sentinel/internal/models"
	"sentinel/internal/storage"
	"sentinel/internal/utils"
)

const (
	defaultAlertLimit = 100
	maxAlertLimit     = 1000
)

type alertsHandler struct {
	alerts AlertService
}

// AlertListResponse is returned by GET /v1/alerts
type AlertListResponse struct {
	Alerts []*models.Alert `json:"alerts"`
	Count  int             `json:"count"`
}

// List returns active alerts, newest first. Only active=true (or no filter)
// is supported.
func (h *alertsHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if v := query.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil || !active {
			utils.RespondWithError(w, http.StatusBadRequest, "Only active=true is supported")
			return
		}
	}

	limit := defaultAlertLimit
	if v := query.Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			utils.RespondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(l, maxAlertLimit)
	}

	alerts, err := h.alerts.ListActive(r.Context(), limit)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []*models.Alert{}
	}

	utils.RespondWithJSON(w, http.StatusOK, AlertListResponse{Alerts: alerts, Count: len(alerts)})
}

func (h *alertsHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, "acknowledged", h.alerts.Acknowledge)
}

func (h *alertsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, "resolved", h.alerts.Deactivate)
}

func (h *alertsHandler) update(w http.ResponseWriter, r *http.Request, status string, apply func(context.Context, uuid.UUID) error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid alert ID")
		return
	}

	if err := apply(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrAlertNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "Alert not found")
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to update alert")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"id": id.String(), "status": status})
}
