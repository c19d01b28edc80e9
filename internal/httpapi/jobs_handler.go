package httpapi

import (
	"net/http"

	"sentinel/internal/jobs"
	"sentinel/internal/middleware"
	"sentinel/internal/utils"
)

// JobResponse wraps a dispatcher result
type JobResponse struct {
	Operation string `json:"operation"`
	Result    any    `json:"result"`
}

type jobsHandler struct {
	dispatcher JobDispatcher
	logger     *utils.Logger
}

func newJobsHandler(d JobDispatcher) *jobsHandler {
	return &jobsHandler{dispatcher: d, logger: utils.NewLogger("jobs-api")}
}

func (h *jobsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req jobs.Request
	if err := utils.DecodeJSONBody(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Operation == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "operation is required")
		return
	}

	if claims, ok := middleware.GetServiceClaims(r.Context()); ok {
		h.logger.Info("Job triggered", "operation", req.Operation, "subject", claims.Subject)
	}

	result, err := h.dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		if jobs.IsClientError(err) {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Job failed")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, JobResponse{Operation: req.Operation, Result: result})
}
