package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/trafficguard/report-server/internal/services"
	"go.uber.org/zap"
)

// AuditHandler exposes the report audit trail to reviewers.
type AuditHandler struct {
	audit  *services.AuditService
	logger *zap.SugaredLogger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(audit *services.AuditService, logger *zap.SugaredLogger) *AuditHandler {
	return &AuditHandler{audit: audit, logger: logger}
}

// Recent handles GET /api/v1/activity/recent
func (h *AuditHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 200 {
		limit = l
	}

	events, err := h.audit.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Errorw("Failed to fetch recent activity", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch activity")
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// ByReport handles GET /api/v1/activity/report/{id}
func (h *AuditHandler) ByReport(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid report id")
		return
	}

	events, err := h.audit.ForReport(r.Context(), id, 100)
	if err != nil {
		h.logger.Errorw("Failed to fetch report activity", "id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch activity")
		return
	}
	respondJSON(w, http.StatusOK, events)
}
