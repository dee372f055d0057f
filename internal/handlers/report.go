// Package handlers contains HTTP request handlers for the report API.
// Handlers parse requests, call services, and return JSON responses.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/trafficguard/report-server/internal/middleware"
	"github.com/trafficguard/report-server/internal/models"
	"github.com/trafficguard/report-server/internal/services"
	"go.uber.org/zap"
)

// maxMultipartMemory bounds how much of a multipart body is held in
// memory before spilling to disk.
const maxMultipartMemory = 8 << 20

// ReportHandler handles report submission, retrieval, lifecycle and
// analytics endpoints.
type ReportHandler struct {
	intake      *services.IntakeService
	reports     *services.ReportService
	audit       *services.AuditService
	broadcaster *services.Broadcaster
	logger      *zap.SugaredLogger
}

// NewReportHandler creates a new report handler
func NewReportHandler(
	intake *services.IntakeService,
	reports *services.ReportService,
	audit *services.AuditService,
	broadcaster *services.Broadcaster,
	logger *zap.SugaredLogger,
) *ReportHandler {
	return &ReportHandler{
		intake:      intake,
		reports:     reports,
		audit:       audit,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Submit handles POST /api/v1/reports.
// Multipart form: violationType, vehiclePlate, location, description,
// optional lat/lon, optional evidence file.
func (h *ReportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	in := &services.SubmissionInput{
		Caller:        caller,
		ViolationType: models.ViolationType(r.FormValue("violationType")),
		VehiclePlate:  r.FormValue("vehiclePlate"),
		Location:      r.FormValue("location"),
		Description:   r.FormValue("description"),
		Latitude:      parseCoord(r.FormValue("lat")),
		Longitude:     parseCoord(r.FormValue("lon")),
	}

	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		in.Evidence = &services.EvidenceUpload{
			Content:     file,
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
		}
	}

	report, err := h.intake.Submit(r.Context(), in)
	if err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			respondError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		h.logger.Errorw("Failed to create report", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to submit report")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Report submitted successfully",
		"report":  report,
	})
}

// List handles GET /api/v1/reports.
// Citizens see their own reports; officers and admins see all.
// Newest-first, in the display projection.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var (
		reports []models.Report
		err     error
	)
	if caller.Elevated() {
		reports, err = h.reports.ListAll(r.Context())
	} else {
		reports, err = h.reports.ListBySubmitter(r.Context(), caller.UserID)
	}
	if err != nil {
		h.logger.Errorw("Failed to list reports", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to fetch reports")
		return
	}

	views := make([]models.ReportView, 0, len(reports))
	for i := range reports {
		views = append(views, models.NewReportView(&reports[i]))
	}
	respondJSON(w, http.StatusOK, views)
}

// Get handles GET /api/v1/reports/{id}
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid report id")
		return
	}

	report, err := h.reports.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Report not found")
		return
	}

	// Non-elevated callers only see their own reports.
	if !caller.Elevated() && report.SubmitterID != caller.UserID {
		respondError(w, http.StatusNotFound, "Report not found")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// Transition handles POST /api/v1/reports/{id}/status.
// Reviewer-only: moves a report one forward lifecycle step.
func (h *ReportHandler) Transition(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.CallerFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid report id")
		return
	}

	var body struct {
		Status models.ReportStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	report, err := h.reports.Transition(r.Context(), id, body.Status)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			respondError(w, http.StatusNotFound, "Report not found")
		case errors.Is(err, models.ErrInvalidTransition):
			respondError(w, http.StatusConflict, "Invalid status transition")
		default:
			h.logger.Errorw("Failed to transition report", "id", id, "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to update report")
		}
		return
	}

	_ = h.audit.Record(r.Context(), &models.ReportEvent{
		ReportID:    &report.ID,
		EventType:   "status_change",
		Description: "Status set to " + string(report.Status),
		Actor:       caller.UserID.String(),
	})

	go h.broadcaster.Publish(context.WithoutCancel(r.Context()), models.Notification{
		Event:  "report-updated",
		Report: report,
	})

	respondJSON(w, http.StatusOK, report)
}

// Count handles GET /api/v1/reports/count
func (h *ReportHandler) Count(w http.ResponseWriter, r *http.Request) {
	count, err := h.reports.Count(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to get count")
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// Trends handles GET /api/v1/analytics/trends
func (h *ReportHandler) Trends(w http.ResponseWriter, r *http.Request) {
	trends, err := h.reports.GetTrends(r.Context(), 72)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch trends")
		return
	}
	respondJSON(w, http.StatusOK, trends)
}

// Types handles GET /api/v1/analytics/types
func (h *ReportHandler) Types(w http.ResponseWriter, r *http.Request) {
	types, err := h.reports.GetTypeDistribution(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch type distribution")
		return
	}
	respondJSON(w, http.StatusOK, types)
}

// Statuses handles GET /api/v1/analytics/statuses
func (h *ReportHandler) Statuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.reports.GetStatusCounts(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch status counts")
		return
	}
	respondJSON(w, http.StatusOK, statuses)
}

func parseCoord(val string) *float64 {
	if val == "" {
		return nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return nil
	}
	return &f
}

// Helper: respond with JSON
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Helper: respond with error
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
