package handlers

import (
	"errors"
	"net/http"

	"github.com/trafficguard/report-server/internal/models"
	"github.com/trafficguard/report-server/internal/services"
	"go.uber.org/zap"
)

// DetectHandler serves the detection-only flow: analyse an image
// inline, persist nothing.
type DetectHandler struct {
	intake *services.IntakeService
	logger *zap.SugaredLogger
}

// NewDetectHandler creates a new detect handler
func NewDetectHandler(intake *services.IntakeService, logger *zap.SugaredLogger) *DetectHandler {
	return &DetectHandler{intake: intake, logger: logger}
}

// Detect handles POST /api/v1/detect
func (h *DetectHandler) Detect(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	result, err := h.intake.DetectOnly(r.Context(), &services.EvidenceUpload{
		Content:     file,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	})
	if err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			respondError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		h.logger.Errorw("Inline detection failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to process image")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"detections": result,
	})
}
