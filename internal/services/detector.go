package services

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/trafficguard/report-server/internal/models"
	"go.uber.org/zap"
)

// DetectorService invokes the external vision worker on staged evidence.
// Every failure mode — non-zero exit, timeout, malformed output — is a
// soft failure: the caller gets a nil result and report creation
// proceeds without automated analysis. Exactly one invocation per
// evidence submission; retries are the intake layer's decision.
type DetectorService struct {
	pythonBin string
	script    string
	timeout   time.Duration
	logger    *zap.SugaredLogger
}

// NewDetectorService creates a new detector adapter
func NewDetectorService(pythonBin, script string, timeout time.Duration, logger *zap.SugaredLogger) *DetectorService {
	return &DetectorService{pythonBin: pythonBin, script: script, timeout: timeout, logger: logger}
}

// workerPayload mirrors the worker's stdout JSON. The worker reports
// internal errors as {"error": "..."} with a zero exit status.
type workerPayload struct {
	Detections      []models.Detection        `json:"detections"`
	Violations      []models.ViolationFinding `json:"violations"`
	TotalVehicles   int                       `json:"total_vehicles"`
	TotalViolations int                       `json:"total_violations"`
	Error           string                    `json:"error"`
}

// Detect runs the worker against an evidence file. Returns nil on any
// soft failure.
func (s *DetectorService) Detect(ctx context.Context, evidencePath string) *models.DetectionResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.pythonBin, s.script, evidencePath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		// CommandContext has already killed the child; it is reaped by Run.
		s.logger.Warnw("Detector timed out", "evidence", evidencePath, "timeout", s.timeout)
		return nil
	}
	if err != nil {
		s.logger.Warnw("Detector failed",
			"evidence", evidencePath,
			"error", err,
			"stderr", strings.TrimSpace(stderr.String()),
		)
		return nil
	}

	var payload workerPayload
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &payload); err != nil {
		s.logger.Warnw("Detector output unparseable", "evidence", evidencePath, "error", err)
		return nil
	}
	if payload.Error != "" {
		s.logger.Warnw("Detector reported error", "evidence", evidencePath, "error", payload.Error)
		return nil
	}

	s.logger.Infow("Detection complete",
		"evidence", evidencePath,
		"vehicles", payload.TotalVehicles,
		"violations", payload.TotalViolations,
		"duration", time.Since(start),
	)

	result := &models.DetectionResult{
		Detections:      payload.Detections,
		Violations:      payload.Violations,
		TotalVehicles:   payload.TotalVehicles,
		TotalViolations: payload.TotalViolations,
	}
	if result.Detections == nil {
		result.Detections = []models.Detection{}
	}
	if result.Violations == nil {
		result.Violations = []models.ViolationFinding{}
	}
	return result
}
