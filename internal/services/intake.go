package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/trafficguard/report-server/internal/models"
	"go.uber.org/zap"
)

// ErrDetectionFailed is returned by the detection-only flow when the
// worker produced no usable result. The report-submission flow never
// returns it; there detection failure is soft.
var ErrDetectionFailed = errors.New("detection failed")

// extByType is the media allow-list. Uploads outside it are rejected
// before any staging.
var extByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"video/mp4":  ".mp4",
}

// detectOnlyTypes further restricts the detection-only flow to still
// images; the worker cannot analyse video frames inline.
var detectOnlyTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// reportStore is the slice of the report store the intake pipeline
// depends on.
type reportStore interface {
	Create(ctx context.Context, draft *models.ReportDraft) (*models.Report, error)
	EvidenceRefInUse(ctx context.Context, ref string) (bool, error)
}

// EvidenceUpload describes an uploaded file before staging.
type EvidenceUpload struct {
	Content     io.Reader
	Filename    string
	ContentType string
	Size        int64
}

// SubmissionInput is everything a caller supplies when filing a report.
type SubmissionInput struct {
	Caller        models.Caller
	ViolationType models.ViolationType
	VehiclePlate  string
	Location      string
	Description   string
	Latitude      *float64
	Longitude     *float64
	Evidence      *EvidenceUpload // optional
}

// IntakeService validates submissions, stages evidence, and drives the
// detection → enrichment → persist → broadcast pipeline.
type IntakeService struct {
	store       reportStore
	detector    *DetectorService
	geocoder    *GeocodeService
	broadcaster *Broadcaster
	audit       *AuditService

	uploadDir      string
	stagingDir     string
	maxUploadBytes int64
	maxDetectBytes int64

	logger *zap.SugaredLogger
}

// NewIntakeService creates a new intake pipeline
func NewIntakeService(
	store reportStore,
	detector *DetectorService,
	geocoder *GeocodeService,
	broadcaster *Broadcaster,
	audit *AuditService,
	uploadDir, stagingDir string,
	maxUploadBytes, maxDetectBytes int64,
	logger *zap.SugaredLogger,
) *IntakeService {
	return &IntakeService{
		store:          store,
		detector:       detector,
		geocoder:       geocoder,
		broadcaster:    broadcaster,
		audit:          audit,
		uploadDir:      uploadDir,
		stagingDir:     stagingDir,
		maxUploadBytes: maxUploadBytes,
		maxDetectBytes: maxDetectBytes,
		logger:         logger,
	}
}

// Submit runs the full report-submission pipeline. Detector and
// geocode failures are soft: the report is created without their
// output. Only validation and persistence errors surface.
func (s *IntakeService) Submit(ctx context.Context, in *SubmissionInput) (*models.Report, error) {
	if err := s.validateSubmission(in); err != nil {
		return nil, err
	}

	draft := &models.ReportDraft{
		SubmitterID:   in.Caller.UserID,
		ViolationType: in.ViolationType,
		VehiclePlate:  strings.TrimSpace(in.VehiclePlate),
		Location:      strings.TrimSpace(in.Location),
		Description:   strings.TrimSpace(in.Description),
		Latitude:      in.Latitude,
		Longitude:     in.Longitude,
	}

	var evidencePath string
	if in.Evidence != nil {
		path, ref, err := s.storeEvidence(in.Evidence)
		if err != nil {
			return nil, fmt.Errorf("store evidence: %w", err)
		}
		evidencePath = path
		draft.EvidenceRef = &ref
	}

	// Detection and geocoding are independent; run both and join.
	var wg sync.WaitGroup

	if evidencePath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			draft.DetectionResult = s.detector.Detect(ctx, evidencePath)
		}()
	}

	if in.Latitude != nil && in.Longitude != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if addr := s.geocoder.Reverse(ctx, *in.Latitude, *in.Longitude); addr != "" {
				draft.ResolvedAddress = &addr
			}
		}()
	}

	wg.Wait()

	report, err := s.store.Create(ctx, draft)
	if err != nil {
		// The write failed atomically; don't keep an orphaned evidence file.
		if evidencePath != "" {
			s.discardEvidence(ctx, evidencePath, *draft.EvidenceRef)
		}
		return nil, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, &models.ReportEvent{
			ReportID:    &report.ID,
			EventType:   "submission",
			Description: fmt.Sprintf("Report filed for %s violation", report.ViolationType),
			Actor:       report.SubmitterID.String(),
		})
	}

	// Fire-and-forget: the caller's response never waits on delivery.
	go s.broadcaster.Publish(context.WithoutCancel(ctx), models.Notification{
		Event:  "report-created",
		Report: report,
	})

	s.logger.Infow("Report submitted",
		"id", report.ID,
		"type", report.ViolationType,
		"has_evidence", draft.EvidenceRef != nil,
		"has_detection", draft.DetectionResult != nil,
	)

	return report, nil
}

// DetectOnly stages the upload transiently, runs the worker, and
// returns the raw payload. Nothing is persisted; the staged file is
// removed on every exit path.
func (s *IntakeService) DetectOnly(ctx context.Context, upload *EvidenceUpload) (*models.DetectionResult, error) {
	if upload == nil {
		return nil, &models.ValidationError{Field: "file", Reason: "no file provided"}
	}
	if !detectOnlyTypes[upload.ContentType] {
		return nil, &models.ValidationError{Field: "file", Reason: "only JPEG and PNG images are supported"}
	}
	if upload.Size > s.maxDetectBytes {
		return nil, &models.ValidationError{Field: "file", Reason: fmt.Sprintf("file exceeds %d MiB limit", s.maxDetectBytes>>20)}
	}

	tmp, err := os.CreateTemp(s.stagingDir, "evidence-*"+extByType[upload.ContentType])
	if err != nil {
		return nil, fmt.Errorf("stage evidence: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, io.LimitReader(upload.Content, s.maxDetectBytes+1)); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("stage evidence: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("stage evidence: %w", err)
	}

	result := s.detector.Detect(ctx, tmp.Name())
	if result == nil {
		return nil, ErrDetectionFailed
	}
	return result, nil
}

// discardEvidence removes a blob staged for a failed creation.
// Content addressing dedups identical uploads into one file, so the
// blob may also back an earlier report; when it does, or when that
// cannot be determined, the file stays.
func (s *IntakeService) discardEvidence(ctx context.Context, path, ref string) {
	inUse, err := s.store.EvidenceRefInUse(ctx, ref)
	if err != nil || inUse {
		return
	}
	if err := os.Remove(path); err != nil {
		s.logger.Warnw("Failed to remove orphaned evidence", "path", path, "error", err)
	}
}

// storeEvidence persists an upload durably under a content-addressed
// name. Returns the filesystem path and the reference stored on the
// report.
func (s *IntakeService) storeEvidence(upload *EvidenceUpload) (path, ref string, err error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create upload dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.uploadDir, "incoming-*")
	if err != nil {
		return "", "", err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	hasher := sha256.New()
	if _, err = io.Copy(tmp, io.TeeReader(io.LimitReader(upload.Content, s.maxUploadBytes+1), hasher)); err != nil {
		tmp.Close()
		return "", "", err
	}
	if err = tmp.Close(); err != nil {
		return "", "", err
	}

	name := hex.EncodeToString(hasher.Sum(nil)) + extByType[upload.ContentType]
	final := filepath.Join(s.uploadDir, name)
	if err = os.Rename(tmp.Name(), final); err != nil {
		return "", "", err
	}

	return final, "/uploads/" + name, nil
}

func (s *IntakeService) validateSubmission(in *SubmissionInput) error {
	if !models.ValidViolationType(in.ViolationType) {
		return &models.ValidationError{Field: "violationType", Reason: "unknown violation type"}
	}
	for field, value := range map[string]string{
		"vehiclePlate": in.VehiclePlate,
		"location":     in.Location,
		"description":  in.Description,
	} {
		if strings.TrimSpace(value) == "" {
			return &models.ValidationError{Field: field, Reason: "required"}
		}
	}

	if in.Evidence != nil {
		if _, ok := extByType[in.Evidence.ContentType]; !ok {
			return &models.ValidationError{Field: "file", Reason: "unsupported media type"}
		}
		if in.Evidence.Size > s.maxUploadBytes {
			return &models.ValidationError{Field: "file", Reason: fmt.Sprintf("file exceeds %d MiB limit", s.maxUploadBytes>>20)}
		}
	}
	return nil
}
