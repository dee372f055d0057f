// Package services contains business logic layers.
// Services are called by handlers and interact with the database.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trafficguard/report-server/internal/models"
	"go.uber.org/zap"
)

// ReportService owns the canonical report records. It is the only
// component that mutates status, detection_result, or resolved_address
// after creation.
type ReportService struct {
	db     *pgxpool.Pool
	logger *zap.SugaredLogger
}

// NewReportService creates a new report service
func NewReportService(db *pgxpool.Pool, logger *zap.SugaredLogger) *ReportService {
	return &ReportService{db: db, logger: logger}
}

// Create persists a new report in a single atomic write. Whatever
// detection result and resolved address the pipeline had at call time
// are included; the write never waits on slow enrichment.
func (s *ReportService) Create(ctx context.Context, draft *models.ReportDraft) (*models.Report, error) {
	report := &models.Report{
		ID:              uuid.New(),
		SubmitterID:     draft.SubmitterID,
		ViolationType:   draft.ViolationType,
		VehiclePlate:    draft.VehiclePlate,
		Location:        draft.Location,
		Description:     draft.Description,
		Latitude:        draft.Latitude,
		Longitude:       draft.Longitude,
		ResolvedAddress: draft.ResolvedAddress,
		EvidenceRef:     draft.EvidenceRef,
		DetectionResult: draft.DetectionResult,
		Status:          models.StatusReported,
		Severity:        models.SeverityMedium,
		CreatedAt:       time.Now().UTC(),
	}

	var detectionJSON []byte
	if draft.DetectionResult != nil {
		var err error
		detectionJSON, err = json.Marshal(draft.DetectionResult)
		if err != nil {
			return nil, fmt.Errorf("marshal detection result: %w", err)
		}
	}

	query := `
		INSERT INTO reports (id, submitter_id, violation_type, vehicle_plate, location, description,
			latitude, longitude, resolved_address, evidence_ref, detection_result, status, severity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := s.db.Exec(ctx, query,
		report.ID, report.SubmitterID, report.ViolationType,
		report.VehiclePlate, report.Location, report.Description,
		report.Latitude, report.Longitude, report.ResolvedAddress,
		report.EvidenceRef, detectionJSON,
		report.Status, report.Severity, report.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}

	return report, nil
}

const reportColumns = `id, submitter_id, violation_type, vehicle_plate, location, description,
	latitude, longitude, resolved_address, evidence_ref, detection_result, status, severity, created_at`

// GetByID fetches a single report.
func (s *ReportService) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`

	report, err := scanReport(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("fetch report: %w", err)
	}
	return report, nil
}

// ListBySubmitter returns all reports owned by a submitter, newest first.
func (s *ReportService) ListBySubmitter(ctx context.Context, submitterID uuid.UUID) ([]models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE submitter_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, submitterID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	return collectReports(rows)
}

// ListAll returns every report, newest first. Reviewer-only read path.
func (s *ReportService) ListAll(ctx context.Context) ([]models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	return collectReports(rows)
}

// Transition moves a report one forward step along its lifecycle.
// The status check is repeated in the UPDATE guard so two concurrent
// transitions cannot both win.
func (s *ReportService) Transition(ctx context.Context, id uuid.UUID, next models.ReportStatus) (*models.Report, error) {
	if !models.ValidStatus(next) {
		return nil, models.ErrInvalidTransition
	}

	var current models.ReportStatus
	err := s.db.QueryRow(ctx, `SELECT status FROM reports WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("fetch report status: %w", err)
	}

	if !current.CanTransition(next) {
		return nil, models.ErrInvalidTransition
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE reports SET status = $2 WHERE id = $1 AND status = $3`,
		id, next, current,
	)
	if err != nil {
		return nil, fmt.Errorf("update report status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Lost a race with a concurrent transition.
		return nil, models.ErrInvalidTransition
	}

	s.logger.Infow("Report status changed", "id", id, "from", current, "to", next)

	return s.GetByID(ctx, id)
}

// EvidenceRefInUse reports whether any stored report references the
// given evidence file. Content-addressed storage shares one blob
// between identical uploads, so a blob may outlive the submission
// that staged it.
func (s *ReportService) EvidenceRefInUse(ctx context.Context, ref string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM reports WHERE evidence_ref = $1)`, ref).Scan(&exists)
	return exists, err
}

// Count returns the total number of reports
func (s *ReportService) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM reports").Scan(&count)
	return count, err
}

// GetTrends returns report submission trends over the last N hours
func (s *ReportService) GetTrends(ctx context.Context, hours int) ([]models.TrendPoint, error) {
	query := `
		SELECT DATE_TRUNC('hour', created_at)::TEXT as date, COUNT(*) as count
		FROM reports
		WHERE created_at > NOW() - INTERVAL '1 hour' * $1
		GROUP BY DATE_TRUNC('hour', created_at)
		ORDER BY date DESC
	`

	rows, err := s.db.Query(ctx, query, hours)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trends []models.TrendPoint
	for rows.Next() {
		var t models.TrendPoint
		if err := rows.Scan(&t.Date, &t.Count); err != nil {
			continue
		}
		trends = append(trends, t)
	}
	return trends, nil
}

// GetTypeDistribution returns per-violation-type counts for analytics charts
func (s *ReportService) GetTypeDistribution(ctx context.Context) ([]models.TypeCount, error) {
	query := `
		SELECT violation_type, COUNT(*) as count
		FROM reports
		GROUP BY violation_type
		ORDER BY count DESC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []models.TypeCount
	for rows.Next() {
		var t models.TypeCount
		if err := rows.Scan(&t.Type, &t.Count); err != nil {
			continue
		}
		types = append(types, t)
	}
	return types, nil
}

// GetStatusCounts returns per-lifecycle-state counts for analytics charts
func (s *ReportService) GetStatusCounts(ctx context.Context) ([]models.StatusCount, error) {
	query := `
		SELECT status, COUNT(*) as count
		FROM reports
		GROUP BY status
		ORDER BY count DESC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []models.StatusCount
	for rows.Next() {
		var sc models.StatusCount
		if err := rows.Scan(&sc.Status, &sc.Count); err != nil {
			continue
		}
		statuses = append(statuses, sc)
	}
	return statuses, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var (
		r             models.Report
		detectionJSON []byte
	)
	err := row.Scan(&r.ID, &r.SubmitterID, &r.ViolationType, &r.VehiclePlate,
		&r.Location, &r.Description, &r.Latitude, &r.Longitude,
		&r.ResolvedAddress, &r.EvidenceRef, &detectionJSON,
		&r.Status, &r.Severity, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(detectionJSON) > 0 {
		var result models.DetectionResult
		if err := json.Unmarshal(detectionJSON, &result); err == nil {
			r.DetectionResult = &result
		}
	}
	return &r, nil
}

func collectReports(rows pgx.Rows) ([]models.Report, error) {
	var reports []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			continue
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}
