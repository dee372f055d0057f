package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trafficguard/report-server/internal/models"
	"go.uber.org/zap"
)

// AuditService records who did what to a report: submissions and
// status transitions. Reviewer accountability trail; reads are
// admin-only.
type AuditService struct {
	db     *pgxpool.Pool
	logger *zap.SugaredLogger
}

// NewAuditService creates a new audit service
func NewAuditService(db *pgxpool.Pool, logger *zap.SugaredLogger) *AuditService {
	return &AuditService{db: db, logger: logger}
}

// Record stores one audit entry
func (s *AuditService) Record(ctx context.Context, event *models.ReportEvent) error {
	query := `
		INSERT INTO report_events (report_id, event_type, description, actor)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.db.Exec(ctx, query,
		event.ReportID,
		event.EventType,
		event.Description,
		event.Actor,
	)

	if err != nil {
		return fmt.Errorf("insert report event: %w", err)
	}

	s.logger.Infow("Audit event recorded",
		"report_id", event.ReportID,
		"type", event.EventType,
		"actor", event.Actor,
	)

	return nil
}

// ForReport returns audit entries for one report, newest first
func (s *AuditService) ForReport(ctx context.Context, reportID uuid.UUID, limit int) ([]models.ReportEvent, error) {
	query := `
		SELECT id, report_id, event_type, description, actor, created_at
		FROM report_events
		WHERE report_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, reportID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.ReportEvent
	for rows.Next() {
		var e models.ReportEvent
		if err := rows.Scan(&e.ID, &e.ReportID, &e.EventType,
			&e.Description, &e.Actor, &e.CreatedAt); err != nil {
			continue
		}
		events = append(events, e)
	}

	return events, nil
}

// Recent returns recent audit entries across all reports
func (s *AuditService) Recent(ctx context.Context, limit int) ([]models.ReportEvent, error) {
	query := `
		SELECT id, report_id, event_type, description, actor, created_at
		FROM report_events
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.ReportEvent
	for rows.Next() {
		var e models.ReportEvent
		if err := rows.Scan(&e.ID, &e.ReportID, &e.EventType,
			&e.Description, &e.Actor, &e.CreatedAt); err != nil {
			continue
		}
		events = append(events, e)
	}

	return events, nil
}
