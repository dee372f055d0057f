// Package models defines the data structures used across the application.
// These map to the PostgreSQL schema.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ViolationType is the closed set of reportable violation categories.
type ViolationType string

const (
	ViolationSpeeding       ViolationType = "speeding"
	ViolationRedLight       ViolationType = "red_light"
	ViolationIllegalParking ViolationType = "illegal_parking"
	ViolationWrongLane      ViolationType = "wrong_lane"
	ViolationRashDriving    ViolationType = "rash_driving"
	ViolationNoHelmet       ViolationType = "no_helmet"
)

// ValidViolationType reports whether t is a known violation category.
func ValidViolationType(t ViolationType) bool {
	switch t {
	case ViolationSpeeding, ViolationRedLight, ViolationIllegalParking,
		ViolationWrongLane, ViolationRashDriving, ViolationNoHelmet:
		return true
	}
	return false
}

// Severity is the assessed seriousness of a report. Defaults to medium.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Detection is a single raw object detection from the vision worker.
type Detection struct {
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

// ViolationFinding is a violation derived from raw detections by the worker.
type ViolationFinding struct {
	Type        string     `json:"type"`
	Description string     `json:"description"`
	BBox        [4]float64 `json:"bbox"`
	Confidence  float64    `json:"confidence"`
}

// DetectionResult is the full structured payload of one worker invocation.
type DetectionResult struct {
	Detections      []Detection        `json:"detections"`
	Violations      []ViolationFinding `json:"violations"`
	TotalVehicles   int                `json:"total_vehicles"`
	TotalViolations int                `json:"total_violations"`
}

// Report is the canonical persisted record of a submitted violation claim.
// Only the report store mutates status, detection_result, or
// resolved_address after creation.
type Report struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	SubmitterID     uuid.UUID        `json:"submitter_id" db:"submitter_id"`
	ViolationType   ViolationType    `json:"violation_type" db:"violation_type"`
	VehiclePlate    string           `json:"vehicle_plate" db:"vehicle_plate"`
	Location        string           `json:"location" db:"location"`
	Description     string           `json:"description" db:"description"`
	Latitude        *float64         `json:"latitude,omitempty" db:"latitude"`
	Longitude       *float64         `json:"longitude,omitempty" db:"longitude"`
	ResolvedAddress *string          `json:"resolved_address,omitempty" db:"resolved_address"`
	EvidenceRef     *string          `json:"evidence_ref,omitempty" db:"evidence_ref"`
	DetectionResult *DetectionResult `json:"detection_result,omitempty" db:"detection_result"`
	Status          ReportStatus     `json:"status" db:"status"`
	Severity        Severity         `json:"severity" db:"severity"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
}

// ReportDraft carries everything known at creation time. The intake
// pipeline assembles it; the store turns it into a Report in one write.
type ReportDraft struct {
	SubmitterID     uuid.UUID
	ViolationType   ViolationType
	VehiclePlate    string
	Location        string
	Description     string
	Latitude        *float64
	Longitude       *float64
	ResolvedAddress *string
	EvidenceRef     *string
	DetectionResult *DetectionResult
}

// ReportView is the display projection returned by the list endpoints.
type ReportView struct {
	ID              uuid.UUID        `json:"id"`
	Type            ViolationType    `json:"type"`
	Location        string           `json:"location"`
	Date            string           `json:"date"`
	Status          ReportStatus     `json:"status"`
	Severity        Severity         `json:"severity"`
	VehiclePlate    string           `json:"vehiclePlate"`
	Description     string           `json:"description"`
	ResolvedAddress *string          `json:"resolvedAddress,omitempty"`
	DetectionResult *DetectionResult `json:"aiResults,omitempty"`
}

// NewReportView projects a stored report into its display shape.
// Pure transformation: severity defaulted, date formatted for display.
func NewReportView(r *Report) ReportView {
	severity := r.Severity
	if severity == "" {
		severity = SeverityMedium
	}
	return ReportView{
		ID:              r.ID,
		Type:            r.ViolationType,
		Location:        r.Location,
		Date:            r.CreatedAt.UTC().Format("2006-01-02 15:04"),
		Status:          r.Status,
		Severity:        severity,
		VehiclePlate:    r.VehiclePlate,
		Description:     r.Description,
		ResolvedAddress: r.ResolvedAddress,
		DetectionResult: r.DetectionResult,
	}
}

// ReportEvent is an audit trail entry recording who did what to a report.
type ReportEvent struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	ReportID    *uuid.UUID `json:"report_id,omitempty" db:"report_id"`
	EventType   string     `json:"event_type" db:"event_type"`
	Description string     `json:"description" db:"description"`
	Actor       string     `json:"actor" db:"actor"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// Notification is the payload published to event-stream subscribers.
type Notification struct {
	Event  string  `json:"event"` // "report-created" | "report-updated"
	Report *Report `json:"report"`
}

// User is a registered submitter or reviewer.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"` // "citizen" | "officer" | "admin"
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Caller is the identity resolved from a request credential.
type Caller struct {
	UserID uuid.UUID
	Role   string
}

// Elevated reports whether the caller may see and act on all reports.
func (c Caller) Elevated() bool {
	return c.Role == "officer" || c.Role == "admin"
}

// TrendPoint is hourly submission volume for analytics charts.
type TrendPoint struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// TypeCount is per-violation-type volume for analytics charts.
type TypeCount struct {
	Type  ViolationType `json:"type"`
	Count int           `json:"count"`
}

// StatusCount is per-status volume for analytics charts.
type StatusCount struct {
	Status ReportStatus `json:"status"`
	Count  int          `json:"count"`
}

// HealthStatus represents the server health check response
type HealthStatus struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Database string `json:"database,omitempty"`
	Redis    string `json:"redis,omitempty"`
}

// ValidationError rejects client input before any side effect occurs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
