package models

import "errors"

// ReportStatus is the lifecycle state of a report.
//
//	reported ──> under_review ──> resolved   (terminal)
//	                          └─> dismissed  (terminal)
//
// Transitions only move forward; resolved and dismissed are terminal.
type ReportStatus string

const (
	StatusReported    ReportStatus = "reported"
	StatusUnderReview ReportStatus = "under_review"
	StatusResolved    ReportStatus = "resolved"
	StatusDismissed   ReportStatus = "dismissed"
)

// ErrInvalidTransition is returned for any status change not on the
// forward path, including attempts to leave a terminal state.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrNotFound is returned when a report does not exist or is not
// visible to the caller.
var ErrNotFound = errors.New("report not found")

var statusSuccessors = map[ReportStatus][]ReportStatus{
	StatusReported:    {StatusUnderReview},
	StatusUnderReview: {StatusResolved, StatusDismissed},
	StatusResolved:    {},
	StatusDismissed:   {},
}

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s ReportStatus) bool {
	_, ok := statusSuccessors[s]
	return ok
}

// Terminal reports whether no further transitions are possible from s.
func (s ReportStatus) Terminal() bool {
	return len(statusSuccessors[s]) == 0 && ValidStatus(s)
}

// CanTransition reports whether moving from s to next is a single
// forward step. Jumping reported→resolved directly is rejected; a
// report must pass through under_review first.
func (s ReportStatus) CanTransition(next ReportStatus) bool {
	for _, allowed := range statusSuccessors[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
