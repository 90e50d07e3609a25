package dto

import (
	"time"

	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
)

// BookSessionRequest is the payload for booking a session or a recurring series.
// StartLocal is a wall-clock reading interpreted in Timezone.
type BookSessionRequest struct {
	TutorID         string                    `json:"tutor_id" validate:"required,max=64"`
	StudentID       string                    `json:"student_id" validate:"required,max=64"`
	StartLocal      string                    `json:"start_local" validate:"required"`
	Timezone        string                    `json:"timezone" validate:"required,max=64"`
	DurationMinutes int                       `json:"duration_minutes" validate:"omitempty,min=1"`
	Subject         string                    `json:"subject" validate:"omitempty,max=200"`
	Notes           string                    `json:"notes" validate:"omitempty,max=2000"`
	Recurrence      *models.RecurrencePattern `json:"recurrence,omitempty"`
	IdempotencyKey  string                    `json:"idempotency_key,omitempty" validate:"omitempty,max=128"`
}

// CheckAvailabilityRequest asks for every conflict of a candidate slot without booking it.
type CheckAvailabilityRequest struct {
	TutorID          string `json:"tutor_id" validate:"required,max=64"`
	StudentID        string `json:"student_id" validate:"required,max=64"`
	StartLocal       string `json:"start_local" validate:"required"`
	Timezone         string `json:"timezone" validate:"required,max=64"`
	DurationMinutes  int    `json:"duration_minutes" validate:"omitempty,min=1"`
	ExcludeSessionID string `json:"exclude_session_id,omitempty" validate:"omitempty,max=64"`
}

// RescheduleSessionRequest moves a scheduled session. Duration and price stay as booked.
type RescheduleSessionRequest struct {
	StartLocal string `json:"start_local" validate:"required"`
	Timezone   string `json:"timezone" validate:"required,max=64"`
}

// CancelSessionRequest carries the optional cancellation reason.
type CancelSessionRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// SkippedOccurrence is a recurrence instance dropped because it conflicted.
type SkippedOccurrence struct {
	ScheduledAt time.Time         `json:"scheduled_at"`
	Conflicts   []models.Conflict `json:"conflicts"`
}

// BookingResult is returned by booking and reschedule operations. When
// Conflicts is non-empty nothing was persisted.
type BookingResult struct {
	Session     *models.Session     `json:"session,omitempty"`
	Occurrences []models.Session    `json:"occurrences,omitempty"`
	Skipped     []SkippedOccurrence `json:"skipped,omitempty"`
	Conflicts   []models.Conflict   `json:"conflicts,omitempty"`
	Replayed    bool                `json:"replayed,omitempty"`
}

// Booked reports whether the request produced a persisted session.
func (r *BookingResult) Booked() bool {
	return r != nil && r.Session != nil && len(r.Conflicts) == 0
}

// AvailabilityCheckResult lists every conflict of a candidate slot.
type AvailabilityCheckResult struct {
	Available   bool              `json:"available"`
	ScheduledAt time.Time         `json:"scheduled_at"`
	EndsAt      time.Time         `json:"ends_at"`
	Conflicts   []models.Conflict `json:"conflicts"`
}

// RefundQuote previews what a cancellation would refund right now.
type RefundQuote struct {
	SessionID   string  `json:"session_id"`
	HoursUntil  float64 `json:"hours_until"`
	Percent     int     `json:"percent"`
	AmountCents int64   `json:"amount_cents"`
	Currency    string  `json:"currency"`
}

// SessionQuery captures list filters from the query string.
type SessionQuery struct {
	TutorID   string `form:"tutor_id"`
	StudentID string `form:"student_id"`
	Status    string `form:"status"`
	From      string `form:"from"`
	To        string `form:"to"`
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	SortOrder string `form:"sort_order"`
}
