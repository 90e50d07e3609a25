package models

import "time"

// SessionStatus enumerates the lifecycle states of a session.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionOngoing   SessionStatus = "ongoing"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
	SessionNoShow    SessionStatus = "no-show"
)

// IsTerminal reports whether no further transition may leave the status.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionCompleted, SessionCancelled, SessionNoShow:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionScheduled, SessionOngoing, SessionCompleted, SessionCancelled, SessionNoShow:
		return true
	}
	return false
}

// Session is one scheduled meeting between a tutor and a student.
type Session struct {
	ID                 string        `db:"id" json:"id"`
	TutorID            string        `db:"tutor_id" json:"tutor_id"`
	StudentID          string        `db:"student_id" json:"student_id"`
	ScheduledAt        time.Time     `db:"scheduled_at" json:"scheduled_at"`
	DurationMinutes    int           `db:"duration_minutes" json:"duration_minutes"`
	EndsAt             time.Time     `db:"ends_at" json:"ends_at"`
	Status             SessionStatus `db:"status" json:"status"`
	ParentSessionID    *string       `db:"parent_session_id" json:"parent_session_id,omitempty"`
	PriceCents         int64         `db:"price_cents" json:"price_cents"`
	Currency           string        `db:"currency" json:"currency"`
	Timezone           string        `db:"timezone" json:"timezone"`
	Subject            string        `db:"subject" json:"subject,omitempty"`
	Notes              string        `db:"notes" json:"notes,omitempty"`
	CancelledAt        *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancellationReason *string       `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	RefundCents        *int64        `db:"refund_cents" json:"refund_cents,omitempty"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time     `db:"updated_at" json:"updated_at"`
}

// Interval returns the half-open span occupied by the session.
func (s Session) Interval() Interval {
	return Interval{Start: s.ScheduledAt, End: s.EndsAt}
}

// SessionFilter describes query params for listing sessions.
type SessionFilter struct {
	TutorID   string
	StudentID string
	Statuses  []SessionStatus
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
	SortOrder string
}

// ParticipantRole selects which session column a participant is matched on.
type ParticipantRole string

const (
	RoleAsTutor   ParticipantRole = "tutor"
	RoleAsStudent ParticipantRole = "student"
)
