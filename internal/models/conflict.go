package models

import "time"

// ConflictKind identifies why a candidate slot cannot be booked.
type ConflictKind string

const (
	ConflictPastTime            ConflictKind = "past_time"
	ConflictTooShortNotice      ConflictKind = "too_short_notice"
	ConflictOutsideAvailability ConflictKind = "outside_availability"
	ConflictTutorBusy           ConflictKind = "tutor_busy"
	ConflictStudentBusy         ConflictKind = "student_busy"
)

// Conflict is an immutable description of a blocking reason.
type Conflict struct {
	Kind        ConflictKind `json:"kind"`
	Message     string       `json:"message"`
	SessionID   string       `json:"session_id,omitempty"`
	Suggestions []time.Time  `json:"suggestions,omitempty"`
}
