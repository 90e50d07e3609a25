package models

// Session event types published to participants.
const (
	EventSessionBooked      = "session_booked"
	EventSessionRescheduled = "session_rescheduled"
	EventSessionStarted     = "session_started"
	EventSessionCompleted   = "session_completed"
	EventSessionCancelled   = "session_cancelled"
	EventSessionNoShow      = "session_no_show"
)
