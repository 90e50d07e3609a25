package models

import "time"

// AvailabilityWindow is one recurring weekly open-hours entry for a tutor.
// StartTime and EndTime are local wall-clock "HH:MM"; EndTime may be "24:00".
type AvailabilityWindow struct {
	ID        string       `db:"id" json:"id"`
	TutorID   string       `db:"tutor_id" json:"tutor_id"`
	DayOfWeek time.Weekday `db:"day_of_week" json:"day_of_week"`
	StartTime string       `db:"start_time" json:"start_time"`
	EndTime   string       `db:"end_time" json:"end_time"`
	Timezone  string       `db:"timezone" json:"timezone"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// OpenSlot is a concrete open interval rendered for a client.
type OpenSlot struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	LocalStart string    `json:"local_start"`
	LocalEnd   string    `json:"local_end"`
	Timezone   string    `json:"timezone"`
}
