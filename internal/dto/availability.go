package dto

import "github.com/noah-isme/tutoring-scheduler-api/internal/models"

// AvailabilityWindowInput is one weekly open-hours entry.
type AvailabilityWindowInput struct {
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required,len=5"`
	EndTime   string `json:"end_time" validate:"required,len=5"`
}

// ReplaceAvailabilityRequest replaces every window of a tutor. All windows share Timezone.
type ReplaceAvailabilityRequest struct {
	Timezone string                    `json:"timezone" validate:"required,max=64"`
	Windows  []AvailabilityWindowInput `json:"windows" validate:"max=100,dive"`
}

// AvailabilityResponse groups a tutor's windows.
type AvailabilityResponse struct {
	TutorID  string                      `json:"tutor_id"`
	Timezone string                      `json:"timezone,omitempty"`
	Windows  []models.AvailabilityWindow `json:"windows"`
}

// OpenSlotsQuery bounds an open-slot enumeration. From and To are RFC3339 instants.
type OpenSlotsQuery struct {
	From string `form:"from" validate:"required"`
	To   string `form:"to" validate:"required"`
}

// ExportQuery selects the schedule export format and range.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
	From   string `form:"from" validate:"required"`
	To     string `form:"to" validate:"required"`
}
