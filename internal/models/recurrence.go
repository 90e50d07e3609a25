package models

import "time"

// RecurrenceFrequency is the cadence unit of a series.
type RecurrenceFrequency string

const (
	FrequencyDaily   RecurrenceFrequency = "daily"
	FrequencyWeekly  RecurrenceFrequency = "weekly"
	FrequencyMonthly RecurrenceFrequency = "monthly"
)

// RecurrencePattern describes how a seed session repeats. EndDate is an
// inclusive local calendar date in "2006-01-02" form.
type RecurrencePattern struct {
	Frequency      RecurrenceFrequency `json:"frequency" validate:"required,oneof=daily weekly monthly"`
	Interval       int                 `json:"interval" validate:"omitempty,min=1,max=52"`
	DaysOfWeek     []time.Weekday      `json:"days_of_week,omitempty" validate:"omitempty,dive,min=0,max=6"`
	EndDate        string              `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	MaxOccurrences int                 `json:"max_occurrences,omitempty" validate:"omitempty,min=1"`
}
