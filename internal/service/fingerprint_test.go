package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/tutoring-scheduler-api/internal/dto"
	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
)

func TestBookingFingerprintIgnoresPresentationDifferences(t *testing.T) {
	base := dto.BookSessionRequest{
		TutorID: "tutor-1", StudentID: "student-1", StartLocal: "2024-03-04T10:00", Timezone: "America/New_York",
		Subject:    "Café French",
		Recurrence: &models.RecurrencePattern{Frequency: models.FrequencyWeekly, DaysOfWeek: []time.Weekday{time.Wednesday, time.Monday}},
	}
	same := base
	same.Subject = " Café French "
	same.Recurrence = &models.RecurrencePattern{Frequency: models.FrequencyWeekly, Interval: 1, DaysOfWeek: []time.Weekday{time.Monday, time.Wednesday}}

	assert.Equal(t, BookingFingerprint(base, 60), BookingFingerprint(same, 60))
	assert.Len(t, BookingFingerprint(base, 60), 64)
}

func TestBookingFingerprintChangesWithContent(t *testing.T) {
	base := dto.BookSessionRequest{TutorID: "tutor-1", StudentID: "student-1", StartLocal: "2024-03-04T10:00", Timezone: "UTC"}
	moved := base
	moved.StartLocal = "2024-03-04T11:00"
	split := base
	split.TutorID, split.StudentID = "tutor-1s", "tudent-1"

	assert.NotEqual(t, BookingFingerprint(base, 60), BookingFingerprint(moved, 60))
	assert.NotEqual(t, BookingFingerprint(base, 60), BookingFingerprint(base, 90))
	assert.NotEqual(t, BookingFingerprint(base, 60), BookingFingerprint(split, 60))
}
