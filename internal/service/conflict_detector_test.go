package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
)

const nyMondayMorning = "America/New_York"

func newTestDetector(store *sessionStoreStub, tutorID string, windows []models.AvailabilityWindow) *ConflictDetector {
	repo := &availabilityRepoStub{windows: map[string][]models.AvailabilityWindow{tutorID: windows}}
	avail := NewAvailabilityService(repo, &tutorRepoStub{}, store, nil, 0, nil, nil)
	return NewConflictDetector(store, avail, DetectorConfig{
		MinNotice:         2 * time.Hour,
		SuggestionCount:   3,
		SuggestionHorizon: 7 * 24 * time.Hour,
		SlotStep:          30 * time.Minute,
	}, zap.NewNop())
}

func mondayMorning(tutorID string) []models.AvailabilityWindow {
	return weekdayWindows(tutorID, nyMondayMorning, "09:00", "12:00", time.Monday)
}

func kinds(conflicts []models.Conflict) []models.ConflictKind {
	out := make([]models.ConflictKind, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, c.Kind)
	}
	return out
}

func TestDetectAcceptsSlotInsideAvailability(t *testing.T) {
	detector := newTestDetector(newSessionStore(), "tutor-1", mondayMorning("tutor-1"))
	now := mustTime("2024-03-01T12:00:00Z")

	conflicts, err := detector.Detect(context.Background(), Candidate{
		TutorID: "tutor-1", StudentID: "student-1",
		Start: mustTime("2024-03-04T15:00:00Z"), DurationMinutes: 60,
	}, now)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestDetectOutsideAvailabilitySuggestsNextOpenSlots(t *testing.T) {
	detector := newTestDetector(newSessionStore(), "tutor-1", mondayMorning("tutor-1"))
	now := mustTime("2024-03-01T12:00:00Z")

	// 11:30-12:30 spills past the window closing at noon.
	conflicts, err := detector.Detect(context.Background(), Candidate{
		TutorID: "tutor-1", StudentID: "student-1",
		Start: mustTime("2024-03-04T16:30:00Z"), DurationMinutes: 60,
	}, now)
	require.NoError(t, err)
	require.Equal(t, []models.ConflictKind{models.ConflictOutsideAvailability}, kinds(conflicts))
	assert.Equal(t, []time.Time{
		mustTime("2024-03-11T13:00:00Z"),
		mustTime("2024-03-11T13:30:00Z"),
		mustTime("2024-03-11T14:00:00Z"),
	}, conflicts[0].Suggestions)
}

func TestDetectTutorOverlapButNotAdjacency(t *testing.T) {
	existing := models.Session{
		ID: "existing", TutorID: "tutor-7", StudentID: "student-a",
		ScheduledAt: mustTime("2024-03-04T15:00:00Z"), DurationMinutes: 60,
	}
	detector := newTestDetector(newSessionStore(existing), "tutor-7", mondayMorning("tutor-7"))
	now := mustTime("2024-03-01T12:00:00Z")

	conflicts, err := detector.Detect(context.Background(), Candidate{
		TutorID: "tutor-7", StudentID: "student-b",
		Start: mustTime("2024-03-04T15:30:00Z"), DurationMinutes: 60,
	}, now)
	require.NoError(t, err)
	require.Equal(t, []models.ConflictKind{models.ConflictTutorBusy}, kinds(conflicts))
	assert.Equal(t, "existing", conflicts[0].SessionID)
	require.NotEmpty(t, conflicts[0].Suggestions)
	assert.Equal(t, mustTime("2024-03-04T16:00:00Z"), conflicts[0].Suggestions[0])

	adjacent, err := detector.Detect(context.Background(), Candidate{
		TutorID: "tutor-7", StudentID: "student-b",
		Start: mustTime("2024-03-04T16:00:00Z"), DurationMinutes: 60,
	}, now)
	require.NoError(t, err)
	assert.Empty(t, adjacent)
}

func TestDetectStudentBusyWithAnotherTutor(t *testing.T) {
	existing := models.Session{
		ID: "other-tutor", TutorID: "tutor-9", StudentID: "student-1",
		ScheduledAt: mustTime("2024-03-04T14:30:00Z"), DurationMinutes: 60,
	}
	detector := newTestDetector(newSessionStore(existing), "tutor-1", mondayMorning("tutor-1"))

	conflicts, err := detector.Detect(context.Background(), Candidate{
		TutorID: "tutor-1", StudentID: "student-1",
		Start: mustTime("2024-03-04T15:00:00Z"), DurationMinutes: 60,
	}, mustTime("2024-03-01T12:00:00Z"))
	require.NoError(t, err)
	require.Equal(t, []models.ConflictKind{models.ConflictStudentBusy}, kinds(conflicts))
	assert.Equal(t, "other-tutor", conflicts[0].SessionID)
}

func TestDetectIgnoresCancelledAndExcludedSessions(t *testing.T) {
	cancelled := models.Session{
		ID: "cancelled", TutorID: "tutor-1", StudentID: "student-2",
		ScheduledAt: mustTime("2024-03-04T15:00:00Z"), DurationMinutes: 60, Status: models.SessionCancelled,
	}
	own := models.Session{
		ID: "own", TutorID: "tutor-1", StudentID: "student-1",
		ScheduledAt: mustTime("2024-03-04T14:30:00Z"), DurationMinutes: 60,
	}
	detector := newTestDetector(newSessionStore(cancelled, own), "tutor-1", mondayMorning("tutor-1"))

	conflicts, err := detector.Detect(context.Background(), Candidate{
		TutorID: "tutor-1", StudentID: "student-1",
		Start: mustTime("2024-03-04T15:00:00Z"), DurationMinutes: 60, ExcludeSessionID: "own",
	}, mustTime("2024-03-01T12:00:00Z"))
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestDetectReportsEveryTimeRuleInOrder(t *testing.T) {
	detector := newTestDetector(newSessionStore(), "tutor-1", nil)
	now := mustTime("2024-03-04T16:00:00Z")

	conflicts, err := detector.Detect(context.Background(), Candidate{
		TutorID: "tutor-1", StudentID: "student-1",
		Start: mustTime("2024-03-04T15:00:00Z"), DurationMinutes: 60,
	}, now)
	require.NoError(t, err)
	assert.Equal(t, []models.ConflictKind{
		models.ConflictPastTime,
		models.ConflictTooShortNotice,
		models.ConflictOutsideAvailability,
	}, kinds(conflicts))
	assert.Empty(t, conflicts[2].Suggestions)
}

func TestDetectShortNoticeOnly(t *testing.T) {
	detector := newTestDetector(newSessionStore(), "tutor-1", mondayMorning("tutor-1"))

	conflicts, err := detector.Detect(context.Background(), Candidate{
		TutorID: "tutor-1", StudentID: "student-1",
		Start: mustTime("2024-03-04T15:00:00Z"), DurationMinutes: 60,
	}, mustTime("2024-03-04T14:30:00Z"))
	require.NoError(t, err)
	require.Equal(t, []models.ConflictKind{models.ConflictTooShortNotice}, kinds(conflicts))
	assert.Contains(t, conflicts[0].Message, "2 hours")
}

func TestDetectSeriesIsIndexAligned(t *testing.T) {
	existing := models.Session{
		ID: "busy", TutorID: "tutor-1", StudentID: "student-x",
		ScheduledAt: mustTime("2024-03-11T14:00:00Z"), DurationMinutes: 60,
	}
	detector := newTestDetector(newSessionStore(existing), "tutor-1", mondayMorning("tutor-1"))
	base := Candidate{TutorID: "tutor-1", StudentID: "student-1", DurationMinutes: 60}
	starts := []time.Time{
		mustTime("2024-03-04T15:00:00Z"),
		mustTime("2024-03-11T14:00:00Z"),
		mustTime("2024-03-18T14:00:00Z"),
	}

	results, err := detector.DetectSeries(context.Background(), base, starts, mustTime("2024-03-01T12:00:00Z"))
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Empty(t, results[0])
	assert.Equal(t, []models.ConflictKind{models.ConflictTutorBusy}, kinds(results[1]))
	assert.Empty(t, results[2])
}

func TestDetectRejectsNonPositiveDuration(t *testing.T) {
	detector := newTestDetector(newSessionStore(), "tutor-1", nil)
	_, err := detector.Detect(context.Background(), Candidate{TutorID: "tutor-1", StudentID: "s", Start: time.Now()}, time.Now())
	assert.Error(t, err)
}
