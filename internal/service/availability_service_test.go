package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-scheduler-api/internal/dto"
	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/cache"
	appErrors "github.com/noah-isme/tutoring-scheduler-api/pkg/errors"
)

type memoryCache struct {
	data    map[string][]byte
	deleted []string
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *memoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
		m.deleted = append(m.deleted, k)
	}
	return nil
}

func newAvailabilityFixture(booked ...models.Session) (*AvailabilityService, *availabilityRepoStub, *memoryCache) {
	repo := &availabilityRepoStub{windows: map[string][]models.AvailabilityWindow{
		"tutor-1": mondayMorning("tutor-1"),
	}}
	tutors := &tutorRepoStub{items: map[string]*models.Tutor{
		"tutor-1": {ID: "tutor-1", Active: true, Timezone: nyMondayMorning},
	}}
	mem := &memoryCache{data: map[string][]byte{}}
	cacheSvc := NewCacheService(mem, NewMetricsService(), time.Minute, zap.NewNop(), true)
	return NewAvailabilityService(repo, tutors, newSessionStore(booked...), cacheSvc, time.Minute, nil, zap.NewNop()), repo, mem
}

func TestAvailabilityListWindowsReadsThroughCache(t *testing.T) {
	svc, repo, mem := newAvailabilityFixture()

	first, err := svc.ListWindows(context.Background(), "tutor-1")
	require.NoError(t, err)
	second, err := svc.ListWindows(context.Background(), "tutor-1")
	require.NoError(t, err)

	assert.Equal(t, 1, repo.listCall)
	assert.Equal(t, first, second)
	assert.Contains(t, mem.data, cache.AvailabilityKey("tutor-1"))
}

func TestAvailabilityReplaceWindowsInvalidatesCache(t *testing.T) {
	svc, repo, mem := newAvailabilityFixture()
	_, err := svc.ListWindows(context.Background(), "tutor-1")
	require.NoError(t, err)

	windows, err := svc.ReplaceWindows(context.Background(), "tutor-1", dto.ReplaceAvailabilityRequest{
		Timezone: "Europe/Paris",
		Windows:  []dto.AvailabilityWindowInput{{DayOfWeek: 2, StartTime: "14:00", EndTime: "18:00"}},
	})
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, time.Tuesday, windows[0].DayOfWeek)
	assert.Equal(t, []string{cache.AvailabilityKey("tutor-1")}, mem.deleted)

	fresh, err := svc.ListWindows(context.Background(), "tutor-1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCall)
	assert.Equal(t, "Europe/Paris", fresh[0].Timezone)
}

func TestAvailabilityReplaceWindowsValidation(t *testing.T) {
	svc, _, _ := newAvailabilityFixture()
	ctx := context.Background()

	_, err := svc.ReplaceWindows(ctx, "tutor-1", dto.ReplaceAvailabilityRequest{Timezone: "Nowhere/Special"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidTimezone)

	_, err = svc.ReplaceWindows(ctx, "missing", dto.ReplaceAvailabilityRequest{Timezone: "UTC"})
	assert.ErrorIs(t, err, appErrors.ErrEntityNotFound)

	_, err = svc.ReplaceWindows(ctx, "tutor-1", dto.ReplaceAvailabilityRequest{
		Timezone: "UTC",
		Windows:  []dto.AvailabilityWindowInput{{DayOfWeek: 1, StartTime: "12:00", EndTime: "11:00"}},
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.ReplaceWindows(ctx, "tutor-1", dto.ReplaceAvailabilityRequest{
		Timezone: "UTC",
		Windows:  []dto.AvailabilityWindowInput{{DayOfWeek: 8, StartTime: "09:00", EndTime: "11:00"}},
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAvailabilityEnumerateOpenSlots(t *testing.T) {
	svc, _, _ := newAvailabilityFixture()

	slots, err := svc.EnumerateOpenSlots(context.Background(), "tutor-1", mustTime("2024-03-03T00:00:00Z"), mustTime("2024-03-13T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "2024-03-04T09:00:00", slots[0].LocalStart)
	assert.Equal(t, mustTime("2024-03-04T14:00:00Z"), slots[0].Start)
	assert.Equal(t, "2024-03-11T12:00:00", slots[1].LocalEnd)
	assert.Equal(t, mustTime("2024-03-11T16:00:00Z"), slots[1].End)

	_, err = svc.EnumerateOpenSlots(context.Background(), "tutor-1", mustTime("2024-03-01T00:00:00Z"), mustTime("2024-05-01T00:00:00Z"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAvailabilityOpenSlotsSkipBookedSessions(t *testing.T) {
	svc, _, _ := newAvailabilityFixture(
		models.Session{ID: "booked", TutorID: "tutor-1", StudentID: "student-1", ScheduledAt: mustTime("2024-03-04T15:00:00Z"), DurationMinutes: 60},
		models.Session{ID: "dropped", TutorID: "tutor-1", StudentID: "student-2", ScheduledAt: mustTime("2024-03-11T14:00:00Z"), DurationMinutes: 60, Status: models.SessionCancelled},
		models.Session{ID: "other", TutorID: "tutor-2", StudentID: "student-1", ScheduledAt: mustTime("2024-03-11T14:00:00Z"), DurationMinutes: 60},
	)

	slots, err := svc.EnumerateOpenSlots(context.Background(), "tutor-1", mustTime("2024-03-03T00:00:00Z"), mustTime("2024-03-13T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, mustTime("2024-03-04T14:00:00Z"), slots[0].Start)
	assert.Equal(t, mustTime("2024-03-04T15:00:00Z"), slots[0].End)
	assert.Equal(t, "2024-03-04T10:00:00", slots[0].LocalEnd)
	assert.Equal(t, mustTime("2024-03-04T16:00:00Z"), slots[1].Start)
	assert.Equal(t, mustTime("2024-03-04T17:00:00Z"), slots[1].End)
	assert.Equal(t, mustTime("2024-03-11T13:00:00Z"), slots[2].Start)
	assert.Equal(t, mustTime("2024-03-11T16:00:00Z"), slots[2].End)
}

func TestAvailabilityWithoutCache(t *testing.T) {
	repo := &availabilityRepoStub{windows: map[string][]models.AvailabilityWindow{"tutor-1": mondayMorning("tutor-1")}}
	svc := NewAvailabilityService(repo, &tutorRepoStub{}, nil, nil, 0, nil, nil)

	open, err := svc.IsOpen(context.Background(), "tutor-1", mustTime("2024-03-04T15:00:00Z"), 60)
	require.NoError(t, err)
	assert.True(t, open)
	_, err = svc.ListWindows(context.Background(), "tutor-1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCall)
}
