package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-scheduler-api/internal/dto"
	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/cache"
	appErrors "github.com/noah-isme/tutoring-scheduler-api/pkg/errors"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/timezone"
)

const maxOpenSlotRange = 31 * 24 * time.Hour

type availabilityRepository interface {
	ListByTutor(ctx context.Context, tutorID string) ([]models.AvailabilityWindow, error)
	ReplaceForTutor(ctx context.Context, tutorID string, windows []models.AvailabilityWindow) error
}

type tutorRepository interface {
	FindByID(ctx context.Context, id string) (*models.Tutor, error)
}

// AvailabilityService owns tutor weekly open hours and their read-through cache.
type AvailabilityService struct {
	repo      availabilityRepository
	tutors    tutorRepository
	sessions  sessionRangeReader
	cache     *CacheService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityService instantiates AvailabilityService. cache may be nil; without sessions
// open slots are the bare weekly hours.
func NewAvailabilityService(repo availabilityRepository, tutors tutorRepository, sessions sessionRangeReader, cacheSvc *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{repo: repo, tutors: tutors, sessions: sessions, cache: cacheSvc, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// ListWindows returns the tutor's windows ordered by day then start time.
func (s *AvailabilityService) ListWindows(ctx context.Context, tutorID string) ([]models.AvailabilityWindow, error) {
	key := cache.AvailabilityKey(tutorID)
	var cached []models.AvailabilityWindow
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	windows, err := s.repo.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	if windows == nil {
		windows = []models.AvailabilityWindow{}
	}
	_ = s.cache.Set(ctx, key, windows, s.cacheTTL)
	return windows, nil
}

// ReplaceWindows validates and stores a tutor's complete set of windows, then drops the cached copy.
func (s *AvailabilityService) ReplaceWindows(ctx context.Context, tutorID string, req dto.ReplaceAvailabilityRequest) ([]models.AvailabilityWindow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if _, err := timezone.LoadLocation(req.Timezone); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidTimezone.Code, appErrors.ErrInvalidTimezone.Status, "unknown timezone "+req.Timezone)
	}
	if _, err := s.tutors.FindByID(ctx, tutorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrEntityNotFound, "tutor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
	}

	windows := make([]models.AvailabilityWindow, 0, len(req.Windows))
	for _, in := range req.Windows {
		windows = append(windows, models.AvailabilityWindow{
			TutorID:   tutorID,
			DayOfWeek: time.Weekday(in.DayOfWeek),
			StartTime: in.StartTime,
			EndTime:   in.EndTime,
			Timezone:  req.Timezone,
		})
	}
	if _, err := NewWeeklySchedule(windows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	if err := s.repo.ReplaceForTutor(ctx, tutorID, windows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save availability")
	}
	if err := s.cache.Invalidate(ctx, cache.AvailabilityKey(tutorID)); err != nil {
		s.logger.Warn("stale availability may be served until ttl", zap.String("tutor_id", tutorID), zap.Error(err))
	}
	s.logger.Info("availability replaced", zap.String("tutor_id", tutorID), zap.Int("windows", len(windows)))
	return windows, nil
}

// Schedule compiles the tutor's windows.
func (s *AvailabilityService) Schedule(ctx context.Context, tutorID string) (*WeeklySchedule, error) {
	windows, err := s.ListWindows(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	schedule, err := NewWeeklySchedule(windows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored availability is invalid")
	}
	return schedule, nil
}

// IsOpen reports whether the tutor is open for the whole of [start, start+duration).
func (s *AvailabilityService) IsOpen(ctx context.Context, tutorID string, start time.Time, durationMinutes int) (bool, error) {
	schedule, err := s.Schedule(ctx, tutorID)
	if err != nil {
		return false, err
	}
	return schedule.Covers(start, time.Duration(durationMinutes)*time.Minute), nil
}

// EnumerateOpenSlots materialises the open intervals in [from, to) with local renderings.
// Hours taken by the tutor's sessions that are not cancelled are cut out.
func (s *AvailabilityService) EnumerateOpenSlots(ctx context.Context, tutorID string, from, to time.Time) ([]models.OpenSlot, error) {
	if !from.Before(to) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from must be before to")
	}
	if to.Sub(from) > maxOpenSlotRange {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range must not exceed 31 days")
	}
	schedule, err := s.Schedule(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	booked, err := s.booked(ctx, tutorID, from, to)
	if err != nil {
		return nil, err
	}

	slots := []models.OpenSlot{}
	for open := range schedule.Open(from, to) {
		for _, iv := range open.Subtract(booked) {
			slots = append(slots, models.OpenSlot{
				Start:      iv.Start,
				End:        iv.End,
				LocalStart: timezone.InLocation(iv.Start, schedule.Location()).String(),
				LocalEnd:   timezone.InLocation(iv.End, schedule.Location()).String(),
				Timezone:   schedule.Timezone(),
			})
		}
	}
	return slots, nil
}

func (s *AvailabilityService) booked(ctx context.Context, tutorID string, from, to time.Time) ([]models.Interval, error) {
	if s.sessions == nil {
		return nil, nil
	}
	sessions, err := s.sessions.ListForTutorRange(ctx, tutorID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booked sessions")
	}
	busy := make([]models.Interval, 0, len(sessions))
	for _, session := range sessions {
		if session.Status == models.SessionCancelled {
			continue
		}
		busy = append(busy, session.Interval())
	}
	return busy, nil
}
