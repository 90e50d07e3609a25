package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/noah-isme/tutoring-scheduler-api/internal/dto"
	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
	"github.com/noah-isme/tutoring-scheduler-api/internal/repository"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/config"
	appErrors "github.com/noah-isme/tutoring-scheduler-api/pkg/errors"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/timezone"
)

type sessionRepository interface {
	FindByID(ctx context.Context, id string) (*models.Session, error)
	List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error)
	ListSeries(ctx context.Context, seedID string) ([]models.Session, error)
	FindBookingByKey(ctx context.Context, key string) (*repository.BookingRequestRecord, error)
	CreateBooking(ctx context.Context, batch repository.BookingBatch) (*repository.BookingOutcome, error)
	Reschedule(ctx context.Context, id string, start, end time.Time, timezone string, at time.Time) error
	TransitionStatus(ctx context.Context, id string, from, to models.SessionStatus, at time.Time) error
	Cancel(ctx context.Context, id, reason string, refundCents int64, at time.Time) error
}

type studentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type conflictDetector interface {
	Detect(ctx context.Context, c Candidate, now time.Time) ([]models.Conflict, error)
	DetectSeries(ctx context.Context, base Candidate, starts []time.Time, now time.Time) ([][]models.Conflict, error)
}

type sessionNotifier interface {
	NotifyParticipants(ctx context.Context, session *models.Session, eventType string, occurrences int)
}

type refundDispatcher interface {
	Dispatch(session *models.Session, amount int64) error
}

// BookingConfig holds the booking policy.
type BookingConfig struct {
	MaxAdvance               time.Duration
	DefaultDurationMinutes   int
	MinDurationMinutes       int
	MaxDurationMinutes       int
	MaxRecurrenceOccurrences int
	StartWindow              time.Duration
}

// BookingConfigFrom converts loaded configuration into the booking policy.
func BookingConfigFrom(cfg config.BookingConfig) BookingConfig {
	return BookingConfig{
		MaxAdvance:               time.Duration(cfg.MaxAdvanceDays) * 24 * time.Hour,
		DefaultDurationMinutes:   cfg.DefaultDurationMinutes,
		MinDurationMinutes:       cfg.MinDurationMinutes,
		MaxDurationMinutes:       cfg.MaxDurationMinutes,
		MaxRecurrenceOccurrences: cfg.MaxRecurrenceOccurrences,
		StartWindow:              time.Duration(cfg.StartWindowMinutes) * time.Minute,
	}
}

// DetectorConfigFrom converts loaded configuration into the detector settings.
func DetectorConfigFrom(cfg config.BookingConfig) DetectorConfig {
	return DetectorConfig{
		MinNotice:         time.Duration(cfg.MinNoticeHours) * time.Hour,
		SuggestionCount:   cfg.SuggestionCount,
		SuggestionHorizon: time.Duration(cfg.SuggestionHorizonDays) * 24 * time.Hour,
		SlotStep:          time.Duration(cfg.SlotStepMinutes) * time.Minute,
	}
}

// BookingService is the entry point for booking and every session lifecycle operation.
type BookingService struct {
	sessions  sessionRepository
	tutors    tutorRepository
	students  studentRepository
	detector  conflictDetector
	notifier  sessionNotifier
	refunds   refundDispatcher
	metrics   *MetricsService
	cfg       BookingConfig
	now       func() time.Time
	validator *validator.Validate
	logger    *zap.Logger
}

// BookingDeps groups BookingService collaborators.
type BookingDeps struct {
	Sessions sessionRepository
	Tutors   tutorRepository
	Students studentRepository
	Detector conflictDetector
	Notifier sessionNotifier
	Refunds  refundDispatcher
	Metrics  *MetricsService
}

// NewBookingService instantiates BookingService. now defaults to time.Now.
func NewBookingService(deps BookingDeps, cfg BookingConfig, now func() time.Time, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if cfg.DefaultDurationMinutes <= 0 {
		cfg.DefaultDurationMinutes = 60
	}
	if cfg.MinDurationMinutes <= 0 {
		cfg.MinDurationMinutes = 1
	}
	if cfg.MaxDurationMinutes < cfg.MinDurationMinutes {
		cfg.MaxDurationMinutes = 24 * 60
	}
	if cfg.MaxRecurrenceOccurrences <= 0 {
		cfg.MaxRecurrenceOccurrences = DefaultRecurrenceCap
	}
	if deps.Notifier == nil {
		deps.Notifier = (*NotificationService)(nil)
	}
	if deps.Refunds == nil {
		deps.Refunds = (*RefundDispatcher)(nil)
	}
	if now == nil {
		now = time.Now
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		sessions:  deps.Sessions,
		tutors:    deps.Tutors,
		students:  deps.Students,
		detector:  deps.Detector,
		notifier:  deps.Notifier,
		refunds:   deps.Refunds,
		metrics:   deps.Metrics,
		cfg:       cfg,
		now:       now,
		validator: validate,
		logger:    logger,
	}
}

// BookSession validates a request, rejects it with the full conflict list when the seed slot
// is not bookable, and otherwise persists the seed and every non-conflicting occurrence in one
// transaction. A non-empty BookingResult.Conflicts means nothing was written.
func (s *BookingService) BookSession(ctx context.Context, req dto.BookSessionRequest) (*dto.BookingResult, error) {
	if err := s.validator.Struct(req); err != nil {
		s.metrics.RecordBooking(BookingOutcomeRejected)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	req.Subject = norm.NFC.String(strings.TrimSpace(req.Subject))
	req.Notes = norm.NFC.String(strings.TrimSpace(req.Notes))

	duration, err := s.duration(req.DurationMinutes)
	if err != nil {
		s.metrics.RecordBooking(BookingOutcomeRejected)
		return nil, err
	}
	start, loc, err := resolveStart(req.StartLocal, req.Timezone)
	if err != nil {
		s.metrics.RecordBooking(BookingOutcomeRejected)
		return nil, err
	}
	now := s.now().UTC()
	if err := s.checkHorizon(start, now); err != nil {
		s.metrics.RecordBooking(BookingOutcomeRejected)
		return nil, err
	}

	tutor, err := s.loadTutor(ctx, req.TutorID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}

	fingerprint := ""
	if req.IdempotencyKey != "" {
		fingerprint = BookingFingerprint(req, duration)
		replayed, err := s.replay(ctx, req.IdempotencyKey, fingerprint)
		if err != nil || replayed != nil {
			return replayed, err
		}
	}

	candidate := Candidate{TutorID: tutor.ID, StudentID: req.StudentID, Start: start, DurationMinutes: duration}
	conflicts, err := s.detector.Detect(ctx, candidate, now)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		s.metrics.RecordBooking(BookingOutcomeConflict)
		s.metrics.RecordConflicts(conflicts)
		return &dto.BookingResult{Conflicts: conflicts}, nil
	}

	seed := models.Session{
		TutorID:         tutor.ID,
		StudentID:       req.StudentID,
		ScheduledAt:     start,
		DurationMinutes: duration,
		EndsAt:          start.Add(time.Duration(duration) * time.Minute),
		Status:          models.SessionScheduled,
		PriceCents:      tutor.HourlyRateCents * int64(duration) / 60,
		Currency:        tutor.Currency,
		Timezone:        req.Timezone,
		Subject:         req.Subject,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	batch := repository.BookingBatch{Seed: seed, IdempotencyKey: req.IdempotencyKey, Fingerprint: fingerprint, Now: now}
	var skipped []dto.SkippedOccurrence
	if req.Recurrence != nil {
		batch.Occurrences, skipped, err = s.expandSeries(ctx, candidate, seed, loc, *req.Recurrence, now)
		if err != nil {
			return nil, err
		}
	}

	outcome, err := s.sessions.CreateBooking(ctx, batch)
	if err != nil {
		var overlap *repository.OverlapError
		switch {
		case errors.As(err, &overlap):
			// A same-key retry loses to its own first submit on the exclusion constraint.
			if req.IdempotencyKey != "" {
				replayed, rerr := s.replay(ctx, req.IdempotencyKey, fingerprint)
				if rerr != nil {
					return nil, rerr
				}
				if replayed != nil {
					return replayed, nil
				}
			}
			conflict := raceConflict(overlap.Role)
			s.metrics.RecordBooking(BookingOutcomeConflict)
			s.metrics.RecordConflicts([]models.Conflict{conflict})
			return &dto.BookingResult{Conflicts: []models.Conflict{conflict}}, nil
		case errors.Is(err, repository.ErrIdempotencyKeyTaken):
			replayed, rerr := s.replay(ctx, req.IdempotencyKey, fingerprint)
			if rerr != nil {
				return nil, rerr
			}
			if replayed != nil {
				return replayed, nil
			}
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist booking")
	}

	for _, dropped := range outcome.Dropped {
		skipped = append(skipped, dto.SkippedOccurrence{
			ScheduledAt: dropped.Session.ScheduledAt,
			Conflicts:   []models.Conflict{raceConflict(dropped.Role)},
		})
	}

	result := &dto.BookingResult{Session: &outcome.Seed, Occurrences: outcome.Occurrences, Skipped: skipped}
	s.metrics.RecordBooking(BookingOutcomeBooked)
	s.metrics.RecordOccurrences(len(outcome.Occurrences), len(skipped))
	s.notifier.NotifyParticipants(ctx, &outcome.Seed, models.EventSessionBooked, 1+len(outcome.Occurrences))
	s.logger.Info("session booked",
		zap.String("session_id", outcome.Seed.ID),
		zap.String("tutor_id", outcome.Seed.TutorID),
		zap.String("student_id", outcome.Seed.StudentID),
		zap.Time("scheduled_at", outcome.Seed.ScheduledAt),
		zap.Int("occurrences", len(outcome.Occurrences)),
		zap.Int("skipped", len(skipped)),
	)
	return result, nil
}

// expandSeries returns the occurrences after the seed that are free, and the ones dropped
// because they conflict. Dropped occurrences are never moved to another time.
func (s *BookingService) expandSeries(ctx context.Context, candidate Candidate, seed models.Session, loc *time.Location, pattern models.RecurrencePattern, now time.Time) ([]models.Session, []dto.SkippedOccurrence, error) {
	starts, err := ExpandRecurrence(seed.ScheduledAt, loc, pattern, s.cfg.MaxRecurrenceOccurrences)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	rest := starts[1:]
	results, err := s.detector.DetectSeries(ctx, candidate, rest, now)
	if err != nil {
		return nil, nil, err
	}

	var occurrences []models.Session
	var skipped []dto.SkippedOccurrence
	for i, st := range rest {
		if len(results[i]) > 0 {
			skipped = append(skipped, dto.SkippedOccurrence{ScheduledAt: st, Conflicts: results[i]})
			continue
		}
		occ := seed
		occ.ScheduledAt = st
		occ.EndsAt = st.Add(time.Duration(seed.DurationMinutes) * time.Minute)
		occurrences = append(occurrences, occ)
	}
	return occurrences, skipped, nil
}

func (s *BookingService) replay(ctx context.Context, key, fingerprint string) (*dto.BookingResult, error) {
	record, err := s.sessions.FindBookingByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load idempotency key")
	}
	if record.Fingerprint != fingerprint {
		return nil, appErrors.Clone(appErrors.ErrIdempotencyMismatch, "idempotency key was used for a different booking")
	}
	seed, err := s.sessions.FindByID(ctx, record.SessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booked session")
	}
	series, err := s.sessions.ListSeries(ctx, seed.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booked series")
	}
	s.metrics.RecordBooking(BookingOutcomeReplayed)
	return &dto.BookingResult{Session: seed, Occurrences: series, Replayed: true}, nil
}

// CheckAvailability runs detection for a candidate without booking it.
func (s *BookingService) CheckAvailability(ctx context.Context, req dto.CheckAvailabilityRequest) (*dto.AvailabilityCheckResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability query")
	}
	duration, err := s.duration(req.DurationMinutes)
	if err != nil {
		return nil, err
	}
	start, _, err := resolveStart(req.StartLocal, req.Timezone)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadTutor(ctx, req.TutorID); err != nil {
		return nil, err
	}
	if err := s.ensureStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}

	candidate := Candidate{TutorID: req.TutorID, StudentID: req.StudentID, Start: start, DurationMinutes: duration, ExcludeSessionID: req.ExcludeSessionID}
	conflicts, err := s.detector.Detect(ctx, candidate, s.now().UTC())
	if err != nil {
		return nil, err
	}
	return &dto.AvailabilityCheckResult{
		Available:   len(conflicts) == 0,
		ScheduledAt: start,
		EndsAt:      candidate.Interval().End,
		Conflicts:   conflicts,
	}, nil
}

// RescheduleSession moves a scheduled session, re-running detection while ignoring the session
// itself.
func (s *BookingService) RescheduleSession(ctx context.Context, id string, req dto.RescheduleSessionRequest) (*dto.BookingResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionScheduled {
		return nil, invalidTransition(session.Status, "reschedule")
	}

	start, _, err := resolveStart(req.StartLocal, req.Timezone)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.checkHorizon(start, now); err != nil {
		return nil, err
	}

	candidate := Candidate{TutorID: session.TutorID, StudentID: session.StudentID, Start: start, DurationMinutes: session.DurationMinutes, ExcludeSessionID: session.ID}
	conflicts, err := s.detector.Detect(ctx, candidate, now)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		s.metrics.RecordConflicts(conflicts)
		return &dto.BookingResult{Conflicts: conflicts}, nil
	}

	end := candidate.Interval().End
	if err := s.sessions.Reschedule(ctx, session.ID, start, end, req.Timezone, now); err != nil {
		var overlap *repository.OverlapError
		switch {
		case errors.As(err, &overlap):
			return &dto.BookingResult{Conflicts: []models.Conflict{raceConflict(overlap.Role)}}, nil
		case errors.Is(err, repository.ErrStatusChanged):
			return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition, "session is no longer scheduled")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule session")
	}

	session.ScheduledAt = start
	session.EndsAt = end
	session.Timezone = req.Timezone
	session.UpdatedAt = now
	s.notifier.NotifyParticipants(ctx, session, models.EventSessionRescheduled, 1)
	s.logger.Info("session rescheduled", zap.String("session_id", session.ID), zap.Time("scheduled_at", start))
	return &dto.BookingResult{Session: session}, nil
}

// StartSession moves a scheduled session to ongoing when called within the start window.
func (s *BookingService) StartSession(ctx context.Context, id string) (*models.Session, error) {
	return s.transition(ctx, id, models.SessionScheduled, models.SessionOngoing, models.EventSessionStarted, func(session *models.Session, now time.Time) error {
		opens := session.ScheduledAt.Add(-s.cfg.StartWindow)
		closes := session.ScheduledAt.Add(s.cfg.StartWindow)
		if now.Before(opens) || now.After(closes) {
			return appErrors.WithDetails(appErrors.ErrOutsideStartWindow, map[string]time.Time{
				"window_opens":  opens,
				"window_closes": closes,
			})
		}
		return nil
	})
}

// EndSession completes an ongoing session.
func (s *BookingService) EndSession(ctx context.Context, id string) (*models.Session, error) {
	return s.transition(ctx, id, models.SessionOngoing, models.SessionCompleted, models.EventSessionCompleted, nil)
}

// MarkNoShow records that a scheduled session never started. It is only accepted once the
// start window has closed.
func (s *BookingService) MarkNoShow(ctx context.Context, id string) (*models.Session, error) {
	return s.transition(ctx, id, models.SessionScheduled, models.SessionNoShow, models.EventSessionNoShow, func(session *models.Session, now time.Time) error {
		if !now.After(session.ScheduledAt.Add(s.cfg.StartWindow)) {
			return appErrors.Clone(appErrors.ErrInvalidStateTransition, "no-show can only be recorded after the start window closes")
		}
		return nil
	})
}

func (s *BookingService) transition(ctx context.Context, id string, from, to models.SessionStatus, event string, guard func(*models.Session, time.Time) error) (*models.Session, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != from {
		return nil, invalidTransition(session.Status, string(to))
	}
	now := s.now().UTC()
	if guard != nil {
		if err := guard(session, now); err != nil {
			return nil, err
		}
	}
	if err := s.sessions.TransitionStatus(ctx, session.ID, from, to, now); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition, "session status changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session status")
	}
	session.Status = to
	session.UpdatedAt = now
	s.metrics.RecordTransition(from, to)
	s.notifier.NotifyParticipants(ctx, session, event, 1)
	s.logger.Info("session status changed", zap.String("session_id", session.ID), zap.String("from", string(from)), zap.String("to", string(to)))
	return session, nil
}

// CancelSession cancels a scheduled session, records the refund owed under the time-based
// policy and queues the wallet credit.
func (s *BookingService) CancelSession(ctx context.Context, id string, req dto.CancelSessionRequest) (*models.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancel payload")
	}
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionScheduled {
		return nil, invalidTransition(session.Status, string(models.SessionCancelled))
	}

	now := s.now().UTC()
	amount, pct := RefundAmount(session.PriceCents, session.ScheduledAt, now)
	reason := norm.NFC.String(strings.TrimSpace(req.Reason))
	if err := s.sessions.Cancel(ctx, session.ID, reason, amount, now); err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return nil, appErrors.Clone(appErrors.ErrInvalidStateTransition, "session status changed concurrently")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel session")
	}

	session.Status = models.SessionCancelled
	session.CancelledAt = &now
	if reason != "" {
		session.CancellationReason = &reason
	}
	session.RefundCents = &amount
	session.UpdatedAt = now

	if err := s.refunds.Dispatch(session, amount); err != nil {
		s.logger.Error("refund credit must be replayed manually", zap.String("session_id", session.ID), zap.Int64("amount", amount), zap.Error(err))
	}
	s.metrics.RecordTransition(models.SessionScheduled, models.SessionCancelled)
	s.metrics.RecordRefund(amount, session.Currency)
	s.notifier.NotifyParticipants(ctx, session, models.EventSessionCancelled, 1)
	s.logger.Info("session cancelled", zap.String("session_id", session.ID), zap.Int("refund_percent", pct), zap.Int64("refund_cents", amount))
	return session, nil
}

// RefundQuote previews what cancelling now would refund.
func (s *BookingService) RefundQuote(ctx context.Context, id string) (*dto.RefundQuote, error) {
	session, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionScheduled {
		return nil, invalidTransition(session.Status, string(models.SessionCancelled))
	}
	now := s.now().UTC()
	amount, pct := RefundAmount(session.PriceCents, session.ScheduledAt, now)
	return &dto.RefundQuote{
		SessionID:   session.ID,
		HoursUntil:  HoursUntil(session.ScheduledAt, now),
		Percent:     pct,
		AmountCents: amount,
		Currency:    session.Currency,
	}, nil
}

// GetSession loads one session.
func (s *BookingService) GetSession(ctx context.Context, id string) (*models.Session, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

// ListSessions returns sessions with pagination metadata.
func (s *BookingService) ListSessions(ctx context.Context, query dto.SessionQuery) ([]models.Session, *models.Pagination, error) {
	filter := models.SessionFilter{
		TutorID:   query.TutorID,
		StudentID: query.StudentID,
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortOrder: query.SortOrder,
	}
	if query.Status != "" {
		for _, raw := range strings.Split(query.Status, ",") {
			status := models.SessionStatus(strings.TrimSpace(raw))
			if !status.Valid() {
				return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", raw))
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	var err error
	if filter.From, err = parseInstant(query.From, "from"); err != nil {
		return nil, nil, err
	}
	if filter.To, err = parseInstant(query.To, "to"); err != nil {
		return nil, nil, err
	}

	sessions, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	return sessions, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *BookingService) duration(requested int) (int, error) {
	if requested == 0 {
		requested = s.cfg.DefaultDurationMinutes
	}
	if requested < s.cfg.MinDurationMinutes || requested > s.cfg.MaxDurationMinutes {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duration must be between %d and %d minutes", s.cfg.MinDurationMinutes, s.cfg.MaxDurationMinutes))
	}
	return requested, nil
}

func (s *BookingService) checkHorizon(start, now time.Time) error {
	if s.cfg.MaxAdvance > 0 && start.After(now.Add(s.cfg.MaxAdvance)) {
		days := int(s.cfg.MaxAdvance / (24 * time.Hour))
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("sessions can be booked at most %d days ahead", days))
	}
	return nil
}

func (s *BookingService) loadTutor(ctx context.Context, id string) (*models.Tutor, error) {
	tutor, err := s.tutors.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrEntityNotFound, "tutor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
	}
	if !tutor.Active {
		return nil, appErrors.Clone(appErrors.ErrEntityInactive, "tutor is not active")
	}
	return tutor, nil
}

func (s *BookingService) ensureStudent(ctx context.Context, id string) error {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrEntityNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return appErrors.Clone(appErrors.ErrEntityInactive, "student is not active")
	}
	return nil
}

// resolveStart converts a wall-clock string in a zone into a UTC instant.
func resolveStart(startLocal, tzID string) (time.Time, *time.Location, error) {
	loc, err := timezone.LoadLocation(tzID)
	if err != nil {
		return time.Time{}, nil, appErrors.Wrap(err, appErrors.ErrInvalidTimezone.Code, appErrors.ErrInvalidTimezone.Status, fmt.Sprintf("unknown timezone %q", tzID))
	}
	wall, err := timezone.ParseWallClock(startLocal)
	if err != nil {
		return time.Time{}, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "start_local must look like 2006-01-02T15:04")
	}
	start, err := timezone.ToAbsolute(wall, tzID)
	if err != nil {
		return time.Time{}, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("%s does not exist in %s", wall, tzID))
	}
	return start, loc, nil
}

func parseInstant(raw, name string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be an RFC3339 timestamp", name))
	}
	t = t.UTC()
	return &t, nil
}

func raceConflict(role models.ParticipantRole) models.Conflict {
	if role == models.RoleAsStudent {
		return models.Conflict{Kind: models.ConflictStudentBusy, Message: "student was booked for an overlapping session concurrently"}
	}
	return models.Conflict{Kind: models.ConflictTutorBusy, Message: "tutor was booked for an overlapping session concurrently"}
}

func invalidTransition(status models.SessionStatus, action string) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrInvalidStateTransition, fmt.Sprintf("cannot %s a %s session", action, status))
}
