package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/tutoring-scheduler-api/pkg/errors"
)

type sessionOverlapReader interface {
	ListOverlapping(ctx context.Context, participantID string, role models.ParticipantRole, interval models.Interval, excludeID string) ([]models.Session, error)
}

type scheduleSource interface {
	Schedule(ctx context.Context, tutorID string) (*WeeklySchedule, error)
}

// DetectorConfig tunes conflict detection and alternative suggestions.
type DetectorConfig struct {
	MinNotice         time.Duration
	SuggestionCount   int
	SuggestionHorizon time.Duration
	SlotStep          time.Duration
}

// Candidate is a slot being evaluated for booking.
type Candidate struct {
	TutorID          string
	StudentID        string
	Start            time.Time
	DurationMinutes  int
	ExcludeSessionID string
}

// Interval returns the half-open span the candidate would occupy.
func (c Candidate) Interval() models.Interval {
	return models.Interval{Start: c.Start, End: c.Start.Add(time.Duration(c.DurationMinutes) * time.Minute)}
}

// ConflictDetector evaluates candidates against time rules, availability and existing sessions.
type ConflictDetector struct {
	sessions     sessionOverlapReader
	availability scheduleSource
	cfg          DetectorConfig
	logger       *zap.Logger
}

// NewConflictDetector instantiates ConflictDetector.
func NewConflictDetector(sessions sessionOverlapReader, availability scheduleSource, cfg DetectorConfig, logger *zap.Logger) *ConflictDetector {
	if cfg.SuggestionHorizon <= 0 {
		cfg.SuggestionHorizon = 7 * 24 * time.Hour
	}
	if cfg.SlotStep <= 0 {
		cfg.SlotStep = 30 * time.Minute
	}
	if cfg.SuggestionCount < 0 {
		cfg.SuggestionCount = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictDetector{sessions: sessions, availability: availability, cfg: cfg, logger: logger}
}

// Detect collects every conflict of the candidate in a fixed order: past_time,
// too_short_notice, outside_availability, tutor_busy, student_busy. Availability and busy
// conflicts carry suggested alternative starts.
func (d *ConflictDetector) Detect(ctx context.Context, c Candidate, now time.Time) ([]models.Conflict, error) {
	if c.DurationMinutes <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "duration must be positive")
	}
	schedule, err := d.availability.Schedule(ctx, c.TutorID)
	if err != nil {
		return nil, err
	}
	interval := c.Interval()
	tutorBusy, studentBusy, err := d.busy(ctx, c, interval)
	if err != nil {
		return nil, err
	}

	conflicts := d.evaluate(c, now, schedule, tutorBusy, studentBusy)
	if d.needsSuggestions(conflicts) {
		suggestions, err := d.suggest(ctx, c, now, schedule)
		if err != nil {
			return nil, err
		}
		attachSuggestions(conflicts, suggestions)
	}
	return conflicts, nil
}

// DetectSeries evaluates many starts of the same participants and duration, loading
// availability and busy sessions once. The result is index-aligned with starts.
func (d *ConflictDetector) DetectSeries(ctx context.Context, base Candidate, starts []time.Time, now time.Time) ([][]models.Conflict, error) {
	results := make([][]models.Conflict, len(starts))
	if len(starts) == 0 {
		return results, nil
	}
	schedule, err := d.availability.Schedule(ctx, base.TutorID)
	if err != nil {
		return nil, err
	}

	duration := time.Duration(base.DurationMinutes) * time.Minute
	span := models.Interval{Start: starts[0], End: starts[0].Add(duration)}
	for _, st := range starts[1:] {
		if st.Before(span.Start) {
			span.Start = st
		}
		if end := st.Add(duration); end.After(span.End) {
			span.End = end
		}
	}
	tutorBusy, studentBusy, err := d.busy(ctx, base, span)
	if err != nil {
		return nil, err
	}

	for i, st := range starts {
		c := base
		c.Start = st
		results[i] = d.evaluate(c, now, schedule, filterOverlapping(tutorBusy, c.Interval()), filterOverlapping(studentBusy, c.Interval()))
	}
	return results, nil
}

func (d *ConflictDetector) busy(ctx context.Context, c Candidate, interval models.Interval) ([]models.Session, []models.Session, error) {
	tutorBusy, err := d.sessions.ListOverlapping(ctx, c.TutorID, models.RoleAsTutor, interval, c.ExcludeSessionID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor sessions")
	}
	studentBusy, err := d.sessions.ListOverlapping(ctx, c.StudentID, models.RoleAsStudent, interval, c.ExcludeSessionID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student sessions")
	}
	return tutorBusy, studentBusy, nil
}

func (d *ConflictDetector) evaluate(c Candidate, now time.Time, schedule *WeeklySchedule, tutorBusy, studentBusy []models.Session) []models.Conflict {
	conflicts := []models.Conflict{}
	interval := c.Interval()

	if !c.Start.After(now) {
		conflicts = append(conflicts, models.Conflict{
			Kind:    models.ConflictPastTime,
			Message: "requested start time is in the past",
		})
	}
	if c.Start.Before(now.Add(d.cfg.MinNotice)) {
		conflicts = append(conflicts, models.Conflict{
			Kind:    models.ConflictTooShortNotice,
			Message: fmt.Sprintf("sessions must be booked at least %s in advance", formatNotice(d.cfg.MinNotice)),
		})
	}
	if !schedule.Covers(interval.Start, interval.Duration()) {
		conflicts = append(conflicts, models.Conflict{
			Kind:    models.ConflictOutsideAvailability,
			Message: "requested time is outside the tutor's availability",
		})
	}
	for _, s := range filterOverlapping(tutorBusy, interval) {
		if s.ID == c.ExcludeSessionID {
			continue
		}
		conflicts = append(conflicts, models.Conflict{
			Kind:      models.ConflictTutorBusy,
			Message:   fmt.Sprintf("tutor already has a session from %s to %s", s.ScheduledAt.Format(time.RFC3339), s.EndsAt.Format(time.RFC3339)),
			SessionID: s.ID,
		})
	}
	for _, s := range filterOverlapping(studentBusy, interval) {
		if s.ID == c.ExcludeSessionID {
			continue
		}
		conflicts = append(conflicts, models.Conflict{
			Kind:      models.ConflictStudentBusy,
			Message:   fmt.Sprintf("student already has a session from %s to %s", s.ScheduledAt.Format(time.RFC3339), s.EndsAt.Format(time.RFC3339)),
			SessionID: s.ID,
		})
	}
	return conflicts
}

func (d *ConflictDetector) needsSuggestions(conflicts []models.Conflict) bool {
	if d.cfg.SuggestionCount == 0 {
		return false
	}
	for _, c := range conflicts {
		if suggestible(c.Kind) {
			return true
		}
	}
	return false
}

func suggestible(kind models.ConflictKind) bool {
	switch kind {
	case models.ConflictOutsideAvailability, models.ConflictTutorBusy, models.ConflictStudentBusy:
		return true
	}
	return false
}

func attachSuggestions(conflicts []models.Conflict, suggestions []time.Time) {
	if len(suggestions) == 0 {
		return
	}
	for i := range conflicts {
		if suggestible(conflicts[i].Kind) {
			conflicts[i].Suggestions = suggestions
		}
	}
}

// suggest walks the tutor's open intervals forward from the later of the requested start and
// the notice boundary, returning starts on the step grid free for both participants.
func (d *ConflictDetector) suggest(ctx context.Context, c Candidate, now time.Time, schedule *WeeklySchedule) ([]time.Time, error) {
	duration := time.Duration(c.DurationMinutes) * time.Minute
	from := now.Add(d.cfg.MinNotice)
	if c.Start.After(from) {
		from = c.Start
	}
	from = ceilToStep(from, d.cfg.SlotStep)
	to := from.Add(d.cfg.SuggestionHorizon)

	window := models.Interval{Start: from, End: to.Add(duration)}
	tutorBusy, studentBusy, err := d.busy(ctx, c, window)
	if err != nil {
		return nil, err
	}

	suggestions := make([]time.Time, 0, d.cfg.SuggestionCount)
	for iv := range schedule.Open(from, window.End) {
		for start := ceilToStep(iv.Start, d.cfg.SlotStep); !start.Add(duration).After(iv.End) && start.Before(to); start = start.Add(d.cfg.SlotStep) {
			slot := models.Interval{Start: start, End: start.Add(duration)}
			if anyOverlap(tutorBusy, slot, c.ExcludeSessionID) || anyOverlap(studentBusy, slot, c.ExcludeSessionID) {
				continue
			}
			suggestions = append(suggestions, start)
			if len(suggestions) == d.cfg.SuggestionCount {
				return suggestions, nil
			}
		}
	}
	return suggestions, nil
}

func filterOverlapping(sessions []models.Session, interval models.Interval) []models.Session {
	var out []models.Session
	for _, s := range sessions {
		if s.Status == models.SessionCancelled {
			continue
		}
		if s.Interval().Overlaps(interval) {
			out = append(out, s)
		}
	}
	return out
}

func anyOverlap(sessions []models.Session, interval models.Interval, excludeID string) bool {
	for _, s := range filterOverlapping(sessions, interval) {
		if s.ID != excludeID {
			return true
		}
	}
	return false
}

func ceilToStep(t time.Time, step time.Duration) time.Time {
	truncated := t.Truncate(step)
	if truncated.Before(t) {
		return truncated.Add(step)
	}
	return truncated
}

func formatNotice(d time.Duration) string {
	if d%time.Hour == 0 {
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d minutes", int(d/time.Minute))
}
