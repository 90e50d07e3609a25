package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
	"github.com/noah-isme/tutoring-scheduler-api/internal/repository"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/jobs"
)

// sessionStoreStub keeps sessions in memory and enforces the same no-overlap rule the
// database does.
type sessionStoreStub struct {
	mu       sync.Mutex
	items    []*models.Session
	keys     map[string]repository.BookingRequestRecord
	seq      int
	raceSeed *models.ParticipantRole
	listErr  error
	// stale hides every committed row from reads until the next CreateBooking, as a
	// transaction that started before a concurrent commit would see it.
	stale bool
}

func newSessionStore(existing ...models.Session) *sessionStoreStub {
	store := &sessionStoreStub{keys: map[string]repository.BookingRequestRecord{}}
	for i := range existing {
		s := existing[i]
		if s.EndsAt.IsZero() {
			s.EndsAt = s.ScheduledAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
		}
		if s.Status == "" {
			s.Status = models.SessionScheduled
		}
		store.items = append(store.items, &s)
	}
	return store
}

func (s *sessionStoreStub) find(id string) *models.Session {
	for _, item := range s.items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

func (s *sessionStoreStub) FindByID(ctx context.Context, id string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.find(id)
	if item == nil {
		return nil, sql.ErrNoRows
	}
	cp := *item
	return &cp, nil
}

func (s *sessionStoreStub) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Session
	for _, item := range s.items {
		if filter.TutorID != "" && item.TutorID != filter.TutorID {
			continue
		}
		if filter.StudentID != "" && item.StudentID != filter.StudentID {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, st := range filter.Statuses {
				match = match || st == item.Status
			}
			if !match {
				continue
			}
		}
		out = append(out, *item)
	}
	return out, len(out), nil
}

func (s *sessionStoreStub) ListSeries(ctx context.Context, seedID string) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Session
	for _, item := range s.items {
		if item.ParentSessionID != nil && *item.ParentSessionID == seedID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *sessionStoreStub) ListOverlapping(ctx context.Context, participantID string, role models.ParticipantRole, interval models.Interval, excludeID string) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale {
		return nil, nil
	}
	var out []models.Session
	for _, item := range s.items {
		owner := item.TutorID
		if role == models.RoleAsStudent {
			owner = item.StudentID
		}
		if owner != participantID || item.ID == excludeID || item.Status == models.SessionCancelled {
			continue
		}
		if item.Interval().Overlaps(interval) {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (s *sessionStoreStub) ListForTutorRange(ctx context.Context, tutorID string, from, to time.Time) ([]models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stale {
		return nil, nil
	}
	var out []models.Session
	for _, item := range s.items {
		if item.TutorID == tutorID && item.ScheduledAt.Before(to) && item.EndsAt.After(from) {
			out = append(out, *item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (s *sessionStoreStub) FindBookingByKey(ctx context.Context, key string) (*repository.BookingRequestRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.keys[key]
	if !ok || s.stale {
		return nil, sql.ErrNoRows
	}
	return &record, nil
}

func (s *sessionStoreStub) overlapRole(candidate *models.Session) (models.ParticipantRole, bool) {
	for _, item := range s.items {
		if item.Status == models.SessionCancelled || !item.Interval().Overlaps(candidate.Interval()) {
			continue
		}
		if item.TutorID == candidate.TutorID {
			return models.RoleAsTutor, true
		}
		if item.StudentID == candidate.StudentID {
			return models.RoleAsStudent, true
		}
	}
	return "", false
}

func (s *sessionStoreStub) insert(session models.Session) *models.Session {
	s.seq++
	session.ID = fmt.Sprintf("session-%d", s.seq)
	session.Status = models.SessionScheduled
	s.items = append(s.items, &session)
	return &session
}

func (s *sessionStoreStub) CreateBooking(ctx context.Context, batch repository.BookingBatch) (*repository.BookingOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale = false
	if s.raceSeed != nil {
		return nil, &repository.OverlapError{Role: *s.raceSeed}
	}
	if role, ok := s.overlapRole(&batch.Seed); ok {
		return nil, &repository.OverlapError{Role: role}
	}
	if batch.IdempotencyKey != "" {
		if _, taken := s.keys[batch.IdempotencyKey]; taken {
			return nil, repository.ErrIdempotencyKeyTaken
		}
	}
	seed := s.insert(batch.Seed)
	if batch.IdempotencyKey != "" {
		s.keys[batch.IdempotencyKey] = repository.BookingRequestRecord{IdempotencyKey: batch.IdempotencyKey, Fingerprint: batch.Fingerprint, SessionID: seed.ID}
	}
	outcome := &repository.BookingOutcome{Seed: *seed}
	for _, occ := range batch.Occurrences {
		occ.ParentSessionID = &seed.ID
		if role, ok := s.overlapRole(&occ); ok {
			outcome.Dropped = append(outcome.Dropped, repository.DroppedOccurrence{Session: occ, Role: role})
			continue
		}
		outcome.Occurrences = append(outcome.Occurrences, *s.insert(occ))
	}
	return outcome, nil
}

func (s *sessionStoreStub) Reschedule(ctx context.Context, id string, start, end time.Time, tz string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.find(id)
	if item == nil || item.Status != models.SessionScheduled {
		return repository.ErrStatusChanged
	}
	item.ScheduledAt, item.EndsAt, item.Timezone, item.UpdatedAt = start, end, tz, at
	return nil
}

func (s *sessionStoreStub) TransitionStatus(ctx context.Context, id string, from, to models.SessionStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.find(id)
	if item == nil || item.Status != from {
		return repository.ErrStatusChanged
	}
	item.Status = to
	item.UpdatedAt = at
	return nil
}

func (s *sessionStoreStub) Cancel(ctx context.Context, id, reason string, refundCents int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item := s.find(id)
	if item == nil || item.Status != models.SessionScheduled {
		return repository.ErrStatusChanged
	}
	item.Status = models.SessionCancelled
	item.CancelledAt = &at
	item.RefundCents = &refundCents
	return nil
}

type tutorRepoStub struct {
	items map[string]*models.Tutor
}

func (r *tutorRepoStub) FindByID(ctx context.Context, id string) (*models.Tutor, error) {
	if t, ok := r.items[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type studentRepoStub struct {
	items map[string]*models.Student
}

func (r *studentRepoStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := r.items[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

type availabilityRepoStub struct {
	windows  map[string][]models.AvailabilityWindow
	listCall int
}

func (r *availabilityRepoStub) ListByTutor(ctx context.Context, tutorID string) ([]models.AvailabilityWindow, error) {
	r.listCall++
	return r.windows[tutorID], nil
}

func (r *availabilityRepoStub) ReplaceForTutor(ctx context.Context, tutorID string, windows []models.AvailabilityWindow) error {
	if r.windows == nil {
		r.windows = map[string][]models.AvailabilityWindow{}
	}
	r.windows[tutorID] = windows
	return nil
}

type queueStub struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (q *queueStub) TryEnqueue(job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *queueStub) types() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, 0, len(q.jobs))
	for _, j := range q.jobs {
		out = append(out, j.Type)
	}
	return out
}

// weekdayWindows opens the same hours on each given weekday.
func weekdayWindows(tutorID, tz, start, end string, days ...time.Weekday) []models.AvailabilityWindow {
	out := make([]models.AvailabilityWindow, 0, len(days))
	for _, d := range days {
		out = append(out, models.AvailabilityWindow{TutorID: tutorID, DayOfWeek: d, StartTime: start, EndTime: end, Timezone: tz})
	}
	return out
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		panic(err)
	}
	return t
}
