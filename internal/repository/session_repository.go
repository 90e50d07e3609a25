package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
)

const sessionColumns = `id, tutor_id, student_id, scheduled_at, duration_minutes, ends_at, status, parent_session_id, price_cents, currency, timezone, subject, notes, cancelled_at, cancellation_reason, refund_cents, created_at, updated_at`

const insertSessionQuery = `INSERT INTO sessions (` + sessionColumns + `) VALUES (:id, :tutor_id, :student_id, :scheduled_at, :duration_minutes, :ends_at, :status, :parent_session_id, :price_cents, :currency, :timezone, :subject, :notes, :cancelled_at, :cancellation_reason, :refund_cents, :created_at, :updated_at)`

// BookingBatch is a seed session plus its recurrence occurrences, written atomically.
type BookingBatch struct {
	Seed           models.Session
	Occurrences    []models.Session
	IdempotencyKey string
	Fingerprint    string
	// Now stamps rows that carry no CreatedAt.
	Now time.Time
}

// DroppedOccurrence is an occurrence the database refused because a concurrent booking won the slot.
type DroppedOccurrence struct {
	Session models.Session
	Role    models.ParticipantRole
}

// BookingOutcome lists what was actually committed.
type BookingOutcome struct {
	Seed        models.Session
	Occurrences []models.Session
	Dropped     []DroppedOccurrence
}

// BookingRequestRecord links an idempotency key to the seed it produced.
type BookingRequestRecord struct {
	IdempotencyKey string    `db:"idempotency_key"`
	Fingerprint    string    `db:"fingerprint"`
	SessionID      string    `db:"session_id"`
	CreatedAt      time.Time `db:"created_at"`
}

// SessionRepository provides persistence for sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// FindByID loads a session by id.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	var session models.Session
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	normalize(&session)
	return &session, nil
}

// List returns sessions with optional filtering and pagination.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.Session, int, error) {
	base := "FROM sessions WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TutorID != "" {
		conditions = append(conditions, fmt.Sprintf("tutor_id = $%d", len(args)+1))
		args = append(args, filter.TutorID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(statuses))
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("ends_at > $%d", len(args)+1))
		args = append(args, filter.From.UTC())
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("scheduled_at < $%d", len(args)+1))
		args = append(args, filter.To.UTC())
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY scheduled_at %s, id ASC LIMIT %d OFFSET %d", sessionColumns, base, order, size, offset)
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	normalizeAll(sessions)
	return sessions, total, nil
}

// ListForTutorRange returns every session of a tutor intersecting [from, to), oldest first.
func (r *SessionRepository) ListForTutorRange(ctx context.Context, tutorID string, from, to time.Time) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE tutor_id = $1 AND scheduled_at < $3 AND ends_at > $2 ORDER BY scheduled_at ASC`
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, tutorID, from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("list tutor sessions in range: %w", err)
	}
	normalizeAll(sessions)
	return sessions, nil
}

// ListOverlapping returns non-cancelled sessions where the participant, matched on the column of
// the given role, overlaps the half-open interval. excludeID skips one session.
func (r *SessionRepository) ListOverlapping(ctx context.Context, participantID string, role models.ParticipantRole, interval models.Interval, excludeID string) ([]models.Session, error) {
	column := "tutor_id"
	if role == models.RoleAsStudent {
		column = "student_id"
	}
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE ` + column + ` = $1 AND status <> 'cancelled' AND scheduled_at < $3 AND ends_at > $2`
	args := []interface{}{participantID, interval.Start.UTC(), interval.End.UTC()}
	if excludeID != "" {
		query += " AND id <> $4"
		args = append(args, excludeID)
	}
	query += " ORDER BY scheduled_at ASC"

	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, args...); err != nil {
		return nil, fmt.Errorf("list overlapping sessions: %w", err)
	}
	normalizeAll(sessions)
	return sessions, nil
}

// ListSeries returns the occurrences linked to a seed session.
func (r *SessionRepository) ListSeries(ctx context.Context, seedID string) ([]models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE parent_session_id = $1 ORDER BY scheduled_at ASC`
	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, seedID); err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	normalizeAll(sessions)
	return sessions, nil
}

// FindBookingByKey returns the request recorded under an idempotency key.
func (r *SessionRepository) FindBookingByKey(ctx context.Context, key string) (*BookingRequestRecord, error) {
	const query = `SELECT idempotency_key, fingerprint, session_id, created_at FROM booking_requests WHERE idempotency_key = $1`
	var record BookingRequestRecord
	if err := r.db.GetContext(ctx, &record, query, key); err != nil {
		return nil, err
	}
	return &record, nil
}

// CreateBooking inserts the seed, the idempotency record and every occurrence in one
// transaction. A seed that collides with a committed booking fails the whole batch with an
// *OverlapError; a colliding occurrence is rolled back to its savepoint and reported as dropped.
func (r *SessionRepository) CreateBooking(ctx context.Context, batch BookingBatch) (outcome *BookingOutcome, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create booking: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := batch.Now.UTC()
	seed := batch.Seed
	prepareInsert(&seed, now)
	if _, err = sqlx.NamedExecContext(ctx, tx, insertSessionQuery, &seed); err != nil {
		if overlap, ok := asOverlap(err); ok {
			err = overlap
			return nil, err
		}
		return nil, fmt.Errorf("insert seed session: %w", err)
	}

	if batch.IdempotencyKey != "" {
		record := BookingRequestRecord{IdempotencyKey: batch.IdempotencyKey, Fingerprint: batch.Fingerprint, SessionID: seed.ID, CreatedAt: seed.CreatedAt}
		if _, err = sqlx.NamedExecContext(ctx, tx, `INSERT INTO booking_requests (idempotency_key, fingerprint, session_id, created_at) VALUES (:idempotency_key, :fingerprint, :session_id, :created_at)`, &record); err != nil {
			if isUniqueViolation(err, "") {
				err = ErrIdempotencyKeyTaken
				return nil, err
			}
			return nil, fmt.Errorf("insert booking request: %w", err)
		}
	}

	outcome = &BookingOutcome{Seed: seed}
	for _, occ := range batch.Occurrences {
		occ.ParentSessionID = &seed.ID
		prepareInsert(&occ, now)

		if _, err = tx.ExecContext(ctx, "SAVEPOINT occurrence"); err != nil {
			return nil, fmt.Errorf("savepoint occurrence: %w", err)
		}
		if _, err = sqlx.NamedExecContext(ctx, tx, insertSessionQuery, &occ); err != nil {
			overlap, ok := asOverlap(err)
			if !ok {
				return nil, fmt.Errorf("insert occurrence: %w", err)
			}
			if _, err = tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT occurrence"); err != nil {
				return nil, fmt.Errorf("rollback occurrence: %w", err)
			}
			outcome.Dropped = append(outcome.Dropped, DroppedOccurrence{Session: occ, Role: overlap.Role})
			continue
		}
		if _, err = tx.ExecContext(ctx, "RELEASE SAVEPOINT occurrence"); err != nil {
			return nil, fmt.Errorf("release occurrence: %w", err)
		}
		outcome.Occurrences = append(outcome.Occurrences, occ)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create booking: %w", err)
	}
	return outcome, nil
}

// Reschedule moves a scheduled session. It fails with ErrStatusChanged when the session left the
// scheduled state and with *OverlapError when the new slot is taken.
func (r *SessionRepository) Reschedule(ctx context.Context, id string, start, end time.Time, timezone string, at time.Time) error {
	const query = `UPDATE sessions SET scheduled_at = $2, ends_at = $3, timezone = $4, updated_at = $5 WHERE id = $1 AND status = 'scheduled'`
	res, err := r.db.ExecContext(ctx, query, id, start.UTC(), end.UTC(), timezone, at.UTC())
	if err != nil {
		if overlap, ok := asOverlap(err); ok {
			return overlap
		}
		return fmt.Errorf("reschedule session: %w", err)
	}
	return expectOneRow(res)
}

// TransitionStatus moves a session from one status to another using compare-and-set.
func (r *SessionRepository) TransitionStatus(ctx context.Context, id string, from, to models.SessionStatus, at time.Time) error {
	const query = `UPDATE sessions SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, string(from), string(to), at.UTC())
	if err != nil {
		return fmt.Errorf("transition session status: %w", err)
	}
	return expectOneRow(res)
}

// Cancel marks a scheduled session cancelled and records the refund granted.
func (r *SessionRepository) Cancel(ctx context.Context, id, reason string, refundCents int64, at time.Time) error {
	const query = `UPDATE sessions SET status = 'cancelled', cancelled_at = $2, cancellation_reason = $3, refund_cents = $4, updated_at = $2 WHERE id = $1 AND status = 'scheduled'`
	var reasonArg interface{}
	if reason != "" {
		reasonArg = reason
	}
	res, err := r.db.ExecContext(ctx, query, id, at.UTC(), reasonArg, refundCents)
	if err != nil {
		return fmt.Errorf("cancel session: %w", err)
	}
	return expectOneRow(res)
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func expectOneRow(res rowsAffecter) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrStatusChanged
	}
	return nil
}

func prepareInsert(s *models.Session, now time.Time) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = models.SessionScheduled
	}
	s.ScheduledAt = s.ScheduledAt.UTC()
	s.EndsAt = s.ScheduledAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = s.CreatedAt
	}
}

func normalize(s *models.Session) {
	s.ScheduledAt = s.ScheduledAt.UTC()
	s.EndsAt = s.EndsAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	if s.CancelledAt != nil {
		t := s.CancelledAt.UTC()
		s.CancelledAt = &t
	}
}

func normalizeAll(sessions []models.Session) {
	for i := range sessions {
		normalize(&sessions[i])
	}
}
