package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
)

// AvailabilityRepository persists tutor weekly open hours.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository creates a new availability repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListByTutor returns the tutor's windows ordered by day then start time.
func (r *AvailabilityRepository) ListByTutor(ctx context.Context, tutorID string) ([]models.AvailabilityWindow, error) {
	const query = `SELECT id, tutor_id, day_of_week, start_time, end_time, timezone, created_at FROM availability_windows WHERE tutor_id = $1 ORDER BY day_of_week ASC, start_time ASC, end_time ASC`
	var windows []models.AvailabilityWindow
	if err := r.db.SelectContext(ctx, &windows, query, tutorID); err != nil {
		return nil, fmt.Errorf("list availability windows: %w", err)
	}
	return windows, nil
}

// ReplaceForTutor swaps every window of a tutor inside one transaction.
func (r *AvailabilityRepository) ReplaceForTutor(ctx context.Context, tutorID string, windows []models.AvailabilityWindow) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace availability: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM availability_windows WHERE tutor_id = $1`, tutorID); err != nil {
		return fmt.Errorf("delete availability windows: %w", err)
	}

	now := time.Now().UTC()
	for i := range windows {
		w := &windows[i]
		if w.ID == "" {
			w.ID = uuid.NewString()
		}
		w.TutorID = tutorID
		if w.CreatedAt.IsZero() {
			w.CreatedAt = now
		}
		if _, err = sqlx.NamedExecContext(ctx, tx, `INSERT INTO availability_windows (id, tutor_id, day_of_week, start_time, end_time, timezone, created_at) VALUES (:id, :tutor_id, :day_of_week, :start_time, :end_time, :timezone, :created_at)`, w); err != nil {
			return fmt.Errorf("insert availability window: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace availability: %w", err)
	}
	return nil
}
