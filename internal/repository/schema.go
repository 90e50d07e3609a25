package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Constraint names surfaced by Postgres when a write would double-book a participant.
const (
	constraintTutorOverlap   = "sessions_tutor_no_overlap"
	constraintStudentOverlap = "sessions_student_no_overlap"
	constraintLedgerOnce     = "wallet_transactions_session_reason_key"
)

// Schema bootstraps every table the scheduler owns. Statements are idempotent.
var Schema = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`CREATE TABLE IF NOT EXISTS tutors (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		timezone TEXT NOT NULL,
		hourly_rate_cents BIGINT NOT NULL DEFAULT 0 CHECK (hourly_rate_cents >= 0),
		currency CHAR(3) NOT NULL DEFAULT 'USD',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS availability_windows (
		id TEXT PRIMARY KEY,
		tutor_id TEXT NOT NULL REFERENCES tutors(id) ON DELETE CASCADE,
		day_of_week SMALLINT NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
		start_time CHAR(5) NOT NULL,
		end_time CHAR(5) NOT NULL,
		timezone TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_availability_windows_tutor ON availability_windows (tutor_id, day_of_week, start_time)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		tutor_id TEXT NOT NULL REFERENCES tutors(id),
		student_id TEXT NOT NULL REFERENCES students(id),
		scheduled_at TIMESTAMPTZ NOT NULL,
		duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
		ends_at TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('scheduled','ongoing','completed','cancelled','no-show')),
		parent_session_id TEXT REFERENCES sessions(id),
		price_cents BIGINT NOT NULL CHECK (price_cents >= 0),
		currency CHAR(3) NOT NULL,
		timezone TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		cancelled_at TIMESTAMPTZ,
		cancellation_reason TEXT,
		refund_cents BIGINT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK (ends_at > scheduled_at)
	)`,
	`DO $$ BEGIN
		ALTER TABLE sessions ADD CONSTRAINT ` + constraintTutorOverlap + `
			EXCLUDE USING gist (tutor_id WITH =, tstzrange(scheduled_at, ends_at, '[)') WITH &&)
			WHERE (status <> 'cancelled');
	EXCEPTION WHEN duplicate_object OR duplicate_table THEN NULL;
	END $$`,
	`DO $$ BEGIN
		ALTER TABLE sessions ADD CONSTRAINT ` + constraintStudentOverlap + `
			EXCLUDE USING gist (student_id WITH =, tstzrange(scheduled_at, ends_at, '[)') WITH &&)
			WHERE (status <> 'cancelled');
	EXCEPTION WHEN duplicate_object OR duplicate_table THEN NULL;
	END $$`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_parent ON sessions (parent_session_id)`,
	`CREATE TABLE IF NOT EXISTS booking_requests (
		idempotency_key TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		session_id TEXT NOT NULL REFERENCES sessions(id),
		amount_cents BIGINT NOT NULL CHECK (amount_cents >= 0),
		currency CHAR(3) NOT NULL,
		reason TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		CONSTRAINT ` + constraintLedgerOnce + ` UNIQUE (session_id, reason)
	)`,
}

// Migrate applies Schema in a single transaction.
func Migrate(ctx context.Context, db *sqlx.DB) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migrate: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range Schema {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migrate: %w", err)
	}
	return nil
}
