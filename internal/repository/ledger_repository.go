package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
)

// LedgerRepository writes wallet credits.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository creates a new ledger repository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Credit records a wallet credit once per (session, reason). It reports false when the credit
// already existed.
func (r *LedgerRepository) Credit(ctx context.Context, entry *models.LedgerEntry) (bool, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO wallet_transactions (id, user_id, session_id, amount_cents, currency, reason, created_at) VALUES (:id, :user_id, :session_id, :amount_cents, :currency, :reason, :created_at) ON CONFLICT ON CONSTRAINT ` + constraintLedgerOnce + ` DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		return false, fmt.Errorf("credit wallet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("credit wallet rows affected: %w", err)
	}
	return n == 1, nil
}

// ListBySession returns the credits written for a session.
func (r *LedgerRepository) ListBySession(ctx context.Context, sessionID string) ([]models.LedgerEntry, error) {
	const query = `SELECT id, user_id, session_id, amount_cents, currency, reason, created_at FROM wallet_transactions WHERE session_id = $1 ORDER BY created_at ASC`
	var entries []models.LedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, sessionID); err != nil {
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}
	return entries, nil
}

