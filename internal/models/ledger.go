package models

import "time"

// LedgerReason labels a wallet movement.
type LedgerReason string

const LedgerReasonCancellationRefund LedgerReason = "cancellation_refund"

// LedgerEntry is a credit written to a user's wallet.
type LedgerEntry struct {
	ID          string       `db:"id" json:"id"`
	UserID      string       `db:"user_id" json:"user_id"`
	SessionID   string       `db:"session_id" json:"session_id"`
	AmountCents int64        `db:"amount_cents" json:"amount_cents"`
	Currency    string       `db:"currency" json:"currency"`
	Reason      LedgerReason `db:"reason" json:"reason"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}
