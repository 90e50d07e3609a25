package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/jobs"
)

const refundJobType = "wallet_credit"

type ledgerRepository interface {
	Credit(ctx context.Context, entry *models.LedgerEntry) (bool, error)
}

// RefundDispatcher queues wallet credits for cancelled sessions. Credits are idempotent per
// session and reason, so retried jobs never double-pay.
type RefundDispatcher struct {
	queue  jobQueue
	now    func() time.Time
	logger *zap.Logger
}

// NewRefundDispatcher instantiates RefundDispatcher.
func NewRefundDispatcher(queue jobQueue, now func() time.Time, logger *zap.Logger) *RefundDispatcher {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RefundDispatcher{queue: queue, now: now, logger: logger}
}

// Dispatch queues the credit of amount to the session's student.
func (d *RefundDispatcher) Dispatch(session *models.Session, amount int64) error {
	if d == nil || d.queue == nil || session == nil || amount <= 0 {
		return nil
	}
	entry := models.LedgerEntry{
		UserID:      session.StudentID,
		SessionID:   session.ID,
		AmountCents: amount,
		Currency:    session.Currency,
		Reason:      models.LedgerReasonCancellationRefund,
		CreatedAt:   d.now().UTC(),
	}
	if err := d.queue.TryEnqueue(jobs.Job{Type: refundJobType, Payload: entry}); err != nil {
		d.logger.Error("refund credit not queued", zap.String("session_id", session.ID), zap.Int64("amount", amount), zap.Error(err))
		return fmt.Errorf("queue refund credit: %w", err)
	}
	return nil
}

// CreditHandler writes queued credits to the ledger.
func CreditHandler(ledger ledgerRepository, logger *zap.Logger) jobs.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, job jobs.Job) error {
		entry, ok := job.Payload.(models.LedgerEntry)
		if !ok {
			return nil
		}
		created, err := ledger.Credit(ctx, &entry)
		if err != nil {
			return err
		}
		if !created {
			logger.Info("refund already credited", zap.String("session_id", entry.SessionID))
			return nil
		}
		logger.Info("refund credited",
			zap.String("session_id", entry.SessionID),
			zap.String("user_id", entry.UserID),
			zap.Int64("amount", entry.AmountCents),
			zap.String("currency", entry.Currency),
		)
		return nil
	}
}
