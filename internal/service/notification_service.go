package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/broker"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/jobs"
)

const notificationJobType = "session_notification"

type jobQueue interface {
	TryEnqueue(job jobs.Job) error
}

// SessionEventPayload is the body of every session notification.
type SessionEventPayload struct {
	SessionID       string    `json:"session_id"`
	ParentSessionID string    `json:"parent_session_id,omitempty"`
	TutorID         string    `json:"tutor_id"`
	StudentID       string    `json:"student_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Timezone        string    `json:"timezone"`
	Occurrences     int       `json:"occurrences,omitempty"`
	RefundCents     *int64    `json:"refund_cents,omitempty"`
	Currency        string    `json:"currency,omitempty"`
}

// NotificationService hands session events to a background queue. Delivery failures never
// reach the caller.
type NotificationService struct {
	queue   jobQueue
	metrics *MetricsService
	now     func() time.Time
	logger  *zap.Logger
}

// NewNotificationService instantiates NotificationService.
func NewNotificationService(queue jobQueue, metrics *MetricsService, now func() time.Time, logger *zap.Logger) *NotificationService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{queue: queue, metrics: metrics, now: now, logger: logger}
}

// Notify queues one event for one user without blocking.
func (s *NotificationService) Notify(ctx context.Context, userID, eventType string, payload interface{}) {
	if s == nil || s.queue == nil {
		return
	}
	msg := broker.Message{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		OccurredAt: s.now().UTC(),
		Payload:    payload,
	}
	if err := s.queue.TryEnqueue(jobs.Job{ID: msg.ID, Type: notificationJobType, Payload: msg}); err != nil {
		s.metrics.RecordNotification("dropped")
		s.logger.Warn("notification not queued", zap.String("type", eventType), zap.String("user_id", userID), zap.Error(err))
		return
	}
	s.metrics.RecordNotification("queued")
}

// NotifyParticipants sends the event to both the tutor and the student of a session.
func (s *NotificationService) NotifyParticipants(ctx context.Context, session *models.Session, eventType string, occurrences int) {
	if session == nil {
		return
	}
	payload := SessionEventPayload{
		SessionID:       session.ID,
		TutorID:         session.TutorID,
		StudentID:       session.StudentID,
		ScheduledAt:     session.ScheduledAt,
		DurationMinutes: session.DurationMinutes,
		Timezone:        session.Timezone,
		Occurrences:     occurrences,
		RefundCents:     session.RefundCents,
		Currency:        session.Currency,
	}
	if session.ParentSessionID != nil {
		payload.ParentSessionID = *session.ParentSessionID
	}
	s.Notify(ctx, session.TutorID, eventType, payload)
	s.Notify(ctx, session.StudentID, eventType, payload)
}

// PublishHandler adapts a broker publisher into a queue handler.
func PublishHandler(pub broker.Publisher, metrics *MetricsService) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(broker.Message)
		if !ok {
			return nil
		}
		if err := pub.Publish(ctx, msg); err != nil {
			metrics.RecordNotification("failed")
			return err
		}
		metrics.RecordNotification("published")
		return nil
	}
}
