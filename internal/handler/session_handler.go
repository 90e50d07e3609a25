package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutoring-scheduler-api/internal/dto"
	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/tutoring-scheduler-api/pkg/errors"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/response"
)

// IdempotencyHeader carries an optional booking idempotency key.
const IdempotencyHeader = "Idempotency-Key"

type bookingService interface {
	BookSession(ctx context.Context, req dto.BookSessionRequest) (*dto.BookingResult, error)
	CheckAvailability(ctx context.Context, req dto.CheckAvailabilityRequest) (*dto.AvailabilityCheckResult, error)
	RescheduleSession(ctx context.Context, id string, req dto.RescheduleSessionRequest) (*dto.BookingResult, error)
	StartSession(ctx context.Context, id string) (*models.Session, error)
	EndSession(ctx context.Context, id string) (*models.Session, error)
	CancelSession(ctx context.Context, id string, req dto.CancelSessionRequest) (*models.Session, error)
	MarkNoShow(ctx context.Context, id string) (*models.Session, error)
	RefundQuote(ctx context.Context, id string) (*dto.RefundQuote, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context, query dto.SessionQuery) ([]models.Session, *models.Pagination, error)
}

// SessionHandler exposes booking and session lifecycle endpoints.
type SessionHandler struct {
	service bookingService
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(service bookingService) *SessionHandler {
	return &SessionHandler{service: service}
}

// Book godoc
// @Summary Book a session or a recurring series
// @Tags Sessions
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Idempotency key"
// @Param payload body dto.BookSessionRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope "Replayed booking"
// @Failure 409 {object} response.Envelope "Every conflict of the requested slot"
// @Router /sessions [post]
func (h *SessionHandler) Book(c *gin.Context) {
	var req dto.BookSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = strings.TrimSpace(c.GetHeader(IdempotencyHeader))
	}
	if !requireParticipant(c, req.TutorID, req.StudentID) {
		return
	}

	result, err := h.service.BookSession(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondBooking(c, result, true)
}

// Check godoc
// @Summary Diagnose whether a slot can be booked
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body dto.CheckAvailabilityRequest true "Candidate slot"
// @Success 200 {object} response.Envelope
// @Router /sessions/check [post]
func (h *SessionHandler) Check(c *gin.Context) {
	var req dto.CheckAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability query"))
		return
	}
	if !requireParticipant(c, req.TutorID, req.StudentID) {
		return
	}
	result, err := h.service.CheckAvailability(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// List godoc
// @Summary List sessions
// @Tags Sessions
// @Produce json
// @Param tutor_id query string false "Tutor ID"
// @Param student_id query string false "Student ID"
// @Param status query string false "Comma separated statuses"
// @Param from query string false "RFC3339 lower bound"
// @Param to query string false "RFC3339 upper bound"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	var query dto.SessionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	switch claims.Role {
	case models.RoleAdmin:
	case models.RoleTutor:
		query.TutorID = claims.UserID
	case models.RoleStudent:
		query.StudentID = claims.UserID
	default:
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	sessions, pagination, err := h.service.ListSessions(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, pagination)
}

// Get godoc
// @Summary Get a session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	session, ok := h.loadForParticipant(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// Reschedule godoc
// @Summary Move a scheduled session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.RescheduleSessionRequest true "New start"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/schedule [put]
func (h *SessionHandler) Reschedule(c *gin.Context) {
	var req dto.RescheduleSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reschedule payload"))
		return
	}
	if _, ok := h.loadForParticipant(c); !ok {
		return
	}
	result, err := h.service.RescheduleSession(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	respondBooking(c, result, false)
}

// Start godoc
// @Summary Start a session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/start [post]
func (h *SessionHandler) Start(c *gin.Context) {
	h.transition(c, h.service.StartSession)
}

// End godoc
// @Summary Complete an ongoing session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/end [post]
func (h *SessionHandler) End(c *gin.Context) {
	h.transition(c, h.service.EndSession)
}

// NoShow godoc
// @Summary Record that a session never started
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/no-show [post]
func (h *SessionHandler) NoShow(c *gin.Context) {
	h.transition(c, h.service.MarkNoShow)
}

// Cancel godoc
// @Summary Cancel a scheduled session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.CancelSessionRequest false "Cancellation reason"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/cancel [post]
func (h *SessionHandler) Cancel(c *gin.Context) {
	var req dto.CancelSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cancel payload"))
			return
		}
	}
	if _, ok := h.loadForParticipant(c); !ok {
		return
	}
	session, err := h.service.CancelSession(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// RefundQuote godoc
// @Summary Preview the refund of cancelling now
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/refund-quote [get]
func (h *SessionHandler) RefundQuote(c *gin.Context) {
	if _, ok := h.loadForParticipant(c); !ok {
		return
	}
	quote, err := h.service.RefundQuote(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quote, nil)
}

func (h *SessionHandler) transition(c *gin.Context, op func(context.Context, string) (*models.Session, error)) {
	if _, ok := h.loadForParticipant(c); !ok {
		return
	}
	session, err := op(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

func (h *SessionHandler) loadForParticipant(c *gin.Context) (*models.Session, bool) {
	session, err := h.service.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	if !requireParticipant(c, session.TutorID, session.StudentID) {
		return nil, false
	}
	return session, true
}

// respondBooking maps a booking result. Conflicts become 409 carrying the full list; replays are 200.
func respondBooking(c *gin.Context, result *dto.BookingResult, create bool) {
	if len(result.Conflicts) > 0 {
		response.Error(c, appErrors.WithDetails(appErrors.ErrBookingConflict, gin.H{"conflicts": result.Conflicts}))
		return
	}
	if create && !result.Replayed && result.Session != nil {
		response.Created(c, "sessions/"+result.Session.ID, result)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
