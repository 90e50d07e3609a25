package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutoring-scheduler-api/internal/dto"
	"github.com/noah-isme/tutoring-scheduler-api/internal/middleware"
	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/tutoring-scheduler-api/pkg/errors"
)

type bookingServiceMock struct {
	bookReq    dto.BookSessionRequest
	bookResp   *dto.BookingResult
	bookErr    error
	session    *models.Session
	getErr     error
	listQuery  dto.SessionQuery
	cancelReq  dto.CancelSessionRequest
	startCalls int
}

func (m *bookingServiceMock) BookSession(ctx context.Context, req dto.BookSessionRequest) (*dto.BookingResult, error) {
	m.bookReq = req
	return m.bookResp, m.bookErr
}

func (m *bookingServiceMock) CheckAvailability(ctx context.Context, req dto.CheckAvailabilityRequest) (*dto.AvailabilityCheckResult, error) {
	return &dto.AvailabilityCheckResult{Available: true, Conflicts: []models.Conflict{}}, nil
}

func (m *bookingServiceMock) RescheduleSession(ctx context.Context, id string, req dto.RescheduleSessionRequest) (*dto.BookingResult, error) {
	return m.bookResp, m.bookErr
}

func (m *bookingServiceMock) StartSession(ctx context.Context, id string) (*models.Session, error) {
	m.startCalls++
	started := *m.session
	started.Status = models.SessionOngoing
	return &started, nil
}

func (m *bookingServiceMock) EndSession(ctx context.Context, id string) (*models.Session, error) {
	return m.session, nil
}

func (m *bookingServiceMock) CancelSession(ctx context.Context, id string, req dto.CancelSessionRequest) (*models.Session, error) {
	m.cancelReq = req
	return m.session, nil
}

func (m *bookingServiceMock) MarkNoShow(ctx context.Context, id string) (*models.Session, error) {
	return m.session, nil
}

func (m *bookingServiceMock) RefundQuote(ctx context.Context, id string) (*dto.RefundQuote, error) {
	return &dto.RefundQuote{SessionID: id, Percent: 100, AmountCents: 6000, Currency: "USD"}, nil
}

func (m *bookingServiceMock) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.session, nil
}

func (m *bookingServiceMock) ListSessions(ctx context.Context, query dto.SessionQuery) ([]models.Session, *models.Pagination, error) {
	m.listQuery = query
	return []models.Session{*m.session}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func withUser(c *gin.Context, id string, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: id, Role: role})
}

func scheduledSession() *models.Session {
	start := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	return &models.Session{
		ID:              "session-1",
		TutorID:         "tutor-1",
		StudentID:       "student-1",
		ScheduledAt:     start,
		DurationMinutes: 60,
		EndsAt:          start.Add(time.Hour),
		Status:          models.SessionScheduled,
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload struct {
		Error map[string]any `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.NotNil(t, payload.Error)
	return payload.Error
}

func bookingPayload(t *testing.T, studentID string) []byte {
	t.Helper()
	payload, err := json.Marshal(dto.BookSessionRequest{
		TutorID:    "tutor-1",
		StudentID:  studentID,
		StartLocal: "2024-03-04T10:00",
		Timezone:   "America/New_York",
	})
	require.NoError(t, err)
	return payload
}

func TestSessionHandlerBookCreated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &bookingServiceMock{bookResp: &dto.BookingResult{Session: scheduledSession()}}
	handler := NewSessionHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/sessions", bookingPayload(t, "student-1"))
	c.Request.Header.Set(IdempotencyHeader, " key-1 ")
	withUser(c, "student-1", models.RoleStudent)

	handler.Book(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "key-1", mockSvc.bookReq.IdempotencyKey)
}

func TestSessionHandlerBookReplayReturnsOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &bookingServiceMock{bookResp: &dto.BookingResult{Session: scheduledSession(), Replayed: true}}
	handler := NewSessionHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/sessions", bookingPayload(t, "student-1"))
	withUser(c, "admin-1", models.RoleAdmin)

	handler.Book(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSessionHandlerBookConflictListsEveryConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &bookingServiceMock{bookResp: &dto.BookingResult{Conflicts: []models.Conflict{
		{Kind: models.ConflictOutsideAvailability, Message: "outside"},
		{Kind: models.ConflictTutorBusy, Message: "busy", SessionID: "session-7"},
	}}}
	handler := NewSessionHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/sessions", bookingPayload(t, "student-1"))
	withUser(c, "student-1", models.RoleStudent)

	handler.Book(c)

	require.Equal(t, http.StatusConflict, w.Code)
	errBody := decodeError(t, w)
	assert.Equal(t, appErrors.ErrBookingConflict.Code, errBody["code"])
	details := errBody["details"].(map[string]any)
	assert.Len(t, details["conflicts"], 2)
}

func TestSessionHandlerBookForAnotherStudentForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &bookingServiceMock{}
	handler := NewSessionHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/sessions", bookingPayload(t, "student-2"))
	withUser(c, "student-1", models.RoleStudent)

	handler.Book(c)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, mockSvc.bookReq.TutorID)
}

func TestSessionHandlerBookInvalidJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSessionHandler(&bookingServiceMock{})

	c, w := newGinContext(http.MethodPost, "/sessions", []byte("{"))
	withUser(c, "admin-1", models.RoleAdmin)

	handler.Book(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeError(t, w)["code"])
}

func TestSessionHandlerListScopesToCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &bookingServiceMock{session: scheduledSession()}
	handler := NewSessionHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/sessions?student_id=student-9&status=scheduled", nil)
	withUser(c, "student-1", models.RoleStudent)

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student-1", mockSvc.listQuery.StudentID)
	assert.Equal(t, "scheduled", mockSvc.listQuery.Status)
}

func TestSessionHandlerStartRequiresParticipant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &bookingServiceMock{session: scheduledSession()}
	handler := NewSessionHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/sessions/session-1/start", nil)
	c.Params = gin.Params{{Key: "id", Value: "session-1"}}
	withUser(c, "tutor-2", models.RoleTutor)
	handler.Start(c)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, mockSvc.startCalls)

	c, w = newGinContext(http.MethodPost, "/sessions/session-1/start", nil)
	c.Params = gin.Params{{Key: "id", Value: "session-1"}}
	withUser(c, "tutor-1", models.RoleTutor)
	handler.Start(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, mockSvc.startCalls)
}

func TestSessionHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &bookingServiceMock{getErr: appErrors.Clone(appErrors.ErrNotFound, "session not found")}
	handler := NewSessionHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/sessions/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	withUser(c, "admin-1", models.RoleAdmin)

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHandlerCancelWithAndWithoutBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &bookingServiceMock{session: scheduledSession()}
	handler := NewSessionHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/sessions/session-1/cancel", []byte(`{"reason":"sick"}`))
	c.Params = gin.Params{{Key: "id", Value: "session-1"}}
	withUser(c, "student-1", models.RoleStudent)
	handler.Cancel(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sick", mockSvc.cancelReq.Reason)

	c, w = newGinContext(http.MethodPost, "/sessions/session-1/cancel", nil)
	c.Params = gin.Params{{Key: "id", Value: "session-1"}}
	withUser(c, "student-1", models.RoleStudent)
	handler.Cancel(c)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSessionHandlerRefundQuote(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSessionHandler(&bookingServiceMock{session: scheduledSession()})

	c, w := newGinContext(http.MethodGet, "/sessions/session-1/refund-quote", nil)
	c.Params = gin.Params{{Key: "id", Value: "session-1"}}
	withUser(c, "tutor-1", models.RoleTutor)

	handler.RefundQuote(c)

	require.Equal(t, http.StatusOK, w.Code)
	var payload struct {
		Data dto.RefundQuote `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, int64(6000), payload.Data.AmountCents)
}
