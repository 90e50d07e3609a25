package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutoring-scheduler-api/internal/dto"
	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/tutoring-scheduler-api/pkg/errors"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/response"
)

type availabilityService interface {
	ListWindows(ctx context.Context, tutorID string) ([]models.AvailabilityWindow, error)
	ReplaceWindows(ctx context.Context, tutorID string, req dto.ReplaceAvailabilityRequest) ([]models.AvailabilityWindow, error)
	EnumerateOpenSlots(ctx context.Context, tutorID string, from, to time.Time) ([]models.OpenSlot, error)
}

// AvailabilityHandler manages tutor weekly availability.
type AvailabilityHandler struct {
	service availabilityService
}

// NewAvailabilityHandler constructs the handler.
func NewAvailabilityHandler(service availabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{service: service}
}

// List godoc
// @Summary List a tutor's weekly availability
// @Tags Availability
// @Produce json
// @Param id path string true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id}/availability [get]
func (h *AvailabilityHandler) List(c *gin.Context) {
	tutorID := c.Param("id")
	windows, err := h.service.ListWindows(c.Request.Context(), tutorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, toAvailabilityResponse(tutorID, windows), nil)
}

// Replace godoc
// @Summary Replace a tutor's weekly availability
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Tutor ID"
// @Param payload body dto.ReplaceAvailabilityRequest true "Windows"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id}/availability [put]
func (h *AvailabilityHandler) Replace(c *gin.Context) {
	var req dto.ReplaceAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability payload"))
		return
	}
	tutorID := c.Param("id")
	windows, err := h.service.ReplaceWindows(c.Request.Context(), tutorID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, toAvailabilityResponse(tutorID, windows), nil)
}

// OpenSlots godoc
// @Summary Enumerate open availability minus booked sessions
// @Tags Availability
// @Produce json
// @Param id path string true "Tutor ID"
// @Param from query string true "RFC3339 start"
// @Param to query string true "RFC3339 end"
// @Success 200 {object} response.Envelope
// @Router /tutors/{id}/open-slots [get]
func (h *AvailabilityHandler) OpenSlots(c *gin.Context) {
	var query dto.OpenSlotsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	from, err := time.Parse(time.RFC3339, query.From)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be an RFC3339 timestamp"))
		return
	}
	to, err := time.Parse(time.RFC3339, query.To)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be an RFC3339 timestamp"))
		return
	}

	slots, err := h.service.EnumerateOpenSlots(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

func toAvailabilityResponse(tutorID string, windows []models.AvailabilityWindow) dto.AvailabilityResponse {
	resp := dto.AvailabilityResponse{TutorID: tutorID, Windows: windows}
	if resp.Windows == nil {
		resp.Windows = []models.AvailabilityWindow{}
	}
	if len(windows) > 0 {
		resp.Timezone = windows[0].Timezone
	}
	return resp
}
