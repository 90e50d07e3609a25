package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutoring-scheduler-api/internal/dto"
	"github.com/noah-isme/tutoring-scheduler-api/internal/service"
	appErrors "github.com/noah-isme/tutoring-scheduler-api/pkg/errors"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/response"
)

type scheduleExporter interface {
	ExportSchedule(ctx context.Context, tutorID string, query dto.ExportQuery) (*service.ExportResult, error)
}

// ExportHandler streams tutor schedules as CSV or PDF.
type ExportHandler struct {
	service scheduleExporter
}

// NewExportHandler constructs the handler.
func NewExportHandler(service scheduleExporter) *ExportHandler {
	return &ExportHandler{service: service}
}

// Schedule godoc
// @Summary Export a tutor's sessions
// @Tags Export
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Tutor ID"
// @Param format query string false "csv or pdf"
// @Param from query string true "RFC3339 start"
// @Param to query string true "RFC3339 end"
// @Success 200 {file} file
// @Router /tutors/{id}/sessions/export [get]
func (h *ExportHandler) Schedule(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	result, err := h.service.ExportSchedule(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Body)
}
