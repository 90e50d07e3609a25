package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-scheduler-api/internal/dto"
	"github.com/noah-isme/tutoring-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/tutoring-scheduler-api/pkg/errors"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/export"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/timezone"
)

const maxExportRange = 92 * 24 * time.Hour

type sessionRangeReader interface {
	ListForTutorRange(ctx context.Context, tutorID string, from, to time.Time) ([]models.Session, error)
}

type renderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
	ContentType() string
}

// ExportResult is a rendered schedule ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ExportService renders a tutor's schedule as CSV or PDF, in the tutor's local time.
type ExportService struct {
	sessions  sessionRangeReader
	tutors    tutorRepository
	renderers map[string]renderer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(sessions sessionRangeReader, tutors tutorRepository, csv, pdf renderer, validate *validator.Validate, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		sessions:  sessions,
		tutors:    tutors,
		renderers: map[string]renderer{"csv": csv, "pdf": pdf},
		validator: validate,
		logger:    logger,
	}
}

var scheduleHeaders = []string{"Date", "Start", "End", "Student", "Subject", "Status", "Price", "Refund"}

// ExportSchedule renders every session of the tutor intersecting [from, to).
func (s *ExportService) ExportSchedule(ctx context.Context, tutorID string, query dto.ExportQuery) (*ExportResult, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}
	format := strings.ToLower(query.Format)
	if format == "" {
		format = "csv"
	}
	from, err := parseInstant(query.From, "from")
	if err != nil {
		return nil, err
	}
	to, err := parseInstant(query.To, "to")
	if err != nil {
		return nil, err
	}
	if !from.Before(*to) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from must be before to")
	}
	if to.Sub(*from) > maxExportRange {
		return nil, appErrors.Clone(appErrors.ErrValidation, "export range must not exceed 92 days")
	}

	tutor, err := s.tutors.FindByID(ctx, tutorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrEntityNotFound, "tutor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
	}
	loc, err := timezone.LoadLocation(tutor.Timezone)
	if err != nil {
		loc = time.UTC
	}

	sessions, err := s.sessions.ListForTutorRange(ctx, tutor.ID, *from, *to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load sessions")
	}

	dataset := buildScheduleDataset(sessions, loc)
	title := fmt.Sprintf("%s schedule %s to %s (%s)", tutor.FullName,
		from.In(loc).Format("2006-01-02"),
		to.In(loc).Format("2006-01-02"),
		loc.String())

	r := s.renderers[format]
	body, err := r.Render(dataset, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("schedule exported", zap.String("tutor_id", tutor.ID), zap.String("format", format), zap.Int("rows", len(sessions)))
	return &ExportResult{
		Filename:    fmt.Sprintf("schedule_%s_%s.%s", sanitizeFilename(tutor.ID), from.Format("20060102"), format),
		ContentType: r.ContentType(),
		Body:        body,
	}, nil
}

func buildScheduleDataset(sessions []models.Session, loc *time.Location) export.Dataset {
	rows := make([]map[string]string, 0, len(sessions))
	for _, session := range sessions {
		start := session.ScheduledAt.In(loc)
		end := session.EndsAt.In(loc)
		refund := ""
		if session.RefundCents != nil {
			refund = export.FormatMinorUnits(*session.RefundCents, session.Currency)
		}
		rows = append(rows, map[string]string{
			"Date":    start.Format("Mon 2006-01-02"),
			"Start":   start.Format("15:04"),
			"End":     end.Format("15:04"),
			"Student": session.StudentID,
			"Subject": session.Subject,
			"Status":  string(session.Status),
			"Price":   export.FormatMinorUnits(session.PriceCents, session.Currency),
			"Refund":  refund,
		})
	}
	return export.Dataset{Headers: scheduleHeaders, Rows: rows}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
