package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/cte-skillshub-api/internal/models"
	appErrors "github.com/noah-isme/cte-skillshub-api/pkg/errors"
	"github.com/noah-isme/cte-skillshub-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type reminderLister interface {
	ListAll(ctx context.Context) ([]models.Reminder, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

var reminderExportHeaders = []string{
	"ID", "Title", "Type", "Priority", "Audience", "Targets", "Active", "Dismissible", "Expires", "Created", "Created By",
}

// ExportService renders the reminder table for administrators.
type ExportService struct {
	reminders reminderLister
	renderers map[string]datasetRenderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the package defaults.
func NewExportService(reminders reminderLister, logger *zap.Logger, csv, pdf datasetRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		reminders: reminders,
		renderers: map[string]datasetRenderer{ExportFormatCSV: csv, ExportFormatPDF: pdf},
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ExportReminders renders every reminder in the requested format. Only admins may export.
func (s *ExportService) ExportReminders(ctx context.Context, actor models.Viewer, format string) (*ExportFile, error) {
	if err := requireViewer(actor); err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins export reminders")
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	all, err := s.reminders.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reminders")
	}
	SortReminders(all)

	now := s.now()
	dataset := export.Dataset{
		Title:       "Reminders",
		Headers:     reminderExportHeaders,
		Rows:        make([]map[string]string, 0, len(all)),
		GeneratedAt: now,
	}
	for _, r := range all {
		dataset.Rows = append(dataset.Rows, reminderRow(r))
	}

	body, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("reminders exported", zap.String("format", format), zap.Int("rows", len(all)), zap.String("actor_id", actor.ID))
	return &ExportFile{
		Filename:    fmt.Sprintf("reminders_%s.%s", now.Format("20060102_150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

func reminderRow(r models.Reminder) map[string]string {
	expires := ""
	if r.ExpiresAt != nil {
		expires = r.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return map[string]string{
		"ID":          r.ID,
		"Title":       r.Title,
		"Type":        string(r.Type),
		"Priority":    string(r.Priority),
		"Audience":    string(r.TargetAudience),
		"Targets":     describeTargets(r),
		"Active":      fmt.Sprintf("%t", r.IsActive),
		"Dismissible": fmt.Sprintf("%t", r.IsDismissible),
		"Expires":     expires,
		"Created":     r.CreatedAt.UTC().Format(time.RFC3339),
		"Created By":  r.CreatedBy.Name,
	}
}

func describeTargets(r models.Reminder) string {
	switch r.TargetAudience {
	case models.AudienceSpecificEmails:
		return strings.Join(r.TargetEmails, " ")
	case models.AudienceSpecificStudents:
		return strings.Join(r.TargetUserIDs, " ")
	case models.AudienceCourseStudents:
		return strings.Join(r.TargetCourseIDs, " ")
	default:
		return ""
	}
}
