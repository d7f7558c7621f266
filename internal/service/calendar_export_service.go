package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/chalkbyte/chalkbyte-api/internal/models"
	appErrors "github.com/chalkbyte/chalkbyte-api/pkg/errors"
	"github.com/chalkbyte/chalkbyte-api/pkg/export"
)

// ExportFormat selects the calendar export encoding.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

// ExportResult carries rendered bytes plus the HTTP metadata to serve them.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

type termLister interface {
	ListSiblings(ctx context.Context, sessionID string) ([]models.Term, error)
}

// CalendarExportService renders a session's term calendar as a downloadable
// document.
type CalendarExportService struct {
	sessions sessionReader
	terms    termLister
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewCalendarExportService creates a calendar export service.
func NewCalendarExportService(sessions sessionReader, terms termLister, logger *zap.Logger) *CalendarExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarExportService{
		sessions: sessions,
		terms:    terms,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// Export renders the calendar of one session in the requested format.
func (s *CalendarExportService) Export(ctx context.Context, sessionID string, scope models.Scope, format ExportFormat) (*ExportResult, error) {
	session, err := s.sessions.FindByID(ctx, sessionID, scope)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "academic session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic session")
	}

	terms, err := s.terms.ListSiblings(ctx, session.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load terms")
	}

	dataset := buildCalendarDataset(&session.AcademicSession, terms)

	var content []byte
	var contentType, ext string
	switch format {
	case FormatCSV:
		content, err = s.csv.Render(dataset)
		contentType, ext = "text/csv", "csv"
	case FormatPDF:
		content, err = s.pdf.Render(dataset)
		contentType, ext = "application/pdf", "pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render calendar export")
	}

	s.logger.Info("calendar exported",
		zap.String("session_id", session.ID),
		zap.String("format", string(format)))

	return &ExportResult{
		Content:     content,
		ContentType: contentType,
		Filename:    fmt.Sprintf("calendar-%s.%s", slugify(session.Name), ext),
	}, nil
}

func buildCalendarDataset(session *models.AcademicSession, terms []models.Term) export.Dataset {
	headers := []string{"Sequence", "Term", "Start Date", "End Date", "Current"}
	rows := make([]map[string]string, 0, len(terms))
	for _, t := range terms {
		current := ""
		if t.IsCurrent {
			current = "yes"
		}
		rows = append(rows, map[string]string{
			"Sequence":   strconv.Itoa(t.Sequence),
			"Term":       t.Name,
			"Start Date": t.StartDate.Format(dateLayout),
			"End Date":   t.EndDate.Format(dateLayout),
			"Current":    current,
		})
	}

	return export.Dataset{
		Title: session.Name,
		Subtitle: fmt.Sprintf("%s to %s",
			session.StartDate.Format(dateLayout), session.EndDate.Format(dateLayout)),
		Headers: headers,
		Rows:    rows,
	}
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, slug)
	return strings.Trim(strings.Join(strings.FieldsFunc(slug, func(r rune) bool { return r == '-' }), "-"), "-")
}
