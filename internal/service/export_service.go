package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/autoecole-dz/platform-api/internal/models"
	appErrors "github.com/autoecole-dz/platform-api/pkg/errors"
	"github.com/autoecole-dz/platform-api/pkg/export"
)

type exportEnrollmentSource interface {
	ListBySchool(ctx context.Context, schoolID string, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult is a rendered report ready to stream.
type ExportResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ExportService renders a school's enrollment register as CSV or PDF.
type ExportService struct {
	enrollments exportEnrollmentSource
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(enrollments exportEnrollmentSource, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{enrollments: enrollments, csv: csv, pdf: pdf, logger: logger}
}

// EnrollmentRegister exports the school's enrollments, optionally filtered by
// status, in review-queue order.
func (s *ExportService) EnrollmentRegister(ctx context.Context, schoolID string, status models.EnrollmentStatus, format models.ReportFormat) (*ExportResult, error) {
	if !models.IsValidReportFormat(format) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report format %q", format))
	}

	filter := models.EnrollmentFilter{Status: status, Page: 1, PageSize: 10000}
	enrollments, _, err := s.enrollments.ListBySchool(ctx, schoolID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Email", "Phone", "Status", "Refusal Reason", "Applied At", "Approved At"},
		Rows:    make([][]string, 0, len(enrollments)),
	}
	for _, e := range enrollments {
		reason := ""
		if e.RefusalReason != nil {
			reason = *e.RefusalReason
		}
		approvedAt := ""
		if e.ApprovedAt != nil {
			approvedAt = e.ApprovedAt.Format(time.RFC3339)
		}
		dataset.Rows = append(dataset.Rows, []string{
			e.StudentFirstName + " " + e.StudentLastName,
			e.StudentEmail,
			e.StudentPhone,
			string(e.Status),
			reason,
			e.CreatedAt.Format(time.RFC3339),
			approvedAt,
		})
	}

	stamp := time.Now().UTC().Format("20060102_150405")
	switch format {
	case models.ReportFormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("enrollments_%s.csv", stamp),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	default:
		content, err := s.pdf.Render(dataset, "Enrollment Register")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{
			FileName:    fmt.Sprintf("enrollments_%s.pdf", stamp),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	}
}
