package service

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type csvRenderer interface {
	Render(sheet export.Sheet) ([]byte, error)
}

type pdfRenderer interface {
	Render(sheet export.Sheet) ([]byte, error)
}

// ExportFile is a rendered attendance sheet ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders visible attendance rows into downloadable sheets.
type ExportService struct {
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers use the pkg/export defaults.
func NewExportService(logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{csv: csv, pdf: pdf, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// ValidFormat reports whether the export format is supported.
func ValidFormat(format string) bool {
	switch strings.ToLower(format) {
	case ExportFormatCSV, ExportFormatPDF:
		return true
	default:
		return false
	}
}

// Render builds the sheet and encodes it in the requested format.
func (s *ExportService) Render(format, title string, rows []models.AttendanceRecordDetail, summary models.AttendanceSummary) (*ExportFile, error) {
	sheet := buildAttendanceSheet(title, rows, summary)
	format = strings.ToLower(format)

	var (
		payload     []byte
		contentType string
		err         error
	)
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(sheet)
		contentType = "text/csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(sheet)
		contentType = "application/pdf"
	default:
		return nil, fmt.Errorf("unsupported format %s", format)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Debug("attendance sheet rendered", zap.String("format", format), zap.Int("rows", len(rows)))
	return &ExportFile{
		Filename:    fmt.Sprintf("%s_%s.%s", sanitizeFilename(title), s.now().Format("20060102_150405"), format),
		ContentType: contentType,
		Data:        payload,
	}, nil
}

func buildAttendanceSheet(title string, rows []models.AttendanceRecordDetail, summary models.AttendanceSummary) export.Sheet {
	sheet := export.Sheet{
		Title:   title,
		Headers: []string{"Student ID", "Student Name", "Course ID", "Course Name", "Date", "Status"},
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, row := range rows {
		sheet.Rows = append(sheet.Rows, []string{
			row.StudentID,
			row.StudentName,
			row.CourseID,
			row.CourseName,
			row.Date.Format(models.DateLayout),
			string(row.Status),
		})
	}
	sheet.Footer = []string{
		fmt.Sprintf("Present: %d", summary.Present),
		fmt.Sprintf("Absent: %d", summary.Absent),
		fmt.Sprintf("Late: %d", summary.Late),
		fmt.Sprintf("Attendance rate: %.1f%%", summary.Rate),
	}
	return sheet
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "attendance"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := strings.ToLower(replacer.Replace(raw))
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
