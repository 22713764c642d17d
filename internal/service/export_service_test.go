package service

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/pkg/export"
)

func exportRows() []models.AttendanceRecordDetail {
	return []models.AttendanceRecordDetail{
		{
			AttendanceRecord: models.AttendanceRecord{StudentID: "S1", CourseID: "X", Date: day0, Status: models.AttendanceStatusPresent},
			StudentName:      "Siti Aminah",
			CourseName:       "Mathematics",
		},
		{
			AttendanceRecord: models.AttendanceRecord{StudentID: "S2", CourseID: "X", Date: day0, Status: models.AttendanceStatusAbsent},
			StudentName:      "Budi Santoso",
			CourseName:       "Mathematics",
		},
	}
}

func TestExportServiceRenderCSV(t *testing.T) {
	svc := NewExportService(zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	svc.now = func() time.Time { return time.Date(2025, 5, 19, 8, 30, 0, 0, time.UTC) }

	var summary models.AttendanceSummary
	summary.Add(models.AttendanceStatusPresent)
	summary.Add(models.AttendanceStatusAbsent)

	file, err := svc.Render("CSV", "Attendance Mathematics", exportRows(), summary)
	require.NoError(t, err)
	assert.Equal(t, "attendance_mathematics_20250519_083000.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)

	reader := csv.NewReader(bytes.NewReader(file.Data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(records), 3)
	assert.Equal(t, []string{"Student ID", "Student Name", "Course ID", "Course Name", "Date", "Status"}, records[0])
	assert.Equal(t, []string{"S1", "Siti Aminah", "X", "Mathematics", "2025-05-19", "present"}, records[1])
	assert.Contains(t, string(file.Data), "Attendance rate: 50.0%")
}

func TestExportServiceRenderPDF(t *testing.T) {
	svc := NewExportService(nil, nil, nil)
	file, err := svc.Render("pdf", "Attendance Mathematics 2025-05-19", exportRows(), models.AttendanceSummary{})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc := NewExportService(nil, nil, nil)
	_, err := svc.Render("xlsx", "x", nil, models.AttendanceSummary{})
	assert.Error(t, err)
	assert.False(t, ValidFormat("xlsx"))
	assert.True(t, ValidFormat("PDF"))
}

type failingRenderer struct{}

func (failingRenderer) Render(export.Sheet) ([]byte, error) {
	return nil, errors.New("disk full")
}

func TestExportServicePropagatesRendererErrors(t *testing.T) {
	svc := NewExportService(nil, failingRenderer{}, failingRenderer{})
	_, err := svc.Render("csv", "x", exportRows(), models.AttendanceSummary{})
	assert.EqualError(t, err, "disk full")
}
