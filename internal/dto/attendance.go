package dto

import (
	"time"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

// AttendanceListRequest captures the view selection for GET /attendance.
type AttendanceListRequest struct {
	CourseID string `form:"course"`
	Date     string `form:"date"`
	Search   string `form:"search"`
}

// SetStatusRequest is the administrative status override payload.
type SetStatusRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Status    string `json:"status" validate:"required,attendance_status"`
}

// MarkOwnRequest is the self-mark payload. StudentID defaults to the caller's bound student.
type MarkOwnRequest struct {
	StudentID string `json:"student_id"`
	CourseID  string `json:"course_id" validate:"required"`
	Status    string `json:"status" validate:"required,attendance_status"`
}

// SeedRequest asks for default present records on a course day.
type SeedRequest struct {
	CourseID string `json:"course_id" validate:"required"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
}

// BackfillRequest triggers reconciliation. An empty course runs every course;
// an empty reference time uses the engine clock.
type BackfillRequest struct {
	CourseID     string     `json:"course_id"`
	ReferenceNow *time.Time `json:"reference_now"`
}

// CourseStatsRequest bounds the per-course breakdown.
type CourseStatsRequest struct {
	From string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" validate:"omitempty,datetime=2006-01-02"`
}

// ExportRequest selects the export rendering.
type ExportRequest struct {
	AttendanceListRequest
	Format string `form:"format" validate:"required,export_format"`
}

// BackfillResponse summarises a reconciliation call.
type BackfillResponse struct {
	Created int                     `json:"created"`
	Results []models.BackfillResult `json:"results"`
}

// AttendanceSummaryScope echoes the applied selection.
type AttendanceSummaryScope struct {
	Role     models.UserRole `json:"role"`
	CourseID string          `json:"course_id,omitempty"`
	Date     string          `json:"date,omitempty"`
	Student  string          `json:"student_id,omitempty"`
}

// AttendanceSummaryResponse is the GET /attendance/summary payload.
type AttendanceSummaryResponse struct {
	Scope   AttendanceSummaryScope   `json:"scope"`
	Summary models.AttendanceSummary `json:"summary"`
}
