package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/response"
)

type attendanceService interface {
	ListVisible(ctx context.Context, actor models.Actor, req dto.AttendanceListRequest) ([]models.AttendanceRecordDetail, error)
	SetStatus(ctx context.Context, actor models.Actor, req dto.SetStatusRequest) (*models.AttendanceRecord, error)
	MarkOwn(ctx context.Context, actor models.Actor, req dto.MarkOwnRequest) (*models.AttendanceRecord, error)
	SeedCourseDay(ctx context.Context, actor models.Actor, req dto.SeedRequest) (*models.SeedResult, error)
	TriggerBackfill(ctx context.Context, actor models.Actor, req dto.BackfillRequest) (*dto.BackfillResponse, error)
	Summary(ctx context.Context, actor models.Actor, req dto.AttendanceListRequest) (*dto.AttendanceSummaryResponse, error)
	CourseBreakdown(ctx context.Context, actor models.Actor, req dto.CourseStatsRequest) ([]models.CourseAttendanceStats, error)
	Export(ctx context.Context, actor models.Actor, req dto.ExportRequest) (*service.ExportFile, error)
}

// AttendanceHandler exposes the attendance engine over HTTP.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(service attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// List godoc
// @Summary List visible attendance records
// @Description Administrative roles see one course on one day; students and parents see their own history.
// @Tags Attendance
// @Produce json
// @Param course query string false "Course ID"
// @Param date query string false "Day (YYYY-MM-DD)"
// @Param search query string false "Case-insensitive student or course filter"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.AttendanceListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	rows, err := h.service.ListVisible(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil, map[string]interface{}{"count": len(rows)})
}

// Summary godoc
// @Summary Attendance summary over the visible set
// @Tags Attendance
// @Produce json
// @Param course query string false "Course ID"
// @Param date query string false "Day (YYYY-MM-DD)"
// @Param search query string false "Search filter"
// @Success 200 {object} response.Envelope
// @Router /attendance/summary [get]
func (h *AttendanceHandler) Summary(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.AttendanceListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	start := time.Now()
	summary, err := h.service.Summary(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, map[string]interface{}{"processing_time_ms": time.Since(start).Milliseconds()})
}

// SetStatus godoc
// @Summary Set a student's attendance status
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.SetStatusRequest true "Status override"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /attendance/status [put]
func (h *AttendanceHandler) SetStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	record, err := h.service.SetStatus(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// MarkOwn godoc
// @Summary Mark today's attendance for the signed-in student
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.MarkOwnRequest true "Self mark"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance/self [post]
func (h *AttendanceHandler) MarkOwn(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.MarkOwnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	record, err := h.service.MarkOwn(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Seed godoc
// @Summary Create default present records for a course day
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.SeedRequest true "Seed request"
// @Success 200 {object} response.Envelope
// @Router /attendance/seed [post]
func (h *AttendanceHandler) Seed(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.SeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	result, err := h.service.SeedCourseDay(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Backfill godoc
// @Summary Convert unmarked past slots into absences
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.BackfillRequest false "Backfill request"
// @Success 200 {object} response.Envelope
// @Router /attendance/backfill [post]
func (h *AttendanceHandler) Backfill(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.BackfillRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
			return
		}
	}
	result, err := h.service.TriggerBackfill(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// CourseStats godoc
// @Summary Per-course attendance breakdown
// @Tags Attendance
// @Produce json
// @Param from query string false "From day (YYYY-MM-DD)"
// @Param to query string false "To day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/courses/stats [get]
func (h *AttendanceHandler) CourseStats(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CourseStatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	stats, err := h.service.CourseBreakdown(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Export godoc
// @Summary Download the visible attendance sheet
// @Tags Attendance
// @Produce text/csv,application/pdf
// @Param format query string true "csv or pdf"
// @Param course query string false "Course ID"
// @Param date query string false "Day (YYYY-MM-DD)"
// @Param search query string false "Search filter"
// @Success 200 {file} file
// @Router /attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	file, err := h.service.Export(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.ContentType, file.Filename, file.Data)
}
