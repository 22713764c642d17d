package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

// AttendanceConfig toggles facade behaviour.
type AttendanceConfig struct {
	Location       *time.Location
	BackfillOnView bool
	ExportsEnabled bool
}

// AttendanceService is the engine facade consumed by handlers and tooling.
type AttendanceService struct {
	store       attendanceReader
	roster      rosterDirectory
	view        *ViewFilter
	transitions *TransitionPolicy
	backfill    *BackfillService
	exports     *ExportService
	clock       Clock
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         AttendanceConfig
}

// NewAttendanceService constructs the attendance facade.
func NewAttendanceService(store attendanceReader, roster rosterDirectory, transitions *TransitionPolicy, backfill *BackfillService, exports *ExportService, clock Clock, validate *validator.Validate, logger *zap.Logger, cfg AttendanceConfig) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if exports == nil {
		exports = NewExportService(logger, nil, nil)
	}
	svc := &AttendanceService{
		store:       store,
		roster:      roster,
		view:        NewViewFilter(store, roster),
		transitions: transitions,
		backfill:    backfill,
		exports:     exports,
		clock:       clock,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseAttendanceStatus(fl.Field().String())
		return ok
	})
	svc.validator.RegisterValidation("export_format", func(fl validator.FieldLevel) bool {
		return ValidFormat(fl.Field().String())
	})
	return svc
}

// ListVisible returns the actor's role-scoped view. For administrative actors with a
// course selected, yesterday is reconciled first when backfill-on-view is enabled.
func (s *AttendanceService) ListVisible(ctx context.Context, actor models.Actor, req dto.AttendanceListRequest) ([]models.AttendanceRecordDetail, error) {
	sel, err := s.selection(req)
	if err != nil {
		return nil, err
	}
	if actor.Role.Administrative() && s.cfg.BackfillOnView && s.backfill != nil && s.roster.HasCourse(sel.CourseID) {
		if _, err := s.backfill.Run(ctx, sel.CourseID, s.clock.Now()); err != nil {
			s.logger.Warn("backfill on view failed", zap.String("course_id", sel.CourseID), zap.Error(err))
		}
	}
	return s.view.Visible(ctx, actor, sel)
}

// SetStatus applies an administrative status override.
func (s *AttendanceService) SetStatus(ctx context.Context, actor models.Actor, req dto.SetStatusRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	day, err := models.ParseDay(req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
	}
	status, _ := models.ParseAttendanceStatus(req.Status)
	return s.transitions.SetStatus(ctx, actor, req.StudentID, req.CourseID, day, status)
}

// MarkOwn records today's attendance for the caller's bound student.
func (s *AttendanceService) MarkOwn(ctx context.Context, actor models.Actor, req dto.MarkOwnRequest) (*models.AttendanceRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	status, _ := models.ParseAttendanceStatus(req.Status)
	return s.transitions.MarkOwn(ctx, actor, req.StudentID, req.CourseID, status)
}

// SeedCourseDay creates default present records for a course day.
func (s *AttendanceService) SeedCourseDay(ctx context.Context, actor models.Actor, req dto.SeedRequest) (*models.SeedResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid seed payload")
	}
	day, err := models.ParseDay(req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
	}
	return s.transitions.SeedCourseDay(ctx, actor, req.CourseID, day)
}

// RunBackfill reconciles one course against referenceNow.
func (s *AttendanceService) RunBackfill(ctx context.Context, courseID string, referenceNow time.Time) (*models.BackfillResult, error) {
	if s.backfill == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "backfill not configured")
	}
	return s.backfill.Run(ctx, courseID, referenceNow)
}

// TriggerBackfill runs reconciliation on behalf of an administrative actor.
func (s *AttendanceService) TriggerBackfill(ctx context.Context, actor models.Actor, req dto.BackfillRequest) (*dto.BackfillResponse, error) {
	if !actor.Role.Administrative() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "backfill requires an administrative role")
	}
	if s.backfill == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "backfill not configured")
	}
	referenceNow := s.clock.Now()
	if req.ReferenceNow != nil {
		// Only fully elapsed days may be reconciled.
		if req.ReferenceNow.After(referenceNow) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "reference_now must not be later than the current time")
		}
		referenceNow = *req.ReferenceNow
	}

	var results []models.BackfillResult
	if req.CourseID != "" {
		res, err := s.backfill.Run(ctx, req.CourseID, referenceNow)
		if err != nil {
			return nil, err
		}
		results = []models.BackfillResult{*res}
	} else {
		all, err := s.backfill.RunAll(ctx, referenceNow)
		if err != nil {
			return nil, storeError(err, "failed to backfill attendance")
		}
		results = all
	}
	resp := &dto.BackfillResponse{Results: results}
	for _, res := range results {
		resp.Created += res.Created
	}
	return resp, nil
}

// Summary counts statuses over the actor's visible set.
func (s *AttendanceService) Summary(ctx context.Context, actor models.Actor, req dto.AttendanceListRequest) (*dto.AttendanceSummaryResponse, error) {
	rows, err := s.ListVisible(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	resp := &dto.AttendanceSummaryResponse{Scope: dto.AttendanceSummaryScope{Role: actor.Role}}
	if actor.Role.Self() {
		resp.Scope.Student = actor.StudentID
	} else {
		resp.Scope.CourseID = req.CourseID
		resp.Scope.Date = req.Date
	}
	for _, row := range rows {
		resp.Summary.Add(row.Status)
	}
	return resp, nil
}

// CourseBreakdown returns per-course counts over an optional inclusive date range.
func (s *AttendanceService) CourseBreakdown(ctx context.Context, actor models.Actor, req dto.CourseStatsRequest) ([]models.CourseAttendanceStats, error) {
	if !actor.Role.Administrative() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course statistics require an administrative role")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid date range")
	}
	from, err := parseOptionalDay(req.From)
	if err != nil {
		return nil, err
	}
	to, err := parseOptionalDay(req.To)
	if err != nil {
		return nil, err
	}
	if from != nil && to != nil && from.After(*to) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
	}

	records, err := s.store.Query(ctx, models.AttendanceQuery{Match: func(rec models.AttendanceRecord) bool {
		if from != nil && rec.Date.Before(*from) {
			return false
		}
		return to == nil || !rec.Date.After(*to)
	}})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}

	courses := s.roster.Courses()
	index := make(map[string]int, len(courses))
	stats := make([]models.CourseAttendanceStats, len(courses))
	for i, course := range courses {
		index[course.ID] = i
		stats[i] = models.CourseAttendanceStats{CourseID: course.ID, CourseName: course.Name}
	}
	for _, rec := range records {
		if i, ok := index[rec.CourseID]; ok {
			stats[i].Add(rec.Status)
		}
	}
	return stats, nil
}

// Export renders the actor's visible set as a CSV or PDF sheet.
func (s *AttendanceService) Export(ctx context.Context, actor models.Actor, req dto.ExportRequest) (*ExportFile, error) {
	if !s.cfg.ExportsEnabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "attendance exports are disabled")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request")
	}
	rows, err := s.ListVisible(ctx, actor, req.AttendanceListRequest)
	if err != nil {
		return nil, err
	}
	var summary models.AttendanceSummary
	for _, row := range rows {
		summary.Add(row.Status)
	}
	file, err := s.exports.Render(req.Format, s.exportTitle(actor, req.AttendanceListRequest), rows, summary)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return file, nil
}

// Students lists the roster students.
func (s *AttendanceService) Students() []models.Student {
	return s.roster.Students()
}

// Courses lists the roster courses.
func (s *AttendanceService) Courses() []models.Course {
	return s.roster.Courses()
}

// Today returns the engine's current calendar day.
func (s *AttendanceService) Today() time.Time {
	return models.CalendarDayIn(s.clock.Now(), s.cfg.Location)
}

func (s *AttendanceService) selection(req dto.AttendanceListRequest) (models.Selection, error) {
	sel := models.Selection{CourseID: strings.TrimSpace(req.CourseID), Search: req.Search}
	day, err := parseOptionalDay(req.Date)
	if err != nil {
		return sel, err
	}
	sel.Date = day
	return sel, nil
}

func (s *AttendanceService) exportTitle(actor models.Actor, req dto.AttendanceListRequest) string {
	if actor.Role.Self() {
		if student, ok := s.roster.Student(actor.StudentID); ok {
			return fmt.Sprintf("Attendance %s", student.Name)
		}
		return fmt.Sprintf("Attendance %s", actor.StudentID)
	}
	title := "Attendance " + req.CourseID
	if course, ok := s.roster.Course(req.CourseID); ok {
		title = "Attendance " + course.Name
	}
	if req.Date != "" {
		title += " " + req.Date
	}
	return title
}

func parseOptionalDay(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	day, err := models.ParseDay(raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
	}
	return &day, nil
}
