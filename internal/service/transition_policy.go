package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

type attendanceWriter interface {
	Upsert(ctx context.Context, mark models.AttendanceMark) (*models.AttendanceRecord, bool, error)
	CreateIfAbsent(ctx context.Context, mark models.AttendanceMark) (*models.AttendanceRecord, bool, error)
	BulkCreateMissing(ctx context.Context, courseID string, date time.Time, status models.AttendanceStatus, source models.RecordSource, studentIDs []string) ([]models.AttendanceRecord, error)
}

type attendanceMetrics interface {
	RecordsCreated(source models.RecordSource, n int)
	TransitionRejected(reason string)
	BackfillRun(mode string, created int, duration time.Duration, err error)
}

type noopAttendanceMetrics struct{}

func (noopAttendanceMetrics) RecordsCreated(models.RecordSource, int)       {}
func (noopAttendanceMetrics) TransitionRejected(string)                     {}
func (noopAttendanceMetrics) BackfillRun(string, int, time.Duration, error) {}

// TransitionPolicy gates every status mutation by role, status and time.
type TransitionPolicy struct {
	store   attendanceWriter
	roster  rosterDirectory
	clock   Clock
	loc     *time.Location
	metrics attendanceMetrics
	logger  *zap.Logger
}

// NewTransitionPolicy constructs the policy. loc defines "today" for self marks.
func NewTransitionPolicy(store attendanceWriter, roster rosterDirectory, clock Clock, loc *time.Location, metrics attendanceMetrics, logger *zap.Logger) *TransitionPolicy {
	if clock == nil {
		clock = SystemClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	if metrics == nil {
		metrics = noopAttendanceMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransitionPolicy{store: store, roster: roster, clock: clock, loc: loc, metrics: metrics, logger: logger}
}

// SetStatus lets administrative actors write any status for any slot.
func (p *TransitionPolicy) SetStatus(ctx context.Context, actor models.Actor, studentID, courseID string, day time.Time, status models.AttendanceStatus) (*models.AttendanceRecord, error) {
	if !actor.Role.Administrative() {
		return nil, p.reject(appErrors.ReasonInvalidRole, fmt.Sprintf("role %s may not set attendance status", actor.Role))
	}
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid attendance status %q", status))
	}
	if err := p.checkEnrolment(studentID, courseID); err != nil {
		return nil, err
	}
	rec, created, err := p.store.Upsert(ctx, models.AttendanceMark{
		StudentID: studentID,
		CourseID:  courseID,
		Date:      day,
		Status:    status,
		Source:    models.RecordSourceAdmin,
	})
	if err != nil {
		return nil, storeError(err, "failed to set attendance status")
	}
	if created {
		p.metrics.RecordsCreated(models.RecordSourceAdmin, 1)
	}
	p.logger.Info("attendance status set",
		zap.String("actor", actor.UserID),
		zap.String("student_id", studentID),
		zap.String("course_id", courseID),
		zap.String("date", rec.Date.Format(models.DateLayout)),
		zap.String("status", string(status)),
	)
	return rec, nil
}

// MarkOwn records today's attendance for the actor's bound student.
// Only present and late are allowed and an existing record is never overwritten.
func (p *TransitionPolicy) MarkOwn(ctx context.Context, actor models.Actor, studentID, courseID string, status models.AttendanceStatus) (*models.AttendanceRecord, error) {
	if !actor.Role.Self() {
		return nil, p.reject(appErrors.ReasonInvalidRole, fmt.Sprintf("role %s may not self-mark attendance", actor.Role))
	}
	if status != models.AttendanceStatusPresent && status != models.AttendanceStatusLate {
		return nil, p.reject(appErrors.ReasonInvalidStatus, fmt.Sprintf("status %q cannot be self-marked", status))
	}
	if studentID == "" {
		studentID = actor.StudentID
	}
	if actor.StudentID == "" || studentID != actor.StudentID {
		return nil, p.reject(appErrors.ReasonNotSelf, "attendance can only be marked for the bound student")
	}
	if err := p.checkEnrolment(studentID, courseID); err != nil {
		return nil, err
	}

	today := models.CalendarDayIn(p.clock.Now(), p.loc)
	rec, created, err := p.store.CreateIfAbsent(ctx, models.AttendanceMark{
		StudentID: studentID,
		CourseID:  courseID,
		Date:      today,
		Status:    status,
		Source:    models.RecordSourceSelf,
	})
	if err != nil {
		return nil, storeError(err, "failed to mark attendance")
	}
	if !created {
		p.metrics.TransitionRejected(appErrors.ReasonAlreadyMarked)
		return nil, appErrors.Clone(appErrors.ErrAlreadyMarked, fmt.Sprintf("attendance for %s on %s is already %s", courseID, today.Format(models.DateLayout), rec.Status))
	}
	p.metrics.RecordsCreated(models.RecordSourceSelf, 1)
	return rec, nil
}

// SeedCourseDay creates default present records for every expected student lacking one.
func (p *TransitionPolicy) SeedCourseDay(ctx context.Context, actor models.Actor, courseID string, day time.Time) (*models.SeedResult, error) {
	if !actor.Role.Administrative() {
		return nil, p.reject(appErrors.ReasonInvalidRole, fmt.Sprintf("role %s may not seed attendance", actor.Role))
	}
	day = models.CalendarDay(day)
	studentIDs, ok := p.roster.CourseStudentIDs(courseID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrReferential, fmt.Sprintf("unknown course %q", courseID))
	}
	created, err := p.store.BulkCreateMissing(ctx, courseID, day, models.AttendanceStatusPresent, models.RecordSourceSeed, studentIDs)
	if err != nil {
		return nil, storeError(err, "failed to seed attendance")
	}
	p.metrics.RecordsCreated(models.RecordSourceSeed, len(created))
	return &models.SeedResult{CourseID: courseID, Date: day, Created: len(created), NoOp: len(created) == 0}, nil
}

// checkEnrolment rejects a known student outside a course's explicit student list.
// Unknown ids are left for the store to report.
func (p *TransitionPolicy) checkEnrolment(studentID, courseID string) error {
	if _, ok := p.roster.Student(studentID); !ok {
		return nil
	}
	ids, ok := p.roster.CourseStudentIDs(courseID)
	if !ok {
		return nil
	}
	for _, id := range ids {
		if id == studentID {
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrReferential, fmt.Sprintf("student %q is not enrolled in course %q", studentID, courseID))
}

func (p *TransitionPolicy) reject(reason, message string) error {
	p.metrics.TransitionRejected(reason)
	return appErrors.WithReason(appErrors.ErrUnauthorizedTransition, reason, message)
}

// storeError keeps typed store errors and wraps anything else as internal.
func storeError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
