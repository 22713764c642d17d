package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

// Backfill modes.
const (
	BackfillModeSingle = "single"
	BackfillModeSweep  = "sweep"
)

const defaultMaxLookbackDays = 14

type backfillWriter interface {
	BulkCreateMissing(ctx context.Context, courseID string, date time.Time, status models.AttendanceStatus, source models.RecordSource, studentIDs []string) ([]models.AttendanceRecord, error)
}

type checkpointStore interface {
	Get(ctx context.Context, courseID string) (time.Time, error)
	Set(ctx context.Context, courseID string, day time.Time) error
}

// BackfillConfig tunes reconciliation.
type BackfillConfig struct {
	Mode            string
	MaxLookbackDays int
	Location        *time.Location
}

// BackfillService converts unmarked past slots into absences.
type BackfillService struct {
	store       backfillWriter
	roster      rosterDirectory
	calendar    *InstructionalCalendar
	checkpoints checkpointStore
	metrics     attendanceMetrics
	logger      *zap.Logger
	cfg         BackfillConfig

	// runs are serialised so reconciliation is run-to-completion per process
	mu sync.Mutex
}

// NewBackfillService constructs the service. A nil checkpoint store disables sweep resumption.
func NewBackfillService(store backfillWriter, roster rosterDirectory, calendar *InstructionalCalendar, checkpoints checkpointStore, metrics attendanceMetrics, logger *zap.Logger, cfg BackfillConfig) *BackfillService {
	if metrics == nil {
		metrics = noopAttendanceMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	if cfg.Mode != BackfillModeSweep {
		cfg.Mode = BackfillModeSingle
	}
	if cfg.MaxLookbackDays <= 0 {
		cfg.MaxLookbackDays = defaultMaxLookbackDays
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &BackfillService{
		store:       store,
		roster:      roster,
		calendar:    calendar,
		checkpoints: checkpoints,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
	}
}

// Mode reports the configured backfill mode.
func (s *BackfillService) Mode() string {
	return s.cfg.Mode
}

// Run reconciles one course against referenceNow. Existing records are never touched,
// so repeated runs converge and present or late is never downgraded.
func (s *BackfillService) Run(ctx context.Context, courseID string, referenceNow time.Time) (*models.BackfillResult, error) {
	studentIDs, ok := s.roster.CourseStudentIDs(courseID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrReferential, fmt.Sprintf("unknown course %q", courseID))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result := &models.BackfillResult{CourseID: courseID, Days: []time.Time{}}
	yesterday := models.CalendarDayIn(referenceNow, s.cfg.Location).AddDate(0, 0, -1)
	var runErr error
	for _, day := range s.targetDays(ctx, courseID, yesterday) {
		if !s.calendar.IsInstructional(day) {
			result.Skipped = append(result.Skipped, day)
			continue
		}
		created, err := s.store.BulkCreateMissing(ctx, courseID, day, models.AttendanceStatusAbsent, models.RecordSourceBackfill, studentIDs)
		if err != nil {
			runErr = storeError(err, "failed to backfill attendance")
			break
		}
		result.Days = append(result.Days, day)
		result.Created += len(created)
	}
	s.metrics.RecordsCreated(models.RecordSourceBackfill, result.Created)
	s.metrics.BackfillRun(s.cfg.Mode, result.Created, time.Since(start), runErr)
	if runErr != nil {
		return nil, runErr
	}

	if s.checkpoints != nil {
		if err := s.checkpoints.Set(ctx, courseID, yesterday); err != nil {
			s.logger.Warn("failed to store backfill checkpoint", zap.String("course_id", courseID), zap.Error(err))
		}
	}
	if result.Created > 0 {
		s.logger.Info("attendance backfilled",
			zap.String("course_id", courseID),
			zap.String("mode", s.cfg.Mode),
			zap.Int("created", result.Created),
			zap.Int("days", len(result.Days)),
		)
	}
	return result, nil
}

// RunAll reconciles every roster course, stopping at the first failure.
func (s *BackfillService) RunAll(ctx context.Context, referenceNow time.Time) ([]models.BackfillResult, error) {
	courses := s.roster.Courses()
	results := make([]models.BackfillResult, 0, len(courses))
	for _, course := range courses {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := s.Run(ctx, course.ID, referenceNow)
		if err != nil {
			return results, fmt.Errorf("backfill course %s: %w", course.ID, err)
		}
		results = append(results, *res)
	}
	return results, nil
}

// targetDays lists the days to reconcile, oldest first.
// Single mode only looks at yesterday. Sweep mode resumes after the checkpoint,
// bounded by the lookback window, and falls back to yesterday without one.
func (s *BackfillService) targetDays(ctx context.Context, courseID string, yesterday time.Time) []time.Time {
	if s.cfg.Mode != BackfillModeSweep || s.checkpoints == nil {
		return []time.Time{yesterday}
	}
	from := yesterday
	last, err := s.checkpoints.Get(ctx, courseID)
	switch {
	case err == nil:
		if next := models.CalendarDay(last).AddDate(0, 0, 1); next.Before(yesterday) {
			from = next
		}
	case !errors.Is(err, appErrors.ErrCacheMiss):
		s.logger.Warn("failed to read backfill checkpoint", zap.String("course_id", courseID), zap.Error(err))
	}
	if floor := yesterday.AddDate(0, 0, -(s.cfg.MaxLookbackDays - 1)); from.Before(floor) {
		from = floor
	}
	days := make([]time.Time, 0)
	for day := from; !day.After(yesterday); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
	}
	return days
}
