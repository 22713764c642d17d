package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/repository"
)

var (
	// day0 is a Monday.
	day0     = time.Date(2025, 5, 19, 0, 0, 0, 0, time.UTC)
	day1     = day0.AddDate(0, 0, 1)
	adminAct = models.Actor{UserID: "u-admin", Role: models.RoleAdmin}
	teachAct = models.Actor{UserID: "u-teacher", Role: models.RoleTeacher}
	s1Act    = models.Actor{UserID: "u-s1", Role: models.RoleStudent, StudentID: "S1"}
	s2Parent = models.Actor{UserID: "u-p2", Role: models.RoleParent, StudentID: "S2"}
)

func fixtureRoster(t *testing.T) *models.Roster {
	t.Helper()
	roster, err := models.NewRoster(
		[]models.Student{{ID: "S1", Name: "Siti Aminah"}, {ID: "S2", Name: "Budi Santoso"}},
		[]models.Course{{ID: "X", Name: "Mathematics"}, {ID: "Y", Name: "Physics"}},
	)
	require.NoError(t, err)
	return roster
}

type metricsRecorder struct {
	mu       sync.Mutex
	created  map[models.RecordSource]int
	rejected map[string]int
	runs     []string
}

func newMetricsRecorder() *metricsRecorder {
	return &metricsRecorder{created: map[models.RecordSource]int{}, rejected: map[string]int{}}
}

func (m *metricsRecorder) RecordsCreated(source models.RecordSource, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created[source] += n
}

func (m *metricsRecorder) TransitionRejected(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[reason]++
}

func (m *metricsRecorder) BackfillRun(mode string, _ int, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	outcome := mode
	if err != nil {
		outcome += ":error"
	}
	m.runs = append(m.runs, outcome)
}

func (m *metricsRecorder) rejectedFor(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rejected[reason]
}

type engineFixture struct {
	roster      *models.Roster
	store       *repository.MemoryAttendanceStore
	clock       *FixedClock
	metrics     *metricsRecorder
	checkpoints *repository.MemoryCheckpointRepository
	policy      *TransitionPolicy
	backfill    *BackfillService
	service     *AttendanceService
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	backfill BackfillConfig
	calendar *InstructionalCalendar
	facade   AttendanceConfig
}

func withBackfill(cfg BackfillConfig) fixtureOption {
	return func(c *fixtureConfig) { c.backfill = cfg }
}

func withCalendar(cal *InstructionalCalendar) fixtureOption {
	return func(c *fixtureConfig) { c.calendar = cal }
}

func withFacade(cfg AttendanceConfig) fixtureOption {
	return func(c *fixtureConfig) { c.facade = cfg }
}

// newEngine wires the engine over the memory store with the clock at day0 10:00 UTC.
func newEngine(t *testing.T, opts ...fixtureOption) *engineFixture {
	t.Helper()
	cfg := fixtureConfig{facade: AttendanceConfig{ExportsEnabled: true}}
	for _, opt := range opts {
		opt(&cfg)
	}
	roster := fixtureRoster(t)
	store := repository.NewMemoryAttendanceStore(roster)
	clock := NewFixedClock(day0.Add(10 * time.Hour))
	metrics := newMetricsRecorder()
	checkpoints := repository.NewMemoryCheckpointRepository()

	policy := NewTransitionPolicy(store, roster, clock, cfg.facade.Location, metrics, nil)
	backfill := NewBackfillService(store, roster, cfg.calendar, checkpoints, metrics, nil, cfg.backfill)
	svc := NewAttendanceService(store, roster, policy, backfill, nil, clock, nil, nil, cfg.facade)
	return &engineFixture{
		roster:      roster,
		store:       store,
		clock:       clock,
		metrics:     metrics,
		checkpoints: checkpoints,
		policy:      policy,
		backfill:    backfill,
		service:     svc,
	}
}

func (f *engineFixture) status(t *testing.T, studentID, courseID string, day time.Time) (models.AttendanceStatus, bool) {
	t.Helper()
	rec, err := f.store.Get(context.Background(), models.NewSlotKey(studentID, courseID, day))
	if err != nil {
		require.ErrorIs(t, err, repository.ErrRecordNotFound)
		return "", false
	}
	return rec.Status, true
}

// seedHistory writes a deterministic multi-day history: every roster student in every
// course gets a record per day, cycling through the statuses.
func seedHistory(t *testing.T, f *engineFixture, from time.Time, days int) int {
	t.Helper()
	statuses := []models.AttendanceStatus{models.AttendanceStatusPresent, models.AttendanceStatusPresent, models.AttendanceStatusLate, models.AttendanceStatusAbsent}
	written := 0
	for d := 0; d < days; d++ {
		day := from.AddDate(0, 0, d)
		for ci, course := range f.roster.Courses() {
			for si, student := range f.roster.Students() {
				status := statuses[(d+ci+si)%len(statuses)]
				_, _, err := f.store.Upsert(context.Background(), models.AttendanceMark{StudentID: student.ID, CourseID: course.ID, Date: day, Status: status, Source: models.RecordSourceAdmin})
				require.NoError(t, err)
				written++
			}
		}
	}
	return written
}
