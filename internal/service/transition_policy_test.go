package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

func assertTransitionReason(t *testing.T, err error, reason string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorizedTransition))
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, reason, appErr.Reason)
}

func TestSetStatusAdministrativeOverride(t *testing.T) {
	f := newEngine(t)
	ctx := context.Background()

	for _, actor := range []models.Actor{adminAct, teachAct, {Role: models.RoleSuperAdmin}} {
		_, err := f.policy.SetStatus(ctx, actor, "S1", "X", day0, models.AttendanceStatusLate)
		require.NoError(t, err)
	}
	rec, err := f.policy.SetStatus(ctx, adminAct, "S1", "X", day0.AddDate(0, 0, -30), models.AttendanceStatusAbsent)
	require.NoError(t, err)
	assert.Equal(t, models.RecordSourceAdmin, rec.Source)
	assert.Equal(t, 2, f.store.Len())
	assert.Equal(t, 2, f.metrics.created[models.RecordSourceAdmin])
}

func TestSetStatusRejectsSelfRoles(t *testing.T) {
	f := newEngine(t)
	_, err := f.policy.SetStatus(context.Background(), s1Act, "S1", "X", day0, models.AttendanceStatusPresent)
	assertTransitionReason(t, err, appErrors.ReasonInvalidRole)
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, 1, f.metrics.rejectedFor(appErrors.ReasonInvalidRole))
}

func TestSetStatusValidatesInput(t *testing.T) {
	f := newEngine(t)
	ctx := context.Background()

	_, err := f.policy.SetStatus(ctx, adminAct, "S1", "X", day0, "excused")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.policy.SetStatus(ctx, adminAct, "S9", "X", day0, models.AttendanceStatusPresent)
	assert.ErrorIs(t, err, appErrors.ErrReferential)

	_, err = f.policy.SetStatus(ctx, adminAct, "S1", "Z", day0, models.AttendanceStatusPresent)
	assert.ErrorIs(t, err, appErrors.ErrReferential)
	assert.Equal(t, 0, f.store.Len())
}

func TestMarkOwnCreatesTodayRecord(t *testing.T) {
	f := newEngine(t)
	rec, err := f.policy.MarkOwn(context.Background(), s1Act, "", "X", models.AttendanceStatusLate)
	require.NoError(t, err)
	assert.Equal(t, day0, rec.Date)
	assert.Equal(t, models.AttendanceStatusLate, rec.Status)
	assert.Equal(t, models.RecordSourceSelf, rec.Source)
}

func TestMarkOwnLocksAfterFirstMark(t *testing.T) {
	f := newEngine(t)
	ctx := context.Background()

	_, err := f.policy.MarkOwn(ctx, s1Act, "", "X", models.AttendanceStatusPresent)
	require.NoError(t, err)

	_, err = f.policy.MarkOwn(ctx, s1Act, "", "X", models.AttendanceStatusLate)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrAlreadyMarked)
	status, ok := f.status(t, "S1", "X", day0)
	require.True(t, ok)
	assert.Equal(t, models.AttendanceStatusPresent, status)

	// an administrative record also locks the slot
	_, err = f.policy.SetStatus(ctx, adminAct, "S2", "X", day0, models.AttendanceStatusAbsent)
	require.NoError(t, err)
	_, err = f.policy.MarkOwn(ctx, s2Parent, "S2", "X", models.AttendanceStatusPresent)
	assert.ErrorIs(t, err, appErrors.ErrAlreadyMarked)
	status, _ = f.status(t, "S2", "X", day0)
	assert.Equal(t, models.AttendanceStatusAbsent, status)

	// the next day is a fresh slot
	f.clock.Advance(24 * time.Hour)
	_, err = f.policy.MarkOwn(ctx, s1Act, "", "X", models.AttendanceStatusLate)
	require.NoError(t, err)
}

func TestMarkOwnRejections(t *testing.T) {
	f := newEngine(t)
	ctx := context.Background()

	_, err := f.policy.MarkOwn(ctx, s1Act, "", "X", models.AttendanceStatusAbsent)
	assertTransitionReason(t, err, appErrors.ReasonInvalidStatus)

	_, err = f.policy.MarkOwn(ctx, adminAct, "S1", "X", models.AttendanceStatusPresent)
	assertTransitionReason(t, err, appErrors.ReasonInvalidRole)

	_, err = f.policy.MarkOwn(ctx, s1Act, "S2", "X", models.AttendanceStatusPresent)
	assertTransitionReason(t, err, appErrors.ReasonNotSelf)

	_, err = f.policy.MarkOwn(ctx, models.Actor{Role: models.RoleStudent}, "", "X", models.AttendanceStatusPresent)
	assertTransitionReason(t, err, appErrors.ReasonNotSelf)

	_, err = f.policy.MarkOwn(ctx, s1Act, "", "Z", models.AttendanceStatusPresent)
	assert.ErrorIs(t, err, appErrors.ErrReferential)
	assert.Equal(t, 0, f.store.Len())
}

func TestMarkOwnUsesEngineTimezone(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*60*60)
	f := newEngine(t, withFacade(AttendanceConfig{Location: jakarta}))
	// 20:00 UTC on day0 is already day1 in Jakarta
	f.clock.Set(day0.Add(20 * time.Hour))

	rec, err := f.policy.MarkOwn(context.Background(), s1Act, "", "X", models.AttendanceStatusPresent)
	require.NoError(t, err)
	assert.Equal(t, day1, rec.Date)
}

func TestMarkOwnConcurrentOnlyOneWins(t *testing.T) {
	f := newEngine(t)
	var wins, locked int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := models.AttendanceStatusPresent
			if i%2 == 0 {
				status = models.AttendanceStatusLate
			}
			_, err := f.policy.MarkOwn(context.Background(), s1Act, "", "Y", status)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, appErrors.ErrAlreadyMarked):
				atomic.AddInt32(&locked, 1)
			}
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)
	assert.EqualValues(t, 31, locked)
	assert.Equal(t, 1, f.store.Len())
}

func TestSeedCourseDayIsIdempotent(t *testing.T) {
	f := newEngine(t)
	ctx := context.Background()

	_, err := f.policy.SetStatus(ctx, adminAct, "S2", "X", day0, models.AttendanceStatusAbsent)
	require.NoError(t, err)

	res, err := f.policy.SeedCourseDay(ctx, adminAct, "X", day0.Add(7*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.False(t, res.NoOp)
	assert.Equal(t, day0, res.Date)

	again, err := f.policy.SeedCourseDay(ctx, teachAct, "X", day0)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.True(t, again.NoOp)

	status, _ := f.status(t, "S1", "X", day0)
	assert.Equal(t, models.AttendanceStatusPresent, status)
	status, _ = f.status(t, "S2", "X", day0)
	assert.Equal(t, models.AttendanceStatusAbsent, status)
	assert.Equal(t, 2, f.store.Len())
}

func TestSeedCourseDayRejections(t *testing.T) {
	f := newEngine(t)
	ctx := context.Background()

	_, err := f.policy.SeedCourseDay(ctx, s1Act, "X", day0)
	assertTransitionReason(t, err, appErrors.ReasonInvalidRole)

	_, err = f.policy.SeedCourseDay(ctx, adminAct, "Z", day0)
	assert.ErrorIs(t, err, appErrors.ErrReferential)
	assert.Equal(t, 0, f.store.Len())
}

func TestTransitionsRejectStudentsOutsideCourse(t *testing.T) {
	roster, err := models.NewRoster(
		[]models.Student{{ID: "S1", Name: "Siti Aminah"}, {ID: "S2", Name: "Budi Santoso"}},
		[]models.Course{{ID: "X", Name: "Mathematics"}, {ID: "Y", Name: "Physics", StudentIDs: []string{"S2"}}},
	)
	require.NoError(t, err)
	store := repository.NewMemoryAttendanceStore(roster)
	policy := NewTransitionPolicy(store, roster, NewFixedClock(day0.Add(10*time.Hour)), nil, nil, nil)
	ctx := context.Background()

	_, err = policy.SetStatus(ctx, adminAct, "S1", "Y", day0, models.AttendanceStatusPresent)
	assert.ErrorIs(t, err, appErrors.ErrReferential)

	_, err = policy.MarkOwn(ctx, s1Act, "", "Y", models.AttendanceStatusPresent)
	assert.ErrorIs(t, err, appErrors.ErrReferential)
	assert.Equal(t, 0, store.Len())

	_, err = policy.SetStatus(ctx, adminAct, "S2", "Y", day0, models.AttendanceStatusLate)
	require.NoError(t, err)
	_, err = policy.MarkOwn(ctx, s1Act, "", "X", models.AttendanceStatusPresent)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
}
