package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

func studentIDs(rows []models.AttendanceRecordDetail) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = row.StudentID
	}
	return out
}

func TestViewFilterAdministrativeSelection(t *testing.T) {
	f := newEngine(t)
	seedHistory(t, f, day0.AddDate(0, 0, -2), 3)
	view := NewViewFilter(f.store, f.roster)
	ctx := context.Background()

	rows, err := view.Visible(ctx, teachAct, models.Selection{CourseID: "X"})
	require.NoError(t, err)
	assert.Empty(t, rows, "no day selected")

	rows, err = view.Visible(ctx, adminAct, models.Selection{Date: &day0})
	require.NoError(t, err)
	assert.Empty(t, rows, "no course selected")

	rows, err = view.Visible(ctx, adminAct, models.Selection{CourseID: "X", Date: &day0})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"S1", "S2"}, studentIDs(rows))
	for _, row := range rows {
		assert.Equal(t, "X", row.CourseID)
		assert.Equal(t, day0, row.Date)
		assert.Equal(t, "Mathematics", row.CourseName)
	}
	assert.Equal(t, "Siti Aminah", rows[0].StudentName)
}

func TestViewFilterAdministrativeSearch(t *testing.T) {
	f := newEngine(t)
	seedHistory(t, f, day0, 1)
	view := NewViewFilter(f.store, f.roster)
	ctx := context.Background()

	rows, err := view.Visible(ctx, adminAct, models.Selection{CourseID: "X", Date: &day0, Search: "  BUDI "})
	require.NoError(t, err)
	assert.Equal(t, []string{"S2"}, studentIDs(rows))

	rows, err = view.Visible(ctx, adminAct, models.Selection{CourseID: "X", Date: &day0, Search: "s1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"S1"}, studentIDs(rows))

	rows, err = view.Visible(ctx, adminAct, models.Selection{CourseID: "X", Date: &day0, Search: "physics"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestViewFilterSelfSeesOnlyOwnRecords(t *testing.T) {
	f := newEngine(t)
	seedHistory(t, f, day0.AddDate(0, 0, -1), 2)
	view := NewViewFilter(f.store, f.roster)
	ctx := context.Background()

	// course and day selection are ignored for self roles
	rows, err := view.Visible(ctx, s1Act, models.Selection{CourseID: "Y", Date: &day1})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for _, row := range rows {
		assert.Equal(t, "S1", row.StudentID)
	}

	rows, err = view.Visible(ctx, s2Parent, models.Selection{Search: "PHYS"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, "S2", row.StudentID)
		assert.Equal(t, "Y", row.CourseID)
	}

	rows, err = view.Visible(ctx, s2Parent, models.Selection{Search: "x"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = view.Visible(ctx, models.Actor{Role: models.RoleStudent}, models.Selection{})
	require.NoError(t, err)
	assert.Empty(t, rows, "unbound student sees nothing")
}

func TestViewFilterUnknownRole(t *testing.T) {
	f := newEngine(t)
	view := NewViewFilter(f.store, f.roster)
	_, err := view.Visible(context.Background(), models.Actor{Role: "JANITOR"}, models.Selection{CourseID: "X", Date: &day0})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}
