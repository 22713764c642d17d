package service

import (
	"context"
	"strings"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

type attendanceReader interface {
	Query(ctx context.Context, query models.AttendanceQuery) ([]models.AttendanceRecord, error)
}

type rosterDirectory interface {
	Students() []models.Student
	Courses() []models.Course
	Student(id string) (models.Student, bool)
	Course(id string) (models.Course, bool)
	HasCourse(id string) bool
	CourseStudentIDs(courseID string) ([]string, bool)
}

// ViewFilter computes the role-scoped visible record set.
type ViewFilter struct {
	store  attendanceReader
	roster rosterDirectory
}

// NewViewFilter constructs a ViewFilter.
func NewViewFilter(store attendanceReader, roster rosterDirectory) *ViewFilter {
	return &ViewFilter{store: store, roster: roster}
}

// Visible returns the records the actor may see for the selection, in store order.
//
// Administrative actors see one course on one day and need both selected.
// Self actors see every record of their bound student; course and day are ignored.
func (f *ViewFilter) Visible(ctx context.Context, actor models.Actor, sel models.Selection) ([]models.AttendanceRecordDetail, error) {
	query, ok, err := f.query(actor, sel)
	if err != nil || !ok {
		return []models.AttendanceRecordDetail{}, err
	}
	records, err := f.store.Query(ctx, query)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	out := make([]models.AttendanceRecordDetail, 0, len(records))
	for _, rec := range records {
		out = append(out, f.detail(rec))
	}
	return out, nil
}

func (f *ViewFilter) query(actor models.Actor, sel models.Selection) (models.AttendanceQuery, bool, error) {
	needle := strings.ToLower(strings.TrimSpace(sel.Search))
	switch {
	case actor.Role.Administrative():
		if sel.CourseID == "" || sel.Date == nil {
			return models.AttendanceQuery{}, false, nil
		}
		day := models.CalendarDay(*sel.Date)
		q := models.AttendanceQuery{CourseID: sel.CourseID, Date: &day}
		if needle != "" {
			q.Match = func(rec models.AttendanceRecord) bool {
				student, _ := f.roster.Student(rec.StudentID)
				return containsFold(student.Name, needle) || containsFold(rec.StudentID, needle)
			}
		}
		return q, true, nil
	case actor.Role.Self():
		if actor.StudentID == "" {
			return models.AttendanceQuery{}, false, nil
		}
		q := models.AttendanceQuery{StudentID: actor.StudentID}
		if needle != "" {
			q.Match = func(rec models.AttendanceRecord) bool {
				course, _ := f.roster.Course(rec.CourseID)
				return containsFold(rec.CourseID, needle) || containsFold(course.Name, needle)
			}
		}
		return q, true, nil
	default:
		return models.AttendanceQuery{}, false, appErrors.Clone(appErrors.ErrForbidden, "unknown role")
	}
}

func (f *ViewFilter) detail(rec models.AttendanceRecord) models.AttendanceRecordDetail {
	student, _ := f.roster.Student(rec.StudentID)
	course, _ := f.roster.Course(rec.CourseID)
	return models.AttendanceRecordDetail{AttendanceRecord: rec, StudentName: student.Name, CourseName: course.Name}
}

// containsFold expects needle to be lower-cased already.
func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}
