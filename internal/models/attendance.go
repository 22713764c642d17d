package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar-day wire format.
const DateLayout = "2006-01-02"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
	AttendanceStatusLate    AttendanceStatus = "late"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusLate:
		return true
	default:
		return false
	}
}

// ParseAttendanceStatus normalises free-form input into a status.
func ParseAttendanceStatus(raw string) (AttendanceStatus, bool) {
	status := AttendanceStatus(strings.ToLower(strings.TrimSpace(raw)))
	return status, status.Valid()
}

// RecordSource identifies which path created or last wrote a record.
type RecordSource string

const (
	RecordSourceSeed     RecordSource = "seed"
	RecordSourceSelf     RecordSource = "self"
	RecordSourceAdmin    RecordSource = "admin"
	RecordSourceBackfill RecordSource = "backfill"
)

// AttendanceRecord is a single (student, course, day) attendance slot.
type AttendanceRecord struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	CourseID  string           `db:"course_id" json:"course_id"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Source    RecordSource     `db:"source" json:"source"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// Slot returns the record's uniqueness key.
func (r AttendanceRecord) Slot() SlotKey {
	return SlotKey{StudentID: r.StudentID, CourseID: r.CourseID, Date: r.Date}
}

// AttendanceRecordDetail extends the record with roster display names.
type AttendanceRecordDetail struct {
	AttendanceRecord
	StudentName string `json:"student_name"`
	CourseName  string `json:"course_name"`
}

// SlotKey is the logical (student, course, day) key; at most one record exists per key.
type SlotKey struct {
	StudentID string
	CourseID  string
	Date      time.Time
}

// NewSlotKey builds a slot key with the date truncated to its calendar day.
func NewSlotKey(studentID, courseID string, date time.Time) SlotKey {
	return SlotKey{StudentID: studentID, CourseID: courseID, Date: CalendarDay(date)}
}

// String renders the key as student|course|YYYY-MM-DD.
func (k SlotKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.StudentID, k.CourseID, k.Date.Format(DateLayout))
}

var recordNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("sma-attendance-api/attendance-record"))

// RecordID derives the deterministic record id for the slot.
func (k SlotKey) RecordID() string {
	return uuid.NewSHA1(recordNamespace, []byte(k.String())).String()
}

// CalendarDay truncates t to midnight of its calendar date, expressed in UTC.
// The calendar date is read in t's own location.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CalendarDayIn reads the calendar date of t in loc.
func CalendarDayIn(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return CalendarDay(t.In(loc))
}

// ParseDay parses a YYYY-MM-DD calendar day.
func ParseDay(raw string) (time.Time, error) {
	parsed, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, err
	}
	return CalendarDay(parsed), nil
}

// SameDay reports whether two timestamps fall on the same calendar day slot.
func SameDay(a, b time.Time) bool {
	return CalendarDay(a).Equal(CalendarDay(b))
}

// AttendanceMark is a single upsert request against the store.
type AttendanceMark struct {
	StudentID string
	CourseID  string
	Date      time.Time
	Status    AttendanceStatus
	Source    RecordSource
}

// Slot returns the mark's target slot.
func (m AttendanceMark) Slot() SlotKey {
	return NewSlotKey(m.StudentID, m.CourseID, m.Date)
}

// AttendanceQuery filters store reads. Empty fields do not restrict; Match is applied last.
type AttendanceQuery struct {
	StudentID string
	CourseID  string
	Date      *time.Time
	Status    *AttendanceStatus
	Match     func(AttendanceRecord) bool
}

// Matches evaluates the query against a record.
func (q AttendanceQuery) Matches(r AttendanceRecord) bool {
	if q.StudentID != "" && r.StudentID != q.StudentID {
		return false
	}
	if q.CourseID != "" && r.CourseID != q.CourseID {
		return false
	}
	if q.Date != nil && !SameDay(r.Date, *q.Date) {
		return false
	}
	if q.Status != nil && r.Status != *q.Status {
		return false
	}
	if q.Match != nil && !q.Match(r) {
		return false
	}
	return true
}

// Selection is the actor's view context.
type Selection struct {
	CourseID string
	Date     *time.Time
	Search   string
}

// AttendanceSummary counts statuses over a record set.
type AttendanceSummary struct {
	Present int     `json:"present"`
	Absent  int     `json:"absent"`
	Late    int     `json:"late"`
	Total   int     `json:"total"`
	Rate    float64 `json:"attendance_rate"`
}

// Add accumulates a status into the summary.
func (s *AttendanceSummary) Add(status AttendanceStatus) {
	switch status {
	case AttendanceStatusPresent:
		s.Present++
	case AttendanceStatusAbsent:
		s.Absent++
	case AttendanceStatusLate:
		s.Late++
	default:
		return
	}
	s.Total++
	s.Rate = float64(s.Present+s.Late) / float64(s.Total) * 100
}

// CourseAttendanceStats is a per-course breakdown row.
type CourseAttendanceStats struct {
	CourseID   string `json:"course_id"`
	CourseName string `json:"course_name"`
	AttendanceSummary
}

// SeedResult reports a bulk seed outcome.
type SeedResult struct {
	CourseID string    `json:"course_id"`
	Date     time.Time `json:"date"`
	Created  int       `json:"created"`
	NoOp     bool      `json:"no_op"`
}

// BackfillResult reports a reconciliation outcome.
type BackfillResult struct {
	CourseID string      `json:"course_id"`
	Days     []time.Time `json:"days"`
	Skipped  []time.Time `json:"skipped,omitempty"`
	Created  int         `json:"created"`
}
