package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

// AttendanceSchema creates the attendance table. The unique slot constraint backs Upsert.
const AttendanceSchema = `CREATE TABLE IF NOT EXISTS attendance_records (
    id TEXT PRIMARY KEY,
    student_id TEXT NOT NULL,
    course_id TEXT NOT NULL,
    date DATE NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('present', 'absent', 'late')),
    source TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    UNIQUE (student_id, course_id, date)
)`

const attendanceColumns = `id, student_id, course_id, date, status, source, created_at, updated_at`

// AttendanceRepository persists attendance records in PostgreSQL.
type AttendanceRepository struct {
	db     *sqlx.DB
	roster rosterReader
	now    func() time.Time
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB, roster rosterReader) *AttendanceRepository {
	return &AttendanceRepository{db: db, roster: roster, now: func() time.Time { return time.Now().UTC() }}
}

// EnsureSchema creates the attendance table when missing.
func (r *AttendanceRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, AttendanceSchema); err != nil {
		return fmt.Errorf("ensure attendance schema: %w", err)
	}
	return nil
}

// Query returns records matching the filter ordered by creation.
func (r *AttendanceRepository) Query(ctx context.Context, query models.AttendanceQuery) ([]models.AttendanceRecord, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if query.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, query.StudentID)
	}
	if query.CourseID != "" {
		where = append(where, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, query.CourseID)
	}
	if query.Date != nil {
		where = append(where, fmt.Sprintf("date = $%d", len(args)+1))
		args = append(args, models.CalendarDay(*query.Date))
	}
	if query.Status != nil && query.Status.Valid() {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *query.Status)
	}
	stmt := fmt.Sprintf("SELECT %s FROM attendance_records WHERE %s ORDER BY created_at, id", attendanceColumns, strings.Join(where, " AND "))

	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, stmt, args...); err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	result := make([]models.AttendanceRecord, 0, len(rows))
	for _, row := range rows {
		row.Date = models.CalendarDay(row.Date)
		if query.Match != nil && !query.Match(row) {
			continue
		}
		result = append(result, row)
	}
	return result, nil
}

// Get returns the record occupying the slot.
func (r *AttendanceRepository) Get(ctx context.Context, slot models.SlotKey) (*models.AttendanceRecord, error) {
	stmt := fmt.Sprintf("SELECT %s FROM attendance_records WHERE student_id = $1 AND course_id = $2 AND date = $3", attendanceColumns)
	var rec models.AttendanceRecord
	if err := r.db.GetContext(ctx, &rec, stmt, slot.StudentID, slot.CourseID, slot.Date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("get attendance: %w", err)
	}
	rec.Date = models.CalendarDay(rec.Date)
	return &rec, nil
}

type upsertedRecord struct {
	models.AttendanceRecord
	Inserted bool `db:"inserted"`
}

// Upsert inserts or updates the slot's record in a single statement.
func (r *AttendanceRepository) Upsert(ctx context.Context, mark models.AttendanceMark) (*models.AttendanceRecord, bool, error) {
	if err := validateMark(r.roster, mark); err != nil {
		return nil, false, err
	}
	slot := mark.Slot()
	now := r.now()
	stmt := fmt.Sprintf(`INSERT INTO attendance_records (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (student_id, course_id, date)
DO UPDATE SET status = EXCLUDED.status, source = EXCLUDED.source, updated_at = EXCLUDED.updated_at
RETURNING %s, (xmax = 0) AS inserted`, attendanceColumns, attendanceColumns)

	var stored upsertedRecord
	if err := r.db.GetContext(ctx, &stored, stmt, slot.RecordID(), slot.StudentID, slot.CourseID, slot.Date, mark.Status, mark.Source, now, now); err != nil {
		return nil, false, fmt.Errorf("upsert attendance: %w", err)
	}
	rec := stored.AttendanceRecord
	rec.Date = models.CalendarDay(rec.Date)
	return &rec, stored.Inserted, nil
}

// CreateIfAbsent inserts the slot's record unless one already exists.
func (r *AttendanceRepository) CreateIfAbsent(ctx context.Context, mark models.AttendanceMark) (*models.AttendanceRecord, bool, error) {
	if err := validateMark(r.roster, mark); err != nil {
		return nil, false, err
	}
	slot := mark.Slot()
	now := r.now()
	stmt := fmt.Sprintf(`INSERT INTO attendance_records (%s)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (student_id, course_id, date) DO NOTHING
RETURNING %s`, attendanceColumns, attendanceColumns)

	var rec models.AttendanceRecord
	err := r.db.GetContext(ctx, &rec, stmt, slot.RecordID(), slot.StudentID, slot.CourseID, slot.Date, mark.Status, mark.Source, now, now)
	if err == nil {
		rec.Date = models.CalendarDay(rec.Date)
		return &rec, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("create attendance: %w", err)
	}
	existing, err := r.Get(ctx, slot)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// BulkCreateMissing inserts default-status records for uncovered candidates in one transaction.
func (r *AttendanceRepository) BulkCreateMissing(ctx context.Context, courseID string, date time.Time, status models.AttendanceStatus, source models.RecordSource, studentIDs []string) ([]models.AttendanceRecord, error) {
	candidates, err := validateBulk(r.roster, courseID, date, status, studentIDs)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []models.AttendanceRecord{}, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk attendance: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback() //nolint:errcheck
		}
	}()

	stmt := `INSERT INTO attendance_records (id, student_id, course_id, date, status, source, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (student_id, course_id, date) DO NOTHING RETURNING id`
	now := r.now()
	created := make([]models.AttendanceRecord, 0, len(candidates))
	for _, studentID := range candidates {
		slot := models.NewSlotKey(studentID, courseID, date)
		rec := models.AttendanceRecord{
			ID:        slot.RecordID(),
			StudentID: studentID,
			CourseID:  courseID,
			Date:      slot.Date,
			Status:    status,
			Source:    source,
			CreatedAt: now,
			UpdatedAt: now,
		}
		var insertedID string
		if err := tx.QueryRowxContext(ctx, stmt, rec.ID, rec.StudentID, rec.CourseID, rec.Date, rec.Status, rec.Source, rec.CreatedAt, rec.UpdatedAt).Scan(&insertedID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("bulk insert attendance: %w", err)
		}
		created = append(created, rec)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk attendance: %w", err)
	}
	commit = true
	return created, nil
}
