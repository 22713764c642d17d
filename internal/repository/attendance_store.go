package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

// ErrRecordNotFound is returned when a slot has no attendance record.
var ErrRecordNotFound = errors.New("attendance record not found")

type rosterReader interface {
	HasStudent(id string) bool
	HasCourse(id string) bool
}

// MemoryAttendanceStore keeps attendance records in process memory.
// Writers are serialised, so every upsert is atomic per slot.
type MemoryAttendanceStore struct {
	mu      sync.RWMutex
	roster  rosterReader
	records []models.AttendanceRecord
	index   map[string]int
	now     func() time.Time
}

// NewMemoryAttendanceStore constructs an empty store bound to the roster.
func NewMemoryAttendanceStore(roster rosterReader) *MemoryAttendanceStore {
	return &MemoryAttendanceStore{
		roster: roster,
		index:  make(map[string]int),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Query returns matching records in insertion order.
func (s *MemoryAttendanceStore) Query(_ context.Context, query models.AttendanceQuery) ([]models.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.AttendanceRecord, 0)
	for _, rec := range s.records {
		if query.Matches(rec) {
			result = append(result, rec)
		}
	}
	return result, nil
}

// Get returns the record occupying the slot.
func (s *MemoryAttendanceStore) Get(_ context.Context, slot models.SlotKey) (*models.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.index[slotIndexKey(slot)]
	if !ok {
		return nil, ErrRecordNotFound
	}
	rec := s.records[idx]
	return &rec, nil
}

// Upsert overwrites the status of the slot's record or creates it.
// The boolean reports whether a new record was created.
func (s *MemoryAttendanceStore) Upsert(_ context.Context, mark models.AttendanceMark) (*models.AttendanceRecord, bool, error) {
	if err := validateMark(s.roster, mark); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot := mark.Slot()
	now := s.now()
	if idx, ok := s.index[slotIndexKey(slot)]; ok {
		rec := &s.records[idx]
		rec.Status = mark.Status
		rec.Source = mark.Source
		rec.UpdatedAt = now
		out := *rec
		return &out, false, nil
	}
	rec := s.insertLocked(slot, mark.Status, mark.Source, now)
	return &rec, true, nil
}

// CreateIfAbsent creates the slot's record only when none exists.
// When the slot is occupied the existing record is returned untouched with created=false.
func (s *MemoryAttendanceStore) CreateIfAbsent(_ context.Context, mark models.AttendanceMark) (*models.AttendanceRecord, bool, error) {
	if err := validateMark(s.roster, mark); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot := mark.Slot()
	if idx, ok := s.index[slotIndexKey(slot)]; ok {
		existing := s.records[idx]
		return &existing, false, nil
	}
	rec := s.insertLocked(slot, mark.Status, mark.Source, s.now())
	return &rec, true, nil
}

// BulkCreateMissing creates records with the default status for candidates lacking one.
// Candidates are validated up front so a referential failure writes nothing.
func (s *MemoryAttendanceStore) BulkCreateMissing(_ context.Context, courseID string, date time.Time, status models.AttendanceStatus, source models.RecordSource, studentIDs []string) ([]models.AttendanceRecord, error) {
	candidates, err := validateBulk(s.roster, courseID, date, status, studentIDs)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	created := make([]models.AttendanceRecord, 0)
	for _, studentID := range candidates {
		slot := models.NewSlotKey(studentID, courseID, date)
		if _, ok := s.index[slotIndexKey(slot)]; ok {
			continue
		}
		created = append(created, s.insertLocked(slot, status, source, now))
	}
	return created, nil
}

// Len returns the number of stored records.
func (s *MemoryAttendanceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryAttendanceStore) insertLocked(slot models.SlotKey, status models.AttendanceStatus, source models.RecordSource, now time.Time) models.AttendanceRecord {
	rec := models.AttendanceRecord{
		ID:        slot.RecordID(),
		StudentID: slot.StudentID,
		CourseID:  slot.CourseID,
		Date:      slot.Date,
		Status:    status,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.index[slotIndexKey(slot)] = len(s.records)
	s.records = append(s.records, rec)
	return rec
}

// slotIndexKey avoids time.Time as a map key; location pointers make equal instants compare unequal.
func slotIndexKey(slot models.SlotKey) string {
	return slot.String()
}

func validateMark(roster rosterReader, mark models.AttendanceMark) error {
	if !mark.Status.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid attendance status %q", mark.Status))
	}
	if mark.Date.IsZero() {
		return appErrors.Clone(appErrors.ErrValidation, "attendance date required")
	}
	return checkReferences(roster, mark.CourseID, mark.StudentID)
}

func validateBulk(roster rosterReader, courseID string, date time.Time, status models.AttendanceStatus, studentIDs []string) ([]string, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid attendance status %q", status))
	}
	if date.IsZero() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attendance date required")
	}
	if err := checkReferences(roster, courseID); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(studentIDs))
	candidates := make([]string, 0, len(studentIDs))
	for _, id := range studentIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if err := checkReferences(roster, courseID, id); err != nil {
			return nil, err
		}
		candidates = append(candidates, id)
	}
	return candidates, nil
}

// checkReferences rejects unknown course or student ids.
func checkReferences(roster rosterReader, courseID string, studentIDs ...string) error {
	if roster == nil {
		return appErrors.Wrap(errors.New("roster not configured"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "roster unavailable")
	}
	if !roster.HasCourse(courseID) {
		return appErrors.Clone(appErrors.ErrReferential, fmt.Sprintf("unknown course %q", courseID))
	}
	for _, id := range studentIDs {
		if !roster.HasStudent(id) {
			return appErrors.Clone(appErrors.ErrReferential, fmt.Sprintf("unknown student %q", id))
		}
	}
	return nil
}
