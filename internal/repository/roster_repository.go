package repository

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

// RosterSchema creates the roster tables read by RosterRepository.
const RosterSchema = `CREATE TABLE IF NOT EXISTS students (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS courses (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS course_enrollments (
    course_id TEXT NOT NULL REFERENCES courses(id),
    student_id TEXT NOT NULL REFERENCES students(id),
    PRIMARY KEY (course_id, student_id)
)`

// RosterRepository reads the roster from PostgreSQL.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs a RosterRepository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

type enrollmentRow struct {
	CourseID  string `db:"course_id"`
	StudentID string `db:"student_id"`
}

// Load reads students, courses and enrollments into an immutable roster.
func (r *RosterRepository) Load(ctx context.Context) (*models.Roster, error) {
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, "SELECT id, name FROM students ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, "SELECT id, name FROM courses ORDER BY id"); err != nil {
		return nil, fmt.Errorf("load courses: %w", err)
	}
	var enrollments []enrollmentRow
	if err := r.db.SelectContext(ctx, &enrollments, "SELECT course_id, student_id FROM course_enrollments ORDER BY course_id, student_id"); err != nil {
		return nil, fmt.Errorf("load enrollments: %w", err)
	}

	byCourse := make(map[string][]string)
	for _, e := range enrollments {
		byCourse[e.CourseID] = append(byCourse[e.CourseID], e.StudentID)
	}
	for i := range courses {
		courses[i].StudentIDs = byCourse[courses[i].ID]
	}
	return models.NewRoster(students, courses)
}

type rosterFile struct {
	Students []models.Student `yaml:"students"`
	Courses  []models.Course  `yaml:"courses"`
}

// ParseRoster decodes a YAML roster document.
func ParseRoster(data []byte) (*models.Roster, error) {
	var doc rosterFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	return models.NewRoster(doc.Students, doc.Courses)
}

// LoadRosterFile reads a YAML roster from disk.
func LoadRosterFile(path string) (*models.Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}
	return ParseRoster(data)
}

// DefaultRoster is the built-in development roster.
func DefaultRoster() *models.Roster {
	roster, err := models.NewRoster(
		[]models.Student{
			{ID: "2023-0001", Name: "John Doe"},
			{ID: "2023-0002", Name: "Jane Smith"},
			{ID: "2022-0003", Name: "Michael Johnson"},
			{ID: "2024-0004", Name: "Emily Davis"},
			{ID: "2023-0005", Name: "Robert Wilson"},
		},
		[]models.Course{
			{ID: "CS15", Name: "Software Engineering"},
			{ID: "CS12", Name: "Data Structures and Algorithms"},
			{ID: "CS10", Name: "Computer Programming"},
			{ID: "CS20", Name: "Database Management"},
		},
	)
	if err != nil {
		panic(err)
	}
	return roster
}
