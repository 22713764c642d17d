package models

import (
	"fmt"
	"sort"
)

// Student is an immutable roster entry.
type Student struct {
	ID   string `db:"id" json:"id" yaml:"id"`
	Name string `db:"name" json:"name" yaml:"name"`
}

// Course is an immutable roster entry. StudentIDs lists enrolled students;
// an empty list means every roster student is expected to attend.
type Course struct {
	ID         string   `db:"id" json:"id" yaml:"id"`
	Name       string   `db:"name" json:"name" yaml:"name"`
	StudentIDs []string `db:"-" json:"student_ids,omitempty" yaml:"students,omitempty"`
}

// Roster is the authoritative, read-only set of students and courses.
type Roster struct {
	students     []Student
	courses      []Course
	studentIndex map[string]int
	courseIndex  map[string]int
}

// NewRoster validates and indexes the provided entries.
func NewRoster(students []Student, courses []Course) (*Roster, error) {
	r := &Roster{
		students:     make([]Student, 0, len(students)),
		courses:      make([]Course, 0, len(courses)),
		studentIndex: make(map[string]int, len(students)),
		courseIndex:  make(map[string]int, len(courses)),
	}
	for _, s := range students {
		if s.ID == "" {
			return nil, fmt.Errorf("roster: student with empty id")
		}
		if _, dup := r.studentIndex[s.ID]; dup {
			return nil, fmt.Errorf("roster: duplicate student %s", s.ID)
		}
		r.studentIndex[s.ID] = len(r.students)
		r.students = append(r.students, s)
	}
	for _, c := range courses {
		if c.ID == "" {
			return nil, fmt.Errorf("roster: course with empty id")
		}
		if _, dup := r.courseIndex[c.ID]; dup {
			return nil, fmt.Errorf("roster: duplicate course %s", c.ID)
		}
		for _, sid := range c.StudentIDs {
			if _, ok := r.studentIndex[sid]; !ok {
				return nil, fmt.Errorf("roster: course %s enrolls unknown student %s", c.ID, sid)
			}
		}
		enrolled := append([]string(nil), c.StudentIDs...)
		c.StudentIDs = enrolled
		r.courseIndex[c.ID] = len(r.courses)
		r.courses = append(r.courses, c)
	}
	return r, nil
}

// Students returns a copy of all students in roster order.
func (r *Roster) Students() []Student {
	return append([]Student(nil), r.students...)
}

// Courses returns a copy of all courses in roster order.
func (r *Roster) Courses() []Course {
	out := make([]Course, len(r.courses))
	for i, c := range r.courses {
		c.StudentIDs = append([]string(nil), c.StudentIDs...)
		out[i] = c
	}
	return out
}

// Student looks up a student by id.
func (r *Roster) Student(id string) (Student, bool) {
	idx, ok := r.studentIndex[id]
	if !ok {
		return Student{}, false
	}
	return r.students[idx], true
}

// Course looks up a course by id.
func (r *Roster) Course(id string) (Course, bool) {
	idx, ok := r.courseIndex[id]
	if !ok {
		return Course{}, false
	}
	return r.courses[idx], true
}

// HasStudent reports whether the id is a known student.
func (r *Roster) HasStudent(id string) bool {
	_, ok := r.studentIndex[id]
	return ok
}

// HasCourse reports whether the id is a known course.
func (r *Roster) HasCourse(id string) bool {
	_, ok := r.courseIndex[id]
	return ok
}

// CourseStudentIDs returns the students expected to attend the course, in roster order.
func (r *Roster) CourseStudentIDs(courseID string) ([]string, bool) {
	course, ok := r.Course(courseID)
	if !ok {
		return nil, false
	}
	if len(course.StudentIDs) == 0 {
		ids := make([]string, len(r.students))
		for i, s := range r.students {
			ids[i] = s.ID
		}
		return ids, true
	}
	ids := append([]string(nil), course.StudentIDs...)
	sort.SliceStable(ids, func(i, j int) bool {
		return r.studentIndex[ids[i]] < r.studentIndex[ids[j]]
	})
	return ids, true
}
