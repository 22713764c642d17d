package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

// InstructionalCalendar decides which calendar days expect attendance.
type InstructionalCalendar struct {
	skipWeekends bool
	closed       map[string]struct{}
}

// NewInstructionalCalendar builds a calendar from raw YYYY-MM-DD non-instructional dates.
func NewInstructionalCalendar(skipWeekends bool, nonInstructional []string) (*InstructionalCalendar, error) {
	cal := &InstructionalCalendar{skipWeekends: skipWeekends, closed: make(map[string]struct{}, len(nonInstructional))}
	for _, raw := range nonInstructional {
		day, err := models.ParseDay(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid non-instructional date %q: %w", raw, err)
		}
		cal.closed[day.Format(models.DateLayout)] = struct{}{}
	}
	return cal, nil
}

// IsInstructional reports whether attendance is expected on day.
// A nil calendar treats every day as instructional.
func (c *InstructionalCalendar) IsInstructional(day time.Time) bool {
	if c == nil {
		return true
	}
	day = models.CalendarDay(day)
	if c.skipWeekends {
		switch day.Weekday() {
		case time.Saturday, time.Sunday:
			return false
		}
	}
	_, closed := c.closed[day.Format(models.DateLayout)]
	return !closed
}

// ClosedDates lists configured non-instructional dates in ascending order.
func (c *InstructionalCalendar) ClosedDates() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.closed))
	for day := range c.closed {
		out = append(out, day)
	}
	sort.Strings(out)
	return out
}
