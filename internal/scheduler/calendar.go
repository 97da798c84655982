package scheduler

import (
	"fmt"
	"math"
	"time"

	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/pkg/holiday"
)

// Semester maps semester weeks onto calendar dates. Week 1 starts on the
// first Monday on or after the start date.
type Semester struct {
	StartDate time.Time
	EndDate   time.Time
	Monday    time.Time
	Weeks     int
}

// NewSemester parses the bounds of a teaching period.
func NewSemester(start, end string) (Semester, error) {
	from, err := time.Parse(holiday.DateLayout, start)
	if err != nil {
		return Semester{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	to, err := time.Parse(holiday.DateLayout, end)
	if err != nil {
		return Semester{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	if to.Before(from) {
		return Semester{}, fmt.Errorf("end date %s is before start date %s", end, start)
	}

	offset := (int(time.Monday) - int(from.Weekday()) + 7) % 7
	days := to.Sub(from).Hours() / 24
	return Semester{
		StartDate: from,
		EndDate:   to,
		Monday:    from.AddDate(0, 0, offset),
		Weeks:     int(math.Ceil(days / 7)),
	}, nil
}

// Date returns the calendar date of a weekday in a semester week.
func (s Semester) Date(week int, day models.Weekday) time.Time {
	return s.Monday.AddDate(0, 0, (week-1)*7+day.Index())
}

// DateString is Date formatted as YYYY-MM-DD.
func (s Semester) DateString(week int, day models.Weekday) string {
	return s.Date(week, day).Format(holiday.DateLayout)
}

// Contains reports whether the date is inside the semester bounds.
func (s Semester) Contains(t time.Time) bool {
	return !t.Before(s.StartDate) && !t.After(s.EndDate)
}

// WeekOf locates a date in the semester grid.
func (s Semester) WeekOf(t time.Time) (int, models.Weekday, bool) {
	day, ok := models.WeekdayOf(t)
	if !ok || t.Before(s.Monday) {
		return 0, "", false
	}
	week := int(t.Sub(s.Monday).Hours()/24)/7 + 1
	if week > s.Weeks {
		return 0, "", false
	}
	return week, day, true
}

// Slot builds a full time slot for a key.
func (s Semester) Slot(key models.SlotKey) models.TimeSlot {
	return models.TimeSlot{
		Week:    key.Week,
		Weekday: key.Weekday,
		Period:  key.Period,
		Date:    s.DateString(key.Week, key.Weekday),
	}
}

// ValidKey reports whether the key addresses a cell of the semester grid.
func (s Semester) ValidKey(key models.SlotKey) bool {
	return key.Week >= 1 && key.Week <= s.Weeks && key.Weekday.Valid() && key.Period.Valid()
}

// LastDay returns the last calendar day covered by the week grid.
func (s Semester) LastDay() time.Time {
	return s.Monday.AddDate(0, 0, s.Weeks*7-1)
}
