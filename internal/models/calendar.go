package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday is a teaching day in canonical Japanese form.
type Weekday string

const (
	Monday    Weekday = "月"
	Tuesday   Weekday = "火"
	Wednesday Weekday = "水"
	Thursday  Weekday = "木"
	Friday    Weekday = "金"
)

// Weekdays lists teaching days in calendar order.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}

var weekdayAliases = map[string]Weekday{
	"monday": Monday, "mon": Monday, "月曜": Monday, "月曜日": Monday,
	"tuesday": Tuesday, "tue": Tuesday, "火曜": Tuesday, "火曜日": Tuesday,
	"wednesday": Wednesday, "wed": Wednesday, "水曜": Wednesday, "水曜日": Wednesday,
	"thursday": Thursday, "thu": Thursday, "木曜": Thursday, "木曜日": Thursday,
	"friday": Friday, "fri": Friday, "金曜": Friday, "金曜日": Friday,
}

// ParseWeekday accepts canonical, English and long Japanese day names.
func ParseWeekday(raw string) (Weekday, bool) {
	trimmed := strings.TrimSpace(raw)
	switch Weekday(trimmed) {
	case Monday, Tuesday, Wednesday, Thursday, Friday:
		return Weekday(trimmed), true
	}
	if d, ok := weekdayAliases[strings.ToLower(trimmed)]; ok {
		return d, true
	}
	return "", false
}

// Index returns the zero-based position from Monday, or -1.
func (d Weekday) Index() int {
	for i, w := range Weekdays {
		if w == d {
			return i
		}
	}
	return -1
}

// Valid reports whether d is a teaching day.
func (d Weekday) Valid() bool {
	return d.Index() >= 0
}

// TimeWeekday converts to the standard library weekday.
func (d Weekday) TimeWeekday() time.Weekday {
	return time.Weekday(d.Index() + 1)
}

// UnmarshalText normalizes aliases so catalogs may use English names.
func (d *Weekday) UnmarshalText(text []byte) error {
	parsed, ok := ParseWeekday(string(text))
	if !ok {
		return fmt.Errorf("unknown weekday %q", string(text))
	}
	*d = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Weekday) MarshalText() ([]byte, error) {
	return []byte(d), nil
}

// WeekdayOf returns the teaching day of t; weekends report false.
func WeekdayOf(t time.Time) (Weekday, bool) {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return "", false
	}
	return Weekdays[int(t.Weekday())-1], true
}

// Period is a lesson period number.
type Period int

const (
	FirstPeriod Period = 1
	LastPeriod  Period = 4
)

// Periods lists all periods in a day.
var Periods = []Period{1, 2, 3, 4}

// PeriodTime is the wall-clock span of a period.
type PeriodTime struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// PeriodTimes maps each period to its bell times.
var PeriodTimes = map[Period]PeriodTime{
	1: {Start: "09:00", End: "10:30"},
	2: {Start: "10:40", End: "12:10"},
	3: {Start: "13:00", End: "14:30"},
	4: {Start: "14:40", End: "16:10"},
}

// Valid reports whether p is within the teaching day.
func (p Period) Valid() bool {
	return p >= FirstPeriod && p <= LastPeriod
}

// Label renders the period the way timetables print it.
func (p Period) Label() string {
	return fmt.Sprintf("%d限", int(p))
}

// ParsePeriod accepts "3", "3限" and "3rd".
func ParsePeriod(raw string) (Period, bool) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimSuffix(trimmed, "限目")
	trimmed = strings.TrimSuffix(trimmed, "限")
	for _, suffix := range []string{"st", "nd", "rd", "th"} {
		trimmed = strings.TrimSuffix(trimmed, suffix)
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, false
	}
	p := Period(n)
	return p, p.Valid()
}

// UnmarshalJSON accepts numbers as well as labelled strings.
func (p *Period) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*p = Period(n)
		if !p.Valid() {
			return fmt.Errorf("period %d out of range", n)
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid period %s", string(data))
	}
	parsed, ok := ParsePeriod(s)
	if !ok {
		return fmt.Errorf("invalid period %q", s)
	}
	*p = parsed
	return nil
}

// PeriodAt returns the period whose span contains hh:mm. A time falling in a
// break resolves to the next period.
func PeriodAt(hhmm string) (Period, bool) {
	minutes, ok := clockMinutes(hhmm)
	if !ok {
		return 0, false
	}
	for _, p := range Periods {
		span := PeriodTimes[p]
		end, _ := clockMinutes(span.End)
		if minutes <= end {
			return p, true
		}
	}
	return 0, false
}

// Overlaps reports whether the period intersects [start, end).
func (p Period) Overlaps(start, end string) bool {
	from, ok1 := clockMinutes(start)
	to, ok2 := clockMinutes(end)
	span, ok := PeriodTimes[p]
	if !ok || !ok1 || !ok2 {
		return false
	}
	ps, _ := clockMinutes(span.Start)
	pe, _ := clockMinutes(span.End)
	return ps < to && from < pe
}

// Minutes returns the lesson length of the period.
func (p Period) Minutes() int {
	span, ok := PeriodTimes[p]
	if !ok {
		return 0
	}
	start, _ := clockMinutes(span.Start)
	end, _ := clockMinutes(span.End)
	return end - start
}

func clockMinutes(hhmm string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// Parity selects alternate weeks.
type Parity string

const (
	ParityNone Parity = ""
	ParityOdd  Parity = "odd"
	ParityEven Parity = "even"
	// ParityAny marks a biweekly teacher whose phase is not fixed yet.
	ParityAny Parity = "any"
)

// Matches reports whether the week number satisfies the parity.
func (p Parity) Matches(week int) bool {
	switch p {
	case ParityOdd:
		return week%2 == 1
	case ParityEven:
		return week%2 == 0
	default:
		return true
	}
}

// DateRange is an inclusive span of ISO dates.
type DateRange struct {
	From string `json:"from" yaml:"from" validate:"required,datetime=2006-01-02"`
	To   string `json:"to" yaml:"to" validate:"required,datetime=2006-01-02"`
}

// Contains reports whether date (YYYY-MM-DD) lies within the range.
func (r DateRange) Contains(date string) bool {
	return date >= r.From && date <= r.To
}
