package models

import "encoding/json"

// EmploymentType distinguishes full-time and part-time staff.
type EmploymentType string

const (
	EmploymentFullTime EmploymentType = "常勤"
	EmploymentPartTime EmploymentType = "非常勤"
)

// Teacher is an instructor together with canonical scheduling constraints.
type Teacher struct {
	ID          string             `json:"id" validate:"required"`
	Name        string             `json:"name" validate:"required"`
	Type        EmploymentType     `json:"type,omitempty"`
	Constraints TeacherConstraints `json:"constraints"`
}

// TeacherConstraints is the canonical constraint record. Legacy shapes are
// converted by NormalizeConstraints when decoding.
type TeacherConstraints struct {
	Fixed  []FixedRule    `json:"fixed,omitempty"`
	NG     NGConstraint   `json:"ng"`
	Wish   WishConstraint `json:"wish"`
	Makeup *MakeupNeed    `json:"makeup,omitempty"`

	AvailableDays      []Weekday            `json:"availableDays,omitempty"`
	UnavailableDays    []Weekday            `json:"unavailableDays,omitempty"`
	AvailablePeriods   map[Weekday][]Period `json:"availablePeriods,omitempty"`
	RequiredPeriods    []Period             `json:"requiredPeriods,omitempty"`
	MaxClassesPerDay   int                  `json:"maxClassesPerDay,omitempty"`
	MaxClassesPerWeek  int                  `json:"maxClassesPerWeek,omitempty"`
	Sequential         *SequentialSubjects  `json:"sequentialSubjects,omitempty"`
	SpecialTimeStart   string               `json:"specialTimeStart,omitempty"`
	ChangeUnavailable  bool                 `json:"changeUnavailable,omitempty"`
	FullyFixed         bool                 `json:"fullyFixed,omitempty"`
	WeeklyGrouping     bool                 `json:"weeklyGrouping,omitempty"`
	FlexibleScheduling bool                 `json:"flexibleScheduling,omitempty"`
	Notes              string               `json:"notes,omitempty"`
}

// FixedRule is an absolute commitment on a weekday. Without a Date the rule
// closes every other period of that weekday.
type FixedRule struct {
	Day       Weekday    `json:"day"`
	Date      string     `json:"date,omitempty"`
	WeekRange *WeekRange `json:"weekRange,omitempty"`
	Biweekly  Parity     `json:"biweekly,omitempty"`
	Periods   []Period   `json:"periods"`
	Subject   string     `json:"subject,omitempty"`
}

// WeekRange bounds a rule to semester weeks, inclusive.
type WeekRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Contains reports whether week is within the range; zero bounds are open.
func (r *WeekRange) Contains(week int) bool {
	if r == nil {
		return true
	}
	if r.From > 0 && week < r.From {
		return false
	}
	if r.To > 0 && week > r.To {
		return false
	}
	return true
}

// AppliesTo reports whether the rule governs the given week.
func (f FixedRule) AppliesTo(week int) bool {
	return f.WeekRange.Contains(week) && f.Biweekly.Matches(week)
}

// NGConstraint lists absolute exclusions.
type NGConstraint struct {
	Days       []Weekday            `json:"days,omitempty"`
	Periods    []Period             `json:"periods,omitempty"`
	DayPeriods map[Weekday][]Period `json:"dayPeriods,omitempty"`
	Dates      []string             `json:"dates,omitempty"`
	TimeRanges []TimeRange          `json:"timeRanges,omitempty"`
}

// TimeRange blocks wall-clock time on a weekday.
type TimeRange struct {
	Day   Weekday `json:"day"`
	Start string  `json:"start"`
	End   string  `json:"end"`
}

// WishConstraint holds soft preferences used only to break ties.
type WishConstraint struct {
	Days              []Weekday            `json:"days,omitempty"`
	Periods           []Period             `json:"periods,omitempty"`
	DayPeriods        map[Weekday][]Period `json:"dayPeriods,omitempty"`
	PreferConsecutive bool                 `json:"preferConsecutive,omitempty"`
	Biweekly          Parity               `json:"biweekly,omitempty"`
}

// SequentialSubjects requires the listed subjects on consecutive weekdays.
type SequentialSubjects struct {
	Subjects              []string `json:"subjects"`
	MustBeConsecutiveDays bool     `json:"mustBeConsecutiveDays"`
	Description           string   `json:"description,omitempty"`
}

// MakeupNeed records lesson time owed because of a shortened period.
type MakeupNeed struct {
	TotalDelayMinutes int    `json:"totalDelayMinutes,omitempty"`
	MakeupClasses     int    `json:"makeupClasses,omitempty"`
	Location          string `json:"location,omitempty"`
	Notes             string `json:"notes,omitempty"`
}

// UnmarshalJSON routes every shape through the legacy adapter.
func (c *TeacherConstraints) UnmarshalJSON(data []byte) error {
	normalized, err := NormalizeConstraints(data)
	if err != nil {
		return err
	}
	*c = normalized
	return nil
}

// MarshalJSON emits the canonical shape.
func (c TeacherConstraints) MarshalJSON() ([]byte, error) {
	type canonical TeacherConstraints
	return json.Marshal(canonical(c))
}

// HasFixedOn reports whether an undated fixed rule applies to the day and week.
func (c TeacherConstraints) HasFixedOn(day Weekday, week int) bool {
	for _, f := range c.Fixed {
		if f.Date == "" && f.Day == day && f.AppliesTo(week) {
			return true
		}
	}
	return false
}

// FixedPeriods returns the union of periods fixed for the day and week.
func (c TeacherConstraints) FixedPeriods(day Weekday, week int) []Period {
	var out []Period
	for _, f := range c.Fixed {
		if f.Date != "" || f.Day != day || !f.AppliesTo(week) {
			continue
		}
		for _, p := range f.Periods {
			if !containsPeriod(out, p) {
				out = append(out, p)
			}
		}
	}
	return out
}

// FixedAt returns the fixed rule naming exactly this slot, if any.
func (c TeacherConstraints) FixedAt(day Weekday, week int, date string, period Period) (FixedRule, bool) {
	for _, f := range c.Fixed {
		if f.Day != day || !containsPeriod(f.Periods, period) {
			continue
		}
		if f.Date != "" {
			if f.Date == date {
				return f, true
			}
			continue
		}
		if f.AppliesTo(week) {
			return f, true
		}
	}
	return FixedRule{}, false
}

func containsPeriod(list []Period, p Period) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}

// ContainsPeriod reports whether p is in list.
func ContainsPeriod(list []Period, p Period) bool {
	return containsPeriod(list, p)
}

// ContainsWeekday reports whether d is in list.
func ContainsWeekday(list []Weekday, d Weekday) bool {
	for _, v := range list {
		if v == d {
			return true
		}
	}
	return false
}
