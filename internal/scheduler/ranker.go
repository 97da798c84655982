package scheduler

import (
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/pkg/holiday"
)

// Priority weights. Higher scores are placed first.
const (
	scoreFullyFixed        = 1000
	scoreChangeUnavailable = 600
	scoreHasFixed          = 500
	scoreNGDay             = 50
	scoreNGPeriod          = 30
	scoreNGDate            = 20
	scoreTwoDays           = 200
	scoreThreeDays         = 100
	scoreBiweekly          = 150
)

// FixedPlacement is one concrete occurrence of a fixed_schedule rule. A zero
// Period blocks the whole day without placing a lesson.
type FixedPlacement struct {
	RuleID    string         `json:"ruleId"`
	TeacherID string         `json:"teacherId"`
	Week      int            `json:"week"`
	Date      string         `json:"date"`
	Weekday   models.Weekday `json:"weekday"`
	Period    models.Period  `json:"period"`
	SubjectID string         `json:"subjectId"`
	GroupIDs  []string       `json:"groupIds"`
}

// Key returns the slot of the placement.
func (p FixedPlacement) Key() models.SlotKey {
	return models.SlotKey{Week: p.Week, Weekday: p.Weekday, Period: p.Period}
}

// RankedTeacher is a teacher with its placement priority.
type RankedTeacher struct {
	Teacher       models.Teacher   `json:"teacher"`
	Priority      int              `json:"priority"`
	FixedSchedule []FixedPlacement `json:"fixedSchedule,omitempty"`
}

// Priority scores how constrained a teacher is.
func Priority(t models.Teacher, rules *RuleBook) int {
	c := t.Constraints
	score := rules.Bonus(t.ID)
	if c.FullyFixed {
		score += scoreFullyFixed
	}
	if len(c.Fixed) > 0 || len(rules.ForTeacher(t.ID, models.RuleFixedSchedule)) > 0 {
		score += scoreHasFixed
	}
	if c.ChangeUnavailable {
		score += scoreChangeUnavailable
	}
	score += len(c.NG.Days)*scoreNGDay + len(c.NG.Periods)*scoreNGPeriod + len(c.NG.Dates)*scoreNGDate

	switch days := availableDayCount(c); {
	case days <= 2:
		score += scoreTwoDays
	case days <= 3:
		score += scoreThreeDays
	}
	if c.Wish.Biweekly != models.ParityNone {
		score += scoreBiweekly
	}
	return score
}

func availableDayCount(c models.TeacherConstraints) int {
	n := 0
	for _, d := range models.Weekdays {
		if len(c.AvailableDays) > 0 && !models.ContainsWeekday(c.AvailableDays, d) {
			continue
		}
		if models.ContainsWeekday(c.NG.Days, d) || models.ContainsWeekday(c.UnavailableDays, d) {
			continue
		}
		n++
	}
	return n
}

// Rank orders teachers by descending priority, keeping input order on ties,
// and expands their fixed_schedule rules over the semester.
func Rank(teachers []models.Teacher, rules *RuleBook, sem Semester) []RankedTeacher {
	ranked := make([]RankedTeacher, 0, len(teachers))
	for _, t := range teachers {
		var fixed []FixedPlacement
		for _, r := range rules.ForTeacher(t.ID, models.RuleFixedSchedule) {
			fixed = append(fixed, ExpandFixed(r, sem)...)
		}
		ranked = append(ranked, RankedTeacher{
			Teacher:       t,
			Priority:      Priority(t, rules),
			FixedSchedule: fixed,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Priority > ranked[j].Priority
	})
	return ranked
}

// ExpandFixed turns a fixed_schedule rule into dated placements ordered by
// slot. Placements outside the semester grid are dropped.
func ExpandFixed(r models.Rule, sem Semester) []FixedPlacement {
	if r.Fixed == nil {
		return nil
	}
	spec := *r.Fixed
	skip := make(map[string]struct{}, len(spec.SkipDates))
	for _, d := range spec.SkipDates {
		skip[d] = struct{}{}
	}

	var out []FixedPlacement
	seen := make(map[string]struct{})
	add := func(week int, day models.Weekday, periods []models.Period, subject string) {
		date := sem.DateString(week, day)
		if _, skipped := skip[date]; skipped {
			return
		}
		if subject == "" {
			subject = spec.Subject
		}
		base := FixedPlacement{
			RuleID:    r.ID,
			TeacherID: r.TeacherID,
			Week:      week,
			Date:      date,
			Weekday:   day,
			SubjectID: subject,
			GroupIDs:  append([]string(nil), spec.Groups...),
		}
		if len(periods) == 0 {
			periods = []models.Period{0}
		}
		for _, p := range periods {
			k := fmt.Sprintf("%s-%d", date, p)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			fp := base
			fp.Period = p
			out = append(out, fp)
		}
	}

	for _, rec := range spec.Recurrences {
		if rec.RRule != "" {
			rule, err := anchoredRRule(rec.RRule, sem)
			if err != nil {
				continue
			}
			for _, t := range rule.Between(sem.Monday, sem.LastDay(), true) {
				if week, day, ok := sem.WeekOf(t); ok {
					add(week, day, rec.Periods, rec.Subject)
				}
			}
			continue
		}

		from, to, step := rec.FromWeek, rec.ToWeek, rec.Interval
		if from < 1 {
			from = 1
		}
		if to < 1 || to > sem.Weeks {
			to = sem.Weeks
		}
		if step < 1 {
			step = 1
		}
		for week := from; week <= to; week += step {
			if containsInt(rec.SkipWeeks, week) {
				continue
			}
			periods := rec.Periods
			for _, o := range rec.Overrides {
				if o.Week == week {
					periods = o.Periods
				}
			}
			add(week, rec.Weekday, periods, rec.Subject)
		}
	}

	for _, p := range spec.Placements {
		week, day := p.Week, p.Weekday
		if p.Date != "" {
			t, err := time.Parse(holiday.DateLayout, p.Date)
			if err != nil {
				continue
			}
			var ok bool
			if week, day, ok = sem.WeekOf(t); !ok {
				continue
			}
		}
		if week < 1 || week > sem.Weeks || !day.Valid() {
			continue
		}
		add(week, day, p.Periods, p.Subject)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		return a.Period < b.Period
	})
	return out
}

// ConflictsWithFixed reports whether a fixed placement occupies the date and
// period. A placement without a period occupies the whole day.
func ConflictsWithFixed(placements []FixedPlacement, date string, period models.Period) bool {
	for _, p := range placements {
		if p.Date == date && (p.Period == 0 || p.Period == period) {
			return true
		}
	}
	return false
}

func containsInt(list []int, v int) bool {
	for _, n := range list {
		if n == v {
			return true
		}
	}
	return false
}
