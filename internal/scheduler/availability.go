package scheduler

import (
	"fmt"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// Violation explains why a slot was refused.
type Violation struct {
	Code   MoveCode
	Reason string
}

func violation(code MoveCode, format string, args ...interface{}) *Violation {
	return &Violation{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// TeacherAvailable applies the teacher's own constraint record to one slot.
// A non-dated fixed rule naming this exact slot overrides NG; everything else
// is closed-world around fixed days.
func TeacherAvailable(t models.Teacher, key models.SlotKey, date string) *Violation {
	c := t.Constraints
	day, period, week := key.Weekday, key.Period, key.Week

	if f, ok := c.FixedAt(day, week, date, period); ok && f.Date == "" {
		return nil
	}
	if c.HasFixedOn(day, week) && !models.ContainsPeriod(c.FixedPeriods(day, week), period) {
		return violation(CodeTeacherUnavailable, "%s is fixed to other periods on %s", t.Name, day)
	}

	ng := c.NG
	if models.ContainsWeekday(ng.Days, day) {
		return violation(CodeTeacherUnavailable, "%s is unavailable on %s", t.Name, day)
	}
	if models.ContainsPeriod(ng.Periods, period) {
		return violation(CodeTeacherUnavailable, "%s is unavailable in %s", t.Name, period.Label())
	}
	if models.ContainsPeriod(ng.DayPeriods[day], period) {
		return violation(CodeTeacherUnavailable, "%s is unavailable on %s %s", t.Name, day, period.Label())
	}
	for _, d := range ng.Dates {
		if d == date {
			return violation(CodeTeacherUnavailable, "%s is unavailable on %s", t.Name, date)
		}
	}
	for _, tr := range ng.TimeRanges {
		if (tr.Day == "" || tr.Day == day) && period.Overlaps(tr.Start, tr.End) {
			return violation(CodeTeacherUnavailable, "%s is unavailable %s-%s on %s", t.Name, tr.Start, tr.End, day)
		}
	}

	if models.ContainsWeekday(c.UnavailableDays, day) {
		return violation(CodeTeacherUnavailable, "%s does not teach on %s", t.Name, day)
	}
	if len(c.AvailableDays) > 0 && !models.ContainsWeekday(c.AvailableDays, day) {
		return violation(CodeTeacherUnavailable, "%s only teaches on %v", t.Name, c.AvailableDays)
	}
	if len(c.AvailablePeriods) > 0 && !models.ContainsPeriod(c.AvailablePeriods[day], period) {
		return violation(CodeTeacherUnavailable, "%s is not available on %s %s", t.Name, day, period.Label())
	}
	if len(c.RequiredPeriods) > 0 && !models.ContainsPeriod(c.RequiredPeriods, period) {
		return violation(CodeTeacherUnavailable, "%s only teaches in %v", t.Name, c.RequiredPeriods)
	}
	if c.SpecialTimeStart != "" {
		if start, ok := models.PeriodAt(c.SpecialTimeStart); ok && start != period {
			return violation(CodeTeacherUnavailable, "%s starts at %s and only teaches %s", t.Name, c.SpecialTimeStart, start.Label())
		}
	}
	if !c.Wish.Biweekly.Matches(week) {
		return violation(CodeTeacherUnavailable, "%s teaches %s weeks only", t.Name, c.Wish.Biweekly)
	}
	return nil
}

// RuleAllowed applies the teacher's period_only, weekday_only and
// weekday_cap rules for the subject. weekCount is the number of the teacher's
// capped sessions already in the week, excluding the candidate.
func RuleAllowed(rules *RuleBook, t models.Teacher, subjectID string, key models.SlotKey, weekCount func(subjects []string) int) *Violation {
	for _, r := range rules.ForTeacher(t.ID, models.RulePeriodOnly, models.RuleWeekdayOnly, models.RuleWeekdayCap) {
		if len(r.Subjects) > 0 && !containsString(r.Subjects, subjectID) {
			continue
		}
		switch r.Kind {
		case models.RulePeriodOnly:
			if !models.ContainsPeriod(r.Periods, key.Period) {
				return violation(CodeRuleViolation, "rule %s: %s only teaches %v", r.ID, t.Name, r.Periods)
			}
		case models.RuleWeekdayOnly:
			if !models.ContainsWeekday(r.Days, key.Weekday) {
				return violation(CodeRuleViolation, "rule %s: %s only teaches on %v", r.ID, t.Name, r.Days)
			}
		case models.RuleWeekdayCap:
			if !models.ContainsWeekday(r.Days, key.Weekday) {
				return violation(CodeRuleViolation, "rule %s: %s only teaches on %v", r.ID, t.Name, r.Days)
			}
			if weekCount != nil && weekCount(r.Subjects)+1 > r.WeeklyCap {
				return violation(CodeRuleViolation, "rule %s: %s is capped at %d sessions per week", r.ID, t.Name, r.WeeklyCap)
			}
		}
	}
	return nil
}

// WishScore ranks a slot by how well it matches soft preferences.
func WishScore(t models.Teacher, key models.SlotKey) int {
	w := t.Constraints.Wish
	score := 0
	if models.ContainsWeekday(w.Days, key.Weekday) {
		score++
	}
	if models.ContainsPeriod(w.Periods, key.Period) {
		score++
	}
	if models.ContainsPeriod(w.DayPeriods[key.Weekday], key.Period) {
		score += 2
	}
	return score
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
