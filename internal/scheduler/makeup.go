package scheduler

import (
	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/pkg/holiday"
)

// Makeup defaults for a teacher whose afternoon period starts late.
const (
	defaultPrimaryPeriod  models.Period = 3
	defaultPrimaryMinutes               = 75
	defaultPrimaryLead                  = 2
	defaultLongPeriod     models.Period = 4
	defaultLongMinutes                  = 90
)

// MakeupSession is one extra lesson in the plan.
type MakeupSession struct {
	Week    int            `json:"week"`
	Date    string         `json:"date"`
	Weekday models.Weekday `json:"weekday"`
	Period  models.Period  `json:"period"`
	Minutes int            `json:"minutes"`
}

// MakeupPlan covers lesson time owed by one teacher.
type MakeupPlan struct {
	TeacherID       string          `json:"teacherId"`
	RuleID          string          `json:"ruleId"`
	RequiredMinutes int             `json:"requiredMinutes"`
	TotalMinutes    int             `json:"totalMinutes"`
	Sessions        []MakeupSession `json:"sessions"`
	IsComplete      bool            `json:"isComplete"`
}

// PlanMakeup picks makeup dates on the configured weekday. The first
// PrimaryLead candidates take the primary period, the next takes the long
// period once, and the rest take the primary period until the owed minutes
// are covered.
func PlanMakeup(teacherID, ruleID string, spec models.MakeupSpec, sem Semester, holidays map[string]struct{}) MakeupPlan {
	spec = withMakeupDefaults(spec, sem)
	plan := MakeupPlan{
		TeacherID:       teacherID,
		RuleID:          ruleID,
		RequiredMinutes: spec.ShortfallMinutesPerWeek * spec.Weeks,
		Sessions:        []MakeupSession{},
	}

	var candidates []MakeupSession
	for week := 1; week <= sem.Weeks; week++ {
		t := sem.Date(week, spec.Weekday)
		date := t.Format(holiday.DateLayout)
		if !sem.Contains(t) || excludedMakeupDate(date, spec, holidays) {
			continue
		}
		candidates = append(candidates, MakeupSession{Week: week, Date: date, Weekday: spec.Weekday})
	}

	longUsed := false
	for i, cand := range candidates {
		if plan.TotalMinutes >= plan.RequiredMinutes {
			break
		}
		cand.Period, cand.Minutes = spec.PrimaryPeriod, spec.PrimaryMinutes
		if i >= spec.PrimaryLead && !longUsed {
			cand.Period, cand.Minutes = spec.LongPeriod, spec.LongMinutes
			longUsed = true
		}
		plan.Sessions = append(plan.Sessions, cand)
		plan.TotalMinutes += cand.Minutes
	}
	plan.IsComplete = plan.TotalMinutes >= plan.RequiredMinutes
	return plan
}

// PlanAllMakeup plans every makeup rule whose teacher is in the catalog, and
// teachers whose constraint record owes delay minutes without a rule.
func PlanAllMakeup(rules *RuleBook, teachers []models.Teacher, sem Semester, holidays map[string]struct{}) []MakeupPlan {
	known := make(map[string]bool, len(teachers))
	for _, t := range teachers {
		known[t.ID] = true
	}
	var plans []MakeupPlan
	planned := make(map[string]bool)
	for _, r := range rules.OfKind(models.RuleMakeup) {
		if r.Makeup == nil || !known[r.TeacherID] {
			continue
		}
		plans = append(plans, PlanMakeup(r.TeacherID, r.ID, *r.Makeup, sem, holidays))
		planned[r.TeacherID] = true
	}
	for _, t := range teachers {
		need := t.Constraints.Makeup
		if planned[t.ID] || need == nil || need.TotalDelayMinutes <= 0 {
			continue
		}
		spec := models.MakeupSpec{ShortfallMinutesPerWeek: need.TotalDelayMinutes, Weeks: 1}
		plans = append(plans, PlanMakeup(t.ID, "", spec, sem, holidays))
	}
	return plans
}

func withMakeupDefaults(spec models.MakeupSpec, sem Semester) models.MakeupSpec {
	if spec.Weeks <= 0 {
		spec.Weeks = sem.Weeks
	}
	if !spec.Weekday.Valid() {
		spec.Weekday = models.Monday
	}
	if !spec.PrimaryPeriod.Valid() {
		spec.PrimaryPeriod = defaultPrimaryPeriod
	}
	if spec.PrimaryMinutes <= 0 {
		spec.PrimaryMinutes = defaultPrimaryMinutes
	}
	if spec.PrimaryLead <= 0 {
		spec.PrimaryLead = defaultPrimaryLead
	}
	if !spec.LongPeriod.Valid() {
		spec.LongPeriod = defaultLongPeriod
	}
	if spec.LongMinutes <= 0 {
		spec.LongMinutes = defaultLongMinutes
	}
	return spec
}

func excludedMakeupDate(date string, spec models.MakeupSpec, holidays map[string]struct{}) bool {
	if _, ok := holidays[date]; ok {
		return true
	}
	if containsString(spec.ExcludeDates, date) {
		return true
	}
	for _, r := range spec.ExcludeRanges {
		if r.Contains(date) {
			return true
		}
	}
	return false
}
