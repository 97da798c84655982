package scheduler

import (
	"fmt"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// PairPhase runs the named rules: paired_sessions, where one teacher teaches
// two cohorts back to back, and block_session, a contiguous run of periods
// per cohort per week.
type PairPhase struct{}

// Name implements Phase.
func (PairPhase) Name() string { return "pair" }

// Run implements Phase.
func (p PairPhase) Run(c *AllocationContext) {
	for _, r := range c.Rules.OfKind(models.RulePairedSessions) {
		if r.Pair != nil {
			p.runPaired(c, r)
		}
	}
	for _, r := range c.Rules.OfKind(models.RuleBlockSession) {
		if r.Block != nil {
			p.runBlock(c, r)
		}
	}
}

func ruleWeeks(c *AllocationContext, from, to int, listed []int) []int {
	if len(listed) > 0 {
		var out []int
		for _, w := range listed {
			if w >= 1 && w <= c.Semester.Weeks {
				out = append(out, w)
			}
		}
		return out
	}
	if from < 1 {
		from = 1
	}
	if to < 1 || to > c.Semester.Weeks {
		to = c.Semester.Weeks
	}
	var out []int
	for w := from; w <= to; w++ {
		out = append(out, w)
	}
	return out
}

func (p PairPhase) runPaired(c *AllocationContext, r models.Rule) {
	spec := *r.Pair
	t, ok := c.Teacher(r.TeacherID)
	if !ok {
		c.configError("", fmt.Sprintf("rule %s names unknown teacher %s", r.ID, r.TeacherID))
		return
	}
	first, ok1 := c.Subject(spec.First.Subject)
	second, ok2 := c.Subject(spec.Second.Subject)
	_, okg1 := c.Group(spec.First.Group)
	_, okg2 := c.Group(spec.Second.Group)
	if !ok1 || !ok2 || !okg1 || !okg2 {
		c.configError("", fmt.Sprintf("rule %s names unknown subjects or groups", r.ID))
		return
	}

	for _, week := range ruleWeeks(c, spec.FromWeek, spec.ToWeek, spec.Weeks) {
		if c.Placed(spec.First.Group, first.ID) >= first.TotalClasses &&
			c.Placed(spec.Second.Group, second.ID) >= second.TotalClasses {
			return
		}
		placed, last := false, ""
		for _, cand := range spec.Candidates {
			k1 := models.SlotKey{Week: week, Weekday: cand.Weekday, Period: cand.First}
			k2 := models.SlotKey{Week: week, Weekday: cand.Weekday, Period: cand.Second}
			if reason, ok := p.pairOpen(c, t, spec, first, second, k1, k2); !ok {
				last = reason
				continue
			}
			r1, ok := c.SelectRoom(first, []models.SlotKey{k1}, false)
			if !ok {
				last = "no free classroom for " + first.ID
				continue
			}
			r2, ok := c.SelectRoom(second, []models.SlotKey{k2}, false)
			if !ok {
				last = "no free classroom for " + second.ID
				continue
			}
			c.Place(Placement{
				Phase: p.Name(), Groups: []string{spec.First.Group}, SubjectID: first.ID,
				TeacherID: t.ID, RoomID: r1, Key: k1, Source: models.SourcePair,
			})
			c.Place(Placement{
				Phase: p.Name(), Groups: []string{spec.Second.Group}, SubjectID: second.ID,
				TeacherID: t.ID, RoomID: r2, Key: k2, Source: models.SourcePair,
			})
			placed = true
			break
		}
		if !placed {
			c.Tracer.Trace(Event{
				Phase: p.Name(), Kind: EventSkipped, TeacherID: t.ID, SubjectID: first.ID,
				Reason: fmt.Sprintf("rule %s week %d: %s", r.ID, week, last),
			})
			c.recordFailure(spec.First.Group, first.ID, fmt.Sprintf("week %d: %s", week, last))
			c.recordFailure(spec.Second.Group, second.ID, fmt.Sprintf("week %d: %s", week, last))
		}
	}
}

func (p PairPhase) pairOpen(c *AllocationContext, t models.Teacher, spec models.PairedSessionSpec, first, second models.Subject, k1, k2 models.SlotKey) (string, bool) {
	if reason, ok := c.SlotOpen([]string{spec.First.Group}, k1); !ok {
		return reason, false
	}
	if reason, ok := c.SlotOpen([]string{spec.Second.Group}, k2); !ok {
		return reason, false
	}
	if !c.TeacherFree(t.ID, k1) || !c.TeacherFree(t.ID, k2) {
		return t.Name + " is busy", false
	}
	if v := c.Available(t, first.ID, k1); v != nil {
		return v.Reason, false
	}
	if v := c.Available(t, second.ID, k2); v != nil {
		return v.Reason, false
	}
	return "", true
}

func (p PairPhase) runBlock(c *AllocationContext, r models.Rule) {
	spec := *r.Block
	t, ok := c.Teacher(r.TeacherID)
	if !ok {
		c.configError(spec.Subject, fmt.Sprintf("rule %s names unknown teacher %s", r.ID, r.TeacherID))
		return
	}
	subject, ok := c.Subject(spec.Subject)
	if !ok {
		c.configError(spec.Subject, fmt.Sprintf("rule %s names unknown subject", r.ID))
		return
	}

	for _, g := range spec.Groups {
		if _, known := c.Group(g); !known {
			c.configError(subject.ID, fmt.Sprintf("rule %s names unknown group %s", r.ID, g))
			continue
		}
		for _, week := range ruleWeeks(c, spec.FromWeek, spec.ToWeek, nil) {
			if c.Placed(g, subject.ID)+spec.Size > subject.TotalClasses {
				break
			}
			if reason, ok := p.placeBlock(c, t, subject, g, week, spec); !ok {
				c.recordFailure(g, subject.ID, fmt.Sprintf("week %d: %s", week, reason))
				c.Tracer.Trace(Event{
					Phase: p.Name(), Kind: EventSkipped, GroupID: g, SubjectID: subject.ID,
					TeacherID: t.ID, Reason: fmt.Sprintf("rule %s week %d: %s", r.ID, week, reason),
				})
			}
		}
	}
}

func (p PairPhase) placeBlock(c *AllocationContext, t models.Teacher, subject models.Subject, group string, week int, spec models.BlockSessionSpec) (string, bool) {
	days := spec.Days
	if len(days) == 0 {
		days = c.DayOrder([]string{group}, week)
	}
	last := "no contiguous block available"
	for _, day := range days {
		for start := models.FirstPeriod; int(start)+spec.Size-1 <= int(models.LastPeriod); start++ {
			keys := make([]models.SlotKey, 0, spec.Size)
			for i := 0; i < spec.Size; i++ {
				keys = append(keys, models.SlotKey{Week: week, Weekday: day, Period: start + models.Period(i)})
			}
			if reason, ok := p.blockOpen(c, t, subject, group, keys); !ok {
				last = reason
				continue
			}
			room, ok := c.SelectRoom(subject, keys, false)
			if !ok {
				last = "no classroom free for the whole block"
				continue
			}
			for _, k := range keys {
				c.Place(Placement{
					Phase: p.Name(), Groups: []string{group}, SubjectID: subject.ID,
					TeacherID: t.ID, RoomID: room, Key: k, Source: models.SourceBlock,
				})
			}
			return "", true
		}
	}
	return last, false
}

// blockOpen validates the block as a whole; caps count every period of the run.
func (p PairPhase) blockOpen(c *AllocationContext, t models.Teacher, subject models.Subject, group string, keys []models.SlotKey) (string, bool) {
	date := c.Semester.DateString(keys[0].Week, keys[0].Weekday)
	for _, k := range keys {
		if reason, ok := c.SlotOpen([]string{group}, k); !ok {
			return reason, false
		}
		if !c.TeacherFree(t.ID, k) {
			return t.Name + " is busy at " + k.String(), false
		}
		if v := TeacherAvailable(t, k, date); v != nil {
			return v.Reason, false
		}
		if v := c.RuleViolation(t, subject.ID, k); v != nil {
			return v.Reason, false
		}
	}
	limits := t.Constraints
	if limits.MaxClassesPerDay > 0 {
		n := len(c.teacherSessions(t.ID, func(s *session) bool {
			return s.key.Week == keys[0].Week && s.key.Weekday == keys[0].Weekday
		}))
		if n+len(keys) > limits.MaxClassesPerDay {
			return fmt.Sprintf("%s would exceed %d sessions on %s", t.Name, limits.MaxClassesPerDay, date), false
		}
	}
	if limits.MaxClassesPerWeek > 0 {
		n := len(c.teacherSessions(t.ID, func(s *session) bool { return s.key.Week == keys[0].Week }))
		if n+len(keys) > limits.MaxClassesPerWeek {
			return fmt.Sprintf("%s would exceed %d sessions in week %d", t.Name, limits.MaxClassesPerWeek, keys[0].Week), false
		}
	}
	return "", true
}
