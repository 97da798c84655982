package scheduler

import (
	"fmt"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// ComboPhase places both halves of each combo pair in the same slot for
// every group of the cohort. It never backtracks.
type ComboPhase struct{}

// Name implements Phase.
func (ComboPhase) Name() string { return "combo" }

// Run implements Phase.
func (p ComboPhase) Run(c *AllocationContext) {
	done := make(map[string]bool)
	for _, first := range c.Subjects() {
		if !first.IsCombo() || done[first.ID] {
			continue
		}
		second, ok := c.Subject(first.ComboSubjectID)
		if !ok {
			continue
		}
		done[first.ID], done[second.ID] = true, true

		cohort := intersect(c.Cohort(first), c.Cohort(second))
		if len(cohort) == 0 {
			cohort = c.Cohort(first)
		}
		if len(cohort) == 0 {
			continue
		}
		p.placePair(c, first, second, cohort)
	}
}

func (p ComboPhase) placePair(c *AllocationContext, first, second models.Subject, cohort []string) {
	remaining := first.TotalClasses - c.Placed(cohort[0], first.ID)
	if remaining <= 0 {
		return
	}

	placed := c.spread(remaining, func(week, want int) int {
		if room := c.MaxPerWeek() - c.PlacedInWeek(cohort[0], first.ID, week); want > room {
			want = room
		}
		if want <= 0 {
			return 0
		}
		got, last := 0, ""
		for _, sameDayAllowed := range []bool{false, true} {
			for _, day := range c.DayOrder(cohort, week) {
				if got == want {
					return got
				}
				if !sameDayAllowed && c.placedOnDay(cohort[0], first.ID, week, day) {
					continue
				}
				for _, period := range models.Periods {
					key := models.SlotKey{Week: week, Weekday: day, Period: period}
					reason, ok := p.tryPlace(c, first, second, cohort, key)
					if ok {
						got++
						break
					}
					last = reason
				}
			}
		}
		if got < want {
			for _, g := range cohort {
				c.recordFailure(g, first.ID, fmt.Sprintf("week %d: %s", week, last))
				c.recordFailure(g, second.ID, fmt.Sprintf("week %d: %s", week, last))
			}
		}
		return got
	})

	if placed < remaining {
		c.Tracer.Trace(Event{
			Phase: p.Name(), Kind: EventShortfall, GroupID: joinGroups(cohort), SubjectID: first.ID,
			Reason: fmt.Sprintf("placed %d of %d combo sessions with %s", placed, remaining, second.ID),
		})
	}
}

func (p ComboPhase) tryPlace(c *AllocationContext, first, second models.Subject, cohort []string, key models.SlotKey) (string, bool) {
	if reason, ok := c.SlotOpen(cohort, key); !ok {
		return reason, false
	}
	t1, v := c.SelectTeacher(first, key)
	if v != nil {
		return v.Reason, false
	}
	t2, v := c.SelectTeacher(second, key, t1.ID)
	if v != nil {
		return v.Reason, false
	}
	r1, ok := c.SelectRoom(first, []models.SlotKey{key}, len(cohort) > 1)
	if !ok {
		return "no free classroom for " + first.ID, false
	}
	r2, ok := c.SelectRoom(second, []models.SlotKey{key}, len(cohort) > 1, r1)
	if !ok {
		return "no free classroom for " + second.ID, false
	}

	c.Place(Placement{
		Phase: p.Name(), Groups: cohort, SubjectID: first.ID, TeacherID: t1.ID,
		RoomID: r1, Key: key, Source: models.SourceCombo, ComboPairID: second.ID,
	})
	c.Place(Placement{
		Phase: p.Name(), Groups: cohort, SubjectID: second.ID, TeacherID: t2.ID,
		RoomID: r2, Key: key, Source: models.SourceCombo, ComboPairID: first.ID,
	})
	return "", true
}

func intersect(a, b []string) []string {
	var out []string
	for _, v := range a {
		if containsString(b, v) {
			out = append(out, v)
		}
	}
	return out
}
