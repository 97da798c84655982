package scheduler

import (
	"fmt"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// LeftoverPhase fills what earlier phases left: regular subjects group by
// group, then joint subjects once for their whole cohort.
type LeftoverPhase struct{}

// Name implements Phase.
func (LeftoverPhase) Name() string { return "leftover" }

// Run implements Phase.
func (p LeftoverPhase) Run(c *AllocationContext) {
	owned := c.Rules.OwnedSessions()
	for _, g := range c.Groups() {
		for _, s := range c.Subjects() {
			if !s.AppliesTo(g) || s.IsJoint() || p.pairedCombo(c, s) {
				continue
			}
			if _, ok := owned[ownedKey(g.ID, s.ID)]; ok {
				continue
			}
			p.fill(c, []string{g.ID}, s, models.SourceLeftover)
		}
	}
	for _, s := range c.Subjects() {
		if !s.IsJoint() {
			continue
		}
		if cohort := c.Cohort(s); len(cohort) > 0 {
			p.fill(c, cohort, s, models.SourceJoint)
		}
	}
}

// pairedCombo reports whether the combo phase owns the subject.
func (LeftoverPhase) pairedCombo(c *AllocationContext, s models.Subject) bool {
	if !s.IsCombo() {
		return false
	}
	_, ok := c.Subject(s.ComboSubjectID)
	return ok
}

func (p LeftoverPhase) fill(c *AllocationContext, groups []string, s models.Subject, source models.EntrySource) {
	remaining := s.TotalClasses - c.Placed(groups[0], s.ID)
	if remaining <= 0 {
		return
	}
	joint := source == models.SourceJoint

	placed := c.spread(remaining, func(week, want int) int {
		if room := c.MaxPerWeek() - c.PlacedInWeek(groups[0], s.ID, week); want > room {
			want = room
		}
		if want <= 0 {
			return 0
		}
		got, last := 0, "no open slot"
		if want >= 2 && p.prefersConsecutive(c, s) {
			var reason string
			if p.placeConsecutive(c, groups, s, week, source, joint, &reason) {
				got += 2
			} else if reason != "" {
				last = reason
			}
		}
		for _, sameDayAllowed := range []bool{false, true} {
			for _, day := range c.DayOrder(groups, week) {
				if got >= want {
					return got
				}
				if !sameDayAllowed && c.placedOnDay(groups[0], s.ID, week, day) {
					continue
				}
				for _, period := range c.PeriodOrder(groups, week, day) {
					key := models.SlotKey{Week: week, Weekday: day, Period: period}
					reason, ok := p.tryPlace(c, groups, s, key, source, joint)
					if ok {
						got++
						break
					}
					last = reason
				}
			}
		}
		if got < want {
			for _, g := range groups {
				c.recordFailure(g, s.ID, fmt.Sprintf("week %d: %s", week, last))
			}
		}
		return got
	})

	if placed < remaining {
		c.Tracer.Trace(Event{
			Phase: p.Name(), Kind: EventShortfall, GroupID: joinGroups(groups), SubjectID: s.ID,
			Reason: fmt.Sprintf("placed %d of %d sessions", placed, remaining),
		})
	}
}

func (p LeftoverPhase) tryPlace(c *AllocationContext, groups []string, s models.Subject, key models.SlotKey, source models.EntrySource, joint bool) (string, bool) {
	if reason, ok := c.SlotOpen(groups, key); !ok {
		return reason, false
	}
	t, v := c.SelectTeacher(s, key)
	if v != nil {
		return v.Reason, false
	}
	room, ok := c.SelectRoom(s, []models.SlotKey{key}, joint)
	if !ok {
		return "no free classroom", false
	}
	c.Place(Placement{
		Phase: p.Name(), Groups: groups, SubjectID: s.ID, TeacherID: t.ID,
		RoomID: room, Key: key, Source: source,
	})
	return "", true
}

func (LeftoverPhase) prefersConsecutive(c *AllocationContext, s models.Subject) bool {
	for _, id := range s.TeacherIDs {
		if t, ok := c.Teacher(id); ok && t.Constraints.Wish.PreferConsecutive {
			return true
		}
	}
	return false
}

// placeConsecutive places two sessions in adjacent periods of one day with the
// same teacher, rolling back the first when the second cannot follow.
func (p LeftoverPhase) placeConsecutive(c *AllocationContext, groups []string, s models.Subject, week int, source models.EntrySource, joint bool, reason *string) bool {
	for _, day := range c.DayOrder(groups, week) {
		for start := models.FirstPeriod; start < models.LastPeriod; start++ {
			k1 := models.SlotKey{Week: week, Weekday: day, Period: start}
			k2 := models.SlotKey{Week: week, Weekday: day, Period: start + 1}
			if r, ok := c.SlotOpen(groups, k1); !ok {
				*reason = r
				continue
			}
			if r, ok := c.SlotOpen(groups, k2); !ok {
				*reason = r
				continue
			}
			t, v := c.SelectTeacher(s, k1)
			if v != nil {
				*reason = v.Reason
				continue
			}
			room, ok := c.SelectRoom(s, []models.SlotKey{k1, k2}, joint)
			if !ok {
				*reason = "no classroom free for both periods"
				continue
			}
			first := c.Place(Placement{
				Phase: p.Name(), Groups: groups, SubjectID: s.ID, TeacherID: t.ID,
				RoomID: room, Key: k1, Source: source,
			})
			rollback := fmt.Sprintf("%s already teaches at %s", t.Name, k2)
			if c.TeacherFree(t.ID, k2) {
				v := c.Available(t, s.ID, k2)
				if v == nil {
					c.Place(Placement{
						Phase: p.Name(), Groups: groups, SubjectID: s.ID, TeacherID: t.ID,
						RoomID: room, Key: k2, Source: source,
					})
					return true
				}
				rollback = v.Reason
			}
			*reason = rollback
			c.Remove(p.Name(), first[0].Session(), rollback)
		}
	}
	return false
}
