package scheduler

import (
	"fmt"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// FixedPhase inserts expanded fixed placements directly. There is no search:
// a placement either lands on its slot or is skipped with a trace.
type FixedPhase struct{}

// Name implements Phase.
func (FixedPhase) Name() string { return "fixed" }

// Run implements Phase.
func (p FixedPhase) Run(c *AllocationContext) {
	for _, rt := range c.Ranked() {
		for _, fp := range rt.FixedSchedule {
			if fp.Period == 0 {
				continue
			}
			p.place(c, rt.Teacher, fp)
		}
	}
}

func (p FixedPhase) place(c *AllocationContext, t models.Teacher, fp FixedPlacement) {
	key := fp.Key()
	skip := func(group, reason string) {
		c.Tracer.Trace(Event{
			Phase: p.Name(), Kind: EventSkipped, GroupID: group, SubjectID: fp.SubjectID,
			TeacherID: t.ID, Slot: key, Date: fp.Date, Reason: reason,
		})
	}

	if reason, closed := c.Closed(key); closed {
		skip("", reason)
		return
	}
	subject, ok := c.Subject(fp.SubjectID)
	if !ok {
		c.configError(fp.SubjectID, fmt.Sprintf("fixed rule %s names unknown subject", fp.RuleID))
		return
	}
	if !c.TeacherFree(t.ID, key) {
		skip("", fmt.Sprintf("%s already teaches at %s", t.Name, key))
		return
	}

	var groups []string
	for _, g := range fp.GroupIDs {
		if _, known := c.Group(g); !known {
			c.configError(fp.SubjectID, fmt.Sprintf("fixed rule %s names unknown group %s", fp.RuleID, g))
			continue
		}
		if !c.GroupFree(g, key) {
			skip(g, "group already has a lesson")
			continue
		}
		groups = append(groups, g)
	}
	if len(groups) == 0 {
		return
	}

	room, ok := c.SelectRoom(subject, []models.SlotKey{key}, len(groups) > 1)
	if !ok {
		skip("", "no free classroom")
		return
	}
	c.Place(Placement{
		Phase:     p.Name(),
		Groups:    groups,
		SubjectID: subject.ID,
		TeacherID: t.ID,
		RoomID:    room,
		Key:       key,
		Source:    models.SourceFixed,
	})
}
