package scheduler

import (
	"sort"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// SelectTeacher picks a teacher for the subject at the slot: the owner of a
// fixed rule naming the slot, then the best wish match, then the first free.
// exclude lists teachers already used by a paired subject.
func (c *AllocationContext) SelectTeacher(subject models.Subject, key models.SlotKey, exclude ...string) (models.Teacher, *Violation) {
	date := c.Semester.DateString(key.Week, key.Weekday)
	var (
		best      models.Teacher
		bestScore = -1
		last      *Violation
	)
	for _, id := range subject.TeacherIDs {
		t, ok := c.teachers[id]
		if !ok || containsString(exclude, id) {
			continue
		}
		if !c.TeacherFree(id, key) {
			last = violation(CodeTeacherConflict, "%s already teaches at %s", t.Name, key)
			continue
		}
		if v := c.Available(t, subject.ID, key); v != nil {
			last = v
			continue
		}
		score := WishScore(t, key)
		if _, fixed := t.Constraints.FixedAt(key.Weekday, key.Week, date, key.Period); fixed {
			score += 100
		}
		if score > bestScore {
			best, bestScore = t, score
		}
	}
	if bestScore >= 0 {
		return best, nil
	}
	if last == nil {
		last = violation(CodeTeacherUnavailable, "no teacher configured for %s", subject.ID)
	}
	return models.Teacher{}, last
}

// SelectRoom returns the first eligible classroom free at every key. Subjects
// without a room list may use any room; preferLarge orders by capacity.
func (c *AllocationContext) SelectRoom(subject models.Subject, keys []models.SlotKey, preferLarge bool, exclude ...string) (string, bool) {
	var candidates []models.Classroom
	if len(subject.AvailableClassroomIDs) > 0 {
		for _, id := range subject.AvailableClassroomIDs {
			if r, ok := c.roomByID[id]; ok {
				candidates = append(candidates, r)
			}
		}
	} else {
		candidates = append(candidates, c.rooms...)
	}
	if preferLarge {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Capacity > candidates[j].Capacity
		})
	}

	for _, r := range candidates {
		if containsString(exclude, r.ID) {
			continue
		}
		free := true
		for _, k := range keys {
			if !c.RoomFree(r.ID, k) {
				free = false
				break
			}
		}
		if free {
			return r.ID, true
		}
	}
	return "", false
}

// DayOrder lists weekdays for a week: days the groups already use come first
// by descending count, then the rest in calendar order. Under avoidMonday,
// Monday always comes last.
func (c *AllocationContext) DayOrder(groupIDs []string, week int) []models.Weekday {
	counts := make(map[models.Weekday]int, len(models.Weekdays))
	for _, g := range groupIDs {
		for _, e := range c.Schedule[g] {
			if e.TimeSlot.Week == week {
				counts[e.TimeSlot.Weekday]++
			}
		}
	}
	days := append([]models.Weekday(nil), models.Weekdays...)
	sort.SliceStable(days, func(i, j int) bool {
		if c.Options.AvoidMonday {
			if days[i] == models.Monday || days[j] == models.Monday {
				return days[j] == models.Monday && days[i] != models.Monday
			}
		}
		return counts[days[i]] > counts[days[j]]
	})
	return days
}

// PeriodOrder lists periods for a day, those adjacent to the groups' existing
// periods first.
func (c *AllocationContext) PeriodOrder(groupIDs []string, week int, day models.Weekday) []models.Period {
	used := make(map[models.Period]bool)
	for _, g := range groupIDs {
		for _, e := range c.Schedule[g] {
			if e.TimeSlot.Week == week && e.TimeSlot.Weekday == day {
				used[e.TimeSlot.Period] = true
			}
		}
	}
	adjacent := func(p models.Period) bool {
		return used[p-1] || used[p+1]
	}
	periods := append([]models.Period(nil), models.Periods...)
	sort.SliceStable(periods, func(i, j int) bool {
		return adjacent(periods[i]) && !adjacent(periods[j])
	})
	return periods
}

// SlotOpen reports whether every group can take a lesson at the slot. Slots
// reserved by fixed placements stay closed to every other phase.
func (c *AllocationContext) SlotOpen(groupIDs []string, key models.SlotKey) (string, bool) {
	if reason, closed := c.Closed(key); closed {
		return reason, false
	}
	for _, g := range groupIDs {
		if !c.GroupFree(g, key) {
			return "group " + g + " is busy at " + key.String(), false
		}
	}
	if c.FixedBlocks(groupIDs, key) {
		return "fixed placement at " + key.String(), false
	}
	return "", true
}

// weeklyQuota spreads total sessions over weeks, front-loading the remainder
// and capping each week.
func weeklyQuota(total, weeks, max int) []int {
	quota := make([]int, weeks)
	if weeks == 0 || total <= 0 {
		return quota
	}
	base, rem := total/weeks, total%weeks
	for i := range quota {
		q := base
		if i < rem {
			q++
		}
		if q > max {
			q = max
		}
		quota[i] = q
	}
	return quota
}

// spread walks the semester week by week asking place for the week's quota
// plus any carried deficit, bounded by the weekly cap. It returns the number
// placed.
func (c *AllocationContext) spread(total int, place func(week, want int) int) int {
	weeks := c.Semester.Weeks
	quota := weeklyQuota(total, weeks, c.maxPerWeek)
	placed, carry := 0, 0
	for week := 1; week <= weeks && placed < total; week++ {
		target := quota[week-1] + carry
		want := target
		if want > c.maxPerWeek {
			want = c.maxPerWeek
		}
		if want > total-placed {
			want = total - placed
		}
		got := 0
		if want > 0 {
			got = place(week, want)
		}
		placed += got
		carry = target - got
		if carry < 0 {
			carry = 0
		}
	}
	return placed
}
