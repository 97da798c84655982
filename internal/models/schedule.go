package models

import (
	"fmt"
	"sort"
)

// TimeSlot locates a lesson in the semester.
type TimeSlot struct {
	Week    int     `json:"week"`
	Weekday Weekday `json:"dayOfWeek"`
	Period  Period  `json:"period"`
	Date    string  `json:"date"`
}

// Key drops the date; week, weekday and period identify a slot.
func (s TimeSlot) Key() SlotKey {
	return SlotKey{Week: s.Week, Weekday: s.Weekday, Period: s.Period}
}

// SlotKey is the atomic unit of scheduling.
type SlotKey struct {
	Week    int
	Weekday Weekday
	Period  Period
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%d-%s-%d", k.Week, k.Weekday, k.Period)
}

// EntrySource records which phase produced an entry.
type EntrySource string

const (
	SourceFixed    EntrySource = "fixed"
	SourceCombo    EntrySource = "combo"
	SourcePair     EntrySource = "pair"
	SourceBlock    EntrySource = "block"
	SourceLeftover EntrySource = "leftover"
	SourceJoint    EntrySource = "joint"
	SourceManual   EntrySource = "manual"
)

// ScheduleEntry is one lesson for one group. Copies of the same physical
// session delivered to several groups share a SessionKey.
type ScheduleEntry struct {
	ID          string      `json:"id"`
	GroupID     string      `json:"groupId"`
	TimeSlot    TimeSlot    `json:"timeSlot"`
	SubjectID   string      `json:"subjectId"`
	TeacherID   string      `json:"teacherId"`
	ClassroomID string      `json:"classroomId"`
	SessionKey  string      `json:"sessionKey,omitempty"`
	ComboPairID string      `json:"comboPairId,omitempty"`
	Source      EntrySource `json:"source,omitempty"`
}

// Session returns the key shared by copies of the same session.
func (e ScheduleEntry) Session() string {
	if e.SessionKey != "" {
		return e.SessionKey
	}
	return e.ID
}

// EntryID builds the deterministic identifier of a generated entry.
func EntryID(groupID, subjectID string, slot SlotKey) string {
	return fmt.Sprintf("%s-%s-%d-%s-%d", groupID, subjectID, slot.Week, slot.Weekday, slot.Period)
}

// Schedule maps group ids to their entries.
type Schedule map[string][]ScheduleEntry

// Clone deep-copies the schedule.
func (s Schedule) Clone() Schedule {
	out := make(Schedule, len(s))
	for group, entries := range s {
		out[group] = append([]ScheduleEntry(nil), entries...)
	}
	return out
}

// Count returns the number of entries across groups.
func (s Schedule) Count() int {
	n := 0
	for _, entries := range s {
		n += len(entries)
	}
	return n
}

// Groups returns group ids sorted.
func (s Schedule) Groups() []string {
	groups := make([]string, 0, len(s))
	for g := range s {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// All flattens the schedule in group then chronological order.
func (s Schedule) All() []ScheduleEntry {
	out := make([]ScheduleEntry, 0, s.Count())
	for _, g := range s.Groups() {
		out = append(out, s[g]...)
	}
	SortEntries(out)
	return out
}

// Find locates an entry by id.
func (s Schedule) Find(id string) (ScheduleEntry, bool) {
	for _, entries := range s {
		for _, e := range entries {
			if e.ID == id {
				return e, true
			}
		}
	}
	return ScheduleEntry{}, false
}

// SortEntries orders entries by week, weekday, period, group then subject.
func SortEntries(entries []ScheduleEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].TimeSlot, entries[j].TimeSlot
		if a.Week != b.Week {
			return a.Week < b.Week
		}
		if a.Weekday != b.Weekday {
			return a.Weekday.Index() < b.Weekday.Index()
		}
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		if entries[i].GroupID != entries[j].GroupID {
			return entries[i].GroupID < entries[j].GroupID
		}
		return entries[i].SubjectID < entries[j].SubjectID
	})
}

// ScheduleRequestType is a special-day rule.
type ScheduleRequestType string

const (
	RequestPeriodsOnly    ScheduleRequestType = "periods-only"
	RequestStartFrom      ScheduleRequestType = "start-from"
	RequestEndUntil       ScheduleRequestType = "end-until"
	RequestExcludePeriods ScheduleRequestType = "exclude-periods"
)

// ScheduleRequest restricts teaching on one calendar date.
type ScheduleRequest struct {
	ID          string              `json:"id,omitempty"`
	Date        string              `json:"date" validate:"required,datetime=2006-01-02"`
	Type        ScheduleRequestType `json:"type" validate:"required,oneof=periods-only start-from end-until exclude-periods"`
	Periods     []Period            `json:"periods" validate:"required,min=1"`
	Description string              `json:"description,omitempty"`
}

// Blocks reports whether the request forbids teaching in period p.
func (r ScheduleRequest) Blocks(p Period) bool {
	if len(r.Periods) == 0 {
		return false
	}
	switch r.Type {
	case RequestPeriodsOnly:
		return !ContainsPeriod(r.Periods, p)
	case RequestStartFrom:
		return p < r.Periods[0]
	case RequestEndUntil:
		return p > r.Periods[len(r.Periods)-1]
	case RequestExcludePeriods:
		return ContainsPeriod(r.Periods, p)
	}
	return false
}
