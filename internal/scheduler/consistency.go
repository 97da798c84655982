package scheduler

import (
	"fmt"
	"sort"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// ComboIssue is a combo entry whose partner is missing from its slot.
type ComboIssue struct {
	EntryID   string         `json:"entryId"`
	GroupID   string         `json:"groupId"`
	SubjectID string         `json:"subjectId"`
	PartnerID string         `json:"partnerId"`
	Slot      models.SlotKey `json:"-"`
	Problem   string         `json:"problem"`
}

// ComboCheck counts combo entries and how many sit with their partner.
type ComboCheck struct {
	TotalPairs int          `json:"totalPairs"`
	Correct    int          `json:"correct"`
	Incorrect  int          `json:"incorrect"`
	Issues     []ComboIssue `json:"issues,omitempty"`
}

// CheckCombos verifies that every combo entry shares its slot with the partner
// subject in the same group.
func CheckCombos(schedule models.Schedule, subjects []models.Subject) ComboCheck {
	partnerOf := make(map[string]string)
	for _, s := range subjects {
		if s.IsCombo() {
			partnerOf[s.ID] = s.ComboSubjectID
		}
	}

	var check ComboCheck
	for _, g := range schedule.Groups() {
		at := make(map[models.SlotKey]map[string]bool)
		for _, e := range schedule[g] {
			k := e.TimeSlot.Key()
			if at[k] == nil {
				at[k] = make(map[string]bool)
			}
			at[k][e.SubjectID] = true
		}
		for _, e := range schedule[g] {
			partner, ok := partnerOf[e.SubjectID]
			if !ok {
				continue
			}
			check.TotalPairs++
			if at[e.TimeSlot.Key()][partner] {
				check.Correct++
				continue
			}
			check.Incorrect++
			check.Issues = append(check.Issues, ComboIssue{
				EntryID:   e.ID,
				GroupID:   g,
				SubjectID: e.SubjectID,
				PartnerID: partner,
				Slot:      e.TimeSlot.Key(),
				Problem:   fmt.Sprintf("partner %s missing at %s", partner, e.TimeSlot.Key()),
			})
		}
	}
	return check
}

// ConflictKind names the resource that is double-booked.
type ConflictKind string

const (
	ConflictTeacher ConflictKind = "teacher"
	ConflictRoom    ConflictKind = "classroom"
	ConflictGroup   ConflictKind = "group"
)

// Conflict is a resource used by more than one session at a slot.
type Conflict struct {
	Kind     ConflictKind `json:"kind"`
	Resource string       `json:"resource"`
	Slot     string       `json:"slot"`
	EntryIDs []string     `json:"entryIds"`
}

// AuditConflicts lists double bookings. Copies of one session never conflict
// with each other, and combo halves may share a group slot.
func AuditConflicts(schedule models.Schedule) []Conflict {
	type bucket struct {
		resource string
		slot     string
		sessions map[string]bool
		entries  []string
		combo    bool
	}
	index := map[ConflictKind]map[string]*bucket{
		ConflictTeacher: {},
		ConflictRoom:    {},
		ConflictGroup:   {},
	}
	add := func(kind ConflictKind, resource string, e models.ScheduleEntry) {
		if resource == "" {
			return
		}
		k := resource + "|" + e.TimeSlot.Key().String()
		b := index[kind][k]
		if b == nil {
			b = &bucket{resource: resource, slot: e.TimeSlot.Key().String(), sessions: make(map[string]bool), combo: true}
			index[kind][k] = b
		}
		b.sessions[e.Session()] = true
		b.entries = append(b.entries, e.ID)
		b.combo = b.combo && e.ComboPairID != ""
	}

	for _, e := range schedule.All() {
		add(ConflictTeacher, e.TeacherID, e)
		add(ConflictRoom, e.ClassroomID, e)
		add(ConflictGroup, e.GroupID, e)
	}

	var out []Conflict
	for _, kind := range []ConflictKind{ConflictTeacher, ConflictRoom, ConflictGroup} {
		keys := make([]string, 0, len(index[kind]))
		for k := range index[kind] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b := index[kind][k]
			if len(b.sessions) < 2 {
				continue
			}
			if kind == ConflictGroup && b.combo && len(b.sessions) == 2 {
				continue
			}
			out = append(out, Conflict{Kind: kind, Resource: b.resource, Slot: b.slot, EntryIDs: b.entries})
		}
	}
	return out
}
