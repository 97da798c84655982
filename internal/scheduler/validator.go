package scheduler

import (
	"fmt"
	"sort"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// MoveCode is a stable machine-readable rejection code.
type MoveCode string

const (
	CodeOK                   MoveCode = "ok"
	CodeEntryNotFound        MoveCode = "entry_not_found"
	CodeInvalidSlot          MoveCode = "invalid_slot"
	CodeSlotClosed           MoveCode = "slot_closed"
	CodeTeacherUnavailable   MoveCode = "teacher_unavailable"
	CodeRuleViolation        MoveCode = "rule_violation"
	CodeRoomConflict         MoveCode = "room_conflict"
	CodeTeacherConflict      MoveCode = "teacher_conflict"
	CodeGroupConflict        MoveCode = "group_conflict"
	CodeComboConflict        MoveCode = "combo_conflict"
	CodeSequenceViolation    MoveCode = "sequence_violation"
	CodeConsecutiveViolation MoveCode = "consecutive_violation"
	CodeWeeklyCap            MoveCode = "weekly_cap"
	CodeDailyCap             MoveCode = "daily_cap"
)

// MoveTarget is the slot an entry should move to.
type MoveTarget struct {
	Week    int            `json:"week" validate:"required,gte=1"`
	Weekday models.Weekday `json:"dayOfWeek" validate:"required"`
	Period  models.Period  `json:"period" validate:"required,min=1,max=4"`
}

// Key converts the target to a slot key.
func (t MoveTarget) Key() models.SlotKey {
	return models.SlotKey{Week: t.Week, Weekday: t.Weekday, Period: t.Period}
}

// MoveState is everything a move is judged against.
type MoveState struct {
	Schedule models.Schedule
	Catalog  models.Catalog
	Options  models.GenerationOptions
}

// MoveResult reports the verdict on a move.
type MoveResult struct {
	Valid  bool            `json:"valid"`
	Reason string          `json:"reason,omitempty"`
	Code   MoveCode        `json:"code"`
	Moved  []string        `json:"moved,omitempty"`
	Target models.TimeSlot `json:"target"`
}

func reject(v *Violation) MoveResult {
	return MoveResult{Valid: false, Reason: v.Reason, Code: v.Code}
}

// Validator checks manual moves against the same rules the allocator uses.
type Validator struct {
	rules *RuleBook
}

// NewValidator builds a validator over the rule table.
func NewValidator(rules *RuleBook) *Validator {
	return &Validator{rules: rules}
}

// ValidateMove judges moving an entry, together with its session siblings and
// combo partner, to target. Checks short-circuit in a fixed order.
func (v *Validator) ValidateMove(state MoveState, entryID string, target MoveTarget) MoveResult {
	res, _, _ := v.validate(state, entryID, target)
	return res
}

// ApplyMove validates and, when valid, returns a new schedule with the moved
// entries relocated. A rejected move returns the original schedule.
func (v *Validator) ApplyMove(state MoveState, entryID string, target MoveTarget) (models.Schedule, MoveResult) {
	res, moving, slot := v.validate(state, entryID, target)
	if !res.Valid {
		return state.Schedule, res
	}
	next := state.Schedule.Clone()
	for g, entries := range next {
		for i := range entries {
			if _, ok := moving[entries[i].ID]; ok {
				entries[i].TimeSlot = slot
			}
		}
		models.SortEntries(entries)
		next[g] = entries
	}
	return next, res
}

func (v *Validator) validate(state MoveState, entryID string, target MoveTarget) (MoveResult, map[string]struct{}, models.TimeSlot) {
	entry, ok := state.Schedule.Find(entryID)
	if !ok {
		return reject(violation(CodeEntryNotFound, "entry %s not found", entryID)), nil, models.TimeSlot{}
	}
	ctx, err := NewAllocationContext(state.Catalog, state.Options, v.rules, nil)
	if err != nil {
		return reject(violation(CodeInvalidSlot, "%v", err)), nil, models.TimeSlot{}
	}
	key := target.Key()
	if !ctx.Semester.ValidKey(key) {
		return reject(violation(CodeInvalidSlot, "slot %s is outside the semester grid", key)), nil, models.TimeSlot{}
	}
	slot := ctx.Semester.Slot(key)

	primary, partner := movingSet(state.Schedule, entry)
	moving := make(map[string]struct{}, len(primary)+len(partner))
	for _, e := range append(append([]models.ScheduleEntry(nil), primary...), partner...) {
		moving[e.ID] = struct{}{}
	}
	accepted := func() MoveResult {
		ids := make([]string, 0, len(moving))
		for id := range moving {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return MoveResult{Valid: true, Code: CodeOK, Moved: ids, Target: slot}
	}
	if entry.TimeSlot.Key() == key {
		return accepted(), moving, slot
	}

	ctx.Load(state.Schedule, func(e models.ScheduleEntry) bool {
		_, skip := moving[e.ID]
		return skip
	})

	if reason, closed := ctx.Closed(key); closed {
		return reject(violation(CodeSlotClosed, "%s", reason)), nil, slot
	}
	groups := make([]string, 0, len(primary))
	for _, e := range primary {
		groups = append(groups, e.GroupID)
	}
	if ctx.DayBlocked(groups, key) {
		return reject(violation(CodeSlotClosed, "%s is reserved by a fixed placement", slot.Date)), nil, slot
	}

	teacher, hasTeacher := ctx.Teacher(entry.TeacherID)
	if hasTeacher {
		if viol := TeacherAvailable(teacher, key, slot.Date); viol != nil {
			return reject(viol), nil, slot
		}
		if viol := ctx.RuleViolation(teacher, entry.SubjectID, key); viol != nil {
			return reject(viol), nil, slot
		}
	}

	if viol := conflicts(ctx, primary, key); viol != nil {
		return reject(viol), nil, slot
	}

	if len(partner) > 0 {
		if viol := comboConflicts(ctx, entry, partner, key, slot.Date); viol != nil {
			return reject(viol), nil, slot
		}
	}

	if hasTeacher {
		for _, check := range []func() *Violation{
			func() *Violation { return ctx.SequenceViolation(teacher, entry.SubjectID, key) },
			func() *Violation { return ctx.ConsecutiveViolation(teacher, key) },
			func() *Violation { return ctx.CapViolation(teacher, key) },
		} {
			if viol := check(); viol != nil {
				return reject(viol), nil, slot
			}
		}
	}
	return accepted(), moving, slot
}

// movingSet returns the entry with its session siblings, and the combo
// partner entries sharing the old slot with their siblings.
func movingSet(schedule models.Schedule, entry models.ScheduleEntry) (primary, partner []models.ScheduleEntry) {
	all := schedule.All()
	groups := make(map[string]bool)
	for _, e := range all {
		if e.Session() == entry.Session() {
			primary = append(primary, e)
			groups[e.GroupID] = true
		}
	}
	if entry.ComboPairID == "" {
		return primary, nil
	}

	sessions := make(map[string]bool)
	old := entry.TimeSlot.Key()
	for _, e := range all {
		if e.SubjectID == entry.ComboPairID && e.TimeSlot.Key() == old && groups[e.GroupID] {
			sessions[e.Session()] = true
		}
	}
	for _, e := range all {
		if sessions[e.Session()] {
			partner = append(partner, e)
		}
	}
	return primary, partner
}

func conflicts(ctx *AllocationContext, entries []models.ScheduleEntry, key models.SlotKey) *Violation {
	e := entries[0]
	if e.ClassroomID != "" && !ctx.RoomFree(e.ClassroomID, key) {
		return violation(CodeRoomConflict, "classroom %s is already in use at %s", e.ClassroomID, key)
	}
	if e.TeacherID != "" && !ctx.TeacherFree(e.TeacherID, key) {
		return violation(CodeTeacherConflict, "teacher %s already teaches at %s", e.TeacherID, key)
	}
	for _, sibling := range entries {
		if !ctx.GroupFree(sibling.GroupID, key) {
			return violation(CodeGroupConflict, "group %s already has a lesson at %s", sibling.GroupID, key)
		}
	}
	return nil
}

func comboConflicts(ctx *AllocationContext, entry models.ScheduleEntry, partner []models.ScheduleEntry, key models.SlotKey, date string) *Violation {
	for _, g := range ctx.Schedule.Groups() {
		for _, e := range ctx.Schedule[g] {
			if e.TimeSlot.Key() != key {
				continue
			}
			if e.SubjectID == entry.SubjectID || e.SubjectID == entry.ComboPairID {
				return violation(CodeComboConflict, "group %s already has combo subject %s at %s", g, e.SubjectID, key)
			}
		}
	}

	p := partner[0]
	if p.ClassroomID != "" && !ctx.RoomFree(p.ClassroomID, key) {
		return violation(CodeComboConflict, "classroom %s of combo partner %s is already in use at %s", p.ClassroomID, p.SubjectID, key)
	}
	if p.TeacherID != "" && !ctx.TeacherFree(p.TeacherID, key) {
		return violation(CodeComboConflict, "teacher %s of combo partner %s already teaches at %s", p.TeacherID, p.SubjectID, key)
	}
	if t, ok := ctx.Teacher(p.TeacherID); ok {
		if viol := TeacherAvailable(t, key, date); viol != nil {
			return violation(CodeComboConflict, "combo partner %s: %s", p.SubjectID, viol.Reason)
		}
	}
	return nil
}

// String renders a result for logs and the CLI.
func (r MoveResult) String() string {
	if r.Valid {
		return fmt.Sprintf("valid: %d entries move to %s", len(r.Moved), r.Target.Key())
	}
	return fmt.Sprintf("rejected (%s): %s", r.Code, r.Reason)
}
