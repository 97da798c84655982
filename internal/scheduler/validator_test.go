package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

const otherGroup = "電気-1年"

func moveState(t *testing.T, catalog models.Catalog, entries ...models.ScheduleEntry) MoveState {
	t.Helper()
	schedule := make(models.Schedule)
	for _, e := range entries {
		schedule[e.GroupID] = append(schedule[e.GroupID], e)
	}
	return MoveState{Schedule: schedule, Catalog: catalog, Options: aprilOptions()}
}

func target(week int, day models.Weekday, period models.Period) MoveTarget {
	return MoveTarget{Week: week, Weekday: day, Period: period}
}

func TestValidateMoveRejectsNGWeekday(t *testing.T) {
	sem := aprilSemester(t)
	state := moveState(t, basicCatalog(), entry("e1", groupID, "s2", "t2", "r1", 1, models.Monday, 1, sem))
	v := NewValidator(nil)

	res := v.ValidateMove(state, "e1", target(1, models.Wednesday, 1))
	assert.False(t, res.Valid)
	assert.Equal(t, CodeTeacherUnavailable, res.Code)
	assert.NotEmpty(t, res.Reason)

	next, res := v.ApplyMove(state, "e1", target(1, models.Wednesday, 1))
	assert.False(t, res.Valid)
	assert.Equal(t, state.Schedule, next)
	assert.Equal(t, models.Monday, next[groupID][0].TimeSlot.Weekday)
}

func TestValidateMoveWeeklyCap(t *testing.T) {
	sem := aprilSemester(t)
	catalog := basicCatalog()
	catalog.Teachers = append(catalog.Teachers, teacher("capped", func(c *models.TeacherConstraints) {
		c.MaxClassesPerWeek = 2
	}))
	state := moveState(t, catalog,
		entry("e1", groupID, "s1", "capped", "r1", 1, models.Monday, 1, sem),
		entry("e2", groupID, "s1", "capped", "r1", 1, models.Tuesday, 1, sem),
		entry("e3", groupID, "s1", "capped", "r1", 2, models.Monday, 1, sem),
	)
	v := NewValidator(nil)

	res := v.ValidateMove(state, "e3", target(1, models.Wednesday, 1))
	assert.False(t, res.Valid)
	assert.Equal(t, CodeWeeklyCap, res.Code)

	res = v.ValidateMove(state, "e3", target(2, models.Tuesday, 1))
	assert.True(t, res.Valid)
}

func TestValidateMoveDailyCap(t *testing.T) {
	sem := aprilSemester(t)
	catalog := basicCatalog()
	catalog.Teachers = append(catalog.Teachers, teacher("short", func(c *models.TeacherConstraints) {
		c.MaxClassesPerDay = 1
	}))
	state := moveState(t, catalog,
		entry("e1", groupID, "s1", "short", "r1", 1, models.Monday, 1, sem),
		entry("e2", groupID, "s1", "short", "r1", 1, models.Tuesday, 1, sem),
	)

	res := NewValidator(nil).ValidateMove(state, "e2", target(1, models.Monday, 3))
	assert.False(t, res.Valid)
	assert.Equal(t, CodeDailyCap, res.Code)
}

func comboState(t *testing.T) MoveState {
	sem := aprilSemester(t)
	a := entry("ca1", groupID, "combo-a", "t3", "r1", 1, models.Monday, 1, sem)
	a.ComboPairID = "combo-b"
	b := entry("cb1", groupID, "combo-b", "t4", "r2", 1, models.Monday, 1, sem)
	b.ComboPairID = "combo-a"
	other := entry("h1", otherGroup, "s1", "t1", "r2", 1, models.Tuesday, 1, sem)
	return moveState(t, basicCatalog(), a, b, other)
}

func TestValidateMoveComboPartnerRoomConflict(t *testing.T) {
	res := NewValidator(nil).ValidateMove(comboState(t), "ca1", target(1, models.Tuesday, 1))
	assert.False(t, res.Valid)
	assert.Equal(t, CodeComboConflict, res.Code)
	assert.Contains(t, res.Reason, "r2")
}

func TestApplyMoveMovesComboPairTogether(t *testing.T) {
	state := comboState(t)
	next, res := NewValidator(nil).ApplyMove(state, "ca1", target(1, models.Wednesday, 2))
	require.True(t, res.Valid, res.Reason)
	assert.Equal(t, []string{"ca1", "cb1"}, res.Moved)
	assert.Equal(t, "2025-04-09", res.Target.Date)

	a, ok := next.Find("ca1")
	require.True(t, ok)
	b, ok := next.Find("cb1")
	require.True(t, ok)
	assert.Equal(t, a.TimeSlot, b.TimeSlot)
	assert.Equal(t, models.Wednesday, a.TimeSlot.Weekday)
	assert.Equal(t, models.Period(2), a.TimeSlot.Period)

	check := CheckCombos(next, basicCatalog().Subjects)
	assert.Zero(t, check.Incorrect)

	original, _ := state.Schedule.Find("ca1")
	assert.Equal(t, models.Monday, original.TimeSlot.Weekday, "input schedule is not mutated")
}

func TestValidateMoveRoomConflict(t *testing.T) {
	sem := aprilSemester(t)
	state := moveState(t, basicCatalog(),
		entry("e1", groupID, "s1", "t1", "r1", 1, models.Monday, 1, sem),
		entry("e2", otherGroup, "s2", "t2", "r1", 1, models.Tuesday, 1, sem),
	)

	res := NewValidator(nil).ValidateMove(state, "e1", target(1, models.Tuesday, 1))
	assert.False(t, res.Valid)
	assert.Equal(t, CodeRoomConflict, res.Code)
}

func TestValidateMoveTeacherAndGroupConflicts(t *testing.T) {
	sem := aprilSemester(t)
	state := moveState(t, basicCatalog(),
		entry("e1", groupID, "s1", "t1", "r1", 1, models.Monday, 1, sem),
		entry("e2", otherGroup, "s1", "t1", "r2", 1, models.Tuesday, 1, sem),
		entry("e3", groupID, "s2", "t2", "r3", 1, models.Wednesday, 2, sem),
	)
	v := NewValidator(nil)

	res := v.ValidateMove(state, "e1", target(1, models.Tuesday, 1))
	assert.Equal(t, CodeTeacherConflict, res.Code)

	res = v.ValidateMove(state, "e1", target(1, models.Wednesday, 2))
	assert.Equal(t, CodeGroupConflict, res.Code)
}

func TestValidateMoveClosedSlots(t *testing.T) {
	sem := aprilSemester(t)
	state := moveState(t, basicCatalog(), entry("e1", groupID, "s1", "t1", "r1", 1, models.Monday, 1, sem))
	state.Options.Blackouts = []models.DateRange{{From: "2025-04-09", To: "2025-04-09"}}
	v := NewValidator(nil)

	res := v.ValidateMove(state, "e1", target(1, models.Wednesday, 1))
	assert.Equal(t, CodeSlotClosed, res.Code)

	res = v.ValidateMove(state, "e1", target(9, models.Wednesday, 1))
	assert.Equal(t, CodeInvalidSlot, res.Code)

	res = v.ValidateMove(state, "missing", target(1, models.Tuesday, 1))
	assert.Equal(t, CodeEntryNotFound, res.Code)
}

func TestValidateMoveBlackoutFromRules(t *testing.T) {
	sem := aprilSemester(t)
	state := moveState(t, basicCatalog(), entry("e1", groupID, "s1", "t1", "r1", 1, models.Monday, 1, sem))
	rules, err := ParseRules([]byte(sampleRules))
	require.NoError(t, err)

	res := NewValidator(rules).ValidateMove(state, "e1", target(1, models.Friday, 2))
	assert.Equal(t, CodeSlotClosed, res.Code)
}

func TestValidateMoveWholeDayFixedPlacement(t *testing.T) {
	sem := aprilSemester(t)
	state := moveState(t, basicCatalog(), entry("e1", groupID, "s1", "t1", "r1", 1, models.Tuesday, 1, sem))
	v := NewValidator(excursionRules(1))

	res := v.ValidateMove(state, "e1", target(1, models.Monday, 1))
	assert.False(t, res.Valid)
	assert.Equal(t, CodeSlotClosed, res.Code)
	assert.Contains(t, res.Reason, "2025-04-07")

	assert.True(t, v.ValidateMove(state, "e1", target(2, models.Monday, 1)).Valid)

	other := moveState(t, basicCatalog(), entry("e2", otherGroup, "s1", "t1", "r1", 1, models.Tuesday, 1, sem))
	assert.True(t, v.ValidateMove(other, "e2", target(1, models.Monday, 1)).Valid)
}

func TestValidateMoveRuleTable(t *testing.T) {
	sem := aprilSemester(t)
	state := moveState(t, basicCatalog(), entry("e1", groupID, "s1", "t1", "r1", 1, models.Monday, 1, sem))
	rules := NewRuleBook(models.RuleTable{Rules: []models.Rule{
		{ID: "mornings", Kind: models.RulePeriodOnly, TeacherID: "t1", Periods: []models.Period{1, 2}},
	}})
	v := NewValidator(rules)

	res := v.ValidateMove(state, "e1", target(1, models.Monday, 3))
	assert.Equal(t, CodeRuleViolation, res.Code)
	assert.True(t, v.ValidateMove(state, "e1", target(1, models.Monday, 2)).Valid)
}

func TestValidateMoveSequence(t *testing.T) {
	sem := aprilSemester(t)
	catalog := basicCatalog()
	catalog.Teachers = append(catalog.Teachers, teacher("yaita", func(c *models.TeacherConstraints) {
		c.Sequential = &models.SequentialSubjects{Subjects: []string{"math-a", "math-b"}, MustBeConsecutiveDays: true}
	}))
	state := moveState(t, catalog,
		entry("a", groupID, "math-a", "yaita", "r1", 1, models.Tuesday, 1, sem),
		entry("b", groupID, "math-b", "yaita", "r1", 1, models.Wednesday, 1, sem),
	)
	v := NewValidator(nil)

	res := v.ValidateMove(state, "b", target(1, models.Friday, 1))
	assert.Equal(t, CodeSequenceViolation, res.Code)
	assert.True(t, v.ValidateMove(state, "b", target(1, models.Monday, 2)).Valid)
}

func TestValidateMoveConsecutivePreference(t *testing.T) {
	sem := aprilSemester(t)
	catalog := basicCatalog()
	catalog.Teachers = append(catalog.Teachers, teacher("block", func(c *models.TeacherConstraints) {
		c.Wish.PreferConsecutive = true
	}))
	state := moveState(t, catalog,
		entry("a", groupID, "s1", "block", "r1", 1, models.Monday, 1, sem),
		entry("b", groupID, "s1", "block", "r1", 1, models.Tuesday, 1, sem),
	)
	v := NewValidator(nil)

	res := v.ValidateMove(state, "b", target(1, models.Monday, 3))
	assert.Equal(t, CodeConsecutiveViolation, res.Code)
	assert.True(t, v.ValidateMove(state, "b", target(1, models.Monday, 2)).Valid)
}

func TestApplyMoveCarriesJointSiblings(t *testing.T) {
	sem := aprilSemester(t)
	a := entry("j1", groupID, "assembly", "t1", "r3", 1, models.Monday, 1, sem)
	b := entry("j2", otherGroup, "assembly", "t1", "r3", 1, models.Monday, 1, sem)
	a.SessionKey, b.SessionKey = "assembly@t1", "assembly@t1"
	state := moveState(t, basicCatalog(), a, b)

	next, res := NewValidator(nil).ApplyMove(state, "j1", target(2, models.Monday, 1))
	require.True(t, res.Valid, res.Reason)
	assert.Equal(t, []string{"j1", "j2"}, res.Moved)
	for _, id := range []string{"j1", "j2"} {
		e, ok := next.Find(id)
		require.True(t, ok)
		assert.Equal(t, 2, e.TimeSlot.Week)
		assert.Equal(t, "2025-04-14", e.TimeSlot.Date)
	}
	assert.Empty(t, AuditConflicts(next))
}

func TestValidateMoveToCurrentSlotIsValid(t *testing.T) {
	sem := aprilSemester(t)
	state := moveState(t, basicCatalog(), entry("e1", groupID, "s1", "t1", "r1", 1, models.Monday, 1, sem))

	res := NewValidator(nil).ValidateMove(state, "e1", target(1, models.Monday, 1))
	assert.True(t, res.Valid)
	assert.Equal(t, CodeOK, res.Code)
	assert.Contains(t, res.String(), "valid")
}
