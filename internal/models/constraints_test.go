package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeConstraintsCanonical(t *testing.T) {
	doc := `{
		"fixed": [{"day": "水", "periods": [3, 4], "subject": "sub-db"}],
		"ng": {"days": ["金"], "periods": ["1限"], "dates": ["2025-12-24"]},
		"wish": {"days": ["火"], "periods": [2], "preferConsecutive": true, "biweekly": "odd"},
		"maxClassesPerWeek": 3
	}`

	c, err := NormalizeConstraints([]byte(doc))
	require.NoError(t, err)

	require.Len(t, c.Fixed, 1)
	assert.Equal(t, Wednesday, c.Fixed[0].Day)
	assert.Equal(t, []Period{3, 4}, c.Fixed[0].Periods)
	assert.Equal(t, []Weekday{Friday}, c.NG.Days)
	assert.Equal(t, []Period{1}, c.NG.Periods)
	assert.Equal(t, []string{"2025-12-24"}, c.NG.Dates)
	assert.True(t, c.Wish.PreferConsecutive)
	assert.Equal(t, ParityOdd, c.Wish.Biweekly)
	assert.Equal(t, 3, c.MaxClassesPerWeek)
}

func TestNormalizeConstraintsLegacyShapes(t *testing.T) {
	doc := `{
		"confirmed": {
			"days": ["木"],
			"periods": ["3限", "4限"],
			"frequency": "隔週",
			"specialSchedule": [{"date": "2026-01-19", "periods": ["3限"], "subject": "DB設計"}],
			"specialTimeStart": "13:15",
			"makeupSchedule": {"totalDelayMinutes": 240, "makeupLocation": "A101", "makeupClasses": 3}
		},
		"unavailable": {
			"periods": {"月": ["1限", "2限"], "Friday": ["4限"]},
			"specificDates": ["2025-11-05"],
			"recurringTime": {"day": "火", "time": "15:00〜"}
		},
		"preferred": {
			"days": ["水"],
			"periods": {"水": [["1限", "2限"]]},
			"consecutivePeriods": [["1限", "2限"]]
		},
		"availableDays": ["monday", "Wednesday", "木"],
		"unavailableDays": ["金"],
		"unavailablePeriods": ["4限"],
		"preferConsecutiveClasses": true,
		"sequentialSubjects": {"subjects": ["s1", "s2"], "mustBeConsecutiveDays": true},
		"specialNotes": "授業変更にほぼ絶対対応できない",
		"somethingUnknown": {"x": 1}
	}`

	c, err := NormalizeConstraints([]byte(doc))
	require.NoError(t, err)

	require.Len(t, c.Fixed, 2)
	assert.Equal(t, FixedRule{Day: Thursday, Periods: []Period{3, 4}}, c.Fixed[0])
	assert.Equal(t, Monday, c.Fixed[1].Day)
	assert.Equal(t, "2026-01-19", c.Fixed[1].Date)
	assert.Equal(t, "DB設計", c.Fixed[1].Subject)

	assert.Equal(t, ParityAny, c.Wish.Biweekly)
	assert.Equal(t, "13:15", c.SpecialTimeStart)
	require.NotNil(t, c.Makeup)
	assert.Equal(t, 240, c.Makeup.TotalDelayMinutes)

	assert.Equal(t, []Period{1, 2}, c.NG.DayPeriods[Monday])
	assert.Equal(t, []Period{4}, c.NG.DayPeriods[Friday])
	assert.Equal(t, []Period{4}, c.NG.Periods)
	assert.Equal(t, []string{"2025-11-05"}, c.NG.Dates)
	require.Len(t, c.NG.TimeRanges, 1)
	assert.Equal(t, TimeRange{Day: Tuesday, Start: "15:00", End: "23:59"}, c.NG.TimeRanges[0])

	assert.Equal(t, []Weekday{Wednesday}, c.Wish.Days)
	assert.Equal(t, []Period{1, 2}, c.Wish.DayPeriods[Wednesday])
	assert.True(t, c.Wish.PreferConsecutive)

	assert.Equal(t, []Weekday{Monday, Wednesday, Thursday}, c.AvailableDays)
	assert.Equal(t, []Weekday{Friday}, c.UnavailableDays)
	require.NotNil(t, c.Sequential)
	assert.True(t, c.Sequential.MustBeConsecutiveDays)
	assert.True(t, c.ChangeUnavailable)
}

func TestNormalizeConstraintsUnavailableDaysWithPeriods(t *testing.T) {
	c, err := NormalizeConstraints([]byte(`{"unavailable": {"days": ["火"], "periods": ["1限"]}}`))
	require.NoError(t, err)
	assert.Empty(t, c.NG.Days)
	assert.Equal(t, []Period{1}, c.NG.DayPeriods[Tuesday])

	c, err = NormalizeConstraints([]byte(`{"unavailable": {"days": ["火"], "allDay": true}}`))
	require.NoError(t, err)
	assert.Equal(t, []Weekday{Tuesday}, c.NG.Days)
}

func TestNormalizeConstraintsTolerance(t *testing.T) {
	c, err := NormalizeConstraints(nil)
	require.NoError(t, err)
	assert.Empty(t, c.Fixed)

	c, err = NormalizeConstraints([]byte(`{"ng": {"days": ["月", "Someday"]}, "maxClassesPerWeek": "three"}`))
	require.NoError(t, err)
	assert.Equal(t, []Weekday{Monday}, c.NG.Days)
	assert.Zero(t, c.MaxClassesPerWeek)

	_, err = NormalizeConstraints([]byte(`["not", "an", "object"]`))
	assert.Error(t, err)
}

func TestTeacherConstraintsRoundTripThroughTeacher(t *testing.T) {
	var teacher Teacher
	require.NoError(t, json.Unmarshal([]byte(`{"id":"t1","name":"佐藤","constraints":{"unavailableDays":["水"]}}`), &teacher))
	assert.Equal(t, []Weekday{Wednesday}, teacher.Constraints.UnavailableDays)

	encoded, err := json.Marshal(teacher)
	require.NoError(t, err)

	var decoded Teacher
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, teacher, decoded)
}

func TestFixedRuleApplicability(t *testing.T) {
	c := TeacherConstraints{Fixed: []FixedRule{
		{Day: Wednesday, Periods: []Period{3}, WeekRange: &WeekRange{From: 3, To: 16}},
		{Day: Wednesday, Periods: []Period{1}, Date: "2025-10-22"},
		{Day: Thursday, Periods: []Period{2}, Biweekly: ParityEven},
	}}

	assert.False(t, c.HasFixedOn(Wednesday, 2))
	assert.True(t, c.HasFixedOn(Wednesday, 3))
	assert.Equal(t, []Period{3}, c.FixedPeriods(Wednesday, 5))
	assert.False(t, c.HasFixedOn(Thursday, 3))
	assert.True(t, c.HasFixedOn(Thursday, 4))

	rule, ok := c.FixedAt(Wednesday, 4, "2025-10-22", 1)
	require.True(t, ok)
	assert.Equal(t, "2025-10-22", rule.Date)
	_, ok = c.FixedAt(Wednesday, 4, "2025-10-29", 1)
	assert.False(t, ok)
}
