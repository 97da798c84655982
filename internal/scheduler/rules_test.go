package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

const sampleRules = `
rules:
  - id: fiona-bonus
    kind: priority_bonus
    teacher: fiona
    bonus: 300
  - id: morita-days
    kind: weekday_cap
    teacher: morita
    days: [水, 金]
    subjects: [english-1]
    weeklyCap: 3
  - id: yaita-sequence
    kind: sequential_days
    teacher: yaita
    subjects: [math-a, math-b]
  - id: suzuki-fixed
    kind: fixed_schedule
    teacher: suzuki
    fixed:
      groups: [機械-1年]
      subject: lab
      recurrences:
        - weekday: Wednesday
          periods: [3]
          fromWeek: 1
          toWeek: 2
  - id: exam-fridays
    kind: blackout
    blackout:
      rrule: FREQ=WEEKLY;BYDAY=FR;COUNT=2
      days: 1
      reason: exams
`

func TestParseRulesIndexesByTeacherAndKind(t *testing.T) {
	book, err := ParseRules([]byte(sampleRules))
	require.NoError(t, err)

	assert.Len(t, book.Table().Rules, 5)
	assert.Equal(t, 300, book.Bonus("fiona"))
	assert.Len(t, book.ForTeacher("morita"), 1)
	assert.Len(t, book.ForTeacher("morita", models.RulePeriodOnly), 0)
	assert.Len(t, book.OfKind(models.RuleBlackout), 1)
	assert.Equal(t, []string{"math-a", "math-b"}, book.Sequence(models.Teacher{ID: "yaita"}))

	fixed := book.ForTeacher("suzuki", models.RuleFixedSchedule)
	require.Len(t, fixed, 1)
	assert.Equal(t, models.Wednesday, fixed[0].Fixed.Recurrences[0].Weekday)
}

func TestParseRulesEmptyDocument(t *testing.T) {
	book, err := ParseRules(nil)
	require.NoError(t, err)
	assert.Empty(t, book.Table().Rules)
}

func TestParseRulesRejectsInvalidTables(t *testing.T) {
	cases := map[string]string{
		"unknown kind":    "rules:\n  - id: a\n    kind: teleport\n    teacher: x\n",
		"missing id":      "rules:\n  - kind: priority_bonus\n    teacher: x\n    bonus: 1\n",
		"missing teacher": "rules:\n  - id: a\n    kind: period_only\n    periods: [1]\n",
		"bad rrule":       "rules:\n  - id: a\n    kind: blackout\n    blackout:\n      rrule: FREQ=SOMETIMES\n",
		"duplicate id":    "rules:\n  - id: a\n    kind: priority_bonus\n    teacher: x\n    bonus: 1\n  - id: a\n    kind: priority_bonus\n    teacher: y\n    bonus: 1\n",
		"unknown field":   "rules:\n  - id: a\n    kind: priority_bonus\n    teacher: x\n    bonus: 1\n    colour: red\n",
		"empty fixed":     "rules:\n  - id: a\n    kind: fixed_schedule\n    teacher: x\n    fixed:\n      groups: [g]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestRuleBookBlackoutsExpandRRule(t *testing.T) {
	book, err := ParseRules([]byte(sampleRules))
	require.NoError(t, err)

	windows := book.Blackouts(aprilSemester(t))
	assert.Equal(t, []models.DateRange{
		{From: "2025-04-11", To: "2025-04-11"},
		{From: "2025-04-18", To: "2025-04-18"},
	}, windows)
}

func TestNilRuleBookIsEmpty(t *testing.T) {
	var book *RuleBook
	assert.Nil(t, book.ForTeacher("x"))
	assert.Equal(t, 0, book.Bonus("x"))
	assert.Empty(t, book.Blackouts(aprilSemester(t)))
	assert.Empty(t, book.OwnedSessions())
	assert.Empty(t, book.Reviewable())
}

func TestLoadRulesExampleFile(t *testing.T) {
	book, err := LoadRules("../../configs/rules.example.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, book.Table().Rules)

	reviewable := book.Reviewable()
	require.NotEmpty(t, reviewable)
	for _, r := range reviewable {
		assert.True(t, r.Reviewable, r.ID)
	}
}
