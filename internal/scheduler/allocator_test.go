package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

func generate(t *testing.T, catalog models.Catalog, opts models.GenerationOptions, rules *RuleBook, tracer Tracer) *Result {
	t.Helper()
	allocator := NewAllocator(WithRules(rules), WithTracer(tracer))
	result, err := allocator.Generate(context.Background(), catalog, opts)
	require.NoError(t, err)
	return result
}

func TestGenerateBasicCatalogIsComplete(t *testing.T) {
	catalog := basicCatalog()
	catalog.Teachers[0] = teacher("t1", func(c *models.TeacherConstraints) {
		c.Fixed = []models.FixedRule{{Day: models.Tuesday, Periods: []models.Period{2}}}
	})
	result := generate(t, catalog, aprilOptions(), nil, nil)

	require.Contains(t, result.Schedule, groupID)
	assert.True(t, result.Report.Complete)
	assert.Equal(t, 15, result.Report.Required)
	assert.Equal(t, 15, result.Report.Placed)
	assert.InDelta(t, 1.0, result.Report.Completion, 1e-9)
	assert.Empty(t, result.Report.Conflicts)
	assert.Empty(t, result.Holidays)

	tuesdays := 0
	for _, e := range result.Schedule[groupID] {
		if e.TeacherID == "t2" {
			assert.NotEqual(t, models.Wednesday, e.TimeSlot.Weekday, "t2 never teaches on wednesday")
		}
		if e.TeacherID == "t1" && e.TimeSlot.Weekday == models.Tuesday {
			tuesdays++
			assert.Equal(t, models.Period(2), e.TimeSlot.Period, "t1 only teaches tuesday 2限")
		}
	}
	assert.NotZero(t, tuesdays)
}

func excursionRules(weeks ...int) *RuleBook {
	placements := make([]models.FixedPlacementSpec, 0, len(weeks))
	for _, w := range weeks {
		placements = append(placements, models.FixedPlacementSpec{Week: w, Weekday: models.Monday})
	}
	return NewRuleBook(models.RuleTable{Rules: []models.Rule{{
		ID: "excursion", Kind: models.RuleFixedSchedule, TeacherID: "t1",
		Fixed: &models.FixedScheduleSpec{Groups: []string{groupID}, Placements: placements},
	}}})
}

func TestGenerateKeepsWholeDayPlacementsFree(t *testing.T) {
	rules := excursionRules(1, 2, 3)
	require.NoError(t, ValidateRules(rules.Table()))

	result := generate(t, basicCatalog(), aprilOptions(), rules, nil)

	for _, e := range result.Schedule[groupID] {
		assert.NotEqual(t, models.Monday, e.TimeSlot.Weekday, "%s %s src=%s", e.SubjectID, e.TimeSlot.Date, e.Source)
	}
	assert.Equal(t, result.Report.Required, result.Report.Placed)
	assert.Empty(t, result.Report.Conflicts)
}

func TestGenerateKeepsComboHalvesTogether(t *testing.T) {
	result := generate(t, basicCatalog(), aprilOptions(), nil, nil)

	combos := result.Report.Combos
	assert.Equal(t, 6, combos.TotalPairs)
	assert.Equal(t, 6, combos.Correct)
	assert.Zero(t, combos.Incorrect)

	byRoom := make(map[models.SlotKey][]string)
	for _, e := range result.Schedule[groupID] {
		if e.Source != models.SourceCombo {
			continue
		}
		byRoom[e.TimeSlot.Key()] = append(byRoom[e.TimeSlot.Key()], e.ClassroomID)
	}
	require.Len(t, byRoom, 3)
	for key, rooms := range byRoom {
		require.Len(t, rooms, 2, key.String())
		assert.NotEqual(t, rooms[0], rooms[1], "combo halves need separate rooms")
	}
}

func TestGenerateSpreadsSessionsAcrossWeeks(t *testing.T) {
	result := generate(t, basicCatalog(), aprilOptions(), nil, nil)

	perWeek := make(map[int]int)
	for _, e := range result.Schedule[groupID] {
		if e.SubjectID == "s1" {
			perWeek[e.TimeSlot.Week]++
		}
	}
	assert.Equal(t, map[int]int{1: 2, 2: 2, 3: 2}, perWeek)
}

func TestGenerateIsDeterministic(t *testing.T) {
	first := generate(t, basicCatalog(), aprilOptions(), nil, nil)
	second := generate(t, basicCatalog(), aprilOptions(), nil, nil)
	assert.Equal(t, first.Schedule, second.Schedule)
	assert.Equal(t, first.Report, second.Report)
}

func TestGenerateExcludesStatutoryHolidays(t *testing.T) {
	opts := models.GenerationOptions{StartDate: "2025-11-01", EndDate: "2025-11-30"}
	result := generate(t, basicCatalog(), opts, nil, nil)

	assert.Contains(t, result.Holidays, "2025-11-03")
	assert.Contains(t, result.Holidays, "2025-11-24")
	for _, e := range result.Schedule[groupID] {
		assert.NotEqual(t, "2025-11-03", e.TimeSlot.Date)
		assert.NotEqual(t, "2025-11-24", e.TimeSlot.Date)
		assert.LessOrEqual(t, e.TimeSlot.Date, "2025-11-30")
	}
}

func labCatalog() models.Catalog {
	catalog := basicCatalog()
	catalog.Teachers = append(catalog.Teachers, teacher("t5"))
	catalog.Subjects = append(catalog.Subjects, subject("lab", "t5", 3))
	return catalog
}

func labRules() *RuleBook {
	return NewRuleBook(models.RuleTable{Rules: []models.Rule{{
		ID: "lab-wed", Kind: models.RuleFixedSchedule, TeacherID: "t5",
		Fixed: &models.FixedScheduleSpec{
			Groups:      []string{groupID},
			Subject:     "lab",
			Recurrences: []models.RecurrenceSpec{{Weekday: models.Wednesday, Periods: []models.Period{3}}},
		},
	}}})
}

func TestGeneratePlacesFixedScheduleFirst(t *testing.T) {
	result := generate(t, labCatalog(), aprilOptions(), labRules(), nil)

	var labs []models.ScheduleEntry
	for _, e := range result.Schedule[groupID] {
		if e.SubjectID == "lab" {
			labs = append(labs, e)
		}
	}
	require.Len(t, labs, 3)
	for i, e := range labs {
		assert.Equal(t, models.SourceFixed, e.Source)
		assert.Equal(t, i+1, e.TimeSlot.Week)
		assert.Equal(t, models.Wednesday, e.TimeSlot.Weekday)
		assert.Equal(t, models.Period(3), e.TimeSlot.Period)
	}
	assert.Equal(t, "t5", result.Ranking[0].Teacher.ID)
	assert.True(t, result.Report.Complete)
}

func TestGenerateSkipsFixedPlacementOnHoliday(t *testing.T) {
	opts := aprilOptions()
	opts.Holidays = []string{"2025-04-16"}
	recorder := &Recorder{}
	result := generate(t, labCatalog(), opts, labRules(), recorder)

	fixed := 0
	for _, e := range result.Schedule[groupID] {
		assert.NotEqual(t, "2025-04-16", e.TimeSlot.Date)
		if e.SubjectID == "lab" && e.Source == models.SourceFixed {
			fixed++
		}
	}
	assert.Equal(t, 2, fixed)

	skipped := recorder.Events(EventSkipped)
	require.NotEmpty(t, skipped)
	assert.Equal(t, "fixed", skipped[0].Phase)
	assert.Equal(t, "2025-04-16", skipped[0].Date)
}

func TestGeneratePairedSessions(t *testing.T) {
	m := subject("drafting-m", "kinoshita", 3)
	e := subject("drafting-e", "kinoshita", 3)
	e.Department = "電気"
	catalog := models.Catalog{
		Teachers:   []models.Teacher{teacher("kinoshita")},
		Subjects:   []models.Subject{m, e},
		Classrooms: rooms("r1", "r2"),
	}
	rules := NewRuleBook(models.RuleTable{Rules: []models.Rule{{
		ID: "pair", Kind: models.RulePairedSessions, TeacherID: "kinoshita",
		Pair: &models.PairedSessionSpec{
			First:      models.SessionTarget{Group: "機械-1年", Subject: "drafting-m"},
			Second:     models.SessionTarget{Group: "電気-1年", Subject: "drafting-e"},
			Candidates: []models.PairCandidate{{Weekday: models.Thursday, First: 1, Second: 2}},
		},
	}}})

	result := generate(t, catalog, aprilOptions(), rules, nil)

	require.Len(t, result.Schedule["機械-1年"], 3)
	require.Len(t, result.Schedule["電気-1年"], 3)
	for i := 0; i < 3; i++ {
		first, second := result.Schedule["機械-1年"][i], result.Schedule["電気-1年"][i]
		assert.Equal(t, models.SourcePair, first.Source)
		assert.Equal(t, models.Thursday, first.TimeSlot.Weekday)
		assert.Equal(t, models.Period(1), first.TimeSlot.Period)
		assert.Equal(t, models.Period(2), second.TimeSlot.Period)
		assert.Equal(t, first.TimeSlot.Week, second.TimeSlot.Week)
	}
}

func TestGenerateBlockSessions(t *testing.T) {
	catalog := models.Catalog{
		Teachers:   []models.Teacher{teacher("tanaka")},
		Subjects:   []models.Subject{subject("workshop", "tanaka", 4)},
		Classrooms: rooms("r1"),
	}
	rules := NewRuleBook(models.RuleTable{Rules: []models.Rule{{
		ID: "block", Kind: models.RuleBlockSession, TeacherID: "tanaka",
		Block: &models.BlockSessionSpec{
			Groups: []string{groupID}, Subject: "workshop", Size: 2, Days: []models.Weekday{models.Tuesday},
		},
	}}})

	result := generate(t, catalog, aprilOptions(), rules, nil)

	entries := result.Schedule[groupID]
	require.Len(t, entries, 4)
	for i, e := range entries {
		assert.Equal(t, models.SourceBlock, e.Source)
		assert.Equal(t, models.Tuesday, e.TimeSlot.Weekday)
		assert.Equal(t, i/2+1, e.TimeSlot.Week)
		assert.Equal(t, models.Period(i%2+1), e.TimeSlot.Period)
	}
}

func TestGenerateJointSubjectSharesOneSession(t *testing.T) {
	assembly := subject("assembly", "t1", 2)
	assembly.Department = models.AllDepartments
	assembly.LessonType = models.LessonJoint
	other := subject("circuits", "t2", 1)
	other.Department = "電気"
	catalog := models.Catalog{
		Teachers:   []models.Teacher{teacher("t1"), teacher("t2")},
		Subjects:   []models.Subject{assembly, subject("s1", "t2", 1), other},
		Classrooms: rooms("small", "large"),
	}

	result := generate(t, catalog, aprilOptions(), nil, nil)

	sessions := make(map[string][]string)
	for _, g := range result.Schedule.Groups() {
		for _, e := range result.Schedule[g] {
			if e.SubjectID == "assembly" {
				assert.Equal(t, models.SourceJoint, e.Source)
				assert.Equal(t, "large", e.ClassroomID)
				sessions[e.SessionKey] = append(sessions[e.SessionKey], g)
			}
		}
	}
	require.Len(t, sessions, 2)
	for _, groups := range sessions {
		assert.ElementsMatch(t, []string{"機械-1年", "電気-1年"}, groups)
	}
	assert.Empty(t, result.Report.Conflicts)
}

func TestGenerateReportsShortfall(t *testing.T) {
	catalog := models.Catalog{
		Teachers: []models.Teacher{teacher("busy", func(c *models.TeacherConstraints) {
			c.AvailableDays = []models.Weekday{models.Friday}
			c.RequiredPeriods = []models.Period{1}
		})},
		Subjects:   []models.Subject{subject("rare", "busy", 5)},
		Classrooms: rooms("r1"),
	}
	recorder := &Recorder{}
	result := generate(t, catalog, aprilOptions(), nil, recorder)

	assert.False(t, result.Report.Complete)
	require.Len(t, result.Report.Subjects, 1)
	progress := result.Report.Subjects[0]
	assert.Equal(t, 3, progress.Placed)
	require.NotNil(t, progress.Failure)
	assert.Equal(t, 2, progress.Failure.UnplacedCount)
	assert.NotEmpty(t, recorder.Events(EventShortfall))

	subjects := result.Report.ApplyFailures(catalog.Subjects)
	require.Len(t, subjects[0].PlacementFailures, 1)
	assert.Equal(t, 5, subjects[0].PlacementFailures[0].TotalCount)
}

func TestGenerateTracesUnknownReferences(t *testing.T) {
	catalog := basicCatalog()
	catalog.Subjects = append(catalog.Subjects, subject("orphan", "ghost", 1))
	recorder := &Recorder{}
	generate(t, catalog, aprilOptions(), nil, recorder)

	configErrors := recorder.Events(EventConfig)
	require.NotEmpty(t, configErrors)
	assert.Equal(t, "orphan", configErrors[0].SubjectID)
}

func TestGenerateHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewAllocator().Generate(ctx, basicCatalog(), aprilOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateRejectsBadDates(t *testing.T) {
	_, err := NewAllocator().Generate(context.Background(), basicCatalog(), models.GenerationOptions{StartDate: "soon", EndDate: "later"})
	assert.Error(t, err)
}
