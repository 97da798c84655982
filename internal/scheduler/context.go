package scheduler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/pkg/holiday"
)

// DefaultMaxPerWeek caps sessions of one subject per group per week.
const DefaultMaxPerWeek = 2

type session struct {
	key       models.SlotKey
	subjectID string
	teacherID string
	roomID    string
	groups    []string
}

// AllocationContext is the mutable state of one generation run. Phases read
// and extend it; it is never shared between runs.
type AllocationContext struct {
	Semester Semester
	Options  models.GenerationOptions
	Rules    *RuleBook
	Tracer   Tracer
	Schedule models.Schedule

	teachers   map[string]models.Teacher
	subjects   map[string]models.Subject
	ordered    []models.Subject
	rooms      []models.Classroom
	roomByID   map[string]models.Classroom
	groups     []models.StudentGroup
	groupByID  map[string]models.StudentGroup
	ranked     []RankedTeacher
	fixed      []FixedPlacement
	holidays   map[string]struct{}
	blackouts  []models.DateRange
	requests   map[string][]models.ScheduleRequest
	maxPerWeek int

	sessions          map[string]*session
	teacherSchedule   map[string]map[models.SlotKey]string
	classroomSchedule map[string]map[models.SlotKey]string
	usedSlots         map[string]map[models.SlotKey]int
	failures          map[string][]string
}

// NewAllocationContext prepares an empty schedule for the catalog. It fails
// only when the options carry unusable dates.
func NewAllocationContext(catalog models.Catalog, opts models.GenerationOptions, rules *RuleBook, tracer Tracer) (*AllocationContext, error) {
	sem, err := NewSemester(opts.StartDate, opts.EndDate)
	if err != nil {
		return nil, err
	}
	if tracer == nil {
		tracer = nopTracer{}
	}

	c := &AllocationContext{
		Semester:          sem,
		Options:           opts,
		Rules:             rules,
		Tracer:            tracer,
		Schedule:          make(models.Schedule),
		teachers:          make(map[string]models.Teacher, len(catalog.Teachers)),
		subjects:          make(map[string]models.Subject, len(catalog.Subjects)),
		rooms:             catalog.Classrooms,
		roomByID:          make(map[string]models.Classroom, len(catalog.Classrooms)),
		groupByID:         make(map[string]models.StudentGroup),
		holidays:          make(map[string]struct{}),
		requests:          make(map[string][]models.ScheduleRequest),
		maxPerWeek:        opts.MaxPerWeek,
		sessions:          make(map[string]*session),
		teacherSchedule:   make(map[string]map[models.SlotKey]string),
		classroomSchedule: make(map[string]map[models.SlotKey]string),
		usedSlots:         make(map[string]map[models.SlotKey]int),
		failures:          make(map[string][]string),
	}
	if c.maxPerWeek <= 0 {
		c.maxPerWeek = DefaultMaxPerWeek
	}
	for _, t := range catalog.Teachers {
		c.teachers[t.ID] = t
	}
	for _, s := range catalog.Subjects {
		c.subjects[s.ID] = s
	}
	for _, r := range catalog.Classrooms {
		c.roomByID[r.ID] = r
	}

	for _, d := range opts.Holidays {
		c.holidays[d] = struct{}{}
	}
	for _, d := range holiday.InRange(opts.StartDate, opts.EndDate) {
		c.holidays[d] = struct{}{}
	}
	c.blackouts = append(append([]models.DateRange(nil), opts.Blackouts...), rules.Blackouts(sem)...)
	for _, r := range opts.ScheduleRequests {
		c.requests[r.Date] = append(c.requests[r.Date], r)
	}

	c.groups = resolveGroups(catalog, opts)
	for _, g := range c.groups {
		c.groupByID[g.ID] = g
		c.Schedule[g.ID] = []models.ScheduleEntry{}
	}

	c.ranked = Rank(catalog.Teachers, rules, sem)
	priority := make(map[string]int, len(c.ranked))
	for _, rt := range c.ranked {
		priority[rt.Teacher.ID] = rt.Priority
		c.fixed = append(c.fixed, rt.FixedSchedule...)
	}
	c.ordered = orderSubjects(catalog.Subjects, priority)
	c.checkReferences(catalog)
	return c, nil
}

func resolveGroups(catalog models.Catalog, opts models.GenerationOptions) []models.StudentGroup {
	if len(opts.Groups) > 0 {
		out := make([]models.StudentGroup, 0, len(opts.Groups))
		for _, g := range opts.Groups {
			if g.ID == "" {
				g.ID = models.GroupID(g.Department, g.Grade)
			}
			out = append(out, g)
		}
		return out
	}

	departments := opts.Departments
	if len(departments) == 0 {
		departments = catalog.Departments()
	}
	grades := catalog.Grades()
	if len(grades) == 0 {
		grades = []string{models.AllGrades}
	}
	var out []models.StudentGroup
	for _, d := range departments {
		for _, g := range grades {
			out = append(out, models.NewStudentGroup(d, g))
		}
	}
	return out
}

// orderSubjects sorts by the highest priority among each subject's teachers.
func orderSubjects(subjects []models.Subject, priority map[string]int) []models.Subject {
	out := append([]models.Subject(nil), subjects...)
	best := func(s models.Subject) int {
		max := 0
		for _, id := range s.TeacherIDs {
			if p := priority[id]; p > max {
				max = p
			}
		}
		return max
	}
	sort.SliceStable(out, func(i, j int) bool {
		return best(out[i]) > best(out[j])
	})
	return out
}

func (c *AllocationContext) checkReferences(catalog models.Catalog) {
	for _, s := range catalog.Subjects {
		for _, id := range s.TeacherIDs {
			if _, ok := c.teachers[id]; !ok {
				c.configError(s.ID, fmt.Sprintf("unknown teacher %s", id))
			}
		}
		for _, id := range s.AvailableClassroomIDs {
			if _, ok := c.roomByID[id]; !ok {
				c.configError(s.ID, fmt.Sprintf("unknown classroom %s", id))
			}
		}
		if s.IsCombo() {
			if _, ok := c.subjects[s.ComboSubjectID]; !ok {
				c.configError(s.ID, fmt.Sprintf("unknown combo partner %s", s.ComboSubjectID))
			}
		}
	}
	if len(catalog.Classrooms) == 0 {
		c.configError("", "catalog has no classrooms")
	}
}

func (c *AllocationContext) configError(subjectID, reason string) {
	c.Tracer.Trace(Event{Phase: "setup", Kind: EventConfig, SubjectID: subjectID, Reason: reason})
}

// Groups returns the student groups being scheduled.
func (c *AllocationContext) Groups() []models.StudentGroup { return c.groups }

// Subjects returns subjects in placement order.
func (c *AllocationContext) Subjects() []models.Subject { return c.ordered }

// Ranked returns teachers in priority order.
func (c *AllocationContext) Ranked() []RankedTeacher { return c.ranked }

// Fixed returns every expanded fixed placement.
func (c *AllocationContext) Fixed() []FixedPlacement { return c.fixed }

// Teacher looks up a teacher by id.
func (c *AllocationContext) Teacher(id string) (models.Teacher, bool) {
	t, ok := c.teachers[id]
	return t, ok
}

// Subject looks up a subject by id.
func (c *AllocationContext) Subject(id string) (models.Subject, bool) {
	s, ok := c.subjects[id]
	return s, ok
}

// Group looks up a student group by id.
func (c *AllocationContext) Group(id string) (models.StudentGroup, bool) {
	g, ok := c.groupByID[id]
	return g, ok
}

// Cohort returns the groups a subject is taught to.
func (c *AllocationContext) Cohort(s models.Subject) []string {
	var out []string
	for _, g := range c.groups {
		if s.AppliesTo(g) {
			out = append(out, g.ID)
		}
	}
	return out
}

// HolidayDates returns the resolved holiday set sorted.
func (c *AllocationContext) HolidayDates() []string {
	out := make([]string, 0, len(c.holidays))
	for d := range c.holidays {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Closed reports why a slot cannot hold any lesson. Calendar checks come
// before any teacher or room lookup.
func (c *AllocationContext) Closed(key models.SlotKey) (string, bool) {
	if !c.Semester.ValidKey(key) {
		return fmt.Sprintf("slot %s is outside the semester grid", key), true
	}
	t := c.Semester.Date(key.Week, key.Weekday)
	date := t.Format(holiday.DateLayout)
	if !c.Semester.Contains(t) {
		return fmt.Sprintf("%s is outside the semester", date), true
	}
	if _, ok := c.holidays[date]; ok {
		return fmt.Sprintf("%s is a holiday", date), true
	}
	for _, b := range c.blackouts {
		if b.Contains(date) {
			return fmt.Sprintf("%s is blacked out", date), true
		}
	}
	for _, r := range c.requests[date] {
		if r.Blocks(key.Period) {
			return fmt.Sprintf("%s %s is blocked by a schedule request", date, key.Period.Label()), true
		}
	}
	return "", false
}

// GroupFree reports whether the group has nothing at the slot.
func (c *AllocationContext) GroupFree(groupID string, key models.SlotKey) bool {
	return c.usedSlots[groupID][key] == 0
}

// TeacherFree reports whether the teacher has no session at the slot.
func (c *AllocationContext) TeacherFree(teacherID string, key models.SlotKey) bool {
	_, busy := c.teacherSchedule[teacherID][key]
	return !busy
}

// RoomFree reports whether the classroom is unused at the slot.
func (c *AllocationContext) RoomFree(roomID string, key models.SlotKey) bool {
	_, busy := c.classroomSchedule[roomID][key]
	return !busy
}

// FixedBlocks reports whether a fixed placement for any of the groups
// occupies the slot.
func (c *AllocationContext) FixedBlocks(groupIDs []string, key models.SlotKey) bool {
	return c.fixedAt(groupIDs, key, false)
}

// DayBlocked reports whether a period-less fixed placement reserves the whole
// date for any of the groups.
func (c *AllocationContext) DayBlocked(groupIDs []string, key models.SlotKey) bool {
	return c.fixedAt(groupIDs, key, true)
}

func (c *AllocationContext) fixedAt(groupIDs []string, key models.SlotKey, wholeDay bool) bool {
	date := c.Semester.DateString(key.Week, key.Weekday)
	for _, p := range c.fixed {
		if p.Date != date || (wholeDay && p.Period != 0) {
			continue
		}
		for _, g := range p.GroupIDs {
			if containsString(groupIDs, g) && ConflictsWithFixed([]FixedPlacement{p}, date, key.Period) {
				return true
			}
		}
	}
	return false
}

// teacherSessions returns the teacher's sessions matching the filter.
func (c *AllocationContext) teacherSessions(teacherID string, match func(*session) bool) []*session {
	var out []*session
	for _, id := range c.teacherSchedule[teacherID] {
		if s := c.sessions[id]; s != nil && match(s) {
			out = append(out, s)
		}
	}
	return out
}

// Available runs the full availability check for a teacher at a slot:
// constraint record, rule table, caps, sequences and consecutive periods.
func (c *AllocationContext) Available(t models.Teacher, subjectID string, key models.SlotKey) *Violation {
	date := c.Semester.DateString(key.Week, key.Weekday)
	if v := TeacherAvailable(t, key, date); v != nil {
		return v
	}
	if v := c.RuleViolation(t, subjectID, key); v != nil {
		return v
	}
	if v := c.CapViolation(t, key); v != nil {
		return v
	}
	if v := c.SequenceViolation(t, subjectID, key); v != nil {
		return v
	}
	return c.ConsecutiveViolation(t, key)
}

// RuleViolation applies rule table restrictions with current weekly counts.
func (c *AllocationContext) RuleViolation(t models.Teacher, subjectID string, key models.SlotKey) *Violation {
	return RuleAllowed(c.Rules, t, subjectID, key, func(subjects []string) int {
		return len(c.teacherSessions(t.ID, func(s *session) bool {
			return s.key.Week == key.Week && (len(subjects) == 0 || containsString(subjects, s.subjectID))
		}))
	})
}

// CapViolation enforces maxClassesPerWeek and maxClassesPerDay. Semester
// weeks start on Monday, so they coincide with ISO weeks.
func (c *AllocationContext) CapViolation(t models.Teacher, key models.SlotKey) *Violation {
	limits := t.Constraints
	if limits.MaxClassesPerWeek > 0 {
		n := len(c.teacherSessions(t.ID, func(s *session) bool { return s.key.Week == key.Week }))
		if n+1 > limits.MaxClassesPerWeek {
			return violation(CodeWeeklyCap, "%s already teaches %d of %d sessions in week %d", t.Name, n, limits.MaxClassesPerWeek, key.Week)
		}
	}
	if limits.MaxClassesPerDay > 0 {
		n := len(c.teacherSessions(t.ID, func(s *session) bool {
			return s.key.Week == key.Week && s.key.Weekday == key.Weekday
		}))
		if n+1 > limits.MaxClassesPerDay {
			return violation(CodeDailyCap, "%s already teaches %d of %d sessions on %s", t.Name, n, limits.MaxClassesPerDay, c.Semester.DateString(key.Week, key.Weekday))
		}
	}
	return nil
}

// SequenceViolation requires sequence subjects of a week on consecutive
// weekdays, one per day.
func (c *AllocationContext) SequenceViolation(t models.Teacher, subjectID string, key models.SlotKey) *Violation {
	seq := c.Rules.Sequence(t)
	if !containsString(seq, subjectID) {
		return nil
	}
	days := []int{key.Weekday.Index()}
	for _, s := range c.teacherSessions(t.ID, func(s *session) bool {
		return s.key.Week == key.Week && containsString(seq, s.subjectID)
	}) {
		days = append(days, s.key.Weekday.Index())
	}
	sort.Ints(days)
	for i := 1; i < len(days); i++ {
		if days[i]-days[i-1] != 1 {
			return violation(CodeSequenceViolation, "%s must teach %v on consecutive days", t.Name, seq)
		}
	}
	return nil
}

// ConsecutiveViolation keeps a preferConsecutive teacher's periods on one
// date contiguous.
func (c *AllocationContext) ConsecutiveViolation(t models.Teacher, key models.SlotKey) *Violation {
	if !t.Constraints.Wish.PreferConsecutive {
		return nil
	}
	periods := []int{int(key.Period)}
	for _, s := range c.teacherSessions(t.ID, func(s *session) bool {
		return s.key.Week == key.Week && s.key.Weekday == key.Weekday
	}) {
		periods = append(periods, int(s.key.Period))
	}
	sort.Ints(periods)
	for i := 1; i < len(periods); i++ {
		if periods[i]-periods[i-1] != 1 {
			return violation(CodeConsecutiveViolation, "%s must teach consecutive periods on %s", t.Name, c.Semester.DateString(key.Week, key.Weekday))
		}
	}
	return nil
}

// Placement describes one session to insert.
type Placement struct {
	Phase       string
	Groups      []string
	SubjectID   string
	TeacherID   string
	RoomID      string
	Key         models.SlotKey
	Source      models.EntrySource
	ComboPairID string
}

// Place inserts one entry per group and reserves teacher and room once.
func (c *AllocationContext) Place(p Placement) []models.ScheduleEntry {
	sessionKey := fmt.Sprintf("%s@%s@%s", p.SubjectID, p.TeacherID, p.Key)
	slot := c.Semester.Slot(p.Key)
	entries := make([]models.ScheduleEntry, 0, len(p.Groups))
	for _, g := range p.Groups {
		e := models.ScheduleEntry{
			ID:          models.EntryID(g, p.SubjectID, p.Key),
			GroupID:     g,
			TimeSlot:    slot,
			SubjectID:   p.SubjectID,
			TeacherID:   p.TeacherID,
			ClassroomID: p.RoomID,
			SessionKey:  sessionKey,
			ComboPairID: p.ComboPairID,
			Source:      p.Source,
		}
		c.Schedule[g] = append(c.Schedule[g], e)
		entries = append(entries, e)
	}
	c.reserve(sessionKey, p.Key, p.SubjectID, p.TeacherID, p.RoomID, p.Groups)

	c.Tracer.Trace(Event{
		Phase:     p.Phase,
		Kind:      EventPlaced,
		GroupID:   joinGroups(p.Groups),
		SubjectID: p.SubjectID,
		TeacherID: p.TeacherID,
		RoomID:    p.RoomID,
		Slot:      p.Key,
		Date:      slot.Date,
	})
	return entries
}

func (c *AllocationContext) reserve(sessionKey string, key models.SlotKey, subjectID, teacherID, roomID string, groups []string) {
	if s, ok := c.sessions[sessionKey]; ok {
		s.groups = append(s.groups, groups...)
	} else {
		c.sessions[sessionKey] = &session{
			key:       key,
			subjectID: subjectID,
			teacherID: teacherID,
			roomID:    roomID,
			groups:    append([]string(nil), groups...),
		}
	}
	if teacherID != "" {
		if c.teacherSchedule[teacherID] == nil {
			c.teacherSchedule[teacherID] = make(map[models.SlotKey]string)
		}
		c.teacherSchedule[teacherID][key] = sessionKey
	}
	if roomID != "" {
		if c.classroomSchedule[roomID] == nil {
			c.classroomSchedule[roomID] = make(map[models.SlotKey]string)
		}
		c.classroomSchedule[roomID][key] = sessionKey
	}
	for _, g := range groups {
		if c.usedSlots[g] == nil {
			c.usedSlots[g] = make(map[models.SlotKey]int)
		}
		c.usedSlots[g][key]++
	}
}

// Remove drops every entry of a session and releases its reservations. The
// removal is traced so the event stream matches the final schedule.
func (c *AllocationContext) Remove(phase, sessionKey, reason string) {
	s, ok := c.sessions[sessionKey]
	if !ok {
		return
	}
	delete(c.sessions, sessionKey)
	c.Tracer.Trace(Event{
		Phase:     phase,
		Kind:      EventRemoved,
		GroupID:   joinGroups(s.groups),
		SubjectID: s.subjectID,
		TeacherID: s.teacherID,
		RoomID:    s.roomID,
		Slot:      s.key,
		Date:      c.Semester.DateString(s.key.Week, s.key.Weekday),
		Reason:    reason,
	})
	if c.teacherSchedule[s.teacherID][s.key] == sessionKey {
		delete(c.teacherSchedule[s.teacherID], s.key)
	}
	if c.classroomSchedule[s.roomID][s.key] == sessionKey {
		delete(c.classroomSchedule[s.roomID], s.key)
	}
	for _, g := range s.groups {
		kept := c.Schedule[g][:0]
		for _, e := range c.Schedule[g] {
			if e.Session() == sessionKey {
				c.usedSlots[g][s.key]--
				continue
			}
			kept = append(kept, e)
		}
		c.Schedule[g] = kept
	}
}

// Load reserves existing entries, skipping those the filter rejects.
func (c *AllocationContext) Load(schedule models.Schedule, skip func(models.ScheduleEntry) bool) {
	for _, g := range schedule.Groups() {
		if _, ok := c.Schedule[g]; !ok {
			c.Schedule[g] = []models.ScheduleEntry{}
		}
		for _, e := range schedule[g] {
			if skip != nil && skip(e) {
				continue
			}
			c.Schedule[g] = append(c.Schedule[g], e)
			c.reserve(e.Session(), e.TimeSlot.Key(), e.SubjectID, e.TeacherID, e.ClassroomID, []string{g})
		}
	}
}

// Placed counts sessions of a subject already given to a group.
func (c *AllocationContext) Placed(groupID, subjectID string) int {
	n := 0
	for _, e := range c.Schedule[groupID] {
		if e.SubjectID == subjectID {
			n++
		}
	}
	return n
}

// PlacedInWeek counts a group's sessions of a subject in one week.
func (c *AllocationContext) PlacedInWeek(groupID, subjectID string, week int) int {
	n := 0
	for _, e := range c.Schedule[groupID] {
		if e.SubjectID == subjectID && e.TimeSlot.Week == week {
			n++
		}
	}
	return n
}

func (c *AllocationContext) placedOnDay(groupID, subjectID string, week int, day models.Weekday) bool {
	for _, e := range c.Schedule[groupID] {
		if e.SubjectID == subjectID && e.TimeSlot.Week == week && e.TimeSlot.Weekday == day {
			return true
		}
	}
	return false
}

// MaxPerWeek returns the weekly cap per subject and group.
func (c *AllocationContext) MaxPerWeek() int { return c.maxPerWeek }

func (c *AllocationContext) recordFailure(groupID, subjectID, detail string) {
	k := ownedKey(groupID, subjectID)
	c.failures[k] = append(c.failures[k], detail)
}

// Failures returns recorded shortfall details for a group and subject.
func (c *AllocationContext) Failures(groupID, subjectID string) []string {
	return c.failures[ownedKey(groupID, subjectID)]
}

func joinGroups(groups []string) string {
	return strings.Join(groups, ",")
}
