package scheduler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/pkg/holiday"
)

// RuleBook indexes a rule table by teacher and kind. A nil RuleBook behaves
// as an empty table.
type RuleBook struct {
	table     models.RuleTable
	byTeacher map[string][]models.Rule
	byKind    map[models.RuleKind][]models.Rule
}

// NewRuleBook indexes the table without validating it.
func NewRuleBook(table models.RuleTable) *RuleBook {
	b := &RuleBook{
		table:     table,
		byTeacher: make(map[string][]models.Rule),
		byKind:    make(map[models.RuleKind][]models.Rule),
	}
	for _, r := range table.Rules {
		if r.TeacherID != "" {
			b.byTeacher[r.TeacherID] = append(b.byTeacher[r.TeacherID], r)
		}
		b.byKind[r.Kind] = append(b.byKind[r.Kind], r)
	}
	return b
}

// LoadRules reads and validates a YAML rule table.
func LoadRules(path string) (*RuleBook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rule table.
func ParseRules(data []byte) (*RuleBook, error) {
	var table models.RuleTable
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&table); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if err := ValidateRules(table); err != nil {
		return nil, err
	}
	return NewRuleBook(table), nil
}

var ruleValidator = validator.New()

// ValidateRules checks struct tags plus the per-kind requirements tags
// cannot express.
func ValidateRules(table models.RuleTable) error {
	if err := ruleValidator.Struct(table); err != nil {
		return fmt.Errorf("invalid rule table: %w", err)
	}

	seen := make(map[string]struct{}, len(table.Rules))
	var problems []string
	for _, r := range table.Rules {
		if _, dup := seen[r.ID]; dup {
			problems = append(problems, fmt.Sprintf("%s: duplicate id", r.ID))
		}
		seen[r.ID] = struct{}{}
		if err := validateRule(r); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", r.ID, err))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid rule table: %s", strings.Join(problems, "; "))
	}
	return nil
}

func validateRule(r models.Rule) error {
	needsTeacher := r.Kind != models.RuleBlackout
	if needsTeacher && r.TeacherID == "" {
		return errors.New("teacher is required")
	}
	for _, d := range r.Days {
		if !d.Valid() {
			return fmt.Errorf("invalid weekday %q", d)
		}
	}

	switch r.Kind {
	case models.RulePriorityBonus:
		if r.Bonus == 0 {
			return errors.New("bonus must be non-zero")
		}
	case models.RulePeriodOnly:
		if len(r.Periods) == 0 {
			return errors.New("periods are required")
		}
	case models.RuleWeekdayOnly:
		if len(r.Days) == 0 {
			return errors.New("days are required")
		}
	case models.RuleWeekdayCap:
		if len(r.Days) == 0 || r.WeeklyCap <= 0 {
			return errors.New("days and weeklyCap are required")
		}
	case models.RuleSequentialDays:
		if len(r.Subjects) < 2 {
			return errors.New("at least two subjects are required")
		}
	case models.RuleFixedSchedule:
		if r.Fixed == nil {
			return errors.New("fixed block is required")
		}
		return validateFixedSpec(*r.Fixed)
	case models.RulePairedSessions:
		if r.Pair == nil {
			return errors.New("pair block is required")
		}
		for _, c := range r.Pair.Candidates {
			if !c.Weekday.Valid() || c.First == c.Second {
				return fmt.Errorf("invalid pair candidate %s %d/%d", c.Weekday, c.First, c.Second)
			}
		}
	case models.RuleBlockSession:
		if r.Block == nil {
			return errors.New("block is required")
		}
		for _, d := range r.Block.Days {
			if !d.Valid() {
				return fmt.Errorf("invalid weekday %q", d)
			}
		}
	case models.RuleMakeup:
		if r.Makeup == nil {
			return errors.New("makeup block is required")
		}
		if r.Makeup.Weekday != "" && !r.Makeup.Weekday.Valid() {
			return fmt.Errorf("invalid weekday %q", r.Makeup.Weekday)
		}
	case models.RuleBlackout:
		if r.Blackout == nil {
			return errors.New("blackout block is required")
		}
		return validateBlackout(*r.Blackout)
	}
	return nil
}

func validateFixedSpec(spec models.FixedScheduleSpec) error {
	if len(spec.Recurrences) == 0 && len(spec.Placements) == 0 {
		return errors.New("recurrences or placements are required")
	}
	for _, rec := range spec.Recurrences {
		if rec.RRule != "" {
			if _, err := rrule.StrToRRule(rec.RRule); err != nil {
				return fmt.Errorf("invalid rrule %q: %w", rec.RRule, err)
			}
			continue
		}
		if !rec.Weekday.Valid() {
			return fmt.Errorf("recurrence needs a weekday or rrule")
		}
		if rec.ToWeek > 0 && rec.FromWeek > rec.ToWeek {
			return fmt.Errorf("fromWeek %d after toWeek %d", rec.FromWeek, rec.ToWeek)
		}
	}
	for _, p := range spec.Placements {
		if p.Date == "" && (p.Week == 0 || !p.Weekday.Valid()) {
			return errors.New("placement needs a date or week and weekday")
		}
	}
	return nil
}

func validateBlackout(spec models.BlackoutSpec) error {
	if spec.RRule != "" {
		if _, err := rrule.StrToRRule(spec.RRule); err != nil {
			return fmt.Errorf("invalid rrule %q: %w", spec.RRule, err)
		}
		return nil
	}
	if spec.From == "" {
		return errors.New("from or rrule is required")
	}
	if spec.To != "" && spec.To < spec.From {
		return fmt.Errorf("to %s before from %s", spec.To, spec.From)
	}
	return nil
}

// Table returns the underlying rule table.
func (b *RuleBook) Table() models.RuleTable {
	if b == nil {
		return models.RuleTable{}
	}
	return b.table
}

// Reviewable lists rules flagged as possibly one-off exceptions that should
// be re-checked before each semester.
func (b *RuleBook) Reviewable() []models.Rule {
	var out []models.Rule
	for _, r := range b.Table().Rules {
		if r.Reviewable {
			out = append(out, r)
		}
	}
	return out
}

// ForTeacher returns the teacher's rules, optionally restricted to kinds.
func (b *RuleBook) ForTeacher(teacherID string, kinds ...models.RuleKind) []models.Rule {
	if b == nil {
		return nil
	}
	rules := b.byTeacher[teacherID]
	if len(kinds) == 0 {
		return rules
	}
	var out []models.Rule
	for _, r := range rules {
		for _, k := range kinds {
			if r.Kind == k {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// OfKind returns every rule of a kind in table order.
func (b *RuleBook) OfKind(kind models.RuleKind) []models.Rule {
	if b == nil {
		return nil
	}
	return b.byKind[kind]
}

// Bonus sums the teacher's priority bonuses.
func (b *RuleBook) Bonus(teacherID string) int {
	total := 0
	for _, r := range b.ForTeacher(teacherID, models.RulePriorityBonus) {
		total += r.Bonus
	}
	return total
}

// Sequence returns the subjects a teacher must teach on consecutive weekdays.
// Rule table entries win over the constraint record.
func (b *RuleBook) Sequence(t models.Teacher) []string {
	if rules := b.ForTeacher(t.ID, models.RuleSequentialDays); len(rules) > 0 {
		return rules[0].Subjects
	}
	if seq := t.Constraints.Sequential; seq != nil && seq.MustBeConsecutiveDays {
		return seq.Subjects
	}
	return nil
}

// OwnedSessions lists group and subject pairs placed by pair and block rules.
func (b *RuleBook) OwnedSessions() map[string]struct{} {
	owned := make(map[string]struct{})
	for _, r := range b.OfKind(models.RulePairedSessions) {
		if r.Pair == nil {
			continue
		}
		owned[ownedKey(r.Pair.First.Group, r.Pair.First.Subject)] = struct{}{}
		owned[ownedKey(r.Pair.Second.Group, r.Pair.Second.Subject)] = struct{}{}
	}
	for _, r := range b.OfKind(models.RuleBlockSession) {
		if r.Block == nil {
			continue
		}
		for _, g := range r.Block.Groups {
			owned[ownedKey(g, r.Block.Subject)] = struct{}{}
		}
	}
	return owned
}

func ownedKey(groupID, subjectID string) string {
	return groupID + "|" + subjectID
}

// Blackouts expands blackout rules into date ranges within the semester grid.
func (b *RuleBook) Blackouts(sem Semester) []models.DateRange {
	var out []models.DateRange
	for _, r := range b.OfKind(models.RuleBlackout) {
		if r.Blackout == nil {
			continue
		}
		out = append(out, expandBlackout(*r.Blackout, sem)...)
	}
	return out
}

func expandBlackout(spec models.BlackoutSpec, sem Semester) []models.DateRange {
	if spec.RRule == "" {
		to := spec.To
		if to == "" {
			to = spec.From
		}
		return []models.DateRange{{From: spec.From, To: to}}
	}

	rule, err := anchoredRRule(spec.RRule, sem)
	if err != nil {
		return nil
	}
	span := spec.Days
	if span < 1 {
		span = 1
	}
	var out []models.DateRange
	for _, start := range rule.Between(sem.Monday, sem.LastDay(), true) {
		out = append(out, models.DateRange{
			From: start.Format(holiday.DateLayout),
			To:   start.AddDate(0, 0, span-1).Format(holiday.DateLayout),
		})
	}
	return out
}

// anchoredRRule parses an RRULE, anchoring it at the semester's first Monday
// when it carries no DTSTART of its own.
func anchoredRRule(raw string, sem Semester) (*rrule.RRule, error) {
	rule, err := rrule.StrToRRule(raw)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(strings.ToUpper(raw), "DTSTART") {
		rule.DTStart(sem.Monday)
	}
	return rule, nil
}
