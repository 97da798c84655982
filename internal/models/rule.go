package models

// RuleKind names a declarative scheduling override.
type RuleKind string

const (
	RulePriorityBonus  RuleKind = "priority_bonus"
	RuleFixedSchedule  RuleKind = "fixed_schedule"
	RulePeriodOnly     RuleKind = "period_only"
	RuleWeekdayOnly    RuleKind = "weekday_only"
	RuleWeekdayCap     RuleKind = "weekday_cap"
	RuleSequentialDays RuleKind = "sequential_days"
	RulePairedSessions RuleKind = "paired_sessions"
	RuleBlockSession   RuleKind = "block_session"
	RuleMakeup         RuleKind = "makeup"
	RuleBlackout       RuleKind = "blackout"
)

// RuleTable is the override layer consulted by the generator and validator.
type RuleTable struct {
	Rules []Rule `json:"rules" yaml:"rules" validate:"dive"`
}

// Rule is one override record. Which optional block is read depends on Kind.
type Rule struct {
	ID         string   `json:"id" yaml:"id" validate:"required"`
	Kind       RuleKind `json:"kind" yaml:"kind" validate:"required,oneof=priority_bonus fixed_schedule period_only weekday_only weekday_cap sequential_days paired_sessions block_session makeup blackout"`
	TeacherID  string   `json:"teacherId,omitempty" yaml:"teacher,omitempty"`
	Reviewable bool     `json:"reviewable,omitempty" yaml:"reviewable,omitempty"`
	Note       string   `json:"note,omitempty" yaml:"note,omitempty"`

	Bonus     int       `json:"bonus,omitempty" yaml:"bonus,omitempty"`
	Periods   []Period  `json:"periods,omitempty" yaml:"periods,omitempty" validate:"dive,min=1,max=4"`
	Days      []Weekday `json:"days,omitempty" yaml:"days,omitempty"`
	Subjects  []string  `json:"subjects,omitempty" yaml:"subjects,omitempty"`
	WeeklyCap int       `json:"weeklyCap,omitempty" yaml:"weeklyCap,omitempty" validate:"gte=0"`

	Fixed    *FixedScheduleSpec `json:"fixed,omitempty" yaml:"fixed,omitempty"`
	Pair     *PairedSessionSpec `json:"pair,omitempty" yaml:"pair,omitempty"`
	Block    *BlockSessionSpec  `json:"block,omitempty" yaml:"block,omitempty"`
	Makeup   *MakeupSpec        `json:"makeup,omitempty" yaml:"makeup,omitempty"`
	Blackout *BlackoutSpec      `json:"blackout,omitempty" yaml:"blackout,omitempty"`
}

// FixedScheduleSpec describes irregular fixed commitments to expand.
type FixedScheduleSpec struct {
	Groups      []string             `json:"groups" yaml:"groups" validate:"required,min=1"`
	Subject     string               `json:"subject,omitempty" yaml:"subject,omitempty"`
	Recurrences []RecurrenceSpec     `json:"recurrences,omitempty" yaml:"recurrences,omitempty" validate:"dive"`
	Placements  []FixedPlacementSpec `json:"placements,omitempty" yaml:"placements,omitempty" validate:"dive"`
	SkipDates   []string             `json:"skipDates,omitempty" yaml:"skipDates,omitempty" validate:"dive,datetime=2006-01-02"`
}

// RecurrenceSpec repeats a weekday pattern over a week range, or follows an
// RFC 5545 RRULE anchored at the semester start.
type RecurrenceSpec struct {
	Weekday   Weekday        `json:"weekday,omitempty" yaml:"weekday,omitempty"`
	Periods   []Period       `json:"periods" yaml:"periods" validate:"required,min=1,dive,min=1,max=4"`
	FromWeek  int            `json:"fromWeek,omitempty" yaml:"fromWeek,omitempty" validate:"gte=0"`
	ToWeek    int            `json:"toWeek,omitempty" yaml:"toWeek,omitempty" validate:"gte=0"`
	Interval  int            `json:"interval,omitempty" yaml:"interval,omitempty" validate:"gte=0"`
	SkipWeeks []int          `json:"skipWeeks,omitempty" yaml:"skipWeeks,omitempty"`
	Overrides []WeekOverride `json:"overrides,omitempty" yaml:"overrides,omitempty" validate:"dive"`
	Subject   string         `json:"subject,omitempty" yaml:"subject,omitempty"`
	RRule     string         `json:"rrule,omitempty" yaml:"rrule,omitempty"`
}

// WeekOverride replaces the recurring periods in one week.
type WeekOverride struct {
	Week    int      `json:"week" yaml:"week" validate:"required,gte=1"`
	Periods []Period `json:"periods" yaml:"periods" validate:"required,min=1"`
}

// FixedPlacementSpec is an explicit placement. Date wins over Week+Weekday.
// Without periods the placement blocks the whole day.
type FixedPlacementSpec struct {
	Week    int      `json:"week,omitempty" yaml:"week,omitempty" validate:"gte=0"`
	Weekday Weekday  `json:"weekday,omitempty" yaml:"weekday,omitempty"`
	Date    string   `json:"date,omitempty" yaml:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Periods []Period `json:"periods,omitempty" yaml:"periods,omitempty" validate:"dive,min=1,max=4"`
	Subject string   `json:"subject,omitempty" yaml:"subject,omitempty"`
}

// SessionTarget names a subject delivered to one group.
type SessionTarget struct {
	Group   string `json:"group" yaml:"group" validate:"required"`
	Subject string `json:"subject" yaml:"subject" validate:"required"`
}

// PairCandidate is a weekday with the two periods to try, first then second.
type PairCandidate struct {
	Weekday Weekday `json:"weekday" yaml:"weekday" validate:"required"`
	First   Period  `json:"first" yaml:"first" validate:"min=1,max=4"`
	Second  Period  `json:"second" yaml:"second" validate:"min=1,max=4"`
}

// PairedSessionSpec makes one teacher teach two cohorts back to back.
type PairedSessionSpec struct {
	First      SessionTarget   `json:"first" yaml:"first"`
	Second     SessionTarget   `json:"second" yaml:"second"`
	Candidates []PairCandidate `json:"candidates" yaml:"candidates" validate:"required,min=1,dive"`
	FromWeek   int             `json:"fromWeek,omitempty" yaml:"fromWeek,omitempty"`
	ToWeek     int             `json:"toWeek,omitempty" yaml:"toWeek,omitempty"`
	Weeks      []int           `json:"weeks,omitempty" yaml:"weeks,omitempty"`
}

// BlockSessionSpec places a contiguous block of periods per cohort per week.
type BlockSessionSpec struct {
	Groups   []string  `json:"groups" yaml:"groups" validate:"required,min=1"`
	Subject  string    `json:"subject" yaml:"subject" validate:"required"`
	Size     int       `json:"size" yaml:"size" validate:"min=2,max=3"`
	Days     []Weekday `json:"days,omitempty" yaml:"days,omitempty"`
	FromWeek int       `json:"fromWeek,omitempty" yaml:"fromWeek,omitempty"`
	ToWeek   int       `json:"toWeek,omitempty" yaml:"toWeek,omitempty"`
}

// MakeupSpec parameterizes the makeup planner for a shortened teacher.
type MakeupSpec struct {
	ShortfallMinutesPerWeek int         `json:"shortfallMinutesPerWeek" yaml:"shortfallMinutesPerWeek" validate:"required,gt=0"`
	Weeks                   int         `json:"weeks,omitempty" yaml:"weeks,omitempty"`
	Weekday                 Weekday     `json:"weekday,omitempty" yaml:"weekday,omitempty"`
	ExcludeDates            []string    `json:"excludeDates,omitempty" yaml:"excludeDates,omitempty"`
	ExcludeRanges           []DateRange `json:"excludeRanges,omitempty" yaml:"excludeRanges,omitempty" validate:"dive"`
	PrimaryPeriod           Period      `json:"primaryPeriod,omitempty" yaml:"primaryPeriod,omitempty"`
	PrimaryMinutes          int         `json:"primaryMinutes,omitempty" yaml:"primaryMinutes,omitempty"`
	PrimaryLead             int         `json:"primaryLead,omitempty" yaml:"primaryLead,omitempty"`
	LongPeriod              Period      `json:"longPeriod,omitempty" yaml:"longPeriod,omitempty"`
	LongMinutes             int         `json:"longMinutes,omitempty" yaml:"longMinutes,omitempty"`
}

// BlackoutSpec closes a date window, given directly or as an RRULE with a
// duration in days.
type BlackoutSpec struct {
	From   string `json:"from,omitempty" yaml:"from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	To     string `json:"to,omitempty" yaml:"to,omitempty" validate:"omitempty,datetime=2006-01-02"`
	RRule  string `json:"rrule,omitempty" yaml:"rrule,omitempty"`
	Days   int    `json:"days,omitempty" yaml:"days,omitempty" validate:"gte=0"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}
