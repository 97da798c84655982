package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// Phase is one pass of the allocation pipeline.
type Phase interface {
	Name() string
	Run(c *AllocationContext)
}

// DefaultPhases returns the pipeline in execution order.
func DefaultPhases() []Phase {
	return []Phase{FixedPhase{}, ComboPhase{}, PairPhase{}, LeftoverPhase{}}
}

// Result is the outcome of one generation.
type Result struct {
	Schedule models.Schedule `json:"schedule"`
	Report   Report          `json:"report"`
	Makeup   []MakeupPlan    `json:"makeup,omitempty"`
	Ranking  []RankedTeacher `json:"ranking,omitempty"`
	Holidays []string        `json:"holidays"`
}

// Allocator fills a semester timetable.
type Allocator struct {
	rules  *RuleBook
	tracer Tracer
	phases []Phase
	logger *zap.Logger
}

// Option customizes an Allocator.
type Option func(*Allocator)

// WithRules sets the rule table.
func WithRules(rules *RuleBook) Option {
	return func(a *Allocator) { a.rules = rules }
}

// WithTracer routes placement decisions to t.
func WithTracer(t Tracer) Option {
	return func(a *Allocator) { a.tracer = t }
}

// WithPhases replaces the default pipeline.
func WithPhases(phases ...Phase) Option {
	return func(a *Allocator) { a.phases = phases }
}

// WithLogger sets the logger used for run summaries.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Allocator) { a.logger = logger }
}

// NewAllocator builds an allocator with the default pipeline.
func NewAllocator(opts ...Option) *Allocator {
	a := &Allocator{phases: DefaultPhases(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	if a.tracer == nil {
		a.tracer = nopTracer{}
	}
	return a
}

// Rules returns the allocator's rule table.
func (a *Allocator) Rules() *RuleBook { return a.rules }

// Generate runs every phase over a fresh context. Shortfall is reported in
// the result, never returned as an error.
func (a *Allocator) Generate(ctx context.Context, catalog models.Catalog, opts models.GenerationOptions) (*Result, error) {
	started := time.Now()
	c, err := NewAllocationContext(catalog, opts, a.rules, a.tracer)
	if err != nil {
		return nil, err
	}

	for _, phase := range a.phases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		before := c.Schedule.Count()
		phase.Run(c)
		a.logger.Debug("allocation phase finished",
			zap.String("phase", phase.Name()),
			zap.Int("entries", c.Schedule.Count()-before),
		)
	}

	for g := range c.Schedule {
		models.SortEntries(c.Schedule[g])
	}
	report := BuildReport(c)

	result := &Result{
		Schedule: c.Schedule,
		Report:   report,
		Makeup:   PlanAllMakeup(a.rules, catalog.Teachers, c.Semester, c.holidays),
		Ranking:  c.Ranked(),
		Holidays: c.HolidayDates(),
	}
	a.logger.Info("timetable generated",
		zap.Int("entries", c.Schedule.Count()),
		zap.Int("groups", len(c.Schedule)),
		zap.Float64("completion", report.Completion),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}
