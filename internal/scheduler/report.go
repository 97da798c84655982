package scheduler

import (
	"sort"
	"strings"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// SubjectProgress is the placement outcome for one subject in one group.
type SubjectProgress struct {
	GroupID    string                   `json:"groupId"`
	SubjectID  string                   `json:"subjectId"`
	Name       string                   `json:"name"`
	Required   int                      `json:"required"`
	Placed     int                      `json:"placed"`
	Completion float64                  `json:"completion"`
	Failure    *models.PlacementFailure `json:"failure,omitempty"`
}

// GroupProgress aggregates a group's subjects.
type GroupProgress struct {
	GroupID    string  `json:"groupId"`
	Required   int     `json:"required"`
	Placed     int     `json:"placed"`
	Completion float64 `json:"completion"`
}

// Report summarizes how much of the demand was placed.
type Report struct {
	Subjects   []SubjectProgress `json:"subjects"`
	Groups     []GroupProgress   `json:"groups"`
	Required   int               `json:"required"`
	Placed     int               `json:"placed"`
	Completion float64           `json:"completion"`
	Complete   bool              `json:"complete"`
	Combos     ComboCheck        `json:"combos"`
	Conflicts  []Conflict        `json:"conflicts,omitempty"`
}

// BuildReport compares placed sessions with each subject's total.
func BuildReport(c *AllocationContext) Report {
	var report Report
	for _, g := range c.Groups() {
		gp := GroupProgress{GroupID: g.ID}
		for _, s := range c.Subjects() {
			if !s.AppliesTo(g) {
				continue
			}
			sp := SubjectProgress{
				GroupID:   g.ID,
				SubjectID: s.ID,
				Name:      s.Name,
				Required:  s.TotalClasses,
				Placed:    c.Placed(g.ID, s.ID),
			}
			sp.Completion = ratio(sp.Placed, sp.Required)
			if sp.Placed < sp.Required {
				sp.Failure = summarizeFailure(c.Failures(g.ID, s.ID), sp.Required-sp.Placed, sp.Required)
			}
			report.Subjects = append(report.Subjects, sp)
			gp.Required += sp.Required
			gp.Placed += minInt(sp.Placed, sp.Required)
		}
		gp.Completion = ratio(gp.Placed, gp.Required)
		report.Groups = append(report.Groups, gp)
		report.Required += gp.Required
		report.Placed += gp.Placed
	}
	report.Completion = ratio(report.Placed, report.Required)
	report.Complete = report.Placed >= report.Required

	report.Combos = CheckCombos(c.Schedule, c.Subjects())
	report.Conflicts = AuditConflicts(c.Schedule)
	return report
}

// ApplyFailures copies report failures onto the catalog subjects.
func (r Report) ApplyFailures(subjects []models.Subject) []models.Subject {
	out := make([]models.Subject, len(subjects))
	for i, s := range subjects {
		s.PlacementFailures = nil
		for _, sp := range r.Subjects {
			if sp.SubjectID == s.ID && sp.Failure != nil {
				f := *sp.Failure
				f.Details = append([]string{"group " + sp.GroupID}, f.Details...)
				s.PlacementFailures = append(s.PlacementFailures, f)
			}
		}
		out[i] = s
	}
	return out
}

func summarizeFailure(details []string, unplaced, total int) *models.PlacementFailure {
	counts := make(map[string]int)
	for _, d := range details {
		reason := d
		if i := strings.Index(d, ": "); i >= 0 {
			reason = d[i+2:]
		}
		counts[reason]++
	}
	reason := "no open slot within the weekly cap"
	best := 0
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if counts[k] > best {
			reason, best = k, counts[k]
		}
	}
	return &models.PlacementFailure{
		Reason:        reason,
		UnplacedCount: unplaced,
		TotalCount:    total,
		Details:       details,
	}
}

func ratio(placed, required int) float64 {
	if required == 0 {
		return 1
	}
	if placed > required {
		placed = required
	}
	return float64(placed) / float64(required)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
