package dto

import (
	"time"

	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/internal/scheduler"
	"github.com/noah-isme/college-timetable-api/pkg/holiday"
)

// GenerateTimetableRequest asks for a timetable over one semester. The catalog
// is either inlined or referenced by a stored catalog id.
type GenerateTimetableRequest struct {
	Semester  string                   `json:"semester" validate:"required,max=64"`
	CatalogID string                   `json:"catalogId" validate:"required_without=Catalog"`
	Catalog   *models.Catalog          `json:"catalog,omitempty" validate:"omitempty"`
	Options   models.GenerationOptions `json:"options"`
}

// TimetableProposal is an unsaved generation result held for a limited time.
type TimetableProposal struct {
	ProposalID string                 `json:"proposalId"`
	Semester   string                 `json:"semester"`
	Schedule   models.Schedule        `json:"schedule"`
	Report     scheduler.Report       `json:"report"`
	Makeup     []scheduler.MakeupPlan `json:"makeup,omitempty"`
	Ranking    []RankedTeacherSummary `json:"ranking,omitempty"`
	Holidays   []string               `json:"holidays"`
	ExpiresAt  time.Time              `json:"expiresAt"`
}

// RankedTeacherSummary is the list view of a ranked teacher.
type RankedTeacherSummary struct {
	TeacherID  string `json:"teacherId"`
	Name       string `json:"name"`
	Priority   int    `json:"priority"`
	FixedCount int    `json:"fixedCount"`
}

// SaveProposalRequest persists a previewed proposal.
type SaveProposalRequest struct {
	ProposalID string `json:"proposalId" validate:"required,uuid"`
}

// GenerationJobResponse reports asynchronous generation progress.
type GenerationJobResponse struct {
	ID          string                  `json:"id"`
	Semester    string                  `json:"semester"`
	Status      models.GenerationStatus `json:"status"`
	TimetableID *string                 `json:"timetableId,omitempty"`
	Error       *string                 `json:"error,omitempty"`
	CreatedAt   time.Time               `json:"createdAt"`
	FinishedAt  *time.Time              `json:"finishedAt,omitempty"`
}

// TimetableQuery filters timetable listings.
type TimetableQuery struct {
	Semester string `form:"semester" json:"semester"`
}

// TimetableResponse is a stored timetable with decoded entries.
type TimetableResponse struct {
	ID         string                   `json:"id"`
	Semester   string                   `json:"semester"`
	Version    int                      `json:"version"`
	Status     models.TimetableStatus   `json:"status"`
	Completion float64                  `json:"completion"`
	Options    models.GenerationOptions `json:"options"`
	Schedule   models.Schedule          `json:"schedule"`
	Report     *scheduler.Report        `json:"report,omitempty"`
	CreatedAt  time.Time                `json:"createdAt"`
	UpdatedAt  time.Time                `json:"updatedAt"`
}

// MoveEntryRequest drags one entry to another slot.
type MoveEntryRequest struct {
	EntryID string               `json:"entryId" validate:"required"`
	Target  scheduler.MoveTarget `json:"target"`
}

// MoveEntryResponse carries the verdict and, for applied moves, the new version stamp.
type MoveEntryResponse struct {
	scheduler.MoveResult
	Applied   bool       `json:"applied"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// AuditResponse lists consistency findings for a stored timetable.
type AuditResponse struct {
	Combos    scheduler.ComboCheck `json:"combos"`
	Conflicts []scheduler.Conflict `json:"conflicts"`
}

// UpsertCatalogRequest stores a named catalog.
type UpsertCatalogRequest struct {
	Name    string         `json:"name" validate:"required,max=128"`
	Catalog models.Catalog `json:"catalog"`
}

// CatalogSummary describes a stored catalog.
type CatalogSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Teachers   int       `json:"teachers,omitempty"`
	Subjects   int       `json:"subjects,omitempty"`
	Classrooms int       `json:"classrooms,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
	Warnings   []string  `json:"warnings,omitempty"`
}

// HolidayQuery selects a date range.
type HolidayQuery struct {
	Start string `form:"start"`
	End   string `form:"end"`
}

// HolidayResponse lists non-teaching days in a range.
type HolidayResponse struct {
	Start    string            `json:"start"`
	End      string            `json:"end"`
	Holidays []holiday.Holiday `json:"holidays"`
}
