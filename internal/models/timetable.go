package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// GenerationOptions parameterizes one generation run.
type GenerationOptions struct {
	StartDate        string            `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate          string            `json:"endDate" validate:"required,datetime=2006-01-02"`
	AvoidMonday      bool              `json:"avoidMonday,omitempty"`
	Departments      []string          `json:"departments,omitempty"`
	Groups           []StudentGroup    `json:"groups,omitempty"`
	Holidays         []string          `json:"holidays,omitempty" validate:"dive,datetime=2006-01-02"`
	ScheduleRequests []ScheduleRequest `json:"scheduleRequests,omitempty" validate:"dive"`
	Blackouts        []DateRange       `json:"blackouts,omitempty" validate:"dive"`
	MaxPerWeek       int               `json:"maxPerWeek,omitempty" validate:"gte=0"`
}

// Value marshals options to JSON for persistence.
func (o GenerationOptions) Value() (driver.Value, error) {
	data, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("marshal generation options: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the options struct.
func (o *GenerationOptions) Scan(value interface{}) error {
	if value == nil {
		*o = GenerationOptions{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for GenerationOptions", value)
	}
	if len(data) == 0 {
		*o = GenerationOptions{}
		return nil
	}
	if err := json.Unmarshal(data, o); err != nil {
		return fmt.Errorf("unmarshal generation options: %w", err)
	}
	return nil
}

// TimetableStatus represents lifecycle phases for saved timetables.
type TimetableStatus string

const (
	TimetableStatusDraft     TimetableStatus = "DRAFT"
	TimetableStatusPublished TimetableStatus = "PUBLISHED"
	TimetableStatusArchived  TimetableStatus = "ARCHIVED"
)

// SemesterTimetable is a versioned, persisted generation result. Entries,
// catalog and report are stored as opaque JSON documents.
type SemesterTimetable struct {
	ID         string          `db:"id" json:"id"`
	Semester   string          `db:"semester" json:"semester"`
	Version    int             `db:"version" json:"version"`
	Status     TimetableStatus `db:"status" json:"status"`
	Options    types.JSONText  `db:"options" json:"options"`
	Catalog    types.JSONText  `db:"catalog" json:"catalog"`
	Entries    types.JSONText  `db:"entries" json:"entries"`
	Report     types.JSONText  `db:"report" json:"report"`
	Completion float64         `db:"completion" json:"completion"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// SemesterTimetableMeta is the lightweight list view of a timetable.
type SemesterTimetableMeta struct {
	ID         string          `db:"id" json:"id"`
	Semester   string          `db:"semester" json:"semester"`
	Version    int             `db:"version" json:"version"`
	Status     TimetableStatus `db:"status" json:"status"`
	Completion float64         `db:"completion" json:"completion"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// CatalogRecord stores a named teacher/subject/classroom catalog.
type CatalogRecord struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	Payload   types.JSONText `db:"payload" json:"payload"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}
