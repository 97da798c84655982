package models

import "time"

// GenerationStatus captures background generation lifecycle states.
type GenerationStatus string

const (
	GenerationStatusQueued     GenerationStatus = "QUEUED"
	GenerationStatusProcessing GenerationStatus = "PROCESSING"
	GenerationStatusFinished   GenerationStatus = "FINISHED"
	GenerationStatusFailed     GenerationStatus = "FAILED"
)

// GenerationJob is persisted metadata for an asynchronous generation.
type GenerationJob struct {
	ID           string            `db:"id" json:"id"`
	Semester     string            `db:"semester" json:"semester"`
	CatalogID    string            `db:"catalog_id" json:"catalog_id"`
	Options      GenerationOptions `db:"options" json:"options"`
	Status       GenerationStatus  `db:"status" json:"status"`
	TimetableID  *string           `db:"timetable_id" json:"timetable_id,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time        `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string           `db:"error_message" json:"error_message,omitempty"`
}
