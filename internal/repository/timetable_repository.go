package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

const timetableColumns = `id, semester, version, status, options, catalog, entries, report, completion, created_at, updated_at`

// TimetableRepository persists versioned semester timetables.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// CreateVersioned inserts a timetable assigning the next version for its semester.
func (r *TimetableRepository) CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.SemesterTimetable) error {
	if timetable == nil {
		return fmt.Errorf("timetable payload is nil")
	}
	if timetable.Semester == "" {
		return fmt.Errorf("semester is required")
	}
	if timetable.ID == "" {
		timetable.ID = uuid.NewString()
	}
	if timetable.Status == "" {
		timetable.Status = models.TimetableStatusDraft
	}
	if len(timetable.Report) == 0 {
		timetable.Report = types.JSONText(`{}`)
	}
	now := time.Now().UTC()
	if timetable.CreatedAt.IsZero() {
		timetable.CreatedAt = now
	}
	timetable.UpdatedAt = now

	target := r.exec(exec)

	const nextVersionQuery = `SELECT COALESCE(MAX(version), 0) + 1 FROM semester_timetables WHERE semester = $1`
	if err := sqlx.GetContext(ctx, target, &timetable.Version, nextVersionQuery, timetable.Semester); err != nil {
		return fmt.Errorf("compute next timetable version: %w", err)
	}

	const insertQuery = `
INSERT INTO semester_timetables (id, semester, version, status, options, catalog, entries, report, completion, created_at, updated_at)
VALUES (:id, :semester, :version, :status, :options, :catalog, :entries, :report, :completion, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, timetable); err != nil {
		return fmt.Errorf("insert timetable: %w", err)
	}
	return nil
}

// ListBySemester returns version metadata for a semester, newest first. An
// empty semester lists every timetable.
func (r *TimetableRepository) ListBySemester(ctx context.Context, semester string) ([]models.SemesterTimetableMeta, error) {
	var (
		list []models.SemesterTimetableMeta
		err  error
	)
	if semester == "" {
		const query = `SELECT id, semester, version, status, completion, created_at FROM semester_timetables ORDER BY semester DESC, version DESC`
		err = r.db.SelectContext(ctx, &list, query)
	} else {
		const query = `SELECT id, semester, version, status, completion, created_at FROM semester_timetables WHERE semester = $1 ORDER BY version DESC`
		err = r.db.SelectContext(ctx, &list, query, semester)
	}
	if err != nil {
		return nil, fmt.Errorf("list timetables: %w", err)
	}
	return list, nil
}

// FindByID loads a timetable by its identifier.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.SemesterTimetable, error) {
	query := `SELECT ` + timetableColumns + ` FROM semester_timetables WHERE id = $1`
	var timetable models.SemesterTimetable
	if err := r.db.GetContext(ctx, &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// FindForUpdate loads a timetable and locks its row until the transaction ends.
func (r *TimetableRepository) FindForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.SemesterTimetable, error) {
	query := `SELECT ` + timetableColumns + ` FROM semester_timetables WHERE id = $1 FOR UPDATE`
	var timetable models.SemesterTimetable
	if err := sqlx.GetContext(ctx, r.exec(exec), &timetable, query, id); err != nil {
		return nil, err
	}
	return &timetable, nil
}

// UpdateEntries replaces the stored entries and report of a timetable.
func (r *TimetableRepository) UpdateEntries(ctx context.Context, exec sqlx.ExtContext, id string, entries, report types.JSONText, completion float64) error {
	const query = `UPDATE semester_timetables SET entries = $1, report = $2, completion = $3, updated_at = $4 WHERE id = $5`
	result, err := r.exec(exec).ExecContext(ctx, query, entries, report, completion, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update timetable entries: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable entries rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus updates the lifecycle status of a timetable.
func (r *TimetableRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus) error {
	const query = `UPDATE semester_timetables SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := r.exec(exec).ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update timetable status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a stored timetable version.
func (r *TimetableRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM semester_timetables WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete timetable: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
