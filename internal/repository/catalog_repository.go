package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// CatalogRepository stores named teacher/subject/classroom catalogs.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs the repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Upsert inserts a catalog or replaces the payload of the catalog with the same name.
func (r *CatalogRepository) Upsert(ctx context.Context, record *models.CatalogRecord) error {
	if record == nil {
		return fmt.Errorf("catalog payload is nil")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	const query = `
INSERT INTO catalogs (id, name, payload, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, query, record.ID, record.Name, record.Payload, record.CreatedAt, record.UpdatedAt)
	if err := row.Scan(&record.ID, &record.CreatedAt); err != nil {
		return fmt.Errorf("upsert catalog: %w", err)
	}
	return nil
}

// FindByID loads a catalog by its identifier.
func (r *CatalogRepository) FindByID(ctx context.Context, id string) (*models.CatalogRecord, error) {
	const query = `SELECT id, name, payload, created_at, updated_at FROM catalogs WHERE id = $1`
	var record models.CatalogRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns catalogs ordered by name without their payloads.
func (r *CatalogRepository) List(ctx context.Context) ([]models.CatalogRecord, error) {
	const query = `SELECT id, name, created_at, updated_at FROM catalogs ORDER BY name`
	var records []models.CatalogRecord
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("list catalogs: %w", err)
	}
	return records, nil
}

// Delete removes a catalog.
func (r *CatalogRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM catalogs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete catalog: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("catalog rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
