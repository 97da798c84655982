package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

const pqForeignKeyViolation = "23503"

type catalogStore interface {
	Upsert(ctx context.Context, record *models.CatalogRecord) error
	FindByID(ctx context.Context, id string) (*models.CatalogRecord, error)
	List(ctx context.Context) ([]models.CatalogRecord, error)
	Delete(ctx context.Context, id string) error
}

// CatalogService manages stored teacher/subject/classroom catalogs.
type CatalogService struct {
	repo      catalogStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatalogService constructs the service.
func NewCatalogService(repo catalogStore, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, validator: validate, logger: logger}
}

// Upsert validates and stores a named catalog, replacing one with the same name.
func (s *CatalogService) Upsert(ctx context.Context, req dto.UpsertCatalogRequest) (*dto.CatalogSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid catalog payload")
	}
	if err := scheduler.ValidateCatalog(req.Catalog); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	var warnings []string
	for _, name := range req.Catalog.NormalizeSubjectNames() {
		first, second, _ := models.SplitCombinedSubject(name)
		s.logger.Warn("subject combines two numbered subjects", zap.String("subject", name), zap.String("split_first", first), zap.String("split_second", second))
		warnings = append(warnings, fmt.Sprintf("%s should be registered as %s and %s", name, first, second))
	}
	payload, err := json.Marshal(req.Catalog)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode catalog")
	}
	record := &models.CatalogRecord{Name: req.Name, Payload: types.JSONText(payload)}
	if err := s.repo.Upsert(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store catalog")
	}
	s.logger.Info("catalog stored",
		zap.String("catalog_id", record.ID),
		zap.String("name", record.Name),
		zap.Int("teachers", len(req.Catalog.Teachers)),
		zap.Int("subjects", len(req.Catalog.Subjects)),
	)
	summary := summarizeCatalog(*record, &req.Catalog)
	summary.Warnings = warnings
	return &summary, nil
}

// Load returns the decoded catalog with legacy constraints normalized.
func (s *CatalogService) Load(ctx context.Context, id string) (models.Catalog, error) {
	record, err := s.find(ctx, id)
	if err != nil {
		return models.Catalog{}, err
	}
	catalog, err := scheduler.DecodeCatalog(record.Payload)
	if err != nil {
		return models.Catalog{}, appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, fmt.Sprintf("stored catalog %s is invalid", id))
	}
	return catalog, nil
}

// Get returns a catalog summary together with its contents.
func (s *CatalogService) Get(ctx context.Context, id string) (*dto.CatalogSummary, models.Catalog, error) {
	record, err := s.find(ctx, id)
	if err != nil {
		return nil, models.Catalog{}, err
	}
	catalog, err := scheduler.DecodeCatalog(record.Payload)
	if err != nil {
		return nil, models.Catalog{}, appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, fmt.Sprintf("stored catalog %s is invalid", id))
	}
	summary := summarizeCatalog(*record, &catalog)
	return &summary, catalog, nil
}

// List returns stored catalogs ordered by name.
func (s *CatalogService) List(ctx context.Context) ([]dto.CatalogSummary, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list catalogs")
	}
	out := make([]dto.CatalogSummary, 0, len(records))
	for _, r := range records {
		out = append(out, summarizeCatalog(r, nil))
	}
	return out, nil
}

// Delete removes a catalog that no generation job references.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "catalog not found")
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
			return appErrors.Clone(appErrors.ErrConflict, "catalog is referenced by generation jobs")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete catalog")
	}
	return nil
}

func (s *CatalogService) find(ctx context.Context, id string) (*models.CatalogRecord, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "catalog id is required")
	}
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "catalog not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load catalog")
	}
	return record, nil
}

func summarizeCatalog(record models.CatalogRecord, catalog *models.Catalog) dto.CatalogSummary {
	summary := dto.CatalogSummary{ID: record.ID, Name: record.Name, UpdatedAt: record.UpdatedAt}
	if catalog != nil {
		summary.Teachers = len(catalog.Teachers)
		summary.Subjects = len(catalog.Subjects)
		summary.Classrooms = len(catalog.Classrooms)
	}
	return summary
}
