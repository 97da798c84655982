package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

type catalogRepoStub struct {
	records   map[string]models.CatalogRecord
	deleteErr error
}

func newCatalogRepoStub() *catalogRepoStub {
	return &catalogRepoStub{records: make(map[string]models.CatalogRecord)}
}

func (s *catalogRepoStub) Upsert(_ context.Context, record *models.CatalogRecord) error {
	for id, existing := range s.records {
		if existing.Name == record.Name {
			record.ID = id
		}
	}
	if record.ID == "" {
		record.ID = fmt.Sprintf("cat-%d", len(s.records)+1)
	}
	record.UpdatedAt = time.Now()
	s.records[record.ID] = *record
	return nil
}

func (s *catalogRepoStub) FindByID(_ context.Context, id string) (*models.CatalogRecord, error) {
	record, ok := s.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &record, nil
}

func (s *catalogRepoStub) List(context.Context) ([]models.CatalogRecord, error) {
	out := make([]models.CatalogRecord, 0, len(s.records))
	for _, r := range s.records {
		r.Payload = nil
		out = append(out, r)
	}
	return out, nil
}

func (s *catalogRepoStub) Delete(_ context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.records[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.records, id)
	return nil
}

func TestCatalogServiceUpsertAndLoad(t *testing.T) {
	repo := newCatalogRepoStub()
	svc := NewCatalogService(repo, nil, nil)
	catalog := exampleCatalog(t)

	summary, err := svc.Upsert(context.Background(), dto.UpsertCatalogRequest{Name: "2025-後期", Catalog: catalog})
	require.NoError(t, err)
	assert.Equal(t, 8, summary.Teachers)
	assert.Equal(t, 11, summary.Subjects)

	again, err := svc.Upsert(context.Background(), dto.UpsertCatalogRequest{Name: "2025-後期", Catalog: catalog})
	require.NoError(t, err)
	assert.Equal(t, summary.ID, again.ID)

	loaded, err := svc.Load(context.Background(), summary.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Teachers, len(catalog.Teachers))
	for i := range catalog.Teachers {
		assert.Equal(t, catalog.Teachers[i].ID, loaded.Teachers[i].ID)
	}

	list, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Zero(t, list[0].Teachers)
}

func TestCatalogServiceUpsertNormalizesSubjectNames(t *testing.T) {
	repo := newCatalogRepoStub()
	svc := NewCatalogService(repo, nil, nil)
	catalog := models.Catalog{
		Teachers: []models.Teacher{{ID: "t1", Name: "佐藤"}},
		Subjects: []models.Subject{
			{ID: "career", Name: "キャリア実践Ⅱ", TeacherIDs: []string{"t1"}, TotalClasses: 10},
			{ID: "design", Name: "機械設計Ⅰ/Ⅱ", TeacherIDs: []string{"t1"}, TotalClasses: 10},
		},
		Classrooms: []models.Classroom{{ID: "r1", Name: "101", Capacity: 40}},
	}

	summary, err := svc.Upsert(context.Background(), dto.UpsertCatalogRequest{Name: "names", Catalog: catalog})
	require.NoError(t, err)
	require.Len(t, summary.Warnings, 1)
	assert.Contains(t, summary.Warnings[0], "機械設計 I and 機械設計 II")

	loaded, err := svc.Load(context.Background(), summary.ID)
	require.NoError(t, err)
	career, _ := loaded.SubjectByID("career")
	assert.Equal(t, "キャリア実践 II", career.Name)
	design, _ := loaded.SubjectByID("design")
	assert.Equal(t, "機械設計 I/II", design.Name)
}

func TestCatalogServiceRejectsBrokenReferences(t *testing.T) {
	svc := NewCatalogService(newCatalogRepoStub(), nil, nil)
	catalog := models.Catalog{
		Subjects: []models.Subject{{ID: "math", Name: "数学", TeacherIDs: []string{"ghost"}, TotalClasses: 10}},
	}
	_, err := svc.Upsert(context.Background(), dto.UpsertCatalogRequest{Name: "broken", Catalog: catalog})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Contains(t, err.Error(), "ghost")

	_, err = svc.Upsert(context.Background(), dto.UpsertCatalogRequest{Catalog: models.Catalog{}})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCatalogServiceDeleteErrors(t *testing.T) {
	repo := newCatalogRepoStub()
	svc := NewCatalogService(repo, nil, nil)

	err := svc.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	repo.deleteErr = fmt.Errorf("delete catalog: %w", &pq.Error{Code: "23503"})
	err = svc.Delete(context.Background(), "cat-1")
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
