package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
	"github.com/noah-isme/college-timetable-api/pkg/holiday"
)

type catalogManagerMock struct {
	upserted dto.UpsertCatalogRequest
}

func (m *catalogManagerMock) Upsert(ctx context.Context, req dto.UpsertCatalogRequest) (*dto.CatalogSummary, error) {
	m.upserted = req
	return &dto.CatalogSummary{ID: "cat-1", Name: req.Name, Teachers: len(req.Catalog.Teachers)}, nil
}

func (m *catalogManagerMock) Get(ctx context.Context, id string) (*dto.CatalogSummary, models.Catalog, error) {
	return nil, models.Catalog{}, appErrors.Clone(appErrors.ErrNotFound, "catalog not found")
}

func (m *catalogManagerMock) List(ctx context.Context) ([]dto.CatalogSummary, error) {
	return []dto.CatalogSummary{}, nil
}

func (m *catalogManagerMock) Delete(ctx context.Context, id string) error {
	return appErrors.Clone(appErrors.ErrConflict, "catalog is referenced by generation jobs")
}

func TestCatalogUpsertNormalizesLegacyConstraints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &catalogManagerMock{}
	h := &CatalogHandler{service: mock}
	router := gin.New()
	router.PUT("/catalogs", h.Upsert)

	body := []byte(`{"name":"2025後期","catalog":{"teachers":[{"id":"t1","name":"佐藤","constraints":{"unavailable":{"days":["月"]}}}],"subjects":[],"classrooms":[]}}`)
	w := doJSON(router, http.MethodPut, "/catalogs", body)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, mock.upserted.Catalog.Teachers, 1)
	assert.Equal(t, []models.Weekday{models.Monday}, mock.upserted.Catalog.Teachers[0].Constraints.NG.Days)
	assert.Contains(t, w.Body.String(), `"teachers":1`)
}

func TestCatalogErrorsMapToStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &CatalogHandler{service: &catalogManagerMock{}}
	router := gin.New()
	router.GET("/catalogs/:id", h.Get)
	router.DELETE("/catalogs/:id", h.Delete)

	assert.Equal(t, http.StatusNotFound, doJSON(router, http.MethodGet, "/catalogs/x", nil).Code)
	assert.Equal(t, http.StatusConflict, doJSON(router, http.MethodDelete, "/catalogs/x", nil).Code)
}

type holidayListerMock struct{}

func (holidayListerMock) List(ctx context.Context, start, end string) ([]holiday.Holiday, error) {
	return []holiday.Holiday{{Date: "2025-11-03", Name: "文化の日", Type: holiday.TypeFixed}}, nil
}

func TestHolidayListRequiresRange(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &HolidayHandler{service: holidayListerMock{}}
	router := gin.New()
	router.GET("/holidays", h.List)

	w := doJSON(router, http.MethodGet, "/holidays?start=2025-11-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodGet, "/holidays?start=2025-11-01&end=2025-11-30", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"date":"2025-11-03"`)
}
