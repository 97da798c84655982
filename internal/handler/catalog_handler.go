package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/internal/service"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
	"github.com/noah-isme/college-timetable-api/pkg/response"
)

type catalogManager interface {
	Upsert(ctx context.Context, req dto.UpsertCatalogRequest) (*dto.CatalogSummary, error)
	Get(ctx context.Context, id string) (*dto.CatalogSummary, models.Catalog, error)
	List(ctx context.Context) ([]dto.CatalogSummary, error)
	Delete(ctx context.Context, id string) error
}

// CatalogHandler manages stored teacher/subject/classroom catalogs.
type CatalogHandler struct {
	service catalogManager
}

// NewCatalogHandler constructs the handler.
func NewCatalogHandler(svc *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{service: svc}
}

// Upsert godoc
// @Summary Store a named catalog
// @Description Legacy teacher constraint shapes are normalized on the way in.
// @Tags Catalogs
// @Accept json
// @Produce json
// @Param payload body dto.UpsertCatalogRequest true "Catalog payload"
// @Success 200 {object} response.Envelope
// @Router /catalogs [put]
func (h *CatalogHandler) Upsert(c *gin.Context) {
	var req dto.UpsertCatalogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid catalog payload"))
		return
	}
	summary, err := h.service.Upsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary)
}

// List godoc
// @Summary List stored catalogs
// @Tags Catalogs
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /catalogs [get]
func (h *CatalogHandler) List(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list)
}

// Get godoc
// @Summary Get a stored catalog
// @Tags Catalogs
// @Produce json
// @Param id path string true "Catalog ID"
// @Success 200 {object} response.Envelope
// @Router /catalogs/{id} [get]
func (h *CatalogHandler) Get(c *gin.Context) {
	summary, catalog, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"summary": summary, "catalog": catalog})
}

// Delete godoc
// @Summary Delete a catalog no job references
// @Tags Catalogs
// @Param id path string true "Catalog ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /catalogs/{id} [delete]
func (h *CatalogHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
