package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/internal/scheduler"
	"github.com/noah-isme/college-timetable-api/internal/service"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
	"github.com/noah-isme/college-timetable-api/pkg/response"
)

const maxInlineSubjects = 2048

type timetablePreviewResponse struct {
	Mode     string                 `json:"mode"`
	Proposal *dto.TimetableProposal `json:"proposal"`
}

type timetableManager interface {
	Preview(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableProposal, error)
	Save(ctx context.Context, req dto.SaveProposalRequest) (*models.SemesterTimetable, error)
	EnqueueGeneration(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerationJobResponse, error)
	GetJob(ctx context.Context, id string) (*dto.GenerationJobResponse, error)
	List(ctx context.Context, query dto.TimetableQuery) ([]models.SemesterTimetableMeta, error)
	Get(ctx context.Context, id string) (*dto.TimetableResponse, error)
	Delete(ctx context.Context, id string) error
	Publish(ctx context.Context, id string) error
	ValidateMove(ctx context.Context, id string, req dto.MoveEntryRequest) (*dto.MoveEntryResponse, error)
	ApplyMove(ctx context.Context, id string, req dto.MoveEntryRequest) (*dto.MoveEntryResponse, error)
	Report(ctx context.Context, id string) (*scheduler.Report, error)
	Audit(ctx context.Context, id string) (*dto.AuditResponse, error)
	Makeup(ctx context.Context, id string) ([]scheduler.MakeupPlan, error)
	Ranking(ctx context.Context, id string) ([]dto.RankedTeacherSummary, error)
}

// TimetableHandler exposes timetable generation and editing endpoints.
type TimetableHandler struct {
	service  timetableManager
	basePath string
}

// NewTimetableHandler constructs the handler. basePath prefixes Location
// headers of accepted generation jobs.
func NewTimetableHandler(svc *service.TimetableService, basePath string) *TimetableHandler {
	return &TimetableHandler{service: svc, basePath: strings.TrimRight(basePath, "/")}
}

// Preview godoc
// @Summary Generate a timetable proposal
// @Description Runs the allocator synchronously. The proposal is kept in memory until saved or expired.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /timetables/preview [post]
func (h *TimetableHandler) Preview(c *gin.Context) {
	req, ok := bindGenerateRequest(c)
	if !ok {
		return
	}
	result, err := h.service.Preview(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetablePreviewResponse{Mode: "preview", Proposal: result})
}

// Save godoc
// @Summary Save a proposal as a draft timetable version
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.SaveProposalRequest true "Save payload"
// @Success 201 {object} response.Envelope
// @Failure 410 {object} response.Envelope
// @Router /timetables [post]
func (h *TimetableHandler) Save(c *gin.Context) {
	var req dto.SaveProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid save payload"))
		return
	}
	record, err := h.service.Save(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"timetableId": record.ID, "version": record.Version, "status": record.Status})
}

// Generate godoc
// @Summary Queue a background generation
// @Description Requires a stored catalog. Poll the job resource named in the Location header.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	req, ok := bindGenerateRequest(c)
	if !ok {
		return
	}
	job, err := h.service.EnqueueGeneration(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job, h.basePath+"/timetables/jobs/"+job.ID)
}

// Job godoc
// @Summary Background generation status
// @Tags Timetables
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/jobs/{id} [get]
func (h *TimetableHandler) Job(c *gin.Context) {
	job, err := h.service.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job)
}

// List godoc
// @Summary List timetable versions
// @Tags Timetables
// @Produce json
// @Param semester query string false "Semester label"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	var query dto.TimetableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	list, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, list)
}

// Get godoc
// @Summary Get a stored timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	timetable, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, timetable)
}

// Delete godoc
// @Summary Delete a draft timetable
// @Tags Timetables
// @Param id path string true "Timetable ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /timetables/{id} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Publish godoc
// @Summary Publish a draft and archive the previous published version
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/{id}/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	id := c.Param("id")
	if err := h.service.Publish(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"timetableId": id, "status": models.TimetableStatusPublished})
}

// ValidateMove godoc
// @Summary Check a drag-and-drop move without applying it
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param payload body dto.MoveEntryRequest true "Move payload"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/moves/validate [post]
func (h *TimetableHandler) ValidateMove(c *gin.Context) {
	var req dto.MoveEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid move payload"))
		return
	}
	result, err := h.service.ValidateMove(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// ApplyMove godoc
// @Summary Apply a move to a draft timetable
// @Description Rejected moves answer 422 with the verdict in error.details.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param payload body dto.MoveEntryRequest true "Move payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetables/{id}/moves [post]
func (h *TimetableHandler) ApplyMove(c *gin.Context) {
	var req dto.MoveEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid move payload"))
		return
	}
	result, err := h.service.ApplyMove(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Report godoc
// @Summary Generation report of a stored timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/report [get]
func (h *TimetableHandler) Report(c *gin.Context) {
	report, err := h.service.Report(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// Audit godoc
// @Summary Recompute combo and double-booking findings
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/audit [get]
func (h *TimetableHandler) Audit(c *gin.Context) {
	audit, err := h.service.Audit(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, audit)
}

// Makeup godoc
// @Summary Makeup lesson plans for the timetable's semester
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/makeup [get]
func (h *TimetableHandler) Makeup(c *gin.Context) {
	plans, err := h.service.Makeup(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans)
}

// Ranking godoc
// @Summary Teacher placement priority
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/ranking [get]
func (h *TimetableHandler) Ranking(c *gin.Context) {
	ranking, err := h.service.Ranking(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ranking)
}

func bindGenerateRequest(c *gin.Context) (dto.GenerateTimetableRequest, bool) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return req, false
	}
	if req.Catalog != nil && len(req.Catalog.Subjects) > maxInlineSubjects {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "catalog subjects exceed supported limit"))
		return req, false
	}
	return req, true
}
