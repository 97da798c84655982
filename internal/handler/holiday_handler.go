package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/service"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
	"github.com/noah-isme/college-timetable-api/pkg/holiday"
	"github.com/noah-isme/college-timetable-api/pkg/response"
)

type holidayLister interface {
	List(ctx context.Context, start, end string) ([]holiday.Holiday, error)
}

// HolidayHandler serves the non-teaching day calendar.
type HolidayHandler struct {
	service holidayLister
}

// NewHolidayHandler constructs the handler.
func NewHolidayHandler(svc *service.HolidayService) *HolidayHandler {
	return &HolidayHandler{service: svc}
}

// List godoc
// @Summary National holidays and configured breaks in a date range
// @Tags Holidays
// @Produce json
// @Param start query string true "Start date (YYYY-MM-DD)"
// @Param end query string true "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /holidays [get]
func (h *HolidayHandler) List(c *gin.Context) {
	var query dto.HolidayQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	if query.Start == "" || query.End == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "start and end required"))
		return
	}
	list, err := h.service.List(c.Request.Context(), query.Start, query.End)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.HolidayResponse{Start: query.Start, End: query.End, Holidays: list})
}
