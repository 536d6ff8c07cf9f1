package controller

import (
	"strings"

	"smartschedule/core/controller"
	"smartschedule/core/errors"
	"smartschedule/modules/calendar/dto"
	"smartschedule/modules/calendar/service"

	"github.com/labstack/echo/v4"
)

type CalendarController struct {
	controller.BaseController
	service service.CalendarServiceInterface
}

func NewCalendarController(service service.CalendarServiceInterface) *CalendarController {
	return &CalendarController{
		BaseController: controller.NewBaseController(),
		service:        service,
	}
}

// ReplaceBusyIntervals stores a participant's busy intervals, replacing the previous set
// PUT /api/v1/calendar/participants/:id/busy
func (c *CalendarController) ReplaceBusyIntervals(ctx echo.Context) error {
	var req dto.ReplaceBusyRequest
	if err := ctx.Bind(&req); err != nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidRequestData, "invalid request body", err))
	}

	id := strings.TrimSpace(ctx.Param("id"))
	stored, err := c.service.SyncBusyIntervals(ctx.Request().Context(), id, req.ToBusyIntervals())
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, dto.ReplaceBusyResponse{ParticipantID: id, Stored: stored}, "busy intervals stored")
}

// ConnectCalendar links a participant to an external calendar account
// PUT /api/v1/calendar/participants/:id/connection
func (c *CalendarController) ConnectCalendar(ctx echo.Context) error {
	var req dto.ConnectCalendarRequest
	if err := ctx.Bind(&req); err != nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidRequestData, "invalid request body", err))
	}

	conn := req.ToConnection(strings.TrimSpace(ctx.Param("id")))
	if err := c.service.ConnectCalendar(ctx.Request().Context(), conn); err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, dto.ToConnectCalendarResponse(conn), "calendar connected")
}
