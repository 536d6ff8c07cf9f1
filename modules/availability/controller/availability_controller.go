package controller

import (
	"strings"

	"smartschedule/core/controller"
	"smartschedule/core/errors"
	"smartschedule/core/logger"
	"smartschedule/modules/availability/dto"
	"smartschedule/modules/availability/service"

	"github.com/labstack/echo/v4"
)

type AvailabilityController struct {
	controller.BaseController
	service service.AvailabilityServiceInterface
}

func NewAvailabilityController(service service.AvailabilityServiceInterface) *AvailabilityController {
	return &AvailabilityController{
		BaseController: controller.NewBaseController(),
		service:        service,
	}
}

// FindSlots returns ranked meeting slots for a group of participants
// POST /api/v1/availability/slots
func (c *AvailabilityController) FindSlots(ctx echo.Context) error {
	var req dto.FindSlotsRequest
	if err := ctx.Bind(&req); err != nil {
		logger.Info("AvailabilityController:FindSlots:Bind", "error", err)
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidRequestData, "invalid request body", err))
	}

	query, err := req.ToQuery()
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	result, err := c.service.FindRankedSlots(ctx.Request().Context(), query)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}

	message := "slots found"
	switch {
	case result.NoFeasibleSlot:
		message = "no feasible slot"
	case result.Partial:
		message = "partial result"
	}
	return c.SuccessResponse(ctx, dto.ToFindSlotsResponse(result), message)
}

// InvalidateParticipant drops cached availability for one participant
// POST /api/v1/availability/participants/:id/invalidate
func (c *AvailabilityController) InvalidateParticipant(ctx echo.Context) error {
	id := strings.TrimSpace(ctx.Param("id"))
	if err := c.service.InvalidateParticipant(ctx.Request().Context(), id); err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, dto.InvalidateResponse{ParticipantID: id}, "participant invalidated")
}
