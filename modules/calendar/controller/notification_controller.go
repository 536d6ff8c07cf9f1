package controller

import (
	"strings"

	"smartschedule/core/controller"
	"smartschedule/core/errors"
	"smartschedule/modules/calendar/dto"
	"smartschedule/modules/calendar/worker"

	"github.com/labstack/echo/v4"
)

type NotificationController struct {
	controller.BaseController
	notifier worker.Notifier
	queued   bool
}

// NewNotificationController reports queued=true in responses when notifier is asynchronous.
func NewNotificationController(notifier worker.Notifier, queued bool) *NotificationController {
	return &NotificationController{
		BaseController: controller.NewBaseController(),
		notifier:       notifier,
		queued:         queued,
	}
}

// CalendarChanged receives a change notification for a participant's calendar
// POST /api/v1/calendar/notifications
func (c *NotificationController) CalendarChanged(ctx echo.Context) error {
	var req dto.CalendarChangedRequest
	if err := ctx.Bind(&req); err != nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidRequestData, "invalid request body", err))
	}
	req.ParticipantID = strings.TrimSpace(req.ParticipantID)
	if req.ParticipantID == "" {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInvalidInput, "participant_id is required", nil))
	}

	err := c.notifier.NotifyChanged(ctx.Request().Context(), worker.CalendarChangedPayload{
		ParticipantID: req.ParticipantID,
		Source:        req.Source,
	})
	if err != nil {
		return c.ErrorResponse(ctx, errors.NewAppError(errors.ErrInternalServer, "failed to process notification", err))
	}

	return c.AcceptedResponse(ctx, dto.CalendarChangedResponse{ParticipantID: req.ParticipantID, Queued: c.queued}, "notification accepted")
}
