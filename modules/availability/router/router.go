package router

import (
	"smartschedule/core/middleware"
	"smartschedule/modules/availability/controller"

	"github.com/labstack/echo/v4"
)

type AvailabilityRouter struct {
	controller *controller.AvailabilityController
}

func NewAvailabilityRouter(controller *controller.AvailabilityController) *AvailabilityRouter {
	return &AvailabilityRouter{controller: controller}
}

func (r *AvailabilityRouter) Register(g *echo.Group, mw *middleware.Middleware) {
	group := g.Group("/availability", mw.AuthMiddleware(), mw.RateLimit())
	group.POST("/slots", r.controller.FindSlots)
	group.POST("/participants/:id/invalidate", r.controller.InvalidateParticipant)
}
