package availability

import (
	"smartschedule/core/middleware"
	"smartschedule/modules/availability/controller"
	"smartschedule/modules/availability/router"
	"smartschedule/modules/availability/service"

	"github.com/labstack/echo/v4"
)

// Init mounts the availability routes on g and returns the service backing them.
func Init(g *echo.Group, svc *service.AvailabilityService, mw *middleware.Middleware) *service.AvailabilityService {
	ctrl := controller.NewAvailabilityController(svc)
	router.NewAvailabilityRouter(ctrl).Register(g, mw)
	return svc
}
