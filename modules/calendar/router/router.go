package router

import (
	"smartschedule/core/middleware"
	"smartschedule/modules/calendar/controller"

	"github.com/labstack/echo/v4"
)

type CalendarRouter struct {
	notifications *controller.NotificationController
	calendars     *controller.CalendarController
}

// NewCalendarRouter mounts calendars only when it is non-nil, i.e. when calendar data is stored locally.
func NewCalendarRouter(notifications *controller.NotificationController, calendars *controller.CalendarController) *CalendarRouter {
	return &CalendarRouter{notifications: notifications, calendars: calendars}
}

func (r *CalendarRouter) Register(g *echo.Group, mw *middleware.Middleware) {
	group := g.Group("/calendar", mw.AuthMiddleware(), mw.RateLimit())
	group.POST("/notifications", r.notifications.CalendarChanged)

	if r.calendars != nil {
		group.PUT("/participants/:id/busy", r.calendars.ReplaceBusyIntervals)
		group.PUT("/participants/:id/connection", r.calendars.ConnectCalendar)
	}
}
