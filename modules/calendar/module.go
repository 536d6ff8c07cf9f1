package calendar

import (
	"smartschedule/core/database"
	"smartschedule/core/middleware"
	"smartschedule/modules/calendar/controller"
	"smartschedule/modules/calendar/repository"
	"smartschedule/modules/calendar/router"
	"smartschedule/modules/calendar/service"
	"smartschedule/modules/calendar/worker"

	"github.com/labstack/echo/v4"
)

// Init mounts the calendar endpoints. With a nil enqueuer, changes invalidate inv inline
// instead of going through the calendar:changed queue. With a nil db only the notification
// endpoint is mounted and the returned service is nil.
func Init(g *echo.Group, inv worker.Invalidator, enqueuer worker.Enqueuer, db database.IDatabase, mw *middleware.Middleware) *service.CalendarService {
	notifier, queued := NewNotifier(inv, enqueuer)

	var (
		calendarService    *service.CalendarService
		calendarController *controller.CalendarController
	)
	if db != nil {
		calendarService = service.NewCalendarService(repository.NewCalendarRepository(db), notifier)
		calendarController = controller.NewCalendarController(calendarService)
	}

	router.NewCalendarRouter(controller.NewNotificationController(notifier, queued), calendarController).Register(g, mw)
	return calendarService
}

// NewNotifier picks the queue notifier when an enqueuer is available. queued reports which one.
func NewNotifier(inv worker.Invalidator, enqueuer worker.Enqueuer) (notifier worker.Notifier, queued bool) {
	if enqueuer != nil {
		return worker.NewQueueNotifier(enqueuer), true
	}
	return worker.NewInlineNotifier(inv), false
}
