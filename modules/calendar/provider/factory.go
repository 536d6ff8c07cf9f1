package provider

import (
	"fmt"
	"net/http"
	"time"

	"smartschedule/core/config"
	"smartschedule/core/database"
	"smartschedule/core/logger"
	"smartschedule/modules/availability/service"
	"smartschedule/modules/calendar/repository"
)

const (
	BackendStatic   = "static"
	BackendDatabase = "database"
	BackendGoogle   = "google"
)

// New builds the calendar provider selected by cfg.Backend. db may be nil for the static backend.
func New(cfg config.CalendarConfig, db database.IDatabase) (service.CalendarAvailabilityProvider, error) {
	logger.Info("CalendarProvider:New", "backend", cfg.Backend)

	switch cfg.Backend {
	case BackendStatic, "":
		if cfg.StaticFile == "" {
			return NewStaticProvider(nil), nil
		}
		return LoadStaticProvider(cfg.StaticFile)
	case BackendDatabase:
		if db == nil {
			return nil, fmt.Errorf("calendar backend %q needs a database", cfg.Backend)
		}
		return NewDatabaseProvider(repository.NewCalendarRepository(db)), nil
	case BackendGoogle:
		if db == nil {
			return nil, fmt.Errorf("calendar backend %q needs a database", cfg.Backend)
		}
		return NewGoogleProvider(repository.NewCalendarRepository(db), GoogleConfig{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			Endpoint:     cfg.Google.Endpoint,
			HTTPClient:   newHTTPClient(cfg.FetchTimeout),
		}), nil
	default:
		return nil, fmt.Errorf("unknown calendar backend %q", cfg.Backend)
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
