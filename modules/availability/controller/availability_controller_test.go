package controller_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"smartschedule/core/cache"
	coreController "smartschedule/core/controller"
	"smartschedule/core/middleware"
	"smartschedule/modules/availability/controller"
	"smartschedule/modules/availability/dto"
	"smartschedule/modules/availability/entity"
	"smartschedule/modules/availability/router"
	"smartschedule/modules/availability/service"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func busyAt(id string, from, to int) entity.BusyInterval {
	return entity.BusyInterval{
		TimeInterval:  entity.TimeInterval{Start: day.Add(time.Duration(from) * time.Hour), End: day.Add(time.Duration(to) * time.Hour)},
		ParticipantID: id,
	}
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	calendars := map[string][]entity.BusyInterval{
		"A": {busyAt("A", 9, 10), busyAt("A", 14, 15)},
		"B": {busyAt("B", 11, 12)},
	}
	provider := service.ProviderFunc(func(_ context.Context, id string, _, _ time.Time) ([]entity.BusyInterval, error) {
		return calendars[id], nil
	})

	cfg := service.DefaultEngineConfig()
	cfg.StrictInvariants = true
	store, err := cache.NewMemoryCache(64)
	require.NoError(t, err)
	svc := service.NewAvailabilityService(provider, store, nil, cfg)

	e := echo.New()
	e.HTTPErrorHandler = coreController.HTTPErrorHandler
	router.NewAvailabilityRouter(controller.NewAvailabilityController(svc)).Register(e.Group("/api/v1"), middleware.NewMiddleware(middleware.Options{}))
	return e
}

func post(e *echo.Echo, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestFindSlots(t *testing.T) {
	e := newTestServer(t)

	rec := post(e, "/api/v1/availability/slots", `{
		"participant_ids": ["A", "B"],
		"duration_minutes": 30,
		"start_date": "2026-03-10T00:00:00Z",
		"end_date": "2026-03-11T00:00:00Z",
		"working_hours": {"daily_start": "09:00", "daily_end": "17:00", "working_days": ["mon","tue","wed","thu","fri"], "time_zone": "UTC"}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Data dto.FindSlotsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data.Slots, 10)
	require.NotNil(t, body.Data.Recommended)
	assert.Equal(t, "2026-03-10T10:00:00Z", body.Data.Recommended.Start)
	assert.Equal(t, entity.StatusOK, body.Data.DataQuality["A"])
	assert.False(t, body.Data.Partial)
}

func TestFindSlotsInvalidQuery(t *testing.T) {
	e := newTestServer(t)

	rec := post(e, "/api/v1/availability/slots", `{
		"participant_ids": [],
		"duration_minutes": 5,
		"start_date": "2026-03-11T00:00:00Z",
		"end_date": "2026-03-10T00:00:00Z"
	}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body coreController.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INVALID_QUERY", string(body.Code))
	assert.Len(t, body.Details, 3)
}

func TestFindSlotsMalformedBody(t *testing.T) {
	e := newTestServer(t)
	rec := post(e, "/api/v1/availability/slots", `{"participant_ids": "A"`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_REQUEST_DATA")
}

func TestInvalidateParticipant(t *testing.T) {
	e := newTestServer(t)

	rec := post(e, "/api/v1/availability/participants/A/invalidate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"participant_id":"A"`)
}
