package dto

import (
	"time"

	availability "smartschedule/modules/availability/entity"
	"smartschedule/modules/calendar/entity"
)

// CalendarChangedRequest is the body of POST /api/v1/calendar/notifications.
type CalendarChangedRequest struct {
	ParticipantID string `json:"participant_id"`
	Source        string `json:"source,omitempty"` // e.g. "google"
}

type CalendarChangedResponse struct {
	ParticipantID string `json:"participant_id"`
	Queued        bool   `json:"queued"`
}

type BusyIntervalRequest struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Status string    `json:"status,omitempty"` // busy | tentative | out-of-office
}

// ReplaceBusyRequest is the body of PUT /api/v1/calendar/participants/:id/busy.
// An empty list clears the participant's calendar.
type ReplaceBusyRequest struct {
	Busy []BusyIntervalRequest `json:"busy"`
}

func (r ReplaceBusyRequest) ToBusyIntervals() []availability.BusyInterval {
	out := make([]availability.BusyInterval, 0, len(r.Busy))
	for _, b := range r.Busy {
		out = append(out, availability.BusyInterval{
			TimeInterval: availability.TimeInterval{Start: b.Start.UTC(), End: b.End.UTC()},
			Status:       availability.BusyStatus(b.Status),
		})
	}
	return out
}

type ReplaceBusyResponse struct {
	ParticipantID string `json:"participant_id"`
	Stored        int    `json:"stored"`
}

// ConnectCalendarRequest is the body of PUT /api/v1/calendar/participants/:id/connection.
type ConnectCalendarRequest struct {
	Provider       string     `json:"provider"`
	CalendarEmail  string     `json:"calendar_email"`
	AccessToken    string     `json:"access_token"`
	RefreshToken   string     `json:"refresh_token"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
}

func (r ConnectCalendarRequest) ToConnection(participantID string) *entity.CalendarConnection {
	provider := r.Provider
	if provider == "" {
		provider = entity.ProviderGoogle
	}
	conn := &entity.CalendarConnection{
		ParticipantID: participantID,
		Provider:      provider,
		CalendarEmail: r.CalendarEmail,
		AccessToken:   r.AccessToken,
		RefreshToken:  r.RefreshToken,
		IsActive:      true,
	}
	if r.TokenExpiresAt != nil {
		conn.TokenExpiresTs = r.TokenExpiresAt.Unix()
	}
	return conn
}

type ConnectCalendarResponse struct {
	ParticipantID  string     `json:"participant_id"`
	Provider       string     `json:"provider"`
	CalendarEmail  string     `json:"calendar_email"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
}

func ToConnectCalendarResponse(conn *entity.CalendarConnection) ConnectCalendarResponse {
	resp := ConnectCalendarResponse{
		ParticipantID: conn.ParticipantID,
		Provider:      conn.Provider,
		CalendarEmail: conn.CalendarEmail,
	}
	if expires := conn.TokenExpiresAt(); !expires.IsZero() {
		resp.TokenExpiresAt = &expires
	}
	return resp
}
