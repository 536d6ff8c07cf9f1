package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"smartschedule/core/logger"
	availability "smartschedule/modules/availability/entity"
	"smartschedule/modules/calendar/entity"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const DefaultFreeBusyEndpoint = "https://www.googleapis.com/calendar/v3/freeBusy"

// ConnectionStore is the part of the calendar repository the Google provider needs.
type ConnectionStore interface {
	GetConnection(ctx context.Context, participantID string) (*entity.CalendarConnection, error)
	UpdateToken(ctx context.Context, participantID, accessToken, refreshToken string, expiresAt time.Time) error
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	// Endpoint is the FreeBusy URL; empty means Google's.
	Endpoint string
	// TokenEndpoint overrides Google's OAuth2 endpoint.
	TokenEndpoint *oauth2.Endpoint
	HTTPClient    *http.Client
}

// GoogleProvider answers from the Google Calendar FreeBusy API using each participant's
// stored OAuth2 connection, refreshing and persisting expired access tokens.
type GoogleProvider struct {
	store    ConnectionStore
	oauth    *oauth2.Config
	endpoint string
	client   *http.Client
}

func NewGoogleProvider(store ConnectionStore, cfg GoogleConfig) *GoogleProvider {
	endpoint := google.Endpoint
	if cfg.TokenEndpoint != nil {
		endpoint = *cfg.TokenEndpoint
	}
	freeBusy := cfg.Endpoint
	if freeBusy == "" {
		freeBusy = DefaultFreeBusyEndpoint
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &GoogleProvider{
		store: store,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
		},
		endpoint: freeBusy,
		client:   client,
	}
}

func (p *GoogleProvider) GetBusyIntervals(ctx context.Context, participantID string, start, end time.Time) ([]availability.BusyInterval, error) {
	conn, err := p.store.GetConnection(ctx, participantID)
	if err != nil {
		return nil, err
	}

	accessToken, err := p.ensureValidToken(ctx, conn)
	if err != nil {
		return nil, err
	}

	return p.callFreeBusy(ctx, accessToken, conn, start, end)
}

// ensureValidToken returns a usable access token, refreshing it through the OAuth2
// token endpoint when it expires within oauth2's expiry delta.
func (p *GoogleProvider) ensureValidToken(ctx context.Context, conn *entity.CalendarConnection) (string, error) {
	current := &oauth2.Token{
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
		Expiry:       conn.TokenExpiresAt(),
		TokenType:    "Bearer",
	}
	if conn.TokenExpiresTs == 0 {
		// unknown expiry: force a refresh
		current.Expiry = time.Unix(1, 0)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	tok, err := p.oauth.TokenSource(ctx, current).Token()
	if err != nil {
		logger.Error("GoogleProvider:EnsureValidToken:RefreshError", "participant_id", conn.ParticipantID, "error", err)
		return "", fmt.Errorf("refresh google token: %w", err)
	}

	if tok.AccessToken != conn.AccessToken {
		logger.Info("GoogleProvider:EnsureValidToken:Refreshed", "participant_id", conn.ParticipantID)
		refresh := tok.RefreshToken
		if refresh == "" {
			refresh = conn.RefreshToken
		}
		if err := p.store.UpdateToken(ctx, conn.ParticipantID, tok.AccessToken, refresh, tok.Expiry); err != nil {
			logger.Warn("GoogleProvider:EnsureValidToken:PersistError", "participant_id", conn.ParticipantID, "error", err)
		}
	}
	return tok.AccessToken, nil
}

type freeBusyRequest struct {
	TimeMin string         `json:"timeMin"`
	TimeMax string         `json:"timeMax"`
	Items   []freeBusyItem `json:"items"`
}

type freeBusyItem struct {
	ID string `json:"id"`
}

type freeBusyResponse struct {
	Calendars map[string]struct {
		Busy []struct {
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
		} `json:"busy"`
		Errors []struct {
			Domain string `json:"domain"`
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"calendars"`
}

func (p *GoogleProvider) callFreeBusy(ctx context.Context, accessToken string, conn *entity.CalendarConnection, start, end time.Time) ([]availability.BusyInterval, error) {
	payload, err := json.Marshal(freeBusyRequest{
		TimeMin: start.UTC().Format(time.RFC3339),
		TimeMax: end.UTC().Format(time.RFC3339),
		Items:   []freeBusyItem{{ID: conn.CalendarEmail}},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("google freebusy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result freeBusyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode freebusy response: %w", err)
	}

	cal, ok := result.Calendars[conn.CalendarEmail]
	if !ok {
		return nil, fmt.Errorf("google freebusy: calendar %s missing from response", conn.CalendarEmail)
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("google freebusy: calendar %s: %s", conn.CalendarEmail, cal.Errors[0].Reason)
	}

	out := make([]availability.BusyInterval, 0, len(cal.Busy))
	for _, b := range cal.Busy {
		out = append(out, availability.BusyInterval{
			TimeInterval:  availability.TimeInterval{Start: b.Start.UTC(), End: b.End.UTC()},
			ParticipantID: conn.ParticipantID,
			Status:        availability.StatusBusy,
		})
	}
	return out, nil
}
