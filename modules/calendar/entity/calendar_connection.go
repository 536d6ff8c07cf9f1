package entity

import "time"

const ProviderGoogle = "google"

// CalendarConnection links a participant to an external calendar account.
type CalendarConnection struct {
	ParticipantID  string `db:"participant_id" json:"participant_id"`
	Provider       string `db:"provider" json:"provider"` // "google"
	CalendarEmail  string `db:"calendar_email" json:"calendar_email"`
	AccessToken    string `db:"access_token" json:"-"`
	RefreshToken   string `db:"refresh_token" json:"-"`
	TokenExpiresTs int64  `db:"token_expires_ts" json:"token_expires_ts"`
	IsActive       bool   `db:"is_active" json:"is_active"`
}

func (c CalendarConnection) TokenExpiresAt() time.Time {
	if c.TokenExpiresTs == 0 {
		return time.Time{}
	}
	return time.Unix(c.TokenExpiresTs, 0).UTC()
}
