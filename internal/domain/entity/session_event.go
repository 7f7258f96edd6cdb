package entity

import "time"

type SessionEventType string

const (
	SessionSignedIn       SessionEventType = "signed_in"
	SessionSignedOut      SessionEventType = "signed_out"
	SessionTokenRefreshed SessionEventType = "token_refreshed"
)

// SessionEvent is pushed to subscribers whenever a principal's session changes.
// SessionID names the session that is live after the event; it is empty for
// signed_out.
type SessionEvent struct {
	Type      SessionEventType `json:"type"`
	UserID    string           `json:"user_id"`
	Email     string           `json:"email,omitempty"`
	SessionID string           `json:"sid,omitempty"`
	At        time.Time        `json:"at"`
}

// Principal returns the principal carried by the event, or nil when the
// event ends the session.
func (e SessionEvent) Principal() *Principal {
	if e.Type == SessionSignedOut || e.UserID == "" {
		return nil
	}
	return &Principal{ID: e.UserID, Email: e.Email}
}
