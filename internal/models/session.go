package models

import (
	"time"
)

// Session contains data about an active API session. A session is always bound to exactly one
// event - its token is worthless at every other event's endpoints
type Session struct {
	// The session ID (the API token that identifies this session)
	ID string
	// The ID of the event this session was issued for
	EventID string
	// The (lowercased) email address of the user that joined for this session
	Email string
	// Whether the user was an administrator of the event at join time
	IsAdmin bool
	// When will the session expire?
	ExpiresAt time.Time
}

// Expired checks if the session has already expired
func (s *Session) Expired() bool {
	return s.ExpiresAt.Before(time.Now())
}
