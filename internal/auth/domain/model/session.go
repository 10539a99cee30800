package model

import "time"

// Session represents the client's authentication state. A nil *Session means
// signed out. Transitions replace the whole value, never patch it.
type Session struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// UserID returns the owning identity for the session.
func (s *Session) UserID() string {
	return s.User.ID
}

// ExpiresWithin reports whether the access token expires within d.
func (s *Session) ExpiresWithin(d time.Duration) bool {
	return !s.ExpiresAt.IsZero() && time.Until(s.ExpiresAt) <= d
}
