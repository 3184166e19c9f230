package domain

import "time"

// Identity is an authenticated user as reported by the identity provider.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Session is the current authentication state of one browser.
// A nil *Session means unauthenticated. Sessions are replaced wholesale,
// never mutated in place.
type Session struct {
	Identity  Identity  `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OwnerID returns the user id of s, or "" when s is nil.
func (s *Session) OwnerID() string {
	if s == nil {
		return ""
	}
	return s.Identity.UserID
}

// Email returns the display email of s, or "" when s is nil.
func (s *Session) Email() string {
	if s == nil {
		return ""
	}
	return s.Identity.Email
}

// Clone returns an independent copy, or nil for nil.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
