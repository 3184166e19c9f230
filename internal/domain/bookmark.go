package domain

import (
	"regexp"
	"strings"
	"time"
)

// MaxTitleLength is the longest title the store accepts.
const MaxTitleLength = 200

// Bookmark is a single saved link owned by one user.
//
// ID and CreatedAt are assigned by the backend on insert; the client never
// invents them, so an optimistic insert and the matching feed event always
// carry the same identifier.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (assigned by the backend)
	// ─────────────────────────────

	// ID is the opaque unique identifier (a ULID).
	ID string `json:"id"`

	// UserID is the owner identity.
	UserID string `json:"user_id"`

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	// Title is the trimmed, non-empty display name.
	Title string `json:"title"`

	// URL always carries a scheme.
	// Example: https://example.com
	URL string `json:"url"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	// CreatedAt orders the collection (newest first).
	CreatedAt time.Time `json:"created_at"`
}

// Draft is user input for a new bookmark, before validation.
type Draft struct {
	Title string
	URL   string
}

var schemePrefix = regexp.MustCompile(`(?i)^https?://`)

// NormalizeURL trims raw and prepends https:// unless it already starts with
// http:// or https:// (any case).
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if !schemePrefix.MatchString(u) {
		u = "https://" + u
	}
	return u
}

// Validate trims the draft and normalizes its URL.
// Empty fields are rejected locally with a *ValidationError.
func (d Draft) Validate() (Draft, error) {
	title := strings.TrimSpace(d.Title)
	rawURL := strings.TrimSpace(d.URL)

	if title == "" {
		return Draft{}, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if rawURL == "" {
		return Draft{}, &ValidationError{Field: "url", Reason: "must not be empty"}
	}

	return Draft{Title: title, URL: NormalizeURL(rawURL)}, nil
}
