// Package backend declares the capabilities shelf consumes from its hosted
// backend: identity (Auth), row storage (Data) and row-level change
// notifications (Feed). Core packages depend only on these interfaces; the
// concrete implementations live in internal/auth and internal/store/redis.
package backend

import (
	"context"

	"github.com/MrSnakeDoc/shelf/internal/domain"
)

// Filter scopes a query, delete or subscription on the bookmarks table.
// OwnerID is mandatory; ID narrows to a single row.
type Filter struct {
	OwnerID string
	ID      string
}

// AuthEventType names an identity provider notification.
type AuthEventType string

const (
	AuthSignedIn       AuthEventType = "SIGNED_IN"
	AuthSignedOut      AuthEventType = "SIGNED_OUT"
	AuthTokenRefreshed AuthEventType = "TOKEN_REFRESHED"
)

// AuthEvent is delivered on every auth-state change. Session is nil for sign-out.
type AuthEvent struct {
	Type    AuthEventType   `json:"type"`
	Session *domain.Session `json:"session,omitempty"`
}

// Auth is the identity capability, scoped to one browser.
type Auth interface {
	// CurrentSession returns the active session, or nil when signed out.
	CurrentSession(ctx context.Context) (*domain.Session, error)
	// OnAuthStateChange registers fn for auth events until cancel is called
	// or ctx ends.
	OnAuthStateChange(ctx context.Context, fn func(AuthEvent)) (cancel func(), err error)
	// SignInWithProvider starts an OAuth flow and returns the URL the
	// browser must visit.
	SignInWithProvider(ctx context.Context, provider string) (redirectURL string, err error)
	// SignOut ends the session and emits a sign-out event.
	SignOut(ctx context.Context) error
}

// Data is the row storage capability for bookmarks.
type Data interface {
	// Select returns the rows matching f, newest first.
	Select(ctx context.Context, f Filter) ([]domain.Bookmark, error)
	// Insert stores row and returns it with ID and CreatedAt assigned.
	Insert(ctx context.Context, row domain.Bookmark) (domain.Bookmark, error)
	// Update overwrites the mutable fields of an existing row owned by row.UserID.
	Update(ctx context.Context, row domain.Bookmark) (domain.Bookmark, error)
	// Delete removes the rows matching f and returns how many were affected.
	Delete(ctx context.Context, f Filter) (int, error)
}

// Handle identifies one live subscription.
type Handle interface {
	// Key is the channel name of the subscription.
	Key() string
}

// Feed is the change-feed capability.
type Feed interface {
	// Subscribe delivers every change matching f to onEvent, in order,
	// until Unsubscribe. It returns once the backend acknowledged the
	// subscription.
	Subscribe(ctx context.Context, f Filter, onEvent func(domain.Change)) (Handle, error)
	// Unsubscribe releases h. It is safe to call more than once.
	Unsubscribe(h Handle) error
}
