package mw

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

// SessionCookie names the cookie carrying the browser session id.
const SessionCookie = "shelf_sid"

const sessionCookieMaxAge = 400 * 24 * 60 * 60

type sidKey struct{}

// BrowserSession makes sure every request carries a browser session id,
// issuing a fresh one when the cookie is missing or malformed. The id is
// only a handle: the signed token lives server-side under it.
func BrowserSession(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := ""
			if c, err := r.Cookie(SessionCookie); err == nil {
				if id, err := uuid.Parse(c.Value); err == nil {
					sid = id.String()
				}
			}
			if sid == "" {
				sid = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    sid,
					Path:     "/",
					MaxAge:   sessionCookieMaxAge,
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sid)))
		})
	}
}

// WithSessionID stores sid in ctx.
func WithSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, sidKey{}, sid)
}

// SessionID returns the browser session id of the request, or "".
func SessionID(ctx context.Context) string {
	sid, _ := ctx.Value(sidKey{}).(string)
	return sid
}

// SessionResolver reads the signed-in session of a browser.
// *auth.Service implements it.
type SessionResolver interface {
	Session(ctx context.Context, sid string) (*domain.Session, error)
}

type sessionKey struct{}

// RequireSession answers 401 unless the browser is signed in, and makes
// the session available through CurrentSession.
func RequireSession(resolver SessionResolver, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := resolver.Session(r.Context(), SessionID(r.Context()))
			if err != nil {
				log.Warn("failed to resolve session", logger.Error(err))
				http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
				return
			}
			if session == nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"not signed in"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
		})
	}
}

// CurrentSession returns the session stored by RequireSession, or nil.
func CurrentSession(ctx context.Context) *domain.Session {
	s, _ := ctx.Value(sessionKey{}).(*domain.Session)
	return s
}
