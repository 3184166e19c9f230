package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/mw"
)

func init() { Register(registerBookmarks) }

// registerBookmarks mounts the JSON API. Writes are rate limited per user.
func registerBookmarks(r chi.Router, d deps.Deps) {
	writes := mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.APIRateLimit.Burst,
		RefillPerIPPerMin: d.APIRateLimit.RefillPerMin,
		MaxEntries:        10000,
		Key: func(r *http.Request) string {
			return mw.CurrentSession(r.Context()).OwnerID()
		},
	})

	r.With(
		mw.EnforceHost(d.AllowedHosts, d.Logger),
		mw.RequireSession(d.Auth, d.Logger),
	).Route("/api/bookmarks", func(r chi.Router) {
		r.Get("/", handlers.ListBookmarks(d))
		r.With(writes).Post("/", handlers.CreateBookmark(d))
		r.With(writes).Post("/import", handlers.ImportBookmarks(d))
		r.With(writes).Patch("/{id}", handlers.RenameBookmark(d))
		r.With(writes).Delete("/{id}", handlers.DeleteBookmark(d))
	})
}
