package handlers

import (
	"html/template"
	"net/http"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/mw"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/view"
)

// LivePath is where the page opens its WebSocket.
const LivePath = "/ws"

// Page serves the shell document. Signed-in browsers get the loading
// state; the live view fills in the list once connected.
func Page(d deps.Deps) http.HandlerFunc {
	providers := d.Auth.Providers()

	return func(w http.ResponseWriter, r *http.Request) {
		sid := mw.SessionID(r.Context())

		// Refresh keeps an active browser signed in past the token lifetime.
		session, err := d.Auth.Refresh(r.Context(), sid)
		if err != nil {
			d.Logger.Warn("failed to read session for page", logger.Error(err))
			session = nil
		}

		app, err := d.Renderer.App(view.Model{
			SignedIn:  session != nil,
			Email:     session.Email(),
			Providers: providers,
			Loading:   session != nil,
		})
		if err != nil {
			d.Logger.Error("failed to render page", logger.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := d.Renderer.Page(w, view.PageData{
			Title:   "Shelf",
			Version: d.Version,
			WSPath:  LivePath,
			App:     template.HTML(app),
		}); err != nil {
			d.Logger.Debug("failed to write page", logger.Error(err))
		}
	}
}
