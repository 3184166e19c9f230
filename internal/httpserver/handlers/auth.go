package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/mw"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

// Login starts the OAuth flow of {provider}.
func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")

		target, err := d.Auth.BeginSignIn(r.Context(), mw.SessionID(r.Context()), provider)
		if err != nil {
			status, message := statusFor(err)
			d.Logger.Debug("sign-in not started", logger.String("provider", provider), logger.Error(err))
			http.Error(w, message, status)
			return
		}
		http.Redirect(w, r, target, http.StatusFound)
	}
}

// Callback finishes the OAuth flow and sends the browser back to the page.
// The dev provider shows its email prompt when called without a code.
func Callback(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		q := r.URL.Query()
		state, code := q.Get("state"), q.Get("code")

		if provider == "dev" && code == "" {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			if err := d.Renderer.DevLogin(w, state); err != nil {
				d.Logger.Error("failed to render dev sign-in", logger.Error(err))
			}
			return
		}

		if errParam := q.Get("error"); errParam != "" {
			d.Logger.Info("sign-in declined by provider",
				logger.String("provider", provider),
				logger.String("error", errParam))
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}

		if _, err := d.Auth.CompleteSignIn(r.Context(), mw.SessionID(r.Context()), provider, state, code); err != nil {
			status, message := statusFor(err)
			d.Logger.Warn("sign-in failed", logger.String("provider", provider), logger.Error(err))
			http.Error(w, message, status)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

// Logout signs the browser out. Live views hear about it on their own.
func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Auth.SignOut(r.Context(), mw.SessionID(r.Context())); err != nil {
			d.Logger.Warn("sign-out failed", logger.Error(err))
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}
