package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/mw"
)

func init() { Register(registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	limited := r.With(
		mw.EnforceHost(d.AllowedHosts, d.Logger),
		mw.RateLimit(mw.RateLimitConfig{
			Burst:             d.AuthRateLimit.Burst,
			RefillPerIPPerMin: d.AuthRateLimit.RefillPerMin,
			MaxEntries:        10000,
			TrustProxy:        d.TrustProxy,
		}),
	)

	limited.Get("/auth/{provider}/login", handlers.Login(d))
	limited.Get("/auth/{provider}/callback", handlers.Callback(d))
	limited.Post("/auth/logout", handlers.Logout(d))
}
