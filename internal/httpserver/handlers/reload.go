package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

type reloadResponse struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

// Reload triggers a manual import of the seed file.
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Seed == nil {
			writeJSON(w, http.StatusNotFound, reloadResponse{Message: "no seed file configured"})
			return
		}

		if !d.Seed.Trigger() {
			d.Logger.Warn("seed import already queued", logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusTooManyRequests, reloadResponse{Message: "reload already in progress, please wait"})
			return
		}

		d.Logger.Info("manual seed import triggered via endpoint", logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, http.StatusAccepted, reloadResponse{Triggered: true, Message: "reload triggered"})
	}
}
