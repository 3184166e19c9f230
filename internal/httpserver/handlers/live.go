package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/mw"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/view"
)

// Live upgrades to a WebSocket and runs one view controller on it until
// the browser leaves or the server shuts down.
func Live(d deps.Deps) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 16384,
		CheckOrigin:     mw.CheckOrigin(d.AllowedHosts),
	}
	providers := d.Auth.Providers()

	return func(w http.ResponseWriter, r *http.Request) {
		sid := mw.SessionID(r.Context())

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already answered the client.
			d.Logger.Debug("websocket upgrade failed", logger.Error(err))
			return
		}
		defer func() { _ = conn.Close() }()

		if d.LiveViews != nil {
			d.LiveViews.Add(1)
			defer d.LiveViews.Add(-1)
		}

		log := d.Logger.Named("view").With(logger.String("remote_ip", r.RemoteAddr))
		ctl := view.NewController(view.Deps{
			Auth:      d.Auth.Client(sid),
			Repo:      d.Repo,
			Feed:      d.Store,
			Renderer:  d.Renderer,
			Providers: providers,
			Logger:    log,
		})

		if err := ctl.Run(r.Context(), view.NewWSTransport(conn)); err != nil {
			log.Debug("live view ended", logger.Error(err))
		}
	}
}
