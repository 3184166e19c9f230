package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
)

type componentStatus struct {
	OK        bool     `json:"ok"`
	Mode      string   `json:"mode,omitempty"`
	Impact    string   `json:"impact,omitempty"`
	Error     string   `json:"error,omitempty"`
	Providers []string `json:"providers,omitempty"`
	Active    *int64   `json:"active,omitempty"`
	LastRun   string   `json:"last_run,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports the state of every component shelf depends on.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"redis": checkRedis(r.Context(), d),
			"auth":  authStatus(d),
			"live":  liveStatus(d),
		}
		if d.GC != nil {
			components["gc"] = gcStatus(d)
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Status:     overallStatus(components),
			Components: components,
		})
	}
}

func authStatus(d deps.Deps) componentStatus {
	providers := d.Auth.Providers()
	if len(providers) == 0 {
		return componentStatus{OK: false, Impact: "sign-in-disabled", Error: "no provider configured"}
	}
	return componentStatus{OK: true, Providers: providers}
}

func liveStatus(d deps.Deps) componentStatus {
	var active int64
	if d.LiveViews != nil {
		active = d.LiveViews.Load()
	}
	return componentStatus{OK: true, Active: &active}
}

func gcStatus(d deps.Deps) componentStatus {
	last := d.GC.LastRun()
	if last.IsZero() {
		return componentStatus{OK: true, LastRun: "never"}
	}
	return componentStatus{OK: true, LastRun: last.Format(time.RFC3339)}
}

func overallStatus(components map[string]componentStatus) string {
	if redis, ok := components["redis"]; ok && !redis.OK {
		return "critical" // nothing works without the store
	}
	for _, c := range components {
		if !c.OK {
			return "degraded"
		}
	}
	return "ok"
}
