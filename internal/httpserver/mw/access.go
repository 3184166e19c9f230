package mw

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/utils"
)

func passthrough(next http.Handler) http.Handler { return next }

// AllowOnlyCIDRS lets through only clients whose IP matches one of allowed
// (single IPs or CIDRs). An empty list disables the filter.
// trustProxy resolves the client IP from proxy headers (cloudflared, traefik).
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		log.Debug("AllowOnlyCIDRS: empty matcher, passthrough mode")
		return passthrough
	}

	log.Debugf("AllowOnlyCIDRS: initialized with %d rules, trustProxy=%v", len(allowed), trustProxy)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Debug("AllowOnlyCIDRS: rejected",
					logger.String("ip", ip),
					logger.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// EnforceHost serves only requests whose Host matches one of allowedHosts.
// Patterns may be wildcards like "*.example.com". An empty list disables the check.
func EnforceHost(allowedHosts []string, log logger.Logger) func(http.Handler) http.Handler {
	if len(allowedHosts) == 0 {
		log.Debug("EnforceHost: empty allowedHosts, passthrough mode")
		return passthrough
	}

	log.Debugf("EnforceHost: initialized with hosts=%v", allowedHosts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HostAllowed(r.Host, allowedHosts) {
				log.Debug("EnforceHost: rejected", logger.String("host", r.Host))
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// HostAllowed reports whether host (port ignored) matches one of patterns.
func HostAllowed(host string, patterns []string) bool {
	host = strings.ToLower(utils.ParseHostNoPort(host))
	for _, pattern := range patterns {
		if MatchHost(host, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// MatchHost checks if host matches pattern (supports wildcard *.example.com).
func MatchHost(host, pattern string) bool {
	if host == pattern {
		return true
	}
	if suffix, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(suffix, ".") {
		return strings.HasSuffix(host, suffix) && len(host) > len(suffix)
	}
	return false
}

// CheckOrigin validates the Origin of a WebSocket handshake. Without an
// allow-list the origin must match the request Host; browsers always send
// Origin, so a missing one is accepted for non-browser clients.
func CheckOrigin(allowedHosts []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		if len(allowedHosts) == 0 {
			return strings.EqualFold(u.Host, r.Host)
		}
		return HostAllowed(u.Host, allowedHosts)
	}
}
