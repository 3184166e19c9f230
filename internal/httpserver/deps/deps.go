package deps

import (
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/shelf/internal/auth"
	"github.com/MrSnakeDoc/shelf/internal/bookmarks"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/shelf/internal/store/redis"
	"github.com/MrSnakeDoc/shelf/internal/view"
)

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time // for testing, defaults to time.Now
	AllowedHosts   []string         // Host headers (and WebSocket origins) allowed to access the server
	AllowedCIDRS   []string         // IPs allowed to access healthz/readyz/infra/reload
	TrustProxy     bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	CookieSecure   bool             // session cookie is sent over https only
	RequestTimeout time.Duration    // timeout of plain HTTP routes; 0 disables it

	RedisClient *redis.Client     // Redis client connection
	Store       *redisstore.Store // bookmarks table and change feed
	Auth        *auth.Service     // identity provider
	Repo        *bookmarks.Repository
	Renderer    *view.Renderer

	AuthRateLimit  RateLimit
	APIRateLimit   RateLimit
	MaxImportBytes int64

	Seed *scheduler.SeedImporter     // nil when no seed file is configured
	GC   *scheduler.GarbageCollector // nil in tests

	LiveViews *atomic.Int64 // open /ws connections
}

// RateLimit is a token bucket size per client.
type RateLimit struct {
	Burst        int
	RefillPerMin int
}

// Now returns d.TimeNow() or time.Now().
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
