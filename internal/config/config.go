package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request timeout of plain HTTP routes (not /ws)

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	PublicURL    string // external base URL, ex: https://shelf.domain.ext
	CookieSecure bool   // mark the session cookie Secure (defaults to PublicURL being https)

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers (also WebSocket origins)
	AllowedCIDRS []string // optional, restrict /healthz, /readyz, /infra, /reload to these IPs/CIDRs
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)

	// Rate limits (token bucket per client IP)
	AuthBurst        int // sign-in attempts allowed at once
	AuthRefillPerMin int
	APIBurst         int // JSON API writes allowed at once
	APIRefillPerMin  int
	MaxImportBytes   int64 // largest accepted import body

	// Seed import of a Homepage bookmarks.yaml (optional, empty file = disabled)
	SeedFile     string
	SeedOwner    string        // user id receiving the seed bookmarks, ex: google:1234
	SeedInterval time.Duration // 0 = only at startup and on POST /reload
	GCInterval   time.Duration // interval of the index garbage collector (default: 24h)

	Auth AuthConfig
}

// AuthConfig holds the identity settings.
type AuthConfig struct {
	JWTSecret  string        `env:"SHELF_JWT_SECRET,required,notEmpty"`
	JWTIssuer  string        `env:"SHELF_JWT_ISSUER" envDefault:"shelf"`
	SessionTTL time.Duration `env:"SHELF_SESSION_TTL" envDefault:"168h"`
	StateTTL   time.Duration `env:"SHELF_OAUTH_STATE_TTL" envDefault:"10m"`

	GoogleClientID     string `env:"SHELF_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"SHELF_GOOGLE_CLIENT_SECRET"`

	// DevLogin enables the "dev" provider: sign in with any email, no password.
	DevLogin bool `env:"SHELF_DEV_LOGIN" envDefault:"false"`
}

// GoogleEnabled reports whether Google sign-in is configured.
func (a AuthConfig) GoogleEnabled() bool {
	return a.GoogleClientID != "" && a.GoogleClientSecret != ""
}

func Load() *Config {
	// A .env file is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] failed to read .env: %v", err)
	}

	publicURL := strings.TrimRight(requireEnv("SHELF_PUBLIC_URL"), "/")

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("SHELF_LISTEN_PORT", ":8080"),
		ShutdownTimeout: envOr("SHELF_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  envOr("SHELF_REQUEST_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("SHELF_LOG_LEVEL", "info"),
		PrettyLog: envOr("SHELF_PRETTY_LOG", true),

		PublicURL:    publicURL,
		CookieSecure: envOr("SHELF_COOKIE_SECURE", strings.HasPrefix(publicURL, "https://")),

		// Redis settings
		RedisAddr:             requireEnv("SHELF_REDIS_ADDR"),
		RedisUser:             getenv("SHELF_REDIS_USERNAME", "default"),
		RedisPasswordRequired: envOr("SHELF_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("SHELF_REDIS_PASSWORD", ""),
		RedisDB:               requireEnvInt("SHELF_REDIS_DB"),
		RedisDT:               envOr("SHELF_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               envOr("SHELF_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               envOr("SHELF_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          envOr("SHELF_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      envOr("SHELF_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         envOr("SHELF_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   envOr("SHELF_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    envOr("SHELF_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    envOr("SHELF_REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: defaultHosts(splitAndTrim(getenv("SHELF_ALLOWED_HOSTS", "")), publicURL),
		AllowedCIDRS: splitAndTrim(getenv("SHELF_ALLOWED_CIDRS", "")),
		TrustProxy:   envOr("SHELF_TRUST_PROXY", true),

		// Rate limits
		AuthBurst:        envOr("SHELF_AUTH_BURST", 10),
		AuthRefillPerMin: envOr("SHELF_AUTH_REFILL_PER_MIN", 10),
		APIBurst:         envOr("SHELF_API_BURST", 60),
		APIRefillPerMin:  envOr("SHELF_API_REFILL_PER_MIN", 120),
		MaxImportBytes:   int64(envOr("SHELF_MAX_IMPORT_BYTES", 1<<20)),

		// Seed import and maintenance
		SeedFile:     getenv("SHELF_SEED_FILE", ""),
		SeedOwner:    getenv("SHELF_SEED_OWNER", ""),
		SeedInterval: envOr("SHELF_SEED_INTERVAL", time.Duration(0)),
		GCInterval:   envOr("SHELF_GC_INTERVAL", 24*time.Hour),
	}

	if err := env.Parse(&cfg.Auth); err != nil {
		panic(fmt.Sprintf("❌ FATAL: invalid auth configuration: %v", err))
	}
	if !cfg.Auth.GoogleEnabled() && !cfg.Auth.DevLogin {
		panic("❌ FATAL: no identity provider: set SHELF_GOOGLE_CLIENT_ID/SECRET or SHELF_DEV_LOGIN=true")
	}

	// Validate Redis password configuration
	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: SHELF_REDIS_PASSWORD is required when SHELF_REDIS_PASSWORD_REQUIRED=true")
	}
	if cfg.SeedFile != "" && cfg.SeedOwner == "" {
		panic("❌ FATAL: SHELF_SEED_OWNER is required when SHELF_SEED_FILE is set")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		cfgCopy.Auth.JWTSecret = "***REDACTED***"
		cfgCopy.Auth.GoogleClientSecret = "***REDACTED***"
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// CallbackURL is the OAuth redirect URL of provider.
func (c *Config) CallbackURL(provider string) string {
	return c.PublicURL + "/auth/" + provider + "/callback"
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

// envOr parses key with the parser matching def's type and falls back to
// def when the variable is unset or malformed.
func envOr[T int | bool | time.Duration](key string, def T) T {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var (
		parsed any
		err    error
	)
	switch any(def).(type) {
	case int:
		parsed, err = strconv.Atoi(v)
	case bool:
		parsed, err = strconv.ParseBool(v)
	case time.Duration:
		parsed, err = time.ParseDuration(v)
	}
	if err != nil {
		return def
	}
	return parsed.(T)
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// defaultHosts falls back to the host of the public URL when no host
// allow-list is configured.
func defaultHosts(hosts []string, publicURL string) []string {
	if len(hosts) > 0 {
		return hosts
	}
	u, err := url.Parse(publicURL)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	return []string{u.Hostname()}
}
