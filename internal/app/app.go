// Package app wires shelf together and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/shelf/internal/auth"
	"github.com/MrSnakeDoc/shelf/internal/bookmarks"
	"github.com/MrSnakeDoc/shelf/internal/config"
	"github.com/MrSnakeDoc/shelf/internal/httpserver"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/redis"
	"github.com/MrSnakeDoc/shelf/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/shelf/internal/store/redis"
	"github.com/MrSnakeDoc/shelf/internal/version"
	"github.com/MrSnakeDoc/shelf/internal/view"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	seed        *scheduler.SeedImporter
	gc          *scheduler.GarbageCollector
}

func New() (*App, error) {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize Redis early - fail fast if unavailable
	redisClient, err := redis.New(context.Background(), redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		DB:             cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient.Named("redis"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	store := redisstore.NewStore(redisClient, loggerClient.Named("store"))

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.SessionTTL)
	if err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("failed to set up session tokens: %w", err)
	}

	var providers []auth.Provider
	if cfg.Auth.GoogleEnabled() {
		providers = append(providers, auth.NewGoogleProvider(
			cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, cfg.CallbackURL("google")))
	}
	if cfg.Auth.DevLogin {
		loggerClient.Warn("dev sign-in enabled: anyone can sign in as any email")
		providers = append(providers, auth.NewDevProvider(cfg.CallbackURL("dev")))
	}
	authSvc := auth.NewService(store, tokens, cfg.Auth.StateTTL, loggerClient.Named("auth"), providers...)

	repo := bookmarks.NewRepository(store, loggerClient.Named("bookmarks"))

	renderer, err := view.NewRenderer()
	if err != nil {
		_ = redisClient.Close()
		return nil, err
	}

	var seed *scheduler.SeedImporter
	if cfg.SeedFile != "" {
		loggerClient.Info("seed file configured, initializing seed importer",
			logger.String("file", cfg.SeedFile))
		seed = scheduler.NewSeedImporter(cfg.SeedFile, cfg.SeedOwner, repo, loggerClient.Named("seed"), cfg.SeedInterval)
	}
	gc := scheduler.NewGarbageCollector(store, loggerClient.Named("gc"), cfg.GCInterval)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		AllowedHosts:   cfg.AllowedHosts,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		TrustProxy:     cfg.TrustProxy,
		CookieSecure:   cfg.CookieSecure,
		RequestTimeout: cfg.RequestTimeout,
		RedisClient:    redisClient,
		Store:          store,
		Auth:           authSvc,
		Repo:           repo,
		Renderer:       renderer,
		AuthRateLimit:  deps.RateLimit{Burst: cfg.AuthBurst, RefillPerMin: cfg.AuthRefillPerMin},
		APIRateLimit:   deps.RateLimit{Burst: cfg.APIBurst, RefillPerMin: cfg.APIRefillPerMin},
		MaxImportBytes: cfg.MaxImportBytes,
		Seed:           seed,
		GC:             gc,
		LiveViews:      &atomic.Int64{},
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      httpserver.New(cfg, loggerClient, d),
		redisClient: redisClient,
		seed:        seed,
		gc:          gc,
	}, nil
}

func (a *App) Run() error {
	defer func() { _ = a.logger.Sync() }()

	a.logger.Infof("🚀 Starting Shelf v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start seed importer (imports once, then keeps the file in step)
	if a.seed != nil {
		if err := a.seed.Start(ctx); err != nil {
			return fmt.Errorf("failed to start seed importer: %w", err)
		}
		a.logger.Info("seed importer started",
			logger.Duration("interval", a.cfg.SeedInterval))
	}

	a.gc.Start(ctx)
	a.logger.Info("garbage collector started",
		logger.Duration("interval", a.cfg.GCInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	if a.seed != nil {
		a.seed.Stop()
	}
	a.gc.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if err := a.redisClient.Close(); err != nil {
		a.logger.Warnf("failed to close redis: %v", err)
	} else {
		a.logger.Info("✅ Redis closed cleanly")
	}

	a.logger.Info("✅ Shelf stopped cleanly")
	return nil
}
