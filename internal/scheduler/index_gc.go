// Package scheduler runs shelf's periodic background jobs.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/logger"
	redisstore "github.com/MrSnakeDoc/shelf/internal/store/redis"
)

// DefaultGCInterval is used when no interval is configured.
const DefaultGCInterval = 24 * time.Hour

// IndexPruner repairs ordering indexes. *redisstore.Store implements it.
type IndexPruner interface {
	PruneIndexes(ctx context.Context) (redisstore.PruneResult, error)
}

// GarbageCollector periodically drops index entries that point at missing rows.
type GarbageCollector struct {
	store    IndexPruner
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	lastRun time.Time
}

// NewGarbageCollector creates a new garbage collector
func NewGarbageCollector(store IndexPruner, log logger.Logger, interval time.Duration) *GarbageCollector {
	if interval <= 0 {
		interval = DefaultGCInterval
	}
	if log == nil {
		log = logger.Nop()
	}
	return &GarbageCollector{
		store:    store,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs one collection, then repeats it every interval until Stop or ctx ends.
func (gc *GarbageCollector) Start(ctx context.Context) {
	if _, err := gc.Collect(ctx); err != nil {
		gc.logger.Warn("initial garbage collection failed", logger.Error(err))
	}

	ticker := time.NewTicker(gc.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := gc.Collect(ctx); err != nil {
					gc.logger.Error("garbage collection failed", logger.Error(err))
				}
			case <-gc.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the garbage collector. It is safe to call more than once.
func (gc *GarbageCollector) Stop() {
	gc.stopOnce.Do(func() { close(gc.stopCh) })
}

// LastRun is the time the last successful collection finished.
func (gc *GarbageCollector) LastRun() time.Time {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.lastRun
}

// Collect prunes every owner index once.
func (gc *GarbageCollector) Collect(ctx context.Context) (redisstore.PruneResult, error) {
	gc.logger.Debug("running index garbage collection")

	res, err := gc.store.PruneIndexes(ctx)
	if err != nil {
		return res, err
	}

	gc.mu.Lock()
	gc.lastRun = time.Now()
	gc.mu.Unlock()

	if res.Removed > 0 {
		gc.logger.Info("garbage collection completed",
			logger.Int("owners", res.Owners),
			logger.Int("removed", res.Removed))
	} else {
		gc.logger.Debug("no index entries to garbage collect", logger.Int("owners", res.Owners))
	}
	return res, nil
}
