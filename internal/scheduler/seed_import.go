package scheduler

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/bookmarks"
	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/sources/homepage"
)

// Importer is the part of the repository the seed importer needs.
// *bookmarks.Repository implements it.
type Importer interface {
	Load(ctx context.Context, ownerID string) ([]domain.Bookmark, error)
	Import(ctx context.Context, ownerID string, drafts []domain.Draft) (bookmarks.ImportResult, error)
}

// SeedImporter keeps an owner's shelf in step with a Homepage bookmarks.yaml
// (or services.yaml). Links already on the shelf are left alone, so removing
// or renaming a bookmark in the UI survives the next run.
type SeedImporter struct {
	file          string
	owner         string
	repo          Importer
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}
	mu            sync.Mutex
}

// NewSeedImporter creates a new seed importer
func NewSeedImporter(file, owner string, repo Importer, log logger.Logger, interval time.Duration) *SeedImporter {
	if log == nil {
		log = logger.Nop()
	}
	return &SeedImporter{
		file:          file,
		owner:         owner,
		repo:          repo,
		logger:        log.With(logger.String("file", file), logger.String("owner", owner)),
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: make(chan struct{}, 1),
	}
}

// Start imports once, then again every interval (when > 0) and on Trigger.
func (si *SeedImporter) Start(ctx context.Context) error {
	if _, err := si.Reload(ctx); err != nil {
		return fmt.Errorf("initial seed import failed: %w", err)
	}

	go func() {
		var tick <-chan time.Time
		if si.interval > 0 {
			ticker := time.NewTicker(si.interval)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			select {
			case <-tick:
				si.reloadAndLog(ctx)
			case <-si.manualTrigger:
				si.logger.Info("manual seed import triggered")
				si.reloadAndLog(ctx)
			case <-si.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Trigger queues a reload. It returns false when one is already queued.
func (si *SeedImporter) Trigger() bool {
	select {
	case si.manualTrigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Stop stops the importer. It is safe to call more than once.
func (si *SeedImporter) Stop() {
	si.stopOnce.Do(func() { close(si.stopCh) })
}

func (si *SeedImporter) reloadAndLog(ctx context.Context) {
	if _, err := si.Reload(ctx); err != nil {
		si.logger.Error("failed to import seed file", logger.Error(err))
	}
}

// Reload reads the file and imports the links the owner does not have yet.
func (si *SeedImporter) Reload(ctx context.Context) (bookmarks.ImportResult, error) {
	si.mu.Lock()
	defer si.mu.Unlock()

	data, err := os.ReadFile(si.file)
	if err != nil {
		return bookmarks.ImportResult{}, fmt.Errorf("failed to read seed file: %w", err)
	}

	drafts, err := homepage.Drafts(data)
	if err != nil {
		return bookmarks.ImportResult{}, err
	}

	existing, err := si.repo.Load(ctx, si.owner)
	if err != nil {
		return bookmarks.ImportResult{}, fmt.Errorf("failed to load current bookmarks: %w", err)
	}

	fresh := missing(drafts, existing)
	if len(fresh) == 0 {
		si.logger.Debug("seed file has nothing new", logger.Int("links", len(drafts)))
		return bookmarks.ImportResult{}, nil
	}

	res, err := si.repo.Import(ctx, si.owner, fresh)
	if err != nil {
		return res, err
	}

	si.logger.Info("imported seed bookmarks",
		logger.Int("created", len(res.Created)),
		logger.Int("failed", len(res.Failed)))
	for _, f := range res.Failed {
		si.logger.Warn("seed bookmark rejected",
			logger.String("title", f.Draft.Title),
			logger.Error(f.Err))
	}
	return res, nil
}

// missing returns the drafts whose URL is not on the shelf yet.
func missing(drafts []domain.Draft, existing []domain.Bookmark) []domain.Draft {
	have := make(map[string]bool, len(existing))
	for _, b := range existing {
		have[strings.ToLower(b.URL)] = true
	}

	var out []domain.Draft
	for _, d := range drafts {
		if !have[strings.ToLower(domain.NormalizeURL(d.URL))] {
			out = append(out, d)
		}
	}
	return out
}
