// Package bookmarks is the client side of the bookmarks table: every call
// is scoped to one owner and goes through backend.Data.
package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/shelf/internal/backend"
	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

// ConfirmFunc asks the user to confirm a destructive action.
type ConfirmFunc func(ctx context.Context) (bool, error)

// ErrNotFound is returned by Rename for ids the owner does not have.
var ErrNotFound = errors.New("bookmark not found")

// Repository performs bookmark reads and writes for one owner at a time.
type Repository struct {
	data   backend.Data
	logger logger.Logger
}

// NewRepository creates a new repository
func NewRepository(data backend.Data, log logger.Logger) *Repository {
	if log == nil {
		log = logger.Nop()
	}
	return &Repository{data: data, logger: log}
}

// Load returns every bookmark of ownerID, newest first.
func (r *Repository) Load(ctx context.Context, ownerID string) ([]domain.Bookmark, error) {
	rows, err := r.data.Select(ctx, backend.Filter{OwnerID: ownerID})
	if err != nil {
		return nil, backend.Wrap("load", err)
	}
	return rows, nil
}

// Create validates title and url and inserts the bookmark.
// Invalid input fails with *domain.ValidationError without a backend call.
func (r *Repository) Create(ctx context.Context, ownerID, title, url string) (domain.Bookmark, error) {
	draft, err := domain.Draft{Title: title, URL: url}.Validate()
	if err != nil {
		return domain.Bookmark{}, err
	}

	row, err := r.data.Insert(ctx, domain.Bookmark{
		UserID: ownerID,
		Title:  draft.Title,
		URL:    draft.URL,
	})
	if err != nil {
		return domain.Bookmark{}, backend.Wrap("create", err)
	}

	r.logger.Debug("bookmark created",
		logger.String("owner", ownerID),
		logger.String("id", row.ID),
	)
	return row, nil
}

// Delete removes bookmarkID once confirm says yes.
//
// confirm is required and is awaited before anything else; a "no" returns
// (false, nil) and nothing is sent to the backend. A bookmark that is not
// owned by ownerID is left alone and still reports (true, nil).
func (r *Repository) Delete(ctx context.Context, ownerID, bookmarkID string, confirm ConfirmFunc) (bool, error) {
	if confirm == nil {
		return false, errors.New("delete requires a confirmation step")
	}

	ok, err := confirm(ctx)
	if err != nil {
		return false, fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		return false, nil
	}

	affected, err := r.data.Delete(ctx, backend.Filter{OwnerID: ownerID, ID: bookmarkID})
	if err != nil {
		return false, backend.Wrap("delete", err)
	}

	r.logger.Debug("bookmark deleted",
		logger.String("owner", ownerID),
		logger.String("id", bookmarkID),
		logger.Int("affected", affected),
	)
	return true, nil
}

// Rename changes the title of an existing bookmark.
func (r *Repository) Rename(ctx context.Context, ownerID, bookmarkID, title string) (domain.Bookmark, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Bookmark{}, &domain.ValidationError{Field: "title", Reason: "must not be empty"}
	}

	rows, err := r.data.Select(ctx, backend.Filter{OwnerID: ownerID, ID: bookmarkID})
	if err != nil {
		return domain.Bookmark{}, backend.Wrap("rename", err)
	}
	if len(rows) == 0 {
		return domain.Bookmark{}, ErrNotFound
	}

	row := rows[0]
	row.Title = title
	updated, err := r.data.Update(ctx, row)
	if err != nil {
		return domain.Bookmark{}, backend.Wrap("rename", err)
	}
	return updated, nil
}

// ImportFailure is one draft Import could not create.
type ImportFailure struct {
	Draft domain.Draft
	Err   error
}

// ImportResult summarizes an Import.
type ImportResult struct {
	Created []domain.Bookmark
	Failed  []ImportFailure
}

// Import creates drafts in order. Individual failures are collected and
// do not stop the import; only ctx cancellation does.
func (r *Repository) Import(ctx context.Context, ownerID string, drafts []domain.Draft) (ImportResult, error) {
	var res ImportResult
	for _, d := range drafts {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		row, err := r.Create(ctx, ownerID, d.Title, d.URL)
		if err != nil {
			res.Failed = append(res.Failed, ImportFailure{Draft: d, Err: err})
			continue
		}
		res.Created = append(res.Created, row)
	}

	r.logger.Info("import finished",
		logger.String("owner", ownerID),
		logger.Int("created", len(res.Created)),
		logger.Int("failed", len(res.Failed)),
	)
	return res, nil
}
