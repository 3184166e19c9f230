package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/shelf/internal/backend"
	"github.com/MrSnakeDoc/shelf/internal/domain"
)

// maxTxAttempts bounds optimistic-lock retries on a contended row
const maxTxAttempts = 3

// Select returns the owner's bookmarks, newest first.
// With f.ID set it returns at most that single row.
func (s *Store) Select(ctx context.Context, f backend.Filter) ([]domain.Bookmark, error) {
	if f.OwnerID == "" {
		return nil, backend.Constraint("select", "owner is required")
	}

	if f.ID != "" {
		row, err := s.getBookmark(ctx, s.client, f.ID)
		if err != nil {
			return nil, backend.Wrap("select", err)
		}
		if row == nil || row.UserID != f.OwnerID {
			return []domain.Bookmark{}, nil
		}
		return []domain.Bookmark{*row}, nil
	}

	ids, err := s.client.ZRevRange(ctx, OwnerBookmarksKey(f.OwnerID), 0, -1).Result()
	if err != nil {
		return nil, backend.Wrap("select", fmt.Errorf("failed to get bookmark IDs: %w", err))
	}
	if len(ids) == 0 {
		return []domain.Bookmark{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = BookmarkKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, backend.Wrap("select", fmt.Errorf("failed to get bookmarks: %w", err))
	}

	rows := make([]domain.Bookmark, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry without a row: skip it, the row is gone
			continue
		}
		var row domain.Bookmark
		if err := json.Unmarshal([]byte(raw), &row); err != nil {
			s.logger.Warnf("skipping unreadable bookmark %s: %v", ids[i], err)
			continue
		}
		if row.UserID != f.OwnerID {
			continue
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// Insert stores a new row, assigning its ID and creation time, and
// publishes an INSERT change in the same transaction.
func (s *Store) Insert(ctx context.Context, row domain.Bookmark) (domain.Bookmark, error) {
	if err := checkRow("insert", row); err != nil {
		return domain.Bookmark{}, err
	}

	now := s.now().UTC()
	row.ID = s.newID(now)
	row.CreatedAt = now

	data, err := json.Marshal(row)
	if err != nil {
		return domain.Bookmark{}, backend.Wrap("insert", fmt.Errorf("failed to marshal bookmark: %w", err))
	}
	change, err := json.Marshal(domain.Change{Type: domain.ChangeInserted, New: &row})
	if err != nil {
		return domain.Bookmark{}, backend.Wrap("insert", fmt.Errorf("failed to marshal change: %w", err))
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, BookmarkKey(row.ID), data, 0)
		pipe.ZAdd(ctx, OwnerBookmarksKey(row.UserID), redis.Z{
			Score:  float64(now.UnixMilli()),
			Member: row.ID,
		})
		pipe.Publish(ctx, ChangesChannel(row.UserID), change)
		return nil
	})
	if err != nil {
		return domain.Bookmark{}, backend.Wrap("insert", fmt.Errorf("failed to save bookmark: %w", err))
	}

	return row, nil
}

// Update overwrites title and URL of an existing row owned by row.UserID
// and publishes an UPDATE change.
func (s *Store) Update(ctx context.Context, row domain.Bookmark) (domain.Bookmark, error) {
	if row.ID == "" {
		return domain.Bookmark{}, backend.Constraint("update", "id is required")
	}
	if err := checkRow("update", row); err != nil {
		return domain.Bookmark{}, err
	}

	var updated domain.Bookmark
	key := BookmarkKey(row.ID)

	err := s.watch(ctx, key, func(tx *redis.Tx) error {
		existing, err := s.getBookmark(ctx, tx, row.ID)
		if err != nil {
			return err
		}
		if existing == nil || existing.UserID != row.UserID {
			return backend.Constraint("update", "bookmark not found")
		}

		updated = *existing
		updated.Title = row.Title
		updated.URL = row.URL

		data, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("failed to marshal bookmark: %w", err)
		}
		change, err := json.Marshal(domain.Change{Type: domain.ChangeUpdated, New: &updated, Old: existing})
		if err != nil {
			return fmt.Errorf("failed to marshal change: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.Publish(ctx, ChangesChannel(row.UserID), change)
			return nil
		})
		return err
	})
	if err != nil {
		return domain.Bookmark{}, backend.Wrap("update", err)
	}

	return updated, nil
}

// Delete removes the row matching both f.ID and f.OwnerID.
// A row that does not exist or belongs to someone else affects zero rows
// and is not an error.
func (s *Store) Delete(ctx context.Context, f backend.Filter) (int, error) {
	if f.OwnerID == "" || f.ID == "" {
		return 0, backend.Constraint("delete", "owner and id are required")
	}

	affected := 0
	key := BookmarkKey(f.ID)

	err := s.watch(ctx, key, func(tx *redis.Tx) error {
		affected = 0
		existing, err := s.getBookmark(ctx, tx, f.ID)
		if err != nil {
			return err
		}
		if existing == nil || existing.UserID != f.OwnerID {
			return nil
		}

		change, err := json.Marshal(domain.Change{Type: domain.ChangeDeleted, Old: existing})
		if err != nil {
			return fmt.Errorf("failed to marshal change: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, OwnerBookmarksKey(f.OwnerID), f.ID)
			pipe.Publish(ctx, ChangesChannel(f.OwnerID), change)
			return nil
		})
		if err != nil {
			return err
		}
		affected = 1
		return nil
	})
	if err != nil {
		return 0, backend.Wrap("delete", fmt.Errorf("failed to delete bookmark: %w", err))
	}

	return affected, nil
}

// watch runs fn in an optimistic transaction on key, retrying when the
// key changed underneath it.
func (s *Store) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	var err error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = s.client.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		s.logger.Debugf("bookmark %s changed during transaction, retrying (attempt %d)", key, attempt+1)
	}
	return err
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// getBookmark loads one row; a missing row is (nil, nil).
func (s *Store) getBookmark(ctx context.Context, c getter, id string) (*domain.Bookmark, error) {
	data, err := c.Get(ctx, BookmarkKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bookmark: %w", err)
	}

	var row domain.Bookmark
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bookmark: %w", err)
	}
	return &row, nil
}

// checkRow enforces the table constraints.
func checkRow(op string, row domain.Bookmark) error {
	switch {
	case row.UserID == "":
		return backend.Constraint(op, "owner is required")
	case strings.TrimSpace(row.Title) == "":
		return backend.Constraint(op, "title must not be empty")
	case utf8.RuneCountInString(row.Title) > domain.MaxTitleLength:
		return backend.Constraint(op, fmt.Sprintf("title must be at most %d characters", domain.MaxTitleLength))
	case strings.TrimSpace(row.URL) == "":
		return backend.Constraint(op, "url must not be empty")
	}
	return nil
}
