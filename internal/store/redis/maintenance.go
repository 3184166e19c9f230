package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/shelf/internal/logger"
)

// scanBatch is the COUNT hint of SCAN during maintenance.
const scanBatch = 100

// PruneResult summarizes one PruneIndexes run.
type PruneResult struct {
	Owners  int
	Removed int
}

// PruneIndexes drops ordering index entries whose row no longer exists.
// Transactions keep both in step; this only repairs keys touched by hand
// or lost to eviction.
func (s *Store) PruneIndexes(ctx context.Context) (PruneResult, error) {
	var res PruneResult

	iter := s.client.Scan(ctx, 0, KeyPrefixOwner+"*:bookmarks", scanBatch).Iterator()
	for iter.Next(ctx) {
		indexKey := iter.Val()
		res.Owners++

		removed, err := s.pruneIndex(ctx, indexKey)
		if err != nil {
			return res, err
		}
		res.Removed += removed
	}
	if err := iter.Err(); err != nil {
		return res, fmt.Errorf("failed to scan owner indexes: %w", err)
	}

	return res, nil
}

func (s *Store) pruneIndex(ctx context.Context, indexKey string) (int, error) {
	ids, err := s.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", indexKey, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	cmds := make([]*redis.IntCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.Exists(ctx, BookmarkKey(id))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to check rows of %s: %w", indexKey, err)
	}

	var dangling []interface{}
	for i, cmd := range cmds {
		if cmd.Val() == 0 {
			dangling = append(dangling, ids[i])
		}
	}
	if len(dangling) == 0 {
		return 0, nil
	}

	if err := s.client.ZRem(ctx, indexKey, dangling...).Err(); err != nil {
		return 0, fmt.Errorf("failed to prune %s: %w", indexKey, err)
	}
	s.logger.Info("pruned dangling index entries",
		logger.String("owner", ownerFromIndexKey(indexKey)),
		logger.Int("removed", len(dangling)))
	return len(dangling), nil
}

func ownerFromIndexKey(key string) string {
	return strings.TrimSuffix(strings.TrimPrefix(key, KeyPrefixOwner), ":bookmarks")
}
