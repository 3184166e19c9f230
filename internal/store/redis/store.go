package redis

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/shelf/internal/backend"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

var (
	_ backend.Data = (*Store)(nil)
	_ backend.Feed = (*Store)(nil)
)

// Store is the Redis-backed data and change-feed backend.
//
// Rows are JSON values under BookmarkKey, each owner has a sorted set of
// row IDs ordered by creation time, and every committed write publishes a
// domain.Change on the owner's ChangesChannel.
type Store struct {
	client *redis.Client
	logger logger.Logger
	now    func() time.Time
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client, log logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		client: client,
		logger: log,
		now:    time.Now,
	}
}

// Client exposes the underlying connection (health checks).
func (s *Store) Client() *redis.Client {
	return s.client
}

func (s *Store) newID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), ulid.DefaultEntropy()).String()
}
