package redis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/shelf/internal/backend"
	"github.com/MrSnakeDoc/shelf/internal/domain"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := NewStore(client, nil)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return s, mr
}

func insert(t *testing.T, s *Store, owner, title string) domain.Bookmark {
	t.Helper()
	row, err := s.Insert(context.Background(), domain.Bookmark{UserID: owner, Title: title, URL: "https://" + title + ".example"})
	require.NoError(t, err)
	return row
}

func TestInsertAssignsIDAndTimestamp(t *testing.T) {
	s, _ := newTestStore(t)

	row := insert(t, s, "alice", "go")

	assert.NotEmpty(t, row.ID)
	assert.False(t, row.CreatedAt.IsZero())
	assert.Equal(t, "alice", row.UserID)
}

func TestSelectNewestFirstAndScopedToOwner(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first := insert(t, s, "alice", "first")
	second := insert(t, s, "alice", "second")
	insert(t, s, "bob", "other")

	rows, err := s.Select(ctx, backend.Filter{OwnerID: "alice"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, second.ID, rows[0].ID)
	assert.Equal(t, first.ID, rows[1].ID)

	single, err := s.Select(ctx, backend.Filter{OwnerID: "bob", ID: first.ID})
	require.NoError(t, err)
	assert.Empty(t, single)
}

func TestInsertConstraints(t *testing.T) {
	s, _ := newTestStore(t)

	tests := []struct {
		name    string
		row     domain.Bookmark
		message string
	}{
		{"missing owner", domain.Bookmark{Title: "x", URL: "https://x"}, "owner is required"},
		{"blank title", domain.Bookmark{UserID: "a", Title: "  ", URL: "https://x"}, "title must not be empty"},
		{"long title", domain.Bookmark{UserID: "a", Title: strings.Repeat("t", 201), URL: "https://x"}, "title must be at most 200 characters"},
		{"missing url", domain.Bookmark{UserID: "a", Title: "x"}, "url must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Insert(context.Background(), tt.row)

			var be *backend.Error
			require.True(t, errors.As(err, &be))
			assert.Equal(t, backend.KindConstraint, be.Kind)
			assert.Equal(t, tt.message, be.Message)
		})
	}
}

func TestDeleteIsScopedByOwner(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	row := insert(t, s, "alice", "mine")

	n, err := s.Delete(ctx, backend.Filter{OwnerID: "bob", ID: row.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.Delete(ctx, backend.Filter{OwnerID: "alice", ID: row.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.Delete(ctx, backend.Filter{OwnerID: "alice", ID: row.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	rows, err := s.Select(ctx, backend.Filter{OwnerID: "alice"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestUpdate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	row := insert(t, s, "alice", "old")

	row.Title = "new"
	updated, err := s.Update(ctx, row)
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Title)
	assert.Equal(t, row.CreatedAt, updated.CreatedAt)

	_, err = s.Update(ctx, domain.Bookmark{ID: row.ID, UserID: "bob", Title: "stolen", URL: "https://x"})
	var be *backend.Error
	require.True(t, errors.As(err, &be))
	assert.Equal(t, "bookmark not found", be.Message)
}

func TestSubscribeDeliversChangesInOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var mu sync.Mutex
	var got []domain.Change
	h, err := s.Subscribe(ctx, backend.Filter{OwnerID: "alice"}, func(c domain.Change) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	})
	require.NoError(t, err)
	assert.Equal(t, "bookmarks:uid:alice", h.Key())

	row := insert(t, s, "alice", "live")
	insert(t, s, "bob", "ignored")
	_, err = s.Delete(ctx, backend.Filter{OwnerID: "alice", ID: row.ID})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, domain.ChangeInserted, got[0].Type)
	assert.Equal(t, row.ID, got[0].New.ID)
	assert.Equal(t, domain.ChangeDeleted, got[1].Type)
	assert.Equal(t, row.ID, got[1].Old.ID)
	mu.Unlock()

	require.NoError(t, s.Unsubscribe(h))
	require.NoError(t, s.Unsubscribe(h))
}

func TestOAuthStateIsConsumedOnce(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveOAuthState(ctx, "st", OAuthState{SID: "sid-1", Provider: "google"}, time.Minute))

	v, ok, err := s.ConsumeOAuthState(ctx, "st")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sid-1", v.SID)

	_, ok, err = s.ConsumeOAuthState(ctx, "st")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionTokenExpires(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSessionToken(ctx, "sid", "tok", time.Minute))
	tok, err := s.SessionToken(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)

	mr.FastForward(2 * time.Minute)

	tok, err = s.SessionToken(ctx, "sid")
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestAuthEventsReachSubscriber(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	events := make(chan backend.AuthEvent, 1)
	cancel, err := s.SubscribeAuth(ctx, "sid", func(ev backend.AuthEvent) { events <- ev })
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, s.PublishAuthEvent(ctx, "sid", backend.AuthEvent{Type: backend.AuthSignedOut}))

	select {
	case ev := <-events:
		assert.Equal(t, backend.AuthSignedOut, ev.Type)
		assert.Nil(t, ev.Session)
	case <-time.After(2 * time.Second):
		t.Fatal("auth event not delivered")
	}
}

func TestExtractBookmarkID(t *testing.T) {
	id, err := ExtractBookmarkID(BookmarkKey("01ABC"))
	require.NoError(t, err)
	assert.Equal(t, "01ABC", id)

	_, err = ExtractBookmarkID("shelf:owner:x")
	assert.Error(t, err)
}

func TestPruneIndexesDropsDanglingEntries(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	kept := insert(t, s, "alice", "kept")
	lost := insert(t, s, "alice", "lost")
	insert(t, s, "bob", "other")
	mr.Del(BookmarkKey(lost.ID))

	res, err := s.PruneIndexes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Owners)
	assert.Equal(t, 1, res.Removed)

	members, err := mr.ZMembers(OwnerBookmarksKey("alice"))
	require.NoError(t, err)
	assert.Equal(t, []string{kept.ID}, members)

	res, err = s.PruneIndexes(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Removed)
}
