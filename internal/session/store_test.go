package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/shelf/internal/backend"
	"github.com/MrSnakeDoc/shelf/internal/domain"
)

func sess(uid string) *domain.Session {
	return &domain.Session{
		Identity:  domain.Identity{UserID: uid, Email: uid + "@example.com"},
		ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestReplaceNotifiesSynchronously(t *testing.T) {
	s := NewStore(nil)

	var calls [][2]string
	s.Subscribe(func(prev, next *domain.Session) {
		calls = append(calls, [2]string{prev.OwnerID(), next.OwnerID()})
	})

	s.Replace(sess("a"))
	s.Replace(sess("b"))
	s.Replace(nil)

	assert.Equal(t, [][2]string{{"", "a"}, {"a", "b"}, {"b", ""}}, calls)
	assert.Nil(t, s.Current())
}

func TestCurrentIsACopy(t *testing.T) {
	s := NewStore(sess("a"))

	got := s.Current()
	got.Identity.UserID = "mutated"

	assert.Equal(t, "a", s.Current().OwnerID())
}

func TestUnsubscribe(t *testing.T) {
	s := NewStore(nil)

	var first, second int
	cancel := s.Subscribe(func(_, _ *domain.Session) { first++ })
	s.Subscribe(func(_, _ *domain.Session) { second++ })

	s.Replace(sess("a"))
	cancel()
	cancel()
	s.Replace(sess("b"))

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestHandleAuthEvent(t *testing.T) {
	tests := []struct {
		name  string
		event backend.AuthEvent
		want  string
	}{
		{"signed in", backend.AuthEvent{Type: backend.AuthSignedIn, Session: sess("a")}, "a"},
		{"refreshed", backend.AuthEvent{Type: backend.AuthTokenRefreshed, Session: sess("b")}, "b"},
		{"signed out", backend.AuthEvent{Type: backend.AuthSignedOut, Session: sess("ignored")}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(sess("initial"))
			s.HandleAuthEvent(tt.event)
			require.Equal(t, tt.want, s.Current().OwnerID())
		})
	}
}
