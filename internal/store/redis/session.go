package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/shelf/internal/backend"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

// OAuthState is what we remember between redirecting a browser to the
// provider and receiving the callback.
type OAuthState struct {
	SID      string `json:"sid"`
	Provider string `json:"provider"`
}

// SaveSessionToken stores the signed session token of browser sid.
func (s *Store) SaveSessionToken(ctx context.Context, sid, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, SessionKey(sid), token, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// SessionToken returns the stored token of sid, or "" when there is none.
func (s *Store) SessionToken(ctx context.Context, sid string) (string, error) {
	token, err := s.client.Get(ctx, SessionKey(sid)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get session: %w", err)
	}
	return token, nil
}

// DeleteSessionToken forgets the token of sid.
func (s *Store) DeleteSessionToken(ctx context.Context, sid string) error {
	if err := s.client.Del(ctx, SessionKey(sid)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// SaveOAuthState remembers a pending sign-in under state until ttl.
func (s *Store) SaveOAuthState(ctx context.Context, state string, v OAuthState, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal oauth state: %w", err)
	}
	if err := s.client.Set(ctx, OAuthStateKey(state), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	return nil
}

// ConsumeOAuthState returns and deletes a pending sign-in. A state can be
// consumed once; ok is false for unknown or expired states.
func (s *Store) ConsumeOAuthState(ctx context.Context, state string) (OAuthState, bool, error) {
	data, err := s.client.GetDel(ctx, OAuthStateKey(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return OAuthState{}, false, nil
		}
		return OAuthState{}, false, fmt.Errorf("failed to consume oauth state: %w", err)
	}

	var v OAuthState
	if err := json.Unmarshal(data, &v); err != nil {
		return OAuthState{}, false, fmt.Errorf("failed to unmarshal oauth state: %w", err)
	}
	return v, true, nil
}

// PublishAuthEvent notifies every live view of browser sid.
func (s *Store) PublishAuthEvent(ctx context.Context, sid string, ev backend.AuthEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal auth event: %w", err)
	}
	if err := s.client.Publish(ctx, AuthChannel(sid), data).Err(); err != nil {
		return fmt.Errorf("failed to publish auth event: %w", err)
	}
	return nil
}

// SubscribeAuth delivers auth events of browser sid to fn until cancel is
// called or ctx ends.
func (s *Store) SubscribeAuth(ctx context.Context, sid string, fn func(backend.AuthEvent)) (func(), error) {
	channel := AuthChannel(sid)
	ps := s.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			if err := ps.Close(); err != nil {
				s.logger.Warn("failed to close auth channel", logger.String("channel", channel), logger.Error(err))
			}
		})
	}

	msgs := ps.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev backend.AuthEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					s.logger.Warn("dropping malformed auth event", logger.String("channel", channel), logger.Error(err))
					continue
				}
				fn(ev)
			}
		}
	}()

	return cancel, nil
}
