package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/shelf/internal/backend"
	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

// subscription is a live Pub/Sub listener on one owner channel.
type subscription struct {
	channel string
	ps      *redis.PubSub
	once    sync.Once
	err     error
}

func (s *subscription) Key() string { return s.channel }

// close releases the Pub/Sub connection. It does not wait for the pump:
// onEvent may itself be waiting on whoever is closing us.
func (s *subscription) close() error {
	s.once.Do(func() {
		s.err = s.ps.Close()
	})
	return s.err
}

// Subscribe opens the owner's change channel and returns once Redis
// acknowledged it. Changes are decoded and handed to onEvent one at a time,
// in publish order, from a single goroutine.
func (s *Store) Subscribe(ctx context.Context, f backend.Filter, onEvent func(domain.Change)) (backend.Handle, error) {
	if f.OwnerID == "" {
		return nil, backend.Constraint("subscribe", "owner is required")
	}
	if onEvent == nil {
		return nil, errors.New("subscribe: onEvent is required")
	}

	channel := ChangesChannel(f.OwnerID)
	ps := s.client.Subscribe(ctx, channel)

	// First reply is the subscribe confirmation
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, backend.Wrap("subscribe", fmt.Errorf("failed to subscribe to %s: %w", channel, err))
	}

	sub := &subscription{channel: channel, ps: ps}
	go s.pump(sub, ps.Channel(), f, onEvent)

	s.logger.Debug("change feed subscribed", logger.String("channel", channel))
	return sub, nil
}

func (s *Store) pump(sub *subscription, msgs <-chan *redis.Message, f backend.Filter, onEvent func(domain.Change)) {
	for msg := range msgs {
		var change domain.Change
		if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
			s.logger.Warn("dropping malformed change",
				logger.String("channel", msg.Channel),
				logger.Error(err),
			)
			continue
		}
		rec, ok := change.Record()
		if !ok || rec.UserID != f.OwnerID {
			continue
		}
		onEvent(change)
	}
	s.logger.Debug("change feed closed", logger.String("channel", sub.channel))
}

// Unsubscribe releases h. Calling it again, or with a handle from another
// store, is harmless.
func (s *Store) Unsubscribe(h backend.Handle) error {
	sub, ok := h.(*subscription)
	if !ok || sub == nil {
		return nil
	}
	if err := sub.close(); err != nil {
		return backend.Wrap("unsubscribe", fmt.Errorf("failed to close %s: %w", sub.channel, err))
	}
	return nil
}
