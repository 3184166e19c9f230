// Package feed keeps one live change-feed subscription in step with the
// current session and turns its events into collection transforms.
package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrSnakeDoc/shelf/internal/backend"
	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/index"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

// State of the subscriber.
type State int

const (
	Unsubscribed State = iota
	Subscribing
	Subscribed
)

func (s State) String() string {
	switch s {
	case Unsubscribed:
		return "unsubscribed"
	case Subscribing:
		return "subscribing"
	case Subscribed:
		return "subscribed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Applier hands a transform to whoever owns the collection. Calls must be
// applied in the order they are made.
type Applier func(index.Transform)

// SubscriptionError reports a failed open or close. It is logged, never
// returned to callers of Sync.
type SubscriptionError struct {
	Op      string // "open" or "close"
	OwnerID string
	Err     error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("feed %s for owner %s: %v", e.Op, e.OwnerID, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// Subscriber owns the single live subscription of a view.
//
// Every Sync that changes the owner bumps a generation counter. Events and
// acknowledgements are tagged with the generation they were opened under and
// are dropped once it is no longer current, so nothing scoped to a previous
// owner reaches the collection after a switch begins.
type Subscriber struct {
	feed   backend.Feed
	apply  Applier
	logger logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	state  State
	owner  string
	gen    uint64
	handle backend.Handle
	closed bool
}

// NewSubscriber creates an unsubscribed subscriber.
func NewSubscriber(feed backend.Feed, apply Applier, log logger.Logger) *Subscriber {
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Subscriber{
		feed:   feed,
		apply:  apply,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// State returns the current state and the owner it is scoped to.
func (s *Subscriber) State() (State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.owner
}

// Sync moves the subscription to the owner of session.
//
// Same owner while subscribing or subscribed: nothing happens. Otherwise the
// current subscription is released before anything else, and for a signed-in
// session a new one is opened in the background.
func (s *Subscriber) Sync(session *domain.Session) {
	owner := session.OwnerID()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if owner != "" && owner == s.owner && s.state != Unsubscribed {
		return
	}

	s.teardownLocked()
	if owner == "" {
		return
	}

	s.state = Subscribing
	s.owner = owner
	gen := s.gen

	s.wg.Add(1)
	go s.open(gen, owner)
}

// Close releases the subscription, including one whose acknowledgement has
// not arrived yet. Later Syncs are ignored. The returned error is the
// release failure, if any; it has already been logged.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	return s.teardownLocked()
}

// Wait blocks until no subscribe attempt is in flight.
func (s *Subscriber) Wait() {
	s.wg.Wait()
}

// teardownLocked invalidates the current generation and releases the handle.
func (s *Subscriber) teardownLocked() error {
	s.gen++
	h, owner := s.handle, s.owner
	s.handle = nil
	s.owner = ""
	s.state = Unsubscribed

	if h == nil {
		return nil
	}
	return s.release(h, owner)
}

func (s *Subscriber) release(h backend.Handle, owner string) error {
	if err := s.feed.Unsubscribe(h); err != nil {
		serr := &SubscriptionError{Op: "close", OwnerID: owner, Err: err}
		s.logger.Warn("subscription teardown failed",
			logger.String("channel", h.Key()),
			logger.Error(serr),
		)
		return serr
	}
	s.logger.Debug("subscription released", logger.String("channel", h.Key()))
	return nil
}

func (s *Subscriber) open(gen uint64, owner string) {
	defer s.wg.Done()

	h, err := s.feed.Subscribe(s.ctx, backend.Filter{OwnerID: owner}, func(ch domain.Change) {
		s.deliver(gen, ch)
	})

	s.mu.Lock()
	if s.gen != gen {
		// Superseded while we were waiting for the acknowledgement
		s.mu.Unlock()
		if err == nil && h != nil {
			_ = s.release(h, owner)
		}
		return
	}
	if err != nil {
		s.state = Unsubscribed
		s.owner = ""
		s.mu.Unlock()
		s.logger.Warn("subscription failed",
			logger.String("owner", owner),
			logger.Error(&SubscriptionError{Op: "open", OwnerID: owner, Err: err}),
		)
		return
	}
	s.handle = h
	s.state = Subscribed
	s.mu.Unlock()

	s.logger.Debug("subscribed", logger.String("channel", h.Key()))
}

// accepts reports whether gen is still the live generation. Events can
// arrive just before open records the acknowledgement, so Subscribing counts.
func (s *Subscriber) accepts(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen && s.state != Unsubscribed
}

func (s *Subscriber) deliver(gen uint64, ch domain.Change) {
	if !s.accepts(gen) {
		return
	}
	s.apply(func(c index.Collection) index.Collection {
		// Checked again when the owner of the collection runs it
		if !s.accepts(gen) {
			return c
		}
		return c.Apply(ch)
	})
}
