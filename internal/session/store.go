// Package session holds the authentication state of one live view.
package session

import (
	"sync"

	"github.com/MrSnakeDoc/shelf/internal/backend"
	"github.com/MrSnakeDoc/shelf/internal/domain"
)

// Listener is told about every replacement, with the previous and next value.
type Listener func(prev, next *domain.Session)

// Store is the current session plus the dependents that react to it.
//
// The session is only ever replaced wholesale. Listeners run synchronously,
// in registration order, on the goroutine that called Replace.
type Store struct {
	mu        sync.Mutex
	current   *domain.Session
	listeners map[int]Listener
	order     []int
	nextID    int
}

// NewStore returns a store holding initial (nil = signed out).
func NewStore(initial *domain.Session) *Store {
	return &Store{
		current:   initial.Clone(),
		listeners: make(map[int]Listener),
	}
}

// Current returns a copy of the session, or nil when signed out.
func (s *Store) Current() *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Subscribe registers l and returns a function removing it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Replace swaps the session and notifies listeners.
func (s *Store) Replace(next *domain.Session) {
	next = next.Clone()

	s.mu.Lock()
	prev := s.current
	s.current = next
	listeners := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		listeners = append(listeners, s.listeners[id])
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(prev.Clone(), next.Clone())
	}
}

// HandleAuthEvent feeds an identity provider event into the store.
func (s *Store) HandleAuthEvent(ev backend.AuthEvent) {
	switch ev.Type {
	case backend.AuthSignedOut:
		s.Replace(nil)
	default:
		s.Replace(ev.Session)
	}
}
