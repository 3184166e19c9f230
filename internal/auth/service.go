// Package auth signs browsers in through OAuth providers and keeps their
// sessions as signed tokens in Redis.
//
// A browser is identified by an opaque session id (sid) carried in a cookie.
// Every live view of that browser gets its own backend.Auth from Client and
// hears about sign-in and sign-out through the browser's auth channel.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/shelf/internal/backend"
	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	redisstore "github.com/MrSnakeDoc/shelf/internal/store/redis"
)

// ErrUnknownProvider is returned for providers that are not configured.
var ErrUnknownProvider = errors.New("unknown identity provider")

// SessionStore persists tokens, pending sign-ins and auth events.
// *redisstore.Store implements it.
type SessionStore interface {
	SaveSessionToken(ctx context.Context, sid, token string, ttl time.Duration) error
	SessionToken(ctx context.Context, sid string) (string, error)
	DeleteSessionToken(ctx context.Context, sid string) error
	SaveOAuthState(ctx context.Context, state string, v redisstore.OAuthState, ttl time.Duration) error
	ConsumeOAuthState(ctx context.Context, state string) (redisstore.OAuthState, bool, error)
	PublishAuthEvent(ctx context.Context, sid string, ev backend.AuthEvent) error
	SubscribeAuth(ctx context.Context, sid string, fn func(backend.AuthEvent)) (func(), error)
}

// Service is the identity provider of shelf.
type Service struct {
	store     SessionStore
	tokens    *TokenService
	providers map[string]Provider
	stateTTL  time.Duration
	logger    logger.Logger
}

// NewService wires the identity service.
func NewService(store SessionStore, tokens *TokenService, stateTTL time.Duration, log logger.Logger, providers ...Provider) *Service {
	if log == nil {
		log = logger.Nop()
	}
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Service{
		store:     store,
		tokens:    tokens,
		providers: byName,
		stateTTL:  stateTTL,
		logger:    log,
	}
}

// Providers lists the configured provider names, sorted.
func (s *Service) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Client returns the auth capability of browser sid.
func (s *Service) Client(sid string) backend.Auth {
	return &browserAuth{svc: s, sid: sid}
}

// Session returns the signed-in session of sid, or nil.
// Expired or tampered tokens count as signed out.
func (s *Service) Session(ctx context.Context, sid string) (*domain.Session, error) {
	if sid == "" {
		return nil, nil
	}
	token, err := s.store.SessionToken(ctx, sid)
	if err != nil {
		return nil, backend.Wrap("session", err)
	}
	if token == "" {
		return nil, nil
	}

	session, err := s.tokens.Parse(token)
	if err != nil {
		s.logger.Debug("discarding session token", logger.String("reason", err.Error()))
		return nil, nil
	}
	return session, nil
}

// BeginSignIn records a pending sign-in for sid and returns the provider URL.
func (s *Service) BeginSignIn(ctx context.Context, sid, provider string) (string, error) {
	p, ok := s.providers[provider]
	if !ok {
		return "", backend.Unauthorized("sign_in", "Unknown sign-in provider", ErrUnknownProvider)
	}
	if sid == "" {
		return "", backend.Unauthorized("sign_in", "Missing browser session", nil)
	}

	state := uuid.NewString()
	if err := s.store.SaveOAuthState(ctx, state, redisstore.OAuthState{SID: sid, Provider: provider}, s.stateTTL); err != nil {
		return "", backend.Wrap("sign_in", err)
	}
	return p.AuthCodeURL(state), nil
}

// CompleteSignIn finishes the OAuth callback for sid: the state must be
// one BeginSignIn issued to the same browser and provider.
func (s *Service) CompleteSignIn(ctx context.Context, sid, provider, state, code string) (*domain.Session, error) {
	p, ok := s.providers[provider]
	if !ok {
		return nil, backend.Unauthorized("sign_in", "Unknown sign-in provider", ErrUnknownProvider)
	}

	pending, found, err := s.store.ConsumeOAuthState(ctx, state)
	if err != nil {
		return nil, backend.Wrap("sign_in", err)
	}
	if !found || pending.SID != sid || pending.Provider != provider {
		return nil, backend.Unauthorized("sign_in", "Sign-in expired, please try again", nil)
	}

	identity, err := p.Identify(ctx, code)
	if err != nil {
		return nil, backend.Unauthorized("sign_in", "Sign-in failed", err)
	}

	token, session, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, backend.Wrap("sign_in", fmt.Errorf("failed to sign token: %w", err))
	}
	if err := s.store.SaveSessionToken(ctx, sid, token, s.tokens.TTL()); err != nil {
		return nil, backend.Wrap("sign_in", err)
	}

	s.publish(ctx, sid, backend.AuthEvent{Type: backend.AuthSignedIn, Session: session})
	s.logger.Info("signed in",
		logger.String("provider", provider),
		logger.String("user_id", identity.UserID),
	)
	return session, nil
}

// Refresh reissues the token of sid once half of its lifetime is spent.
// It returns the current session (nil when signed out).
func (s *Service) Refresh(ctx context.Context, sid string) (*domain.Session, error) {
	session, err := s.Session(ctx, sid)
	if err != nil || session == nil {
		return session, err
	}
	if session.ExpiresAt.Sub(s.tokens.now()) > s.tokens.TTL()/2 {
		return session, nil
	}

	token, next, err := s.tokens.Issue(session.Identity)
	if err != nil {
		return nil, backend.Wrap("refresh", fmt.Errorf("failed to sign token: %w", err))
	}
	if err := s.store.SaveSessionToken(ctx, sid, token, s.tokens.TTL()); err != nil {
		return nil, backend.Wrap("refresh", err)
	}
	s.publish(ctx, sid, backend.AuthEvent{Type: backend.AuthTokenRefreshed, Session: next})
	return next, nil
}

// SignOut forgets the token of sid and tells every live view.
func (s *Service) SignOut(ctx context.Context, sid string) error {
	if err := s.store.DeleteSessionToken(ctx, sid); err != nil {
		return backend.Wrap("sign_out", err)
	}
	s.publish(ctx, sid, backend.AuthEvent{Type: backend.AuthSignedOut})
	return nil
}

func (s *Service) publish(ctx context.Context, sid string, ev backend.AuthEvent) {
	if err := s.store.PublishAuthEvent(ctx, sid, ev); err != nil {
		s.logger.Warn("failed to publish auth event",
			logger.String("type", string(ev.Type)),
			logger.Error(err),
		)
	}
}

// browserAuth is the backend.Auth of one browser.
type browserAuth struct {
	svc *Service
	sid string
}

func (a *browserAuth) CurrentSession(ctx context.Context) (*domain.Session, error) {
	return a.svc.Session(ctx, a.sid)
}

func (a *browserAuth) OnAuthStateChange(ctx context.Context, fn func(backend.AuthEvent)) (func(), error) {
	cancel, err := a.svc.store.SubscribeAuth(ctx, a.sid, fn)
	if err != nil {
		return nil, backend.Wrap("auth_subscribe", err)
	}
	return cancel, nil
}

func (a *browserAuth) SignInWithProvider(ctx context.Context, provider string) (string, error) {
	return a.svc.BeginSignIn(ctx, a.sid, provider)
}

func (a *browserAuth) SignOut(ctx context.Context) error {
	return a.svc.SignOut(ctx, a.sid)
}
