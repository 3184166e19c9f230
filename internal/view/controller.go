// Package view is the live page of one browser connection.
//
// A Controller owns all view state (session, collection, loading and busy
// flags) and mutates it only from its event loop. Backend calls run on their
// own goroutines and post their results back to the loop as closures, so the
// loop never blocks on the network.
package view

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/shelf/internal/backend"
	"github.com/MrSnakeDoc/shelf/internal/bookmarks"
	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/feed"
	"github.com/MrSnakeDoc/shelf/internal/index"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/session"
)

const (
	inboxSize  = 64
	outboxSize = 32

	deletePrompt = "Delete this bookmark?"
)

// Deps are the collaborators of a Controller.
type Deps struct {
	Auth      backend.Auth
	Repo      *bookmarks.Repository
	Feed      backend.Feed
	Renderer  *Renderer
	Providers []string
	Logger    logger.Logger
}

// Controller drives one live page.
type Controller struct {
	auth      backend.Auth
	repo      *bookmarks.Repository
	feed      backend.Feed
	renderer  *Renderer
	providers []string
	logger    logger.Logger

	inbox chan func()
	out   chan Outbound

	// Owned by the event loop once Run started.
	ctx      context.Context
	sessions *session.Store
	sub      *feed.Subscriber
	col      index.Collection
	loading  bool
	busy     bool
	loadGen  uint64
	confirms map[string]chan bool
	expiry   *time.Timer

	// Feed transforms that arrived while a reload was in flight. They are
	// replayed over the loaded rows; every transform is idempotent.
	pending []index.Transform
}

// NewController builds a controller; call Run to start it.
func NewController(d Deps) *Controller {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Controller{
		auth:      d.Auth,
		repo:      d.Repo,
		feed:      d.Feed,
		renderer:  d.Renderer,
		providers: d.Providers,
		logger:    log,
		inbox:     make(chan func(), inboxSize),
		out:       make(chan Outbound, outboxSize),
		col:       index.Empty(),
		confirms:  make(map[string]chan bool),
	}
}

// Run serves the browser behind t until it disconnects or ctx ends.
// A normal disconnect returns nil.
func (c *Controller) Run(ctx context.Context, t Transport) error {
	g, ctx := errgroup.WithContext(ctx)
	c.ctx = ctx

	initial, err := c.auth.CurrentSession(ctx)
	if err != nil {
		c.logger.Warn("failed to read session", logger.Error(err))
		initial = nil
	}

	c.sessions = session.NewStore(nil)
	c.sessions.Subscribe(c.onSessionChange)

	c.sub = feed.NewSubscriber(c.feed, c.applyFromFeed, c.logger.Named("feed"))
	defer func() { _ = c.sub.Close() }()

	stopAuth, err := c.auth.OnAuthStateChange(ctx, func(ev backend.AuthEvent) {
		c.post(func() { c.sessions.HandleAuthEvent(ev) })
	})
	if err != nil {
		// Live sign-in/out from other tabs is lost; the page still works.
		c.logger.Warn("failed to watch auth state", logger.Error(err))
	} else {
		defer stopAuth()
	}

	g.Go(func() error {
		for {
			msg, err := t.Receive(ctx)
			if err != nil {
				return err
			}
			c.post(func() { c.handle(msg) })
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case m := <-c.out:
				if err := t.Send(ctx, m); err != nil {
					return err
				}
			}
		}
	})

	g.Go(func() error {
		c.sessions.Replace(initial)
		for {
			select {
			case <-ctx.Done():
				return nil
			case fn := <-c.inbox:
				fn()
			}
		}
	})

	err = g.Wait()
	if c.expiry != nil {
		c.expiry.Stop()
	}
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// post queues fn on the event loop. It gives up once the view is gone.
func (c *Controller) post(fn func()) {
	select {
	case c.inbox <- fn:
	case <-c.ctx.Done():
	}
}

func (c *Controller) send(m Outbound) {
	select {
	case c.out <- m:
	case <-c.ctx.Done():
	}
}

func (c *Controller) notice(message string) {
	c.send(Outbound{Type: MsgNotice, Level: "error", Message: message})
}

func (c *Controller) applyFromFeed(t index.Transform) {
	c.post(func() {
		if c.loading {
			c.pending = append(c.pending, t)
			return
		}
		c.col = t(c.col)
		c.render(false)
	})
}

// replay runs the transforms held back during a reload over col.
func (c *Controller) replay(col index.Collection) index.Collection {
	for _, t := range c.pending {
		col = t(col)
	}
	c.pending = nil
	return col
}

// armExpiry signs the view out when s expires, unless the session has been
// replaced by then.
func (c *Controller) armExpiry(s *domain.Session) {
	if c.expiry != nil {
		c.expiry.Stop()
		c.expiry = nil
	}
	if s == nil || s.ExpiresAt.IsZero() {
		return
	}
	expiresAt := s.ExpiresAt
	c.expiry = time.AfterFunc(time.Until(expiresAt), func() {
		c.post(func() {
			current := c.sessions.Current()
			if current == nil || !current.ExpiresAt.Equal(expiresAt) {
				return
			}
			c.logger.Info("session expired", logger.String("owner", current.OwnerID()))
			c.sessions.Replace(nil)
		})
	})
}

// onSessionChange runs synchronously inside sessions.Replace, on the loop.
func (c *Controller) onSessionChange(prev, next *domain.Session) {
	c.armExpiry(next)
	c.sub.Sync(next)

	if next != nil && prev.OwnerID() == next.OwnerID() {
		// Same user, new token
		c.render(false)
		return
	}

	c.loadGen++
	c.col = index.Empty()
	c.pending = nil
	c.busy = false
	c.rejectConfirms()

	if next == nil {
		c.loading = false
		c.render(true)
		return
	}

	c.loading = true
	c.render(true)
	c.reload(next.OwnerID())
}

func (c *Controller) reload(owner string) {
	gen := c.loadGen
	go func() {
		rows, err := c.repo.Load(c.ctx, owner)
		c.post(func() {
			if gen != c.loadGen || c.sessions.Current().OwnerID() != owner {
				c.logger.Debug("discarding stale reload", logger.String("owner", owner))
				return
			}
			c.loading = false
			if err != nil {
				c.logger.Warn("failed to load bookmarks", logger.String("owner", owner), logger.Error(err))
				c.notice(backend.UserMessage(err, "Failed to load bookmarks"))
				c.col = c.replay(c.col)
			} else {
				c.col = c.replay(index.FromLoad(rows))
			}
			c.render(false)
		})
	}()
}

func (c *Controller) handle(msg Inbound) {
	switch msg.Type {
	case MsgAdd:
		c.add(msg.Title, msg.URL)
	case MsgDelete:
		c.delete(msg.ID)
	case MsgConfirm:
		c.answer(msg.ID, msg.OK)
	case MsgSignIn:
		c.signIn(msg.Provider)
	case MsgSignOut:
		c.signOut()
	default:
		c.logger.Debug("ignoring unknown message", logger.String("type", msg.Type))
	}
}

func (c *Controller) add(title, url string) {
	owner := c.sessions.Current().OwnerID()
	if owner == "" || c.busy {
		return
	}
	title = strings.TrimSpace(title)
	url = strings.TrimSpace(url)
	if title == "" || url == "" {
		return
	}

	c.busy = true
	c.render(false)

	go func() {
		row, err := c.repo.Create(c.ctx, owner, title, url)
		c.post(func() {
			if c.sessions.Current().OwnerID() != owner {
				return
			}
			c.busy = false
			if err != nil {
				var ve *domain.ValidationError
				if !errors.As(err, &ve) {
					c.logger.Warn("failed to add bookmark", logger.Error(err))
					c.notice(backend.UserMessage(err, "Failed to add bookmark"))
				}
				c.render(false)
				return
			}
			c.col = c.col.Prepend(row)
			c.render(true)
		})
	}()
}

func (c *Controller) delete(id string) {
	owner := c.sessions.Current().OwnerID()
	if owner == "" || id == "" {
		return
	}
	if _, pending := c.confirms[id]; pending {
		return
	}

	answer := make(chan bool, 1)
	c.confirms[id] = answer

	confirm := func(ctx context.Context) (bool, error) {
		c.post(func() {
			c.send(Outbound{Type: MsgConfirm, ID: id, Prompt: deletePrompt})
		})
		select {
		case ok := <-answer:
			return ok, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}

	go func() {
		deleted, err := c.repo.Delete(c.ctx, owner, id, confirm)
		c.post(func() {
			if c.confirms[id] == answer {
				delete(c.confirms, id)
			}
			if c.sessions.Current().OwnerID() != owner {
				return
			}
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					c.logger.Warn("failed to delete bookmark", logger.String("id", id), logger.Error(err))
					c.notice(backend.UserMessage(err, "Failed to delete bookmark"))
				}
				return
			}
			if deleted {
				c.col = c.col.Remove(id)
				c.render(false)
			}
		})
	}()
}

func (c *Controller) answer(id string, ok bool) {
	ch, pending := c.confirms[id]
	if !pending {
		return
	}
	delete(c.confirms, id)
	ch <- ok
}

// rejectConfirms answers "no" to every open question.
func (c *Controller) rejectConfirms() {
	for id, ch := range c.confirms {
		delete(c.confirms, id)
		ch <- false
	}
}

func (c *Controller) signIn(provider string) {
	if c.sessions.Current() != nil {
		return
	}
	go func() {
		url, err := c.auth.SignInWithProvider(c.ctx, provider)
		c.post(func() {
			if err != nil {
				c.logger.Warn("failed to start sign-in", logger.String("provider", provider), logger.Error(err))
				c.notice(backend.UserMessage(err, "Failed to sign in"))
				return
			}
			c.send(Outbound{Type: MsgRedirect, URL: url})
		})
	}()
}

// signOut clears the view even when the backend call fails.
func (c *Controller) signOut() {
	if c.sessions.Current() == nil {
		return
	}
	go func() {
		err := c.auth.SignOut(c.ctx)
		c.post(func() {
			if err != nil {
				c.logger.Warn("sign-out failed", logger.Error(err))
			}
			c.sessions.Replace(nil)
		})
	}()
}

func (c *Controller) model() Model {
	current := c.sessions.Current()
	return Model{
		SignedIn:  current != nil,
		Email:     current.Email(),
		Providers: c.providers,
		Loading:   c.loading,
		Busy:      c.busy,
		Bookmarks: c.col.Items(),
	}
}

func (c *Controller) render(resetForm bool) {
	html, err := c.renderer.App(c.model())
	if err != nil {
		c.logger.Error("render failed", logger.Error(err))
		return
	}
	c.send(Outbound{Type: MsgRender, HTML: html, ResetForm: resetForm})
}
