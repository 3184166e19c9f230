package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/shelf/internal/auth"
	"github.com/MrSnakeDoc/shelf/internal/bookmarks"
	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	redisstore "github.com/MrSnakeDoc/shelf/internal/store/redis"
	"github.com/MrSnakeDoc/shelf/internal/view"
)

type harness struct {
	srv    *httptest.Server
	mr     *miniredis.Miniredis
	client *http.Client
	live   *atomic.Int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	store := redisstore.NewStore(rc, logger.Nop())
	tokens, err := auth.NewTokenService("test-secret", "shelf-test", time.Hour)
	require.NoError(t, err)
	authSvc := auth.NewService(store, tokens, time.Minute, logger.Nop(), auth.NewDevProvider("/auth/dev/callback"))

	renderer, err := view.NewRenderer()
	require.NoError(t, err)

	live := &atomic.Int64{}
	d := deps.Deps{
		Logger:         logger.Nop(),
		StartTime:      time.Now(),
		Version:        "test",
		RequestTimeout: 5 * time.Second,
		RedisClient:    rc,
		Store:          store,
		Auth:           authSvc,
		Repo:           bookmarks.NewRepository(store, logger.Nop()),
		Renderer:       renderer,
		AuthRateLimit:  deps.RateLimit{Burst: 100, RefillPerMin: 100},
		APIRateLimit:   deps.RateLimit{Burst: 100, RefillPerMin: 100},
		MaxImportBytes: 1 << 16,
		LiveViews:      live,
	}

	srv := httptest.NewServer(NewRouter(d))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &harness{srv: srv, mr: mr, client: client, live: live}
}

func (h *harness) do(t *testing.T, method, path, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

// signIn walks the dev provider flow and leaves the jar signed in as email.
func (h *harness) signIn(t *testing.T, email string) {
	t.Helper()

	resp, _ := h.do(t, http.MethodGet, "/auth/dev/login", "")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	resp, page := h.do(t, http.MethodGet, "/auth/dev/callback?state="+url.QueryEscape(state), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, `name="state"`)

	resp, _ = h.do(t, http.MethodGet, "/auth/dev/callback?state="+url.QueryEscape(state)+"&code="+url.QueryEscape(email), "")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestProbes(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"status":"ok"`)

	resp, body = h.do(t, http.MethodGet, "/infra", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"providers":["dev"]`)

	resp, _ = h.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	h.mr.Close()
	resp, body = h.do(t, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body, `"ready":false`)
}

func TestPageIssuesSessionCookie(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, "Sign in with dev")

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == "shelf_sid" {
			found = true
			assert.True(t, c.HttpOnly)
		}
	}
	assert.True(t, found, "session cookie not set")
}

func TestAPIRequiresSignIn(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodGet, "/api/bookmarks", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "not signed in")
}

func TestCallbackRejectsUnknownState(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(t, http.MethodGet, "/auth/dev/callback?state=forged&code=a@example.com", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = h.do(t, http.MethodGet, "/auth/nope/login", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBookmarksAPI(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "alice@example.com")

	resp, body := h.do(t, http.MethodPost, "/api/bookmarks", `{"title":"  Go  ","url":"go.dev"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	var created domain.Bookmark
	require.NoError(t, json.Unmarshal([]byte(body), &created))
	assert.Equal(t, "Go", created.Title)
	assert.Equal(t, "https://go.dev", created.URL)

	resp, _ = h.do(t, http.MethodPost, "/api/bookmarks", `{"title":"","url":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = h.do(t, http.MethodPost, "/api/bookmarks", `{"title":"`+strings.Repeat("a", domain.MaxTitleLength+1)+`","url":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "at most")

	resp, body = h.do(t, http.MethodPatch, "/api/bookmarks/"+created.ID, `{"title":"Go dev"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, `"title":"Go dev"`)

	resp, _ = h.do(t, http.MethodPatch, "/api/bookmarks/missing", `{"title":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = h.do(t, http.MethodDelete, "/api/bookmarks/"+created.ID, "")
	assert.Equal(t, http.StatusPreconditionRequired, resp.StatusCode)

	resp, body = h.do(t, http.MethodGet, "/api/bookmarks", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, created.ID, "unconfirmed delete must keep the row")

	resp, _ = h.do(t, http.MethodDelete, "/api/bookmarks/"+created.ID+"?confirm=true", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = h.do(t, http.MethodGet, "/api/bookmarks", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"bookmarks":[]}`, body)
}

func TestImport(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "alice@example.com")

	yaml := `
- Developer:
    - Github:
        - abbr: GH
          href: https://github.com/
    - Go:
        - href: go.dev
`
	resp, body := h.do(t, http.MethodPost, "/api/bookmarks/import", yaml)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var res struct {
		Created []domain.Bookmark `json:"created"`
		Failed  []any             `json:"failed"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.Len(t, res.Created, 2)
	assert.Empty(t, res.Failed)

	resp, _ = h.do(t, http.MethodPost, "/api/bookmarks/import", "[]")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLiveView(t *testing.T) {
	h := newHarness(t)
	h.signIn(t, "alice@example.com")

	wsURL := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws"
	u, err := url.Parse(h.srv.URL)
	require.NoError(t, err)
	header := http.Header{}
	for _, c := range h.client.Jar.Cookies(u) {
		header.Add("Cookie", c.String())
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	read := func(match func(view.Outbound) bool) view.Outbound {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		for {
			var m view.Outbound
			require.NoError(t, conn.ReadJSON(&m))
			if match(m) {
				return m
			}
		}
	}

	read(func(m view.Outbound) bool {
		return m.Type == view.MsgRender && strings.Contains(m.HTML, "No bookmarks yet")
	})
	assert.Equal(t, int64(1), h.live.Load())

	require.NoError(t, conn.WriteJSON(view.Inbound{Type: view.MsgAdd, Title: "Go", URL: "go.dev"}))
	m := read(func(m view.Outbound) bool {
		return m.Type == view.MsgRender && strings.Contains(m.HTML, "https://go.dev")
	})
	assert.True(t, m.ResetForm)

	// A write through the API reaches the open view through the change feed.
	id, err := auth.NewDevProvider("").Identify(context.Background(), "alice@example.com")
	require.NoError(t, err)
	channel := redisstore.ChangesChannel(id.UserID)
	require.Eventually(t, func() bool {
		return h.mr.PubSubNumSub(channel)[channel] > 0
	}, 3*time.Second, 10*time.Millisecond)

	resp2, body := h.do(t, http.MethodPost, "/api/bookmarks", `{"title":"Docs","url":"pkg.go.dev"}`)
	require.Equal(t, http.StatusCreated, resp2.StatusCode, body)
	read(func(m view.Outbound) bool {
		return m.Type == view.MsgRender && strings.Contains(m.HTML, "https://pkg.go.dev")
	})

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	deadline := time.Now().Add(3 * time.Second)
	for h.live.Load() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, int64(0), h.live.Load())
}
