package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sqlchat/internal/chart"
	"sqlchat/internal/chat"
	"sqlchat/internal/database"
)

// fakeAgent answers every question with the same reply
type fakeAgent struct {
	mu    sync.Mutex
	slot  *chart.Slot
	reply chat.Reply
	err   error
	chart *chart.Figure
	asked []string
}

func (a *fakeAgent) Invoke(ctx context.Context, input string) (chat.Reply, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.asked = append(a.asked, input)
	if a.chart != nil {
		a.slot.Put(a.chart)
	}
	return a.reply, a.err
}

func (a *fakeAgent) factory(ctx context.Context, h *database.Handle, slot *chart.Slot) (chat.Agent, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.slot = slot
	return a, nil
}

// testFigure is a small bar chart as the visualization tool would build it
func testFigure() *chart.Figure {
	return &chart.Figure{
		ID:        "fig-1",
		Kind:      chart.KindBar,
		Title:     "Comparison Chart",
		XLabel:    "Genre",
		YLabel:    "TrackCount",
		Labels:    []string{"Rock", "Jazz"},
		Values:    []float64{1297, 130},
		CreatedAt: time.Now(),
	}
}

// SetupTestServer builds the router over a fresh session store that uses
// the sample database in a temporary directory
func SetupTestServer(t *testing.T, agent *fakeAgent) http.Handler {
	t.Helper()

	store := chat.NewStore(time.Hour, chat.SessionOptions{
		Database: database.Options{DataDir: t.TempDir()},
	})
	t.Cleanup(store.Close)

	handler, err := NewRouter(ServerConfig{
		Store:       store,
		Loop:        chat.NewLoop(agent.factory),
		Suggestions: []string{"How many albums are there?"},
	})
	if err != nil {
		t.Fatalf("failed to build router: %v", err)
	}
	return handler
}

// client replays the session cookie between requests
type client struct {
	t       *testing.T
	handler http.Handler
	cookie  *http.Cookie
}

func newClient(t *testing.T, handler http.Handler) *client {
	return &client{t: t, handler: handler}
}

func (c *client) do(method, path, contentType, body string) *httptest.ResponseRecorder {
	c.t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == chat.CookieName {
			c.cookie = ck
		}
	}
	return rec
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(http.MethodGet, path, "", "")
}

func (c *client) postJSON(method, path, body string) *httptest.ResponseRecorder {
	return c.do(method, path, "application/json", body)
}

func (c *client) postForm(path, body string) *httptest.ResponseRecorder {
	return c.do(http.MethodPost, path, "application/x-www-form-urlencoded", body)
}
