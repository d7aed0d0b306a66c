package chat

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlchat/internal/chart"
	"sqlchat/internal/database"
)

// fakeAgent answers with a canned reply and can leave a chart in the slot.
type fakeAgent struct {
	slot   *chart.Slot
	reply  Reply
	err    error
	chart  bool
	block  chan struct{}
	inputs []string
}

func (a *fakeAgent) Invoke(ctx context.Context, input string) (Reply, error) {
	a.inputs = append(a.inputs, input)
	if a.block != nil {
		<-a.block
	}
	if a.chart {
		a.slot.Put(&chart.Figure{ID: "fig-1", Kind: chart.KindBar, Labels: []string{"Rock"}, Values: []float64{18}})
	}
	return a.reply, a.err
}

type fakeFactory struct {
	mu     sync.Mutex
	calls  int
	keys   []string
	agent  *fakeAgent
	buildE error
}

func (f *fakeFactory) build(ctx context.Context, h *database.Handle, slot *chart.Slot) (Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.keys = append(f.keys, h.Key())
	if f.buildE != nil {
		return nil, f.buildE
	}
	f.agent.slot = slot
	return f.agent, nil
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession("test", SessionOptions{Database: database.Options{DataDir: t.TempDir()}})
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEnterLifecycle(t *testing.T) {
	s := newTestSession(t)
	assert.Equal(t, StateIdle, s.State())

	assert.False(t, s.Enter("sql-chat"))
	require.Equal(t, 1, s.Len())
	assert.Equal(t, DefaultGreeting, s.Transcript()[0].Content)
	assert.Equal(t, RoleAssistant, s.Transcript()[0].Role)
	assert.Equal(t, StateAwaitingInput, s.State())

	f := &fakeFactory{agent: &fakeAgent{reply: Reply{Output: "42"}}}
	loop := NewLoop(f.build)
	_, err := loop.Submit(context.Background(), s, "how many?")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())

	assert.False(t, s.Enter("sql-chat"))
	assert.Equal(t, 3, s.Len())

	assert.True(t, s.Enter("other-page"))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, "other-page", s.ContextID())

	_, err = loop.Submit(context.Background(), s, "again")
	require.NoError(t, err)
	assert.Equal(t, 2, f.calls, "reset must drop the cached agent")
}

func TestSubmitAppendsTwoTurns(t *testing.T) {
	s := newTestSession(t)
	s.Enter("sql-chat")
	f := &fakeFactory{agent: &fakeAgent{reply: Reply{Output: "Rock has the most tracks.", Steps: []string{"step"}}, chart: true}}
	loop := NewLoop(f.build)

	turn, err := loop.Submit(context.Background(), s, "  plot genres  ")
	require.NoError(t, err)

	transcript := s.Transcript()
	require.Len(t, transcript, 3)
	assert.Equal(t, RoleUser, transcript[1].Role)
	assert.Equal(t, "plot genres", transcript[1].Content)
	assert.Equal(t, RoleAssistant, transcript[2].Role)
	assert.Equal(t, "Rock has the most tracks.", transcript[2].Content)
	require.NotNil(t, transcript[2].Chart)
	assert.Equal(t, "fig-1", transcript[2].Chart.ID)
	assert.Nil(t, transcript[2].Steps, "steps are only kept in dev mode")
	assert.Equal(t, turn.Content, transcript[2].Content)
	assert.Nil(t, s.slot.Take())
	assert.Equal(t, StateIdle, s.State())

	f.agent.chart = false
	_, err = loop.Submit(context.Background(), s, "and without a chart?")
	require.NoError(t, err)
	transcript = s.Transcript()
	require.Len(t, transcript, 5)
	assert.Nil(t, transcript[4].Chart)
	assert.Equal(t, 1, f.calls)
}

func TestSubmitDevModeSteps(t *testing.T) {
	s := newTestSession(t)
	f := &fakeFactory{agent: &fakeAgent{reply: Reply{Output: "ok", Steps: []string{"sql_db_list_tables() -> Album"}}}}
	loop := NewLoop(f.build, WithDevMode(true))
	assert.True(t, loop.DevMode())

	turn, err := loop.Submit(context.Background(), s, "tables?")
	require.NoError(t, err)
	assert.Equal(t, []string{"sql_db_list_tables() -> Album"}, turn.Steps)
}

func TestSubmitBadURIAppendsNothing(t *testing.T) {
	s := newTestSession(t)
	s.Enter("sql-chat")
	s.SetSelection(database.CustomURI("postgres://%zz"))
	f := &fakeFactory{agent: &fakeAgent{}}
	loop := NewLoop(f.build)

	_, err := loop.Submit(context.Background(), s, "anything")
	require.Error(t, err)
	assert.True(t, database.IsConnectionError(err))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 0, f.calls)
	assert.Equal(t, StateIdle, s.State())

	s.SetSelection(database.CustomURI(""))
	_, err = loop.Submit(context.Background(), s, "anything")
	assert.True(t, database.IsConnectionError(err))
	assert.Equal(t, 1, s.Len())
}

func TestSubmitAgentBuildFailure(t *testing.T) {
	s := newTestSession(t)
	s.Enter("sql-chat")
	f := &fakeFactory{agent: &fakeAgent{}, buildE: errors.New("openai API key is not configured")}

	_, err := NewLoop(f.build).Submit(context.Background(), s, "hi")
	assert.ErrorContains(t, err, "not configured")
	assert.Equal(t, 1, s.Len())
}

func TestSubmitAgentFailureStillAnswers(t *testing.T) {
	s := newTestSession(t)
	s.Enter("sql-chat")
	f := &fakeFactory{agent: &fakeAgent{err: errors.New("rate limited")}}

	turn, err := NewLoop(f.build).Submit(context.Background(), s, "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, 3, s.Len())
	assert.Contains(t, turn.Content, apologyPrefix)
	assert.Contains(t, turn.Content, "rate limited")
}

func TestSubmitEmptyAnswer(t *testing.T) {
	s := newTestSession(t)
	f := &fakeFactory{agent: &fakeAgent{}}

	turn, err := NewLoop(f.build).Submit(context.Background(), s, "hi")
	require.NoError(t, err)
	assert.Equal(t, emptyAnswer, turn.Content)

	_, err = NewLoop(f.build).Submit(context.Background(), s, "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestSubmitRejectsConcurrentTurns(t *testing.T) {
	s := newTestSession(t)
	s.Enter("sql-chat")
	block := make(chan struct{})
	f := &fakeFactory{agent: &fakeAgent{reply: Reply{Output: "done"}, block: block}}
	loop := NewLoop(f.build)

	done := make(chan error, 1)
	go func() {
		_, err := loop.Submit(context.Background(), s, "slow question")
		done <- err
	}()

	require.Eventually(t, func() bool { return s.State() == StateProcessing }, time.Second, 5*time.Millisecond)
	_, err := loop.Submit(context.Background(), s, "impatient question")
	assert.ErrorIs(t, err, ErrBusy)

	close(block)
	require.NoError(t, <-done)
	assert.Equal(t, 3, s.Len())
}

func TestResetWhileProcessingDropsReply(t *testing.T) {
	s := newTestSession(t)
	s.Enter("sql-chat")
	block := make(chan struct{})
	f := &fakeFactory{agent: &fakeAgent{reply: Reply{Output: "late"}, block: block}}
	loop := NewLoop(f.build)

	done := make(chan error, 1)
	go func() {
		_, err := loop.Submit(context.Background(), s, "slow question")
		done <- err
	}()

	require.Eventually(t, func() bool { return s.Len() == 2 }, time.Second, 5*time.Millisecond)
	s.Reset()
	close(block)
	require.NoError(t, <-done)

	transcript := s.Transcript()
	require.Len(t, transcript, 1)
	assert.Equal(t, DefaultGreeting, transcript[0].Content)
}

func TestAgentsCachedPerDatabase(t *testing.T) {
	dir := t.TempDir()
	dbFile := filepath.Join(dir, "shop.db")
	db, err := sql.Open("sqlite", dbFile)
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE sales (region TEXT, amount REAL)")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s := NewSession("test", SessionOptions{Database: database.Options{DataDir: dir}})
	defer s.Close()
	f := &fakeFactory{agent: &fakeAgent{reply: Reply{Output: "ok"}}}
	loop := NewLoop(f.build)
	ctx := context.Background()

	_, err = loop.Submit(ctx, s, "q1")
	require.NoError(t, err)
	s.SetSelection(database.CustomURI("sqlite:///" + dbFile))
	_, err = loop.Submit(ctx, s, "q2")
	require.NoError(t, err)
	s.SetSelection(database.Sample())
	_, err = loop.Submit(ctx, s, "q3")
	require.NoError(t, err)

	assert.Equal(t, 2, f.calls)
	assert.Equal(t, []string{"sample", "uri:sqlite:///" + dbFile}, f.keys)
	assert.Equal(t, 7, s.Len(), "switching databases keeps the transcript")
}

func TestStore(t *testing.T) {
	st := NewStore(time.Hour, SessionOptions{Database: database.Options{DataDir: t.TempDir()}})
	defer st.Close()

	s, created := st.GetOrCreate("")
	require.True(t, created)
	assert.NotEmpty(t, s.ID)

	again, created := st.GetOrCreate(s.ID)
	assert.False(t, created)
	assert.Same(t, s, again)

	forged, created := st.GetOrCreate("../../etc/passwd")
	assert.True(t, created)
	assert.NotEqual(t, "../../etc/passwd", forged.ID)

	planted := "0f8fad5b-d9cb-469f-a165-70867728950e"
	fresh, created := st.GetOrCreate(planted)
	assert.True(t, created)
	assert.NotEqual(t, planted, fresh.ID, "unknown ids are replaced, not adopted")
	_, ok := st.Get(planted)
	assert.False(t, ok)
	assert.Equal(t, 3, st.Len())

	assert.Equal(t, 0, st.Sweep(time.Now()))
	assert.Equal(t, 3, st.Sweep(time.Now().Add(2*time.Hour)))
	assert.Equal(t, 0, st.Len())

	s, _ = st.GetOrCreate("")
	st.Delete(s.ID)
	_, ok = st.Get(s.ID)
	assert.False(t, ok)
}

func TestMiddlewareAndHistory(t *testing.T) {
	st := NewStore(time.Hour, SessionOptions{Database: database.Options{DataDir: t.TempDir()}})
	defer st.Close()

	var seen *Session
	page := func(contextID string) http.Handler {
		return st.Middleware(WithChatHistory(contextID)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := FromContext(r.Context())
			require.True(t, ok)
			seen = s
			w.WriteHeader(http.StatusOK)
		})))
	}

	rec := httptest.NewRecorder()
	page("sql-chat").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, 1, seen.Len())

	first := seen
	first.appendTurn(0, Turn{Role: RoleUser, Content: "hello"})
	first.appendTurn(0, Turn{Role: RoleAssistant, Content: "hi"})

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	page("sql-chat").ServeHTTP(rec, req)
	assert.Same(t, first, seen)
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, 3, seen.Len())

	req = httptest.NewRequest(http.MethodGet, "/other", nil)
	req.AddCookie(cookies[0])
	page("other-agent").ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, 1, seen.Len())
}

func TestHistoryWithoutSession(t *testing.T) {
	h := WithChatHistory("sql-chat")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
