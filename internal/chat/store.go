package chat

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// CookieName carries the session id.
const CookieName = "sqlchat_session"

const sweepInterval = time.Minute

// Store keeps sessions in memory and forgets them after ttl without
// activity. Nothing is written to disk.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	opts     SessionOptions
}

// NewStore returns an empty store.
func NewStore(ttl time.Duration, opts SessionOptions) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		opts:     opts,
	}
}

// Get returns the session with id.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	return s, ok
}

// GetOrCreate returns the session with id. An unknown id is never adopted:
// the new session always gets a freshly minted one. created reports whether
// a new session was made.
func (st *Store) GetOrCreate(id string) (s *Session, created bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[id]; ok {
		return s, false
	}
	id = uuid.NewString()
	s = NewSession(id, st.opts)
	st.sessions[id] = s
	slog.Info("Session created", "session_id", id)
	return s, true
}

// Delete closes and forgets a session.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if ok {
		if err := s.Close(); err != nil {
			slog.Warn("Failed to close session", "session_id", id, "error", err)
		}
	}
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep closes sessions idle since before now minus the ttl. Sessions that
// are answering are kept.
func (st *Store) Sweep(now time.Time) int {
	st.mu.Lock()
	var expired []*Session
	for id, s := range st.sessions {
		if s.State() == StateProcessing {
			continue
		}
		if now.Sub(s.LastSeen()) > st.ttl {
			expired = append(expired, s)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, s := range expired {
		if err := s.Close(); err != nil {
			slog.Warn("Failed to close expired session", "session_id", s.ID, "error", err)
		}
	}
	return len(expired)
}

// StartSweeper expires idle sessions in the background until ctx is done.
func (st *Store) StartSweeper(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", sweepInterval, "ttl", st.ttl)

		for {
			select {
			case now := <-ticker.C:
				if n := st.Sweep(now); n > 0 {
					slog.Info("Session sweeper expired sessions", "count", n)
				}
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Close closes every session.
func (st *Store) Close() {
	st.mu.Lock()
	sessions := st.sessions
	st.sessions = make(map[string]*Session)
	st.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
}

// Middleware attaches the caller's session to the request context, issuing
// a session cookie on first contact.
func (st *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(CookieName); err == nil {
			id = c.Value
		}
		s, created := st.GetOrCreate(id)
		if created || s.ID != id {
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    s.ID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), s)))
	})
}

type sessionKey struct{}

// NewContext returns a context carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored by Middleware.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok
}
