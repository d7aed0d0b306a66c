package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sqlchat/internal/chart"
	"sqlchat/internal/database"
)

// DefaultGreeting seeds every fresh transcript.
const DefaultGreeting = "Please ask me anything about your database!"

// SessionOptions configure new sessions.
type SessionOptions struct {
	Greeting  string
	Selection database.Selection
	Database  database.Options
}

// Session is the conversational context of one browser session. All methods
// are safe for concurrent use.
type Session struct {
	ID string

	mu         sync.Mutex
	opts       SessionOptions
	contextID  string
	entered    bool
	transcript []Turn
	selection  database.Selection
	selector   *database.Selector
	agents     map[string]Agent
	slot       chart.Slot
	state      State
	generation uint64
	lastSeen   time.Time
}

// NewSession returns a session with an empty transcript.
func NewSession(id string, opts SessionOptions) *Session {
	if opts.Greeting == "" {
		opts.Greeting = DefaultGreeting
	}
	return &Session{
		ID:        id,
		opts:      opts,
		selection: opts.Selection,
		selector:  database.NewSelector(opts.Database),
		agents:    make(map[string]Agent),
		state:     StateIdle,
		lastSeen:  time.Now(),
	}
}

// Enter is called every time a page or client enters the conversation with
// contextID. A different context id than last time resets the session; the
// first entry or the same id only makes sure the transcript exists. It
// reports whether a reset happened.
func (s *Session) Enter(contextID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeen = time.Now()
	if s.entered && s.contextID != contextID {
		slog.Info("Conversation context changed, resetting session",
			"session_id", s.ID, "from", s.contextID, "to", contextID)
		s.contextID = contextID
		s.resetLocked()
		return true
	}
	s.entered = true
	s.contextID = contextID
	s.ensureInitializedLocked()
	return false
}

// Reset drops the transcript, cached agents and database handles and seeds a
// new transcript with the greeting.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// EnsureInitialized seeds the greeting if the transcript is empty.
func (s *Session) EnsureInitialized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureInitializedLocked()
}

func (s *Session) resetLocked() {
	if err := s.selector.Close(); err != nil {
		slog.Warn("Failed to close database handles", "session_id", s.ID, "error", err)
	}
	s.agents = make(map[string]Agent)
	s.slot.Clear()
	s.transcript = nil
	s.generation++
	s.ensureInitializedLocked()
}

func (s *Session) ensureInitializedLocked() {
	if len(s.transcript) == 0 {
		s.transcript = []Turn{{Role: RoleAssistant, Content: s.opts.Greeting, CreatedAt: time.Now()}}
	}
	if s.state == StateIdle {
		s.state = StateAwaitingInput
	}
}

// Transcript returns a copy of the turns, oldest first.
func (s *Session) Transcript() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Len returns the number of turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transcript)
}

// ContextID returns the active context id.
func (s *Session) ContextID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contextID
}

// Selection returns the database the next utterance is answered from.
func (s *Session) Selection() database.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// SetSelection switches databases. The transcript is kept; agents stay
// cached per database so switching back resumes that conversation memory.
func (s *Session) SetSelection(sel database.Selection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection = sel
}

// State returns where the session is in the turn loop.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastSeen returns the time of the last interaction.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Handle resolves the current selection through the session's handle cache.
func (s *Session) Handle(ctx context.Context) (*database.Handle, error) {
	sel := s.Selection()
	return s.selector.Resolve(ctx, sel)
}

// Close releases the session's database handles.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents = make(map[string]Agent)
	return s.selector.Close()
}

// begin moves the session into Processing and returns the generation the
// turn belongs to.
func (s *Session) begin() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateProcessing {
		return 0, ErrBusy
	}
	s.lastSeen = time.Now()
	s.ensureInitializedLocked()
	s.state = StateProcessing
	return s.generation, nil
}

func (s *Session) finish() {
	s.mu.Lock()
	s.state = StateIdle
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// agentFor returns the cached agent for the handle's database or builds one.
func (s *Session) agentFor(ctx context.Context, h *database.Handle, factory AgentFactory) (Agent, error) {
	s.mu.Lock()
	a, ok := s.agents[h.Key()]
	s.mu.Unlock()
	if ok {
		return a, nil
	}

	a, err := factory(ctx, h, &s.slot)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.agents[h.Key()]; ok {
		return cached, nil
	}
	s.agents[h.Key()] = a
	return a, nil
}

// appendTurn appends t unless the session was reset since gen.
func (s *Session) appendTurn(gen uint64, t Turn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	s.transcript = append(s.transcript, t)
	return true
}
