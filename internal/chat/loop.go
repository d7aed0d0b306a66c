package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	apologyPrefix = "Sorry, I could not answer that."
	emptyAnswer   = "I could not find an answer to that."
)

// Loop runs one utterance at a time through a session's agent.
type Loop struct {
	factory AgentFactory
	devMode bool
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithDevMode attaches the agent's intermediate steps to assistant turns.
func WithDevMode(on bool) LoopOption {
	return func(l *Loop) {
		l.devMode = on
	}
}

// NewLoop returns a loop that builds agents with factory.
func NewLoop(factory AgentFactory, opts ...LoopOption) *Loop {
	l := &Loop{factory: factory}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DevMode reports whether assistant turns carry intermediate steps.
func (l *Loop) DevMode() bool {
	return l.devMode
}

// Submit answers one utterance. The database is resolved and the agent built
// before anything is appended, so a bad connection leaves the transcript as
// it was. Otherwise the user turn is appended right away and exactly one
// assistant turn follows it, also when the agent fails; in that case the
// turn carries the error text and the error is returned as well.
func (l *Loop) Submit(ctx context.Context, s *Session, input string) (Turn, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Turn{}, ErrEmptyInput
	}

	gen, err := s.begin()
	if err != nil {
		return Turn{}, err
	}
	defer s.finish()

	h, err := s.Handle(ctx)
	if err != nil {
		slog.Warn("Database selection failed", "session_id", s.ID, "selection", s.Selection().String(), "error", err)
		return Turn{}, err
	}
	a, err := s.agentFor(ctx, h, l.factory)
	if err != nil {
		slog.Error("Failed to build agent", "session_id", s.ID, "database", h.String(), "error", err)
		return Turn{}, err
	}

	s.slot.Clear()
	s.appendTurn(gen, Turn{Role: RoleUser, Content: input, CreatedAt: time.Now()})

	start := time.Now()
	reply, invokeErr := a.Invoke(ctx, input)

	turn := Turn{
		Role:      RoleAssistant,
		Content:   strings.TrimSpace(reply.Output),
		Chart:     s.slot.Take(),
		CreatedAt: time.Now(),
	}
	if l.devMode {
		turn.Steps = reply.Steps
	}
	switch {
	case invokeErr != nil:
		turn.Content = fmt.Sprintf("%s\n\n%v", apologyPrefix, invokeErr)
	case turn.Content == "":
		turn.Content = emptyAnswer
	}

	if !s.appendTurn(gen, turn) {
		slog.Info("Session was reset while answering, reply dropped", "session_id", s.ID)
	}

	chartID := ""
	if turn.Chart != nil {
		chartID = turn.Chart.ID
	}
	slog.Info("usecase",
		"session_id", s.ID,
		"database", h.String(),
		"question", input,
		"answer", turn.Content,
		"chart_id", chartID,
		"took", time.Since(start),
		"error", invokeErr,
	)

	if invokeErr != nil {
		return turn, fmt.Errorf("agent failed: %w", invokeErr)
	}
	return turn, nil
}
