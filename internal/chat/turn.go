// Package chat holds the conversation state of a browser session and the
// loop that turns a user utterance into an assistant reply.
package chat

import (
	"context"
	"errors"
	"time"

	"sqlchat/internal/chart"
	"sqlchat/internal/database"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of the transcript. Turns are never changed after they
// are appended.
type Turn struct {
	Role      Role          `json:"role"`
	Content   string        `json:"content"`
	Chart     *chart.Figure `json:"chart,omitempty"`
	Steps     []string      `json:"steps,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// State is where a session is in the turn loop.
type State string

const (
	StateIdle          State = "idle"
	StateAwaitingInput State = "awaiting_input"
	StateProcessing    State = "processing"
)

// Reply is what an agent returns for one utterance.
type Reply struct {
	Output string
	Steps  []string
}

// Agent answers utterances and keeps its own conversation memory.
type Agent interface {
	Invoke(ctx context.Context, input string) (Reply, error)
}

// AgentFactory builds the agent for one database. Figures produced while
// answering are left in slot.
type AgentFactory func(ctx context.Context, h *database.Handle, slot *chart.Slot) (Agent, error)

var (
	// ErrBusy is returned when an utterance arrives while the previous one is
	// still being answered.
	ErrBusy = errors.New("still answering the previous question")

	// ErrEmptyInput is returned for blank utterances.
	ErrEmptyInput = errors.New("empty message")
)
