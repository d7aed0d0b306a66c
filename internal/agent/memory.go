package agent

import (
	"sync"

	"charm.land/fantasy"
)

// Memory is the conversation buffer replayed to the model on every turn.
// A window of 0 keeps every exchange.
type Memory struct {
	mu       sync.Mutex
	window   int
	messages []fantasy.Message
}

// NewMemory returns an empty buffer that keeps the last window exchanges.
func NewMemory(window int) *Memory {
	return &Memory{window: window}
}

// Append stores one question and its answer.
func (m *Memory) Append(question, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append(m.messages,
		fantasy.NewUserMessage(question),
		fantasy.Message{
			Role:    fantasy.MessageRoleAssistant,
			Content: []fantasy.MessagePart{fantasy.TextPart{Text: answer}},
		},
	)
	if m.window > 0 && len(m.messages) > 2*m.window {
		m.messages = append([]fantasy.Message(nil), m.messages[len(m.messages)-2*m.window:]...)
	}
}

// Messages returns a copy of the buffered messages, oldest first.
func (m *Memory) Messages() []fantasy.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]fantasy.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Len returns the number of buffered exchanges.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages) / 2
}
