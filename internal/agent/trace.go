package agent

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"
)

const maxTraceOutput = 300

// Trace records the tool calls made while answering one question. The steps
// are shown to developers, never fed back to the model.
type Trace struct {
	mu    sync.Mutex
	steps []string
}

// Record appends one tool call.
func (t *Trace) Record(tool, input string, res ToolResult) {
	out := truncate(strings.TrimSpace(res.Text), maxTraceOutput)
	step := fmt.Sprintf("%s(%s) -> %s", tool, strings.TrimSpace(input), out)

	t.mu.Lock()
	t.steps = append(t.steps, step)
	t.mu.Unlock()
}

// Drain returns the recorded steps and starts a new trace.
func (t *Trace) Drain() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	steps := t.steps
	t.steps = nil
	return steps
}

// truncate cuts s to at most n bytes without splitting a rune and marks the
// cut with "...".
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
