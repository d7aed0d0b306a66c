package agent

import "fmt"

// ToolResult is what a tool hands back to the model. Text is always set and
// is the only thing the model sees; Err records the underlying failure for
// logging and traces.
type ToolResult struct {
	Text string
	Err  error
}

// Failed reports whether the tool call failed.
func (r ToolResult) Failed() bool {
	return r.Err != nil
}

func (r ToolResult) String() string {
	return r.Text
}

func okResult(text string) ToolResult {
	return ToolResult{Text: text}
}

func errResult(err error) ToolResult {
	return ToolResult{Text: fmt.Sprintf("Error: %v", err), Err: err}
}
