package tools

import (
	"sync"

	"tradecrew/internal/models"
)

// maxRecordedChars bounds the stored result of one tool call
const maxRecordedChars = 2000

// Recorder captures the tool calls made during a single role's turn.
// Tool closures run on the agent's goroutines, so it is safe for
// concurrent use.
type Recorder struct {
	mu    sync.Mutex
	calls []models.ToolCall
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends one tool call, truncating oversized results
func (r *Recorder) Record(tool, query, result string) {
	if runes := []rune(result); len(runes) > maxRecordedChars {
		result = string(runes[:maxRecordedChars]) + "..."
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, models.ToolCall{
		Tool:   tool,
		Query:  query,
		Result: result,
	})
}

// Calls returns the recorded calls in invocation order
func (r *Recorder) Calls() []models.ToolCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ToolCall, len(r.calls))
	copy(out, r.calls)
	return out
}
