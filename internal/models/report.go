package models

import "time"

// ToolCall records one tool invocation made by a role during its turn
type ToolCall struct {
	Tool   string `json:"tool_name"`
	Query  string `json:"query"`
	Result string `json:"result"`
}

// AgentOutput is the complete result of one role's turn
type AgentOutput struct {
	Role      Role       `json:"role"`
	Text      string     `json:"text"`
	ToolCalls []ToolCall `json:"tool_calls_made,omitempty"`
}

// Report is the final artifact of a run: one section per role, in
// hand-off order, plus the rendered markdown document.
type Report struct {
	RunID      string         `json:"run_id"`
	Request    TradingRequest `json:"request"`
	Sections   []AgentOutput  `json:"sections"`
	Markdown   string         `json:"markdown"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}
