// Package audit records every admission decision as a structured log
// line and an OpenTelemetry span, and keeps a bounded in-memory history
// for admin inspection. No decision or approval is persisted across
// restarts — that durability is an explicit non-goal.
package audit

import "time"

// Outcome classifies how an admission concluded.
type Outcome string

const (
	OutcomeAllowed             Outcome = "allowed"
	OutcomeDenied              Outcome = "denied"
	OutcomeApprovalRequired    Outcome = "approval_required"
	OutcomeAllowedButToolError Outcome = "allowed_but_tool_error"
	OutcomeClientCancelled     Outcome = "client_cancelled"
)

// Record is the full input to a single audit emission: everything the
// Sink needs to both log a line and populate a tracing span.
type Record struct {
	Timestamp     time.Time
	AgentID       string
	ParentAgent   string // "" when absent
	Tool          string
	Action        string
	Params        map[string]any
	Allow         bool
	Reason        string
	PolicyVersion int
	Outcome       Outcome
	ApprovalID    string // "" when not applicable
	LatencyMs     float64
	ToolLatencyMs float64 // 0 when no tool call occurred
}

// HistoryEntry is the ring buffer's compact projection of a Record,
// matching the admin-facing shape documented for GET /admin/decisions.
type HistoryEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	AgentID     string    `json:"agent_id"`
	Tool        string    `json:"tool"`
	Action      string    `json:"action"`
	Outcome     Outcome   `json:"outcome"`
	Reason      string    `json:"reason"`
	ParentAgent string    `json:"parent_agent,omitempty"`
	ApprovalID  string    `json:"approval_id,omitempty"`
}

func (r Record) toHistoryEntry() HistoryEntry {
	return HistoryEntry{
		Timestamp:   r.Timestamp,
		AgentID:     r.AgentID,
		Tool:        r.Tool,
		Action:      r.Action,
		Outcome:     r.Outcome,
		Reason:      r.Reason,
		ParentAgent: r.ParentAgent,
		ApprovalID:  r.ApprovalID,
	}
}
