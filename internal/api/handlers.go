package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/aegisgate/aegisgate/internal/gateway"
)

// toolCallBody is the JSON request body for POST /tools/{tool}/{action}.
type toolCallBody struct {
	AgentID     string         `json:"agent_id"`
	ParentAgent string         `json:"parent_agent,omitempty"`
	Params      map[string]any `json:"params"`
}

func (s *Server) handleToolCall(w http.ResponseWriter, r *http.Request) {
	var body toolCallBody
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && err.Error() != "EOF" {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	if agentID := r.Header.Get("X-Agent-ID"); agentID != "" {
		body.AgentID = agentID
	}
	if parent := r.Header.Get("X-Parent-Agent"); parent != "" {
		body.ParentAgent = parent
	}
	if body.AgentID == "" {
		writeError(w, http.StatusBadRequest, "agent_id is required (body field or X-Agent-ID header)")
		return
	}

	req := gateway.Request{
		AgentID:     body.AgentID,
		ParentAgent: body.ParentAgent,
		Tool:        r.PathValue("tool"),
		Action:      r.PathValue("action"),
		Params:      body.Params,
		ApprovalID:  r.Header.Get("X-Approval-ID"),
	}

	s.admitAndRespond(w, r, req)
}

// handleApprove replays the stored request behind approval_id: the
// caller resubmits only its agent/parent attribution, not the original
// params, matching the original gateway's approve_request contract.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("approval_id")

	pending, ok := s.gate.Peek(id)
	if !ok {
		writeError(w, http.StatusNotFound, "approval id not found or already consumed")
		return
	}

	req := gateway.Request{
		AgentID:     pending.Context.AgentID,
		ParentAgent: pending.Context.ParentAgent,
		Tool:        pending.Context.Tool,
		Action:      pending.Context.Action,
		Params:      pending.Context.Params,
		ApprovalID:  id,
	}
	if agentID := r.Header.Get("X-Agent-ID"); agentID != "" {
		req.AgentID = agentID
	}
	if parent := r.Header.Get("X-Parent-Agent"); parent != "" {
		req.ParentAgent = parent
	}

	s.admitAndRespond(w, r, req)
}

func (s *Server) admitAndRespond(w http.ResponseWriter, r *http.Request, req gateway.Request) {
	resp, gwErr := s.pipeline.Admit(r.Context(), req)
	if gwErr != nil {
		body := map[string]any{"error": gwErr.Reason, "kind": gwErr.Kind.String()}
		if gwErr.ApprovalID != "" {
			body["approval_id"] = gwErr.ApprovalID
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(gwErr.Kind.StatusCode())
		json.NewEncoder(w).Encode(body)
		return
	}
	writeJSON(w, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status": "ok",
		"policy": s.store.Current().Stats(),
	})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Current()
	type agentSummary struct {
		ID               string   `json:"id"`
		Tools            []string `json:"tools"`
		AllowOnlyParents []string `json:"allow_only_parents,omitempty"`
		DenyIfParent     []string `json:"deny_if_parent,omitempty"`
	}
	var out []agentSummary
	for _, f := range snap.Files {
		for _, a := range f.Agents {
			tools := make([]string, 0, len(a.Allow))
			for _, p := range a.Allow {
				tools = append(tools, p.Tool)
			}
			out = append(out, agentSummary{
				ID: a.ID, Tools: tools,
				AllowOnlyParents: a.AllowOnlyParents,
				DenyIfParent:     a.DenyIfParent,
			})
		}
	}
	writeJSON(w, out)
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Current()
	type policySummary struct {
		Path    string `json:"path"`
		Version int    `json:"version"`
		Agents  int    `json:"agents"`
	}
	out := make([]policySummary, 0, len(snap.Files))
	for _, f := range snap.Files {
		out = append(out, policySummary{Path: f.Path, Version: f.Version, Agents: len(f.Agents)})
	}
	writeJSON(w, out)
}

func (s *Server) handleRecentDecisions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	writeJSON(w, s.sink.Recent(limit))
}

func (s *Server) handlePendingApprovals(w http.ResponseWriter, r *http.Request) {
	pending := s.gate.Pending()
	type entry struct {
		ID        string `json:"id"`
		AgentID   string `json:"agent_id"`
		Tool      string `json:"tool"`
		Action    string `json:"action"`
		CreatedAt string `json:"created_at"`
	}
	out := make([]entry, 0, len(pending))
	for _, p := range pending {
		out = append(out, entry{
			ID: p.ID, AgentID: p.Context.AgentID, Tool: p.Context.Tool,
			Action: p.Context.Action, CreatedAt: p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
