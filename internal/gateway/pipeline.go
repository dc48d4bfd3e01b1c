// Package gateway implements the admission pipeline: the single
// straight-line function every tool call passes through between an
// agent's request and the tool itself. Stage order is fixed and
// enforced structurally — evaluate, then approve-gate, then forward,
// then audit — never a fan-out.
package gateway

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"github.com/aegisgate/aegisgate/internal/approval"
	"github.com/aegisgate/aegisgate/internal/audit"
	"github.com/aegisgate/aegisgate/internal/policy"
)

// PolicySource is the read side of a policy.Store: whatever can hand
// back the currently published Snapshot. Narrowed to an interface so
// tests can swap in a fixed Snapshot without a real Store/Watcher.
type PolicySource interface {
	Current() *policy.Snapshot
}

// ApprovalGate is the subset of approval.Gate the pipeline needs.
type ApprovalGate interface {
	Create(ctx policy.EvaluationContext) string
	Consume(id string) (*approval.Request, bool)
}

// ToolForwarder dispatches an allowed call to its tool implementation.
type ToolForwarder interface {
	Forward(tool, action string, params map[string]any) (map[string]any, error)
}

// Request is the transport-neutral description of an inbound admit
// call, mirroring EvaluationContext plus the optional approval token.
type Request struct {
	AgentID     string
	ParentAgent string
	Tool        string
	Action      string
	Params      map[string]any
	ApprovalID  string
}

// Pipeline wires a PolicySource, ApprovalGate, ToolForwarder and
// audit.Sink into the single Admit entry point. Constructed via
// functional options so callers only need to supply the collaborators
// they care about; every option has a workable default except the
// PolicySource, which is required.
type Pipeline struct {
	policies  PolicySource
	gate      ApprovalGate
	forwarder ToolForwarder
	sink      audit.Sink
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Pipeline at construction time.
type Option func(*Pipeline)

// WithApprovalGate injects the ApprovalGate collaborator.
func WithApprovalGate(g ApprovalGate) Option {
	return func(p *Pipeline) { p.gate = g }
}

// WithForwarder injects the ToolForwarder collaborator.
func WithForwarder(f ToolForwarder) Option {
	return func(p *Pipeline) { p.forwarder = f }
}

// WithAuditSink injects the audit.Sink collaborator.
func WithAuditSink(s audit.Sink) Option {
	return func(p *Pipeline) { p.sink = s }
}

// WithLogger overrides the default slog.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// withClock overrides the time source; used by tests to make latency
// assertions deterministic.
func withClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New constructs a Pipeline reading from policies. Any collaborator
// left unset via options is a no-op stand-in: an unset ApprovalGate
// means require_approval decisions can never be created (they simply
// fail as PolicyViolation instead, since there is nowhere to park
// them), an unset ToolForwarder means allowed calls fail as ToolError,
// and an unset audit.Sink silently drops records. Callers building a
// real deployment should supply all three.
func New(policies PolicySource, opts ...Option) *Pipeline {
	p := &Pipeline{
		policies: policies,
		logger:   slog.Default().With("component", "gateway.Pipeline"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Admit runs req through the admission pipeline: consume-and-re-evaluate
// (if an approval_id was supplied), evaluate, branch on
// require_approval/deny/allow, forward, and audit every branch.
func (p *Pipeline) Admit(ctx context.Context, req Request) (map[string]any, *Error) {
	var consumed *approval.Request
	if req.ApprovalID != "" {
		r, ok := p.consume(req.ApprovalID)
		if !ok {
			return nil, newApprovalNotFound(req.ApprovalID)
		}
		consumed = r
	}

	t0 := p.now()
	evalCtx := policy.EvaluationContext{
		AgentID:     req.AgentID,
		Tool:        req.Tool,
		Action:      req.Action,
		Params:      req.Params,
		ParentAgent: req.ParentAgent,
	}
	decision := p.policies.Current().Evaluate(evalCtx)
	policyLatencyMs := msSince(t0, p.now())

	record := audit.Record{
		Timestamp:     t0,
		AgentID:       req.AgentID,
		ParentAgent:   req.ParentAgent,
		Tool:          req.Tool,
		Action:        req.Action,
		Params:        req.Params,
		Allow:         decision.Allow,
		Reason:        decision.Reason,
		PolicyVersion: decision.Version,
		LatencyMs:     policyLatencyMs,
	}

	if decision.RequireApproval {
		// The approval only suppresses the gate when the same
		// (agent,tool,action,params) arrives a second time with the
		// matching id; it never lets a *different* call ride through
		// on someone else's approval.
		if consumed != nil && sameCall(consumed.Context, evalCtx) {
			return p.forwardAndAudit(ctx, req, decision, record, req.ApprovalID)
		}

		if p.gate == nil {
			record.Outcome = audit.OutcomeDenied
			p.record(ctx, record)
			return nil, newPolicyViolation(decision.Reason)
		}

		id := p.createApproval(evalCtx)
		record.Outcome = audit.OutcomeApprovalRequired
		record.ApprovalID = id
		p.record(ctx, record)
		return nil, newApprovalRequired(decision.Reason, id)
	}

	if !decision.Allow {
		record.Outcome = audit.OutcomeDenied
		p.record(ctx, record)
		return nil, newPolicyViolation(decision.Reason)
	}

	return p.forwardAndAudit(ctx, req, decision, record, req.ApprovalID)
}

func (p *Pipeline) forwardAndAudit(ctx context.Context, req Request, decision policy.Decision, record audit.Record, approvalID string) (map[string]any, *Error) {
	record.ApprovalID = approvalID

	if err := ctx.Err(); err != nil {
		record.Outcome = audit.OutcomeClientCancelled
		record.Reason = err.Error()
		p.record(ctx, record)
		return nil, newClientCancelled(err.Error())
	}

	t1 := p.now()
	resp, err := p.forward(req.Tool, req.Action, req.Params)
	toolLatencyMs := msSince(t1, p.now())

	if err != nil {
		record.Outcome = audit.OutcomeAllowedButToolError
		record.Reason = err.Error()
		record.ToolLatencyMs = toolLatencyMs
		p.record(ctx, record)
		return nil, newToolError(err.Error())
	}

	record.Outcome = audit.OutcomeAllowed
	record.ToolLatencyMs = toolLatencyMs
	p.record(ctx, record)
	return resp, nil
}

func (p *Pipeline) consume(id string) (*approval.Request, bool) {
	if p.gate == nil {
		return nil, false
	}
	return p.gate.Consume(id)
}

func (p *Pipeline) createApproval(ctx policy.EvaluationContext) string {
	if p.gate == nil {
		return ""
	}
	return p.gate.Create(ctx)
}

func (p *Pipeline) forward(tool, action string, params map[string]any) (map[string]any, error) {
	if p.forwarder == nil {
		return nil, errNoForwarder
	}
	return p.forwarder.Forward(tool, action, params)
}

func (p *Pipeline) record(ctx context.Context, r audit.Record) {
	if p.sink == nil {
		return
	}
	p.sink.Record(ctx, r)
}

// sameCall reports whether two evaluation contexts describe the
// identical call, ignoring ParentAgent (a retry may legitimately be
// re-dispatched through a different parent attribution).
func sameCall(a, b policy.EvaluationContext) bool {
	return a.AgentID == b.AgentID &&
		a.Tool == b.Tool &&
		a.Action == b.Action &&
		reflect.DeepEqual(a.Params, b.Params)
}

func msSince(start, end time.Time) float64 {
	return float64(end.Sub(start).Microseconds()) / 1000.0
}
