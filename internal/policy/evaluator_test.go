package policy

import (
	"testing"
)

func billingPolicy() *PolicyFile {
	max := 1000.0
	return &PolicyFile{
		Version: 1,
		Agents: []Agent{
			{
				ID: "billing_bot",
				Allow: []Permission{
					{
						Tool:    "payments",
						Actions: []string{"create"},
						Conditions: ConditionSet{
							MaxAmount:  &max,
							Currencies: []string{"USD"},
						},
					},
				},
			},
		},
	}
}

// S1 — simple allow.
func TestEvaluate_SimpleAllow(t *testing.T) {
	ctx := EvaluationContext{
		AgentID: "billing_bot",
		Tool:    "payments",
		Action:  "create",
		Params:  map[string]any{"amount": 500.0, "currency": "USD", "vendor_id": "v1"},
	}
	d := Evaluate(billingPolicy(), ctx)
	if !d.Allow {
		t.Fatalf("expected allow, got deny: %s", d.Reason)
	}
	if d.Reason != "Policy allows this action" {
		t.Errorf("unexpected reason: %s", d.Reason)
	}
}

// S2 — amount exceeds limit.
func TestEvaluate_AmountExceedsLimit(t *testing.T) {
	ctx := EvaluationContext{
		AgentID: "billing_bot",
		Tool:    "payments",
		Action:  "create",
		Params:  map[string]any{"amount": 1500.0, "currency": "USD"},
	}
	d := Evaluate(billingPolicy(), ctx)
	if d.Allow {
		t.Fatal("expected deny")
	}
	if !contains(d.Reason, "exceeds max_amount=1000.00") {
		t.Errorf("reason %q does not mention the limit", d.Reason)
	}
}

func TestEvaluate_AgentNotFound(t *testing.T) {
	d := Evaluate(billingPolicy(), EvaluationContext{AgentID: "nope", Tool: "payments", Action: "create"})
	if d.Allow {
		t.Fatal("expected deny")
	}
	if !contains(d.Reason, "not found") {
		t.Errorf("unexpected reason: %s", d.Reason)
	}
}

func TestEvaluate_NoMatchingPermission(t *testing.T) {
	d := Evaluate(billingPolicy(), EvaluationContext{AgentID: "billing_bot", Tool: "files", Action: "read"})
	if d.Allow {
		t.Fatal("expected deny")
	}
	if !contains(d.Reason, "No policy allows") {
		t.Errorf("unexpected reason: %s", d.Reason)
	}
}

// S3 — approval required.
func TestEvaluate_RequireApproval(t *testing.T) {
	pf := &PolicyFile{
		Version: 1,
		Agents: []Agent{
			{ID: "hr_bot", Allow: []Permission{
				{Tool: "files", Actions: []string{"write"}, RequireApproval: true},
			}},
		},
	}
	d := Evaluate(pf, EvaluationContext{AgentID: "hr_bot", Tool: "files", Action: "write", Params: map[string]any{"path": "/x"}})
	if d.Allow {
		t.Fatal("RequireApproval must imply Allow=false")
	}
	if !d.RequireApproval {
		t.Fatal("expected RequireApproval=true")
	}
	if d.ApprovalContext == nil {
		t.Fatal("expected approval context snapshot")
	}
}

// S4 — parent gate.
func TestEvaluate_ParentGate(t *testing.T) {
	pf := &PolicyFile{
		Version: 1,
		Agents: []Agent{
			{
				ID:               "child_bot",
				AllowOnlyParents: []string{"supervisor"},
				Allow: []Permission{
					{Tool: "files", Actions: []string{"read"}},
				},
			},
		},
	}

	d := Evaluate(pf, EvaluationContext{AgentID: "child_bot", Tool: "files", Action: "read", ParentAgent: "attacker"})
	if d.Allow {
		t.Fatal("expected deny for disallowed parent")
	}
	if !contains(d.Reason, "supervisor") {
		t.Errorf("reason should mention allowed parent: %s", d.Reason)
	}

	d = Evaluate(pf, EvaluationContext{AgentID: "child_bot", Tool: "files", Action: "read", ParentAgent: "supervisor"})
	if !d.Allow {
		t.Fatalf("expected allow for correct parent, got: %s", d.Reason)
	}

	d = Evaluate(pf, EvaluationContext{AgentID: "child_bot", Tool: "files", Action: "read"})
	if d.Allow {
		t.Fatal("expected deny when parent is required but absent")
	}
}

func TestEvaluate_DenyIfParentTakesPrecedence(t *testing.T) {
	pf := &PolicyFile{
		Version: 1,
		Agents: []Agent{
			{
				ID:           "agent",
				DenyIfParent: []string{"quarantined"},
				Allow: []Permission{
					{Tool: "files", Actions: []string{"read"}},
				},
			},
		},
	}
	d := Evaluate(pf, EvaluationContext{AgentID: "agent", Tool: "files", Action: "read", ParentAgent: "quarantined"})
	if d.Allow {
		t.Fatal("deny_if_parent must take precedence over allow entries")
	}
}

// Property: first-match wins; a later permission is dead code.
func TestEvaluate_FirstMatchWins(t *testing.T) {
	pf := &PolicyFile{
		Version: 1,
		Agents: []Agent{
			{
				ID: "agent",
				Allow: []Permission{
					{Tool: "files", Actions: []string{"read"}, RequireApproval: true},
					{Tool: "files", Actions: []string{"read"}}, // would allow, but never reached
				},
			},
		},
	}
	d := Evaluate(pf, EvaluationContext{AgentID: "agent", Tool: "files", Action: "read"})
	if !d.RequireApproval {
		t.Fatal("expected the first matching permission's outcome (require_approval)")
	}
}

// Property: determinism.
func TestEvaluate_Deterministic(t *testing.T) {
	pf := billingPolicy()
	ctx := EvaluationContext{AgentID: "billing_bot", Tool: "payments", Action: "create", Params: map[string]any{"amount": 10.0, "currency": "USD"}}
	first := Evaluate(pf, ctx)
	for i := 0; i < 5; i++ {
		got := Evaluate(pf, ctx)
		if got.Allow != first.Allow || got.Reason != first.Reason {
			t.Fatalf("evaluation is not deterministic across calls")
		}
	}
}

// Property: version attribution.
func TestEvaluate_VersionAttribution(t *testing.T) {
	pf := billingPolicy()
	pf.Version = 7
	d := Evaluate(pf, EvaluationContext{AgentID: "billing_bot", Tool: "payments", Action: "create", Params: map[string]any{"amount": 1.0, "currency": "USD"}})
	if d.Version != 7 {
		t.Errorf("expected version 7, got %d", d.Version)
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && indexOf(s, sub) >= 0
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
