package policy

import (
	"fmt"
	"strings"
)

// Evaluate is the pure (PolicyFile, EvaluationContext) -> Decision
// function. It is deterministic and performs no I/O: agent lookup,
// parent-agent gating, then a first-match scan of the agent's allow
// list. Only the first permission matching (tool, action) is
// consulted; later entries for the same pair are dead code by design.
func Evaluate(f *PolicyFile, ctx EvaluationContext) Decision {
	agent := findAgent(f, ctx.AgentID)
	if agent == nil {
		return deny(fmt.Sprintf("Agent %q not found in policy", ctx.AgentID), f.Version)
	}

	if reason, denied := checkParentGate(agent, ctx); denied {
		return deny(reason, f.Version)
	}

	for _, perm := range agent.Allow {
		if perm.Tool != ctx.Tool || !containsString(perm.Actions, ctx.Action) {
			continue
		}

		if reason := checkConditions(perm.Conditions, ctx.Params); reason != "" {
			return deny(reason, f.Version)
		}
		if perm.RequireApproval {
			return requireApproval("action requires approval", f.Version, ctx)
		}
		return allow("Policy allows this action", f.Version)
	}

	return deny(fmt.Sprintf("No policy allows agent %q to perform %s.%s", ctx.AgentID, ctx.Tool, ctx.Action), f.Version)
}

func findAgent(f *PolicyFile, id string) *Agent {
	for i := range f.Agents {
		if f.Agents[i].ID == id {
			return &f.Agents[i]
		}
	}
	return nil
}

// checkParentGate implements step 2 of the evaluator: deny_if_parent
// and allow_only_parents are checked before any permission is scanned,
// so a parent-gate denial always takes precedence over allow entries.
func checkParentGate(agent *Agent, ctx EvaluationContext) (reason string, denied bool) {
	if ctx.ParentAgent != "" {
		if containsString(agent.DenyIfParent, ctx.ParentAgent) {
			return fmt.Sprintf("Parent agent %q is explicitly denied for agent %q", ctx.ParentAgent, agent.ID), true
		}
		if len(agent.AllowOnlyParents) > 0 && !containsString(agent.AllowOnlyParents, ctx.ParentAgent) {
			return fmt.Sprintf("Agent %q only allows parents: %s", agent.ID, strings.Join(agent.AllowOnlyParents, ", ")), true
		}
		return "", false
	}

	if len(agent.AllowOnlyParents) > 0 {
		return fmt.Sprintf("Agent %q requires a parent agent from: %s", agent.ID, strings.Join(agent.AllowOnlyParents, ", ")), true
	}
	return "", false
}

func containsString(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
