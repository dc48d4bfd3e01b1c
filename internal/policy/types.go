// Package policy implements the declarative policy data model and its
// deterministic evaluator. A PolicyFile maps agents to the tool actions
// they may perform, optionally gated by conditions or a human approval
// step. Evaluation is pure: no I/O, no locking, same inputs always
// produce the same Decision.
package policy

// Permission grants an agent the right to perform actions on a tool,
// optionally gated by Conditions or a require_approval flag.
type Permission struct {
	Tool             string       `yaml:"tool"`
	Actions          []string     `yaml:"actions"`
	Conditions       ConditionSet `yaml:"conditions"`
	RequireApproval  bool         `yaml:"require_approval"`
}

// ConditionSet is the closed, extensible set of condition keys a
// Permission may specify. All set fields are AND-combined; unset fields
// (nil/zero) are not checked. Evaluation order is fixed: MaxAmount,
// then Currencies, then FolderPrefix.
type ConditionSet struct {
	MaxAmount    *float64 `yaml:"max_amount,omitempty"`
	Currencies   []string `yaml:"currencies,omitempty"`
	FolderPrefix string   `yaml:"folder_prefix,omitempty"`
}

// Agent is a named principal and the ordered permissions it holds.
type Agent struct {
	ID               string       `yaml:"id"`
	Allow            []Permission `yaml:"allow"`
	DenyIfParent     []string     `yaml:"deny_if_parent"`
	AllowOnlyParents []string     `yaml:"allow_only_parents"`
}

// PolicyFile is a single parsed and validated policy document.
type PolicyFile struct {
	Version int     `yaml:"version"`
	Agents  []Agent `yaml:"agents"`

	// Path is the filesystem path this document was loaded from. Not
	// part of the YAML schema; set by the loader for diagnostics and
	// for the Store's path-sorted multi-file resolution.
	Path string `yaml:"-"`
}

// EvaluationContext is the transport-neutral description of an inbound
// tool call. Params is opaque to the evaluator except where a
// Permission's conditions inspect well-known keys.
type EvaluationContext struct {
	AgentID      string
	Tool         string
	Action       string
	Params       map[string]any
	ParentAgent  string // empty means "no parent"
}

// Decision is the result of evaluating an EvaluationContext against a
// PolicyFile. Invariant: RequireApproval implies !Allow.
type Decision struct {
	Allow            bool
	Reason           string
	Version          int
	RequireApproval  bool
	ApprovalContext  *EvaluationContext // set only when RequireApproval
}

func deny(reason string, version int) Decision {
	return Decision{Allow: false, Reason: reason, Version: version}
}

func allow(reason string, version int) Decision {
	return Decision{Allow: true, Reason: reason, Version: version}
}

func requireApproval(reason string, version int, ctx EvaluationContext) Decision {
	snapshot := ctx
	return Decision{
		Allow:           false,
		Reason:          reason,
		Version:         version,
		RequireApproval: true,
		ApprovalContext: &snapshot,
	}
}
