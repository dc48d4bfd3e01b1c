package gateway

import "fmt"

// Kind is the closed set of outcomes an admission attempt can fail
// with. Every non-allow path through Pipeline.Admit returns an *Error
// with one of these kinds; the pipeline never panics.
type Kind int

const (
	// PolicyViolation: evaluation denied outright. HTTP 403.
	PolicyViolation Kind = iota
	// ApprovalRequired: a cooperative suspend, not a failure in the
	// usual sense — the caller is expected to resubmit with the
	// returned ApprovalID. HTTP 202.
	ApprovalRequired
	// ApprovalNotFound: the supplied approval_id is unknown or was
	// already consumed. HTTP 404.
	ApprovalNotFound
	// ToolError: the forwarder reached the tool but the tool call
	// itself failed. HTTP 502.
	ToolError
	// ConfigError: a policy file failed to parse or validate during
	// Load. Logged, never surfaced to a caller.
	ConfigError
	// NoPoliciesLoaded: the current snapshot is empty; every
	// evaluation denies with this reason. Not fatal to the process.
	NoPoliciesLoaded
	// ClientCancelled: the inbound request's context was cancelled
	// (caller disconnected, deadline exceeded) after evaluation but
	// before the tool was called. The tool is never invoked. HTTP 499.
	ClientCancelled
)

func (k Kind) String() string {
	switch k {
	case PolicyViolation:
		return "policy_violation"
	case ApprovalRequired:
		return "approval_required"
	case ApprovalNotFound:
		return "approval_not_found"
	case ToolError:
		return "tool_error"
	case ConfigError:
		return "config_error"
	case NoPoliciesLoaded:
		return "no_policies_loaded"
	case ClientCancelled:
		return "client_cancelled"
	default:
		return "unknown"
	}
}

// StatusCode returns the HTTP status the transport layer should map
// this Kind to.
func (k Kind) StatusCode() int {
	switch k {
	case PolicyViolation:
		return 403
	case ApprovalRequired:
		return 202
	case ApprovalNotFound:
		return 404
	case ToolError:
		return 502
	case ClientCancelled:
		return 499
	default:
		return 500
	}
}

// Error is the typed, sentinel-free error every Pipeline stage returns
// on a non-allow path. ApprovalID is populated only for
// ApprovalRequired.
type Error struct {
	Kind       Kind
	Reason     string
	ApprovalID string
}

func (e *Error) Error() string {
	if e.ApprovalID != "" {
		return fmt.Sprintf("%s: %s (approval_id=%s)", e.Kind, e.Reason, e.ApprovalID)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func newPolicyViolation(reason string) *Error {
	return &Error{Kind: PolicyViolation, Reason: reason}
}

func newApprovalRequired(reason, approvalID string) *Error {
	return &Error{Kind: ApprovalRequired, Reason: reason, ApprovalID: approvalID}
}

func newApprovalNotFound(id string) *Error {
	return &Error{Kind: ApprovalNotFound, Reason: fmt.Sprintf("approval id %q not found or already consumed", id)}
}

func newToolError(reason string) *Error {
	return &Error{Kind: ToolError, Reason: reason}
}

func newClientCancelled(reason string) *Error {
	return &Error{Kind: ClientCancelled, Reason: reason}
}

// errNoForwarder is the ToolError surfaced when a Pipeline was
// constructed without a ToolForwarder and an allowed call has nowhere
// to go.
var errNoForwarder = fmt.Errorf("no forwarder configured for this pipeline")
