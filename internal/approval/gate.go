// Package approval implements the two-phase approval handshake: a
// require_approval Decision is parked here under a fresh UUID, and a
// later call presenting that id consumes it exactly once.
package approval

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aegisgate/aegisgate/internal/policy"
)

// DefaultTTL is how long a pending request survives before being swept
// as expired. The core spec leaves this an open question; 15 minutes
// is the recommended default, configurable via Gate's constructor.
const DefaultTTL = 15 * time.Minute

// sweepInterval is how often the expiry sweep runs, matching the
// teacher's own checkTimeouts ticker cadence.
const sweepInterval = 5 * time.Second

// Request is a parked approval awaiting a matching consume call.
type Request struct {
	ID        string
	CreatedAt time.Time
	Context   policy.EvaluationContext
}

// Gate holds the pending-approval map. All operations run under a
// single mutex; create, consume and the expiry sweep are the only
// mutations, so there is no need for anything finer-grained.
type Gate struct {
	mu      sync.Mutex
	pending map[string]*Request
	ttl     time.Duration
	logger  *slog.Logger
	done    chan struct{}
}

// NewGate creates a Gate with the given TTL (use DefaultTTL if ttl <= 0)
// and starts its background expiry sweep.
func NewGate(ttl time.Duration, logger *slog.Logger) *Gate {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		pending: make(map[string]*Request),
		ttl:     ttl,
		logger:  logger.With("component", "approval.Gate"),
		done:    make(chan struct{}),
	}
	go g.sweepExpired()
	return g
}

// Create parks ctx under a fresh UUID v4 and returns the id.
func (g *Gate) Create(ctx policy.EvaluationContext) string {
	id := uuid.NewString()
	req := &Request{ID: id, CreatedAt: time.Now(), Context: ctx}

	g.mu.Lock()
	g.pending[id] = req
	g.mu.Unlock()

	g.logger.Info("approval request created", "approval_id", id, "agent_id", ctx.AgentID, "tool", ctx.Tool, "action", ctx.Action)
	return id
}

// Consume atomically removes and returns the pending request for id.
// A second call with the same id returns (nil, false): an approval id
// is valid for exactly one consume.
func (g *Gate) Consume(id string) (*Request, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	req, ok := g.pending[id]
	if !ok {
		return nil, false
	}
	delete(g.pending, id)
	return req, true
}

// Peek returns the pending request for id without consuming it. Used
// by the HTTP transport to replay a stored request's tool/action/params
// before handing the approval id to the pipeline for the real,
// consuming re-evaluation.
func (g *Gate) Peek(id string) (*Request, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.pending[id]
	return req, ok
}

// Pending returns a snapshot of all currently pending requests.
func (g *Gate) Pending() []*Request {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*Request, 0, len(g.pending))
	for _, r := range g.pending {
		out = append(out, r)
	}
	return out
}

// Stop shuts down the background expiry sweep.
func (g *Gate) Stop() {
	close(g.done)
}

func (g *Gate) sweepExpired() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.done:
			return
		case <-ticker.C:
			g.sweepOnce()
		}
	}
}

// sweepOnce removes every pending request older than the gate's TTL.
// Split out from sweepExpired so tests can trigger a sweep pass without
// waiting for the ticker interval.
func (g *Gate) sweepOnce() {
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, req := range g.pending {
		if now.Sub(req.CreatedAt) > g.ttl {
			delete(g.pending, id)
			g.logger.Warn("approval request expired", "approval_id", id, "agent_id", req.Context.AgentID)
		}
	}
}

// ErrNotFound-style helper for callers that want a formatted message
// without constructing their own.
func NotFoundError(id string) error {
	return fmt.Errorf("approval request %q not found or already consumed", id)
}
