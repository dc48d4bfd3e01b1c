package api

import (
	"context"

	"github.com/aegisgate/aegisgate/internal/audit"
)

// BroadcastingSink wraps an audit.Sink and pushes every recorded
// HistoryEntry to a WebSocketHub's connected clients, so GET
// /admin/decisions/stream sees decisions the instant they're recorded
// without polling GET /admin/decisions.
type BroadcastingSink struct {
	Inner audit.Sink
	Hub   *WebSocketHub
}

// Record delegates to Inner, then broadcasts the entry just appended.
func (b *BroadcastingSink) Record(ctx context.Context, r audit.Record) string {
	traceID := b.Inner.Record(ctx, r)
	if recent := b.Inner.Recent(1); len(recent) > 0 {
		b.Hub.Broadcast(recent[0])
	}
	return traceID
}

// Recent delegates to Inner.
func (b *BroadcastingSink) Recent(limit int) []audit.HistoryEntry {
	return b.Inner.Recent(limit)
}
