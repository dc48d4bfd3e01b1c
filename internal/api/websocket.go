package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/aegisgate/aegisgate/internal/audit"
)

// newUpgrader creates a WebSocket upgrader. When allowAllOrigins is false,
// only same-origin requests are accepted (Origin header must match Host).
func newUpgrader(allowAllOrigins bool) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowAllOrigins {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // non-browser clients don't send Origin
			}
			// Accept if Origin host matches the request Host header.
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return u.Host == r.Host
		},
	}
}

// feedFilter narrows a connected client's subscription to the decision
// feed: an operator watching a single misbehaving agent, or a single
// tool under investigation, doesn't want the full firehose. An empty
// field matches everything, so the default subscription (no query
// params) behaves exactly like the unfiltered feed.
type feedFilter struct {
	agentID string
	tool    string
}

func (f feedFilter) matches(e audit.HistoryEntry) bool {
	if f.agentID != "" && e.AgentID != f.agentID {
		return false
	}
	if f.tool != "" && e.Tool != f.tool {
		return false
	}
	return true
}

// WebSocketHub manages WebSocket connections for the live decision feed
// exposed at GET /admin/decisions/stream. Each client may narrow its
// subscription with ?agent_id= and/or ?tool= query parameters.
type WebSocketHub struct {
	mu       sync.RWMutex
	clients  map[*websocket.Conn]feedFilter
	upgrader websocket.Upgrader
	logger   *slog.Logger
	done     chan struct{}
}

// NewWebSocketHub creates a new WebSocket hub.
func NewWebSocketHub(logger *slog.Logger, allowAllOrigins bool) *WebSocketHub {
	return &WebSocketHub{
		clients:  make(map[*websocket.Conn]feedFilter),
		upgrader: newUpgrader(allowAllOrigins),
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Run blocks until the hub is closed. Connection cleanup happens in
// Close and in each client's read pump, not here.
func (h *WebSocketHub) Run() {
	<-h.done
}

// Close shuts down the hub and all connections.
func (h *WebSocketHub) Close() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.Close()
		delete(h.clients, conn)
	}
}

// HandleWebSocket upgrades an HTTP connection to WebSocket and registers
// the caller's feed filter from its query string.
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	filter := feedFilter{
		agentID: r.URL.Query().Get("agent_id"),
		tool:    r.URL.Query().Get("tool"),
	}

	h.mu.Lock()
	h.clients[conn] = filter
	h.mu.Unlock()

	h.logger.Debug("websocket client connected", "remote", conn.RemoteAddr(), "agent_id", filter.agentID, "tool", filter.tool)

	// Read pump — keeps connection alive, handles client disconnect
	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			h.mu.Unlock()
			_ = conn.Close()
			h.logger.Debug("websocket client disconnected", "remote", conn.RemoteAddr())
		}()

		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				break
			}
		}
	}()
}

// Broadcast sends entry to every connected client whose feed filter
// matches it, as it is recorded.
func (h *WebSocketHub) Broadcast(entry audit.HistoryEntry) {
	msg, err := json.Marshal(map[string]interface{}{
		"type": "decision",
		"data": entry,
	})
	if err != nil {
		h.logger.Error("failed to marshal websocket message", "error", err)
		return
	}

	h.mu.RLock()
	var dead []*websocket.Conn
	for conn, filter := range h.clients {
		if !filter.matches(entry) {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug("failed to write to websocket client", "error", err)
			dead = append(dead, conn)
		}
	}
	h.mu.RUnlock()

	if len(dead) > 0 {
		h.mu.Lock()
		for _, c := range dead {
			delete(h.clients, c)
			_ = c.Close()
		}
		h.mu.Unlock()
	}
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
