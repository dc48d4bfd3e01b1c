// Package api is the thin HTTP transport over the admission pipeline:
// it translates requests into gateway.Request values, maps
// gateway.Error kinds onto status codes, and exposes an admin surface
// for inspecting policies, pending approvals, and recent decisions.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aegisgate/aegisgate/internal/approval"
	"github.com/aegisgate/aegisgate/internal/audit"
	"github.com/aegisgate/aegisgate/internal/gateway"
	"github.com/aegisgate/aegisgate/internal/policy"
)

// Server is the HTTP front door onto a gateway.Pipeline.
type Server struct {
	cors       bool
	pipeline   *gateway.Pipeline
	store      *policy.Store
	gate       *approval.Gate
	sink       audit.Sink
	wsHub      *WebSocketHub
	mux        *http.ServeMux
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer wires a Server over an already-constructed Pipeline and its
// collaborators. hub is constructed by the caller (with NewWebSocketHub)
// so the same hub instance can be wrapped into a BroadcastingSink and
// handed to the Pipeline before the Server itself exists. cors toggles
// the permissive development CORS middleware the way cfg.Server.CORS
// does.
func NewServer(pipeline *gateway.Pipeline, store *policy.Store, gate *approval.Gate, sink audit.Sink, hub *WebSocketHub, cors bool, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cors:     cors,
		pipeline: pipeline,
		store:    store,
		gate:     gate,
		sink:     sink,
		wsHub:    hub,
		mux:      http.NewServeMux(),
		logger:   logger.With("component", "api.Server"),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /tools/{tool}/{action}", s.handleToolCall)
	s.mux.HandleFunc("POST /approve/{approval_id}", s.handleApprove)

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /admin/agents", s.handleListAgents)
	s.mux.HandleFunc("GET /admin/policies", s.handleListPolicies)
	s.mux.HandleFunc("GET /admin/decisions", s.handleRecentDecisions)
	s.mux.HandleFunc("GET /admin/decisions/stream", s.wsHub.HandleWebSocket)
	s.mux.HandleFunc("GET /admin/approvals/pending", s.handlePendingApprovals)
}

// Handler returns the HTTP handler, optionally wrapped in the
// permissive development CORS middleware.
func (s *Server) Handler() http.Handler {
	if s.cors {
		return corsMiddleware(s.mux)
	}
	return s.mux
}

// Start serves on addr until the process is stopped.
func (s *Server) Start(addr string) error {
	go s.wsHub.Run()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("gateway listening", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server and its WebSocket hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsHub.Close()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// BroadcastDecision pushes entry to every connected decision-stream
// client. Wire this as the callback a broadcasting audit.Sink invokes
// after each Record.
func (s *Server) BroadcastDecision(entry audit.HistoryEntry) {
	s.wsHub.Broadcast(entry)
}

// corsMiddleware adds permissive CORS headers for local development,
// mirroring the original gateway's allow-all-origins policy.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Agent-ID, X-Parent-Agent, X-Approval-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
