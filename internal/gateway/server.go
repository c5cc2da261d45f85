// Package gateway implements the Gateway Router: the public-facing
// WebSocket endpoint that accepts client connections, resolves and dials
// the initial agent, proxies audio/control frames between client and agent,
// and executes the handoff protocol when an agent asks to transfer a
// session to another persona.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voicegw/voicegw/internal/bus"
	"github.com/voicegw/voicegw/internal/config"
	"github.com/voicegw/voicegw/internal/memory"
	"github.com/voicegw/voicegw/internal/protocol"
	"github.com/voicegw/voicegw/internal/registry"
)

const (
	clientFrameRateLimit = 50 // frames/sec sustained
	clientFrameBurst     = 100

	selectWorkflowWait = 2 * time.Second
)

// Server is the Gateway Router's client-facing HTTP/WebSocket listener.
type Server struct {
	cfg      *config.GatewayConfig
	registry *registry.Registry
	memStore memory.Store
	bus      bus.Publisher

	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// NewServer wires the Gateway Router's dependencies. reg must already be
// seeded with the gateway's statically configured agents (cfg.Agents).
func NewServer(cfg *config.GatewayConfig, reg *registry.Registry, memStore memory.Store, publisher bus.Publisher) *Server {
	return &Server{
		cfg:      cfg,
		registry: reg,
		memStore: memStore,
		bus:      publisher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the http.Handler serving the gateway's client WebSocket
// endpoint and a health check.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleClient)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{Addr: s.cfg.ListenAddr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("gateway: listening", "addr", s.cfg.ListenAddr)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway: %w", err)
	}
	return nil
}

func (s *Server) handleClient(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("gateway: client upgrade failed", "error", err)
		return
	}

	pre := s.awaitPreBind(conn)
	sessionID := pre.sessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	sess := newClientSession(r.Context(), s, sessionID, conn)

	if pre.memory != nil {
		if err := s.memStore.Put(r.Context(), sessionID, pre.memory, s.cfg.MemoryTTL); err != nil {
			slog.Warn("gateway: seed client memory failed", "sessionId", sessionID, "error", err)
		}
	}

	agentInfo, ok := s.registry.ResolveAlias(pre.workflowID)
	if !ok {
		sess.sendControlToClient(protocol.ErrorFrame{Type: protocol.TypeError, Message: "no agent available for workflow " + pre.workflowID})
		conn.Close()
		return
	}

	if err := s.connectToAgent(sess, agentInfo, nil); err != nil {
		sess.sendControlToClient(protocol.ErrorFrame{Type: protocol.TypeError, Message: "failed to reach agent: " + err.Error()})
		conn.Close()
		return
	}

	sess.sendControlToClient(protocol.ConnectedFrame{Type: protocol.TypeConnected, SessionID: sessionID, Timestamp: time.Now().UnixMilli()})
	s.bus.Publish(bus.Event{Name: bus.EventSessionConnected, SessionID: sessionID})

	go s.keepaliveLoop(sess)
	s.clientReadLoop(sess)

	sess.end(s.cfg.DrainTimeout)
	s.bus.Publish(bus.Event{Name: bus.EventSessionEnded, SessionID: sessionID})
}

// preBind is what the client declared before the first agent binding: a
// workflow choice (select_workflow), and/or an explicit session to resume
// with a memory seed (session_init).
type preBind struct {
	workflowID string
	sessionID  string
	memory     map[string]any
}

// awaitPreBind waits briefly for the client's pre-binding control frame —
// select_workflow choosing the initial agent, or session_init resuming an
// explicit session (which routes to the remembered lastAgent when the
// carried memory names one) — falling back to the configured default agent
// when the client sends neither within the window.
func (s *Server) awaitPreBind(conn *websocket.Conn) preBind {
	pre := preBind{workflowID: s.cfg.DefaultWorkflowID}

	conn.SetReadDeadline(time.Now().Add(selectWorkflowWait))
	defer conn.SetReadDeadline(time.Time{})

	messageType, data, err := conn.ReadMessage()
	if err != nil || messageType != websocket.TextMessage {
		return pre
	}
	decoded, err := protocol.Decode(data)
	if err != nil {
		return pre
	}
	switch f := decoded.(type) {
	case *protocol.SelectWorkflowFrame:
		if f.WorkflowID != "" {
			pre.workflowID = f.WorkflowID
		}
	case *protocol.SessionInitFrame:
		pre.sessionID = f.SessionID
		pre.memory = f.Memory
		if last, ok := f.Memory["lastAgent"].(string); ok && last != "" {
			pre.workflowID = last
		}
	}
	return pre
}
