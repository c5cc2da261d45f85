package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/voicegw/voicegw/internal/protocol"
)

// agentLink is the gateway's outbound WebSocket connection to one agent
// persona, serving one session at a time. The gateway is the client on this
// connection — symmetric to how internal/agent.Server is the server.
type agentLink struct {
	agentID string
	conn    *websocket.Conn
	mu      sync.Mutex
}

func dialAgent(endpoint, agentID string) (*agentLink, error) {
	conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
	if err != nil {
		return nil, err
	}
	return &agentLink{agentID: agentID, conn: conn}, nil
}

func (a *agentLink) sendControl(frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn.WriteMessage(websocket.TextMessage, data)
}

func (a *agentLink) sendAudio(pcm []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn.WriteMessage(websocket.BinaryMessage, protocol.EncodeAudioFrame(pcm))
}

func (a *agentLink) close() {
	a.conn.Close()
}

// clientSession is the full per-connection state the Gateway Router drives:
// the browser-facing connection, the current agent link, and the rate
// limiter bounding how fast the client may push frames.
type clientSession struct {
	id      string
	srv     *Server
	client  *websocket.Conn
	clientMu sync.Mutex

	limiter *rate.Limiter

	mu      sync.Mutex
	agent   *agentLink
	ended   bool

	ctx    context.Context
	cancel context.CancelFunc

	lastClientActivity time.Time
}

func newClientSession(ctx context.Context, srv *Server, id string, client *websocket.Conn) *clientSession {
	sctx, cancel := context.WithCancel(ctx)
	return &clientSession{
		id:                 id,
		srv:                srv,
		client:             client,
		limiter:            rate.NewLimiter(rate.Limit(clientFrameRateLimit), clientFrameBurst),
		ctx:                sctx,
		cancel:             cancel,
		lastClientActivity: time.Now(),
	}
}

func (s *clientSession) sendToClient(messageType int, data []byte) error {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()
	return s.client.WriteMessage(messageType, data)
}

func (s *clientSession) sendControlToClient(frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Warn("gateway: encode client frame failed", "sessionId", s.id, "error", err)
		return
	}
	if err := s.sendToClient(websocket.TextMessage, data); err != nil {
		slog.Warn("gateway: send to client failed", "sessionId", s.id, "error", err)
	}
}

func (s *clientSession) currentAgent() *agentLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agent
}

func (s *clientSession) setAgent(a *agentLink) {
	s.mu.Lock()
	s.agent = a
	s.mu.Unlock()
}

// end idempotently tears down both legs of the session. Draining is bounded
// by drainTimeout: pending outbound frames already queued on the OS socket
// buffer get their best-effort flush time, then both connections close
// regardless.
func (s *clientSession) end(drainTimeout time.Duration) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	agent := s.agent
	s.mu.Unlock()

	s.cancel()
	time.AfterFunc(drainTimeout, func() {
		if agent != nil {
			agent.close()
		}
		s.client.Close()
	})
}
