package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicegw/voicegw/internal/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Server is the agent persona's network surface: the Gateway Router opens
// one outbound WebSocket per session to this server. Each accepted
// connection gets its own Runtime built from the shared persona Config.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
}

// NewServer builds a Server sharing one persona Config across every
// connection it accepts.
func NewServer(cfg Config) *Server {
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the http.Handler serving the agent's single WebSocket
// endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("agent: websocket upgrade failed", "error", err)
		return
	}

	transport := newConnTransport(conn)
	runtime := New(s.cfg, transport)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go transport.writePump()
	transport.readPump(ctx, runtime)
	cancel()
	runtime.End()
	transport.close()
}

// connTransport adapts a gorilla/websocket connection to the Runtime's
// Transport interface, serializing writes through one goroutine since
// *websocket.Conn forbids concurrent writers.
type connTransport struct {
	conn *websocket.Conn

	mu     sync.Mutex
	outbox chan wsMessage
	closed bool
}

type wsMessage struct {
	messageType int
	data        []byte
}

func newConnTransport(conn *websocket.Conn) *connTransport {
	return &connTransport{conn: conn, outbox: make(chan wsMessage, 64)}
}

func (t *connTransport) SendControl(frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("agent: encode control frame: %w", err)
	}
	return t.enqueue(websocket.TextMessage, data)
}

func (t *connTransport) SendAudio(pcm []byte) error {
	return t.enqueue(websocket.BinaryMessage, protocol.EncodeAudioFrame(pcm))
}

func (t *connTransport) enqueue(messageType int, data []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("agent: connection closed")
	}
	t.mu.Unlock()

	select {
	case t.outbox <- wsMessage{messageType: messageType, data: data}:
		return nil
	default:
		return fmt.Errorf("agent: outbox full, dropping frame")
	}
}

func (t *connTransport) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-t.outbox:
			if !ok {
				return
			}
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(msg.messageType, msg.data); err != nil {
				return
			}
		case <-ticker.C:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump decodes frames off the wire and drives the Runtime until the
// connection closes or ctx is cancelled. Binary frames are raw PCM16;
// text frames are JSON control frames dispatched by their "type" field.
func (t *connTransport) readPump(ctx context.Context, r *Runtime) {
	t.conn.SetReadDeadline(time.Now().Add(pongWait))
	t.conn.SetPongHandler(func(string) error {
		t.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch messageType {
		case websocket.BinaryMessage:
			if err := r.HandleAudio(data); err != nil {
				slog.Warn("agent: handle audio failed", "error", err)
			}
		case websocket.TextMessage:
			if err := t.dispatchControl(ctx, r, data); err != nil {
				if errors.Is(err, errSessionEnded) {
					return
				}
				slog.Warn("agent: handle control frame failed", "error", err)
			}
		}
	}
}

func (t *connTransport) close() {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.outbox)
	}
	t.mu.Unlock()
	t.conn.Close()
}
