package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voicegw/voicegw/internal/memory"
	"github.com/voicegw/voicegw/internal/protocol"
	"github.com/voicegw/voicegw/internal/registry"
)

// connectToAgent dials info's endpoint, sends session_init (using
// memoryOverride when the caller already has a merged memory patch in hand
// — a handoff — or the stored record for sess.id otherwise — the initial
// connection), swaps it in as the session's current agent link, and starts
// the goroutine relaying the agent's outbound frames to the client.
func (s *Server) connectToAgent(sess *clientSession, info registry.AgentInfo, memoryOverride map[string]any) error {
	link, err := dialAgent(info.Endpoint, info.ID)
	if err != nil {
		return err
	}

	mem := memoryOverride
	if mem == nil {
		if rec, err := s.memStore.Get(context.Background(), sess.id); err == nil {
			mem = rec.Data
		}
	}

	if err := link.sendControl(protocol.SessionInitFrame{
		Type: protocol.TypeSessionInit, SessionID: sess.id, Memory: mem, Timestamp: time.Now().UnixMilli(),
	}); err != nil {
		link.close()
		return err
	}

	sess.setAgent(link)
	go s.agentReadLoop(sess, link)
	return nil
}

// agentReadLoop relays one agent connection's outbound frames: audio passes
// straight through to the client, update_memory is intercepted and
// persisted, handoff_request triggers the handoff protocol, and every other
// control frame is forwarded to the client verbatim.
func (s *Server) agentReadLoop(sess *clientSession, link *agentLink) {
	for {
		messageType, data, err := link.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case <-sess.ctx.Done():
			return
		default:
		}
		if sess.currentAgent() != link {
			// This link was superseded by a handoff; drain and exit quietly.
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			if err := sess.sendToClient(websocket.BinaryMessage, protocol.EncodeAudioFrame(data)); err != nil {
				slog.Warn("gateway: relay audio to client failed", "sessionId", sess.id, "error", err)
			}
		case websocket.TextMessage:
			s.handleAgentControlFrame(sess, data)
		}
	}
}

func (s *Server) handleAgentControlFrame(sess *clientSession, data []byte) {
	t, err := protocol.PeekType(data)
	if err != nil {
		slog.Warn("gateway: malformed agent frame, dropping", "sessionId", sess.id, "error", err)
		return
	}

	switch t {
	case protocol.TypeUpdateMemory:
		decoded, err := protocol.Decode(data)
		if err != nil {
			return
		}
		f := decoded.(*protocol.UpdateMemoryFrame)
		if err := s.memStore.Put(context.Background(), sess.id, f.Memory, s.cfg.MemoryTTL); err != nil {
			slog.Warn("gateway: persist memory update failed", "sessionId", sess.id, "error", err)
		}

	case protocol.TypeHandoffRequest:
		decoded, err := protocol.Decode(data)
		if err != nil {
			return
		}
		f := decoded.(*protocol.HandoffRequestFrame)
		s.performHandoff(sess, *f)

	default:
		if err := sess.sendToClient(websocket.TextMessage, data); err != nil {
			slog.Warn("gateway: relay control frame to client failed", "sessionId", sess.id, "error", err)
		}
	}
}

// clientReadLoop relays the client's inbound frames to the current agent,
// rate-limiting to absorb a misbehaving or hostile client without taking
// down the gateway process.
func (s *Server) clientReadLoop(sess *clientSession) {
	for {
		messageType, data, err := sess.client.ReadMessage()
		if err != nil {
			return
		}
		sess.lastClientActivity = time.Now()

		if !sess.limiter.Allow() {
			continue
		}

		link := sess.currentAgent()
		if link == nil {
			continue
		}

		switch messageType {
		case websocket.BinaryMessage:
			if err := link.sendAudio(data); err != nil {
				slog.Warn("gateway: relay audio to agent failed", "sessionId", sess.id, "error", err)
			}
		case websocket.TextMessage:
			t, err := protocol.PeekType(data)
			if err != nil {
				continue
			}
			switch t {
			case protocol.TypeUserInput, protocol.TypeEndOfSpeech, protocol.TypePing:
				if err := link.conn.WriteMessage(websocket.TextMessage, data); err != nil {
					slog.Warn("gateway: relay control frame to agent failed", "sessionId", sess.id, "error", err)
				}
			case protocol.TypeHandoffRequest:
				decoded, err := protocol.Decode(data)
				if err != nil {
					continue
				}
				f := decoded.(*protocol.HandoffRequestFrame)
				if f.TargetAgentID == "" {
					sess.sendControlToClient(protocol.ErrorFrame{
						Type: protocol.TypeError, Message: "handoff request missing targetAgentId",
					})
					continue
				}
				s.performHandoff(sess, *f)
			}
		}
	}
}

// keepaliveLoop pings the client on cfg.KeepaliveIdle and ends the session
// if no pong/activity arrives within cfg.KeepaliveGrace afterward.
func (s *Server) keepaliveLoop(sess *clientSession) {
	sess.client.SetReadDeadline(time.Now().Add(s.cfg.KeepaliveIdle + s.cfg.KeepaliveGrace))
	sess.client.SetPongHandler(func(string) error {
		sess.client.SetReadDeadline(time.Now().Add(s.cfg.KeepaliveIdle + s.cfg.KeepaliveGrace))
		return nil
	})

	ticker := time.NewTicker(s.cfg.KeepaliveIdle)
	defer ticker.Stop()
	for {
		select {
		case <-sess.ctx.Done():
			return
		case <-ticker.C:
			if err := sess.sendToClient(websocket.PingMessage, nil); err != nil {
				return
			}
			// A session that outlives the memory TTL without a handoff keeps
			// its cross-agent state alive for as long as the client is here.
			if err := s.memStore.Touch(sess.ctx, sess.id, s.cfg.MemoryTTL); err != nil && !errors.Is(err, memory.ErrNotFound) {
				slog.Warn("gateway: memory touch failed", "sessionId", sess.id, "error", err)
			}
		}
	}
}
