// Package agent implements the Agent Runtime: the voice-agnostic
// per-session state machine that drives one persona's side of a
// conversation — configuring and starting the Voice Bridge, dispatching
// tool calls through the Tool Executor, and emitting handoff requests back
// to the Gateway Router.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/voicegw/voicegw/internal/bootstrap"
	"github.com/voicegw/voicegw/internal/bus"
	"github.com/voicegw/voicegw/internal/sessions"
	"github.com/voicegw/voicegw/internal/tools"
	"github.com/voicegw/voicegw/internal/voicebridge"
	"github.com/voicegw/voicegw/internal/workflow"
)

// State is the Agent Runtime's per-session state machine position.
type State string

const (
	StateIdle        State = "idle"
	StateConnected   State = "connected"
	StateConfigured  State = "configured"
	StateStreaming   State = "streaming"
	StateWaitingTool State = "waiting_tool"
	StateEnded       State = "ended"
)

// systemMarkerPrefix tags internal control turns the model should act on but
// the client should never see echoed back as a user transcript.
const systemMarkerPrefix = "[SYSTEM:"

// Transport is the narrow send-side interface the Runtime depends on; a
// concrete Server wires this to the live agent⇄gateway WebSocket connection
// while tests substitute a recording fake.
type Transport interface {
	SendControl(frame any) error
	SendAudio(pcm []byte) error
}

// Config wires one Runtime instance to its persona's static configuration:
// persona prompt text, workflow engine, tool executor, and phantom-action
// pattern table. One Config is shared across every session a persona
// process handles; one Runtime is constructed per session.
type Config struct {
	AgentID          string
	PersonaPrompt    string
	HandoffToolNames []string
	Engine           *workflow.Engine
	Executor         *tools.Executor
	Phantom          []PhantomRule
	Bus              bus.Publisher
	NewBridge        func(ctx context.Context) (voicebridge.Bridge, error)

	// BridgeTemplate carries the per-persona Voice Bridge configuration —
	// tool catalog, voice id, inference settings, optional remote-runtime
	// identifier. Init fills in the per-session system prompt before
	// applying it.
	BridgeTemplate voicebridge.Config
}

// Runtime drives one session's state machine. Its state, session and bridge
// fields are guarded by mu: the Server's read pump calls the Init/Handle*/End
// methods while the Voice Bridge's event goroutine calls handleBridgeEvent.
type Runtime struct {
	cfg       Config
	transport Transport

	mu      sync.Mutex
	state   State
	session *sessions.Session
	bridge  voicebridge.Bridge

	turn *turnTracker
}

// New constructs a Runtime bound to transport. Call Init to move it from
// Idle to Streaming for a specific session.
func New(cfg Config, transport Transport) *Runtime {
	return &Runtime{cfg: cfg, transport: transport, state: StateIdle, turn: newTurnTracker(cfg.Phantom)}
}

func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runtime) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Init handles a session_init frame: constructs the Session, composes the
// ordered system prompt (context → persona → handoff → workflow), configures
// and starts the Voice Bridge, and — when the inherited memory carries a
// verified user or user intent — sends the post-start priming message,
// since the model never rereads the system prompt once streaming begins.
func (r *Runtime) Init(ctx context.Context, sessionID string, memory map[string]any) error {
	r.setState(StateConnected)

	sess := sessions.New(ctx, sessionID, r.cfg.AgentID)
	r.mu.Lock()
	r.session = sess
	r.mu.Unlock()

	verifiedName, account, sortCode, userIntent, handoffReason, lastUserMessage := extractMemoryFields(memory)
	if account != "" || sortCode != "" || verifiedName != "" {
		sess.SetVerifiedUser(tools.VerifiedUser{
			Verified: verifiedName != "",
			UserName: verifiedName,
			Account:  account,
			SortCode: sortCode,
		})
	}
	if userIntent != "" {
		sess.SetUserIntent(userIntent)
	}

	prompt := bootstrap.AssemblePrompt(
		bootstrap.ContextSection(verifiedName, account, sortCode, userIntent, handoffReason, lastUserMessage),
		bootstrap.ContextFile{Name: bootstrap.SectionPersona, Content: r.cfg.PersonaPrompt},
		bootstrap.HandoffSection(r.cfg.HandoffToolNames),
		bootstrap.ContextFile{Name: bootstrap.SectionWorkflow, Content: r.cfg.Engine.Describe()},
	)

	bridge, err := r.cfg.NewBridge(ctx)
	if err != nil {
		return fmt.Errorf("agent: construct voice bridge: %w", err)
	}
	r.mu.Lock()
	r.bridge = bridge
	r.mu.Unlock()

	bridgeCfg := r.cfg.BridgeTemplate
	bridgeCfg.SystemPrompt = prompt
	if bridgeCfg.VoiceID == "" {
		bridgeCfg.VoiceID = r.cfg.Engine.Definition().VoiceID
	}
	if bridgeCfg.MaxTokens == 0 {
		bridgeCfg.MaxTokens = 1024
	}
	if err := bridge.SetConfig(bridgeCfg); err != nil {
		return fmt.Errorf("agent: configure voice bridge: %w", err)
	}
	r.setState(StateConfigured)

	if err := bridge.Start(ctx, sessionID, r.handleBridgeEvent); err != nil {
		return fmt.Errorf("agent: start voice bridge: %w", err)
	}
	r.setState(StateStreaming)

	if userIntent != "" || verifiedName != "" {
		summary := primingSummary(verifiedName, userIntent, handoffReason)
		if err := bridge.SendText(bootstrap.PrimingMessage(summary)); err != nil {
			slog.Warn("agent: priming message failed", "sessionId", sessionID, "error", err)
		}
	}

	r.publish(bus.EventSessionConnected, sessionID, nil)
	return nil
}

func primingSummary(verifiedName, userIntent, handoffReason string) string {
	var parts []string
	if verifiedName != "" {
		parts = append(parts, "Caller "+verifiedName+" is already verified.")
	}
	if userIntent != "" {
		parts = append(parts, "They want: "+userIntent+".")
	}
	if handoffReason != "" {
		parts = append(parts, "Handoff reason: "+handoffReason+".")
	}
	return strings.Join(parts, " ")
}

// HandleAudio forwards a client microphone chunk to the Voice Bridge.
func (r *Runtime) HandleAudio(pcm []byte) error {
	bridge := r.currentBridge()
	if bridge == nil {
		return fmt.Errorf("agent: session not streaming")
	}
	r.currentSession().IncAudioIn()
	return bridge.SendAudioChunk(pcm)
}

// HandleUserText forwards a client text turn (MODE=text/hybrid, or a
// hybrid interjection during a voice session). Zero-length input is ignored
// rather than sent as an empty turn.
func (r *Runtime) HandleUserText(text string) error {
	if text == "" {
		return nil
	}
	bridge := r.currentBridge()
	if bridge == nil {
		return fmt.Errorf("agent: session not streaming")
	}
	return bridge.SendText(text)
}

// HandleEndOfSpeech marks end-of-user-utterance.
func (r *Runtime) HandleEndOfSpeech() error {
	bridge := r.currentBridge()
	if bridge == nil {
		return fmt.Errorf("agent: session not streaming")
	}
	return bridge.EndAudioInput()
}

func (r *Runtime) currentBridge() voicebridge.Bridge {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bridge
}

func (r *Runtime) currentSession() *sessions.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// End performs the clean shutdown order: stop reading input (caller's
// responsibility — it owns the read pump), drain is bounded by the caller's
// deadline, then Voice Bridge stop, then local Session teardown. Idempotent.
func (r *Runtime) End() {
	r.mu.Lock()
	if r.state == StateEnded {
		r.mu.Unlock()
		return
	}
	r.state = StateEnded
	sess := r.session
	bridge := r.bridge
	r.mu.Unlock()

	if bridge != nil {
		if err := bridge.Stop(); err != nil {
			slog.Warn("agent: voice bridge stop error", "error", err)
		}
	}
	if sess != nil {
		sess.Cancel()
		r.publish(bus.EventSessionEnded, sess.ID(), nil)
	}
}

func (r *Runtime) publish(name, sessionID string, payload any) {
	if r.cfg.Bus == nil {
		return
	}
	r.cfg.Bus.Publish(bus.Event{Name: name, SessionID: sessionID, Payload: payload})
}

// extractMemoryFields reads the well-known SessionMemory fields
// out of the opaque map carried on session_init.
func extractMemoryFields(memory map[string]any) (verifiedName, account, sortCode, userIntent, handoffReason, lastUserMessage string) {
	if memory == nil {
		return
	}
	if v, ok := memory["verified"].(bool); ok && v {
		verifiedName, _ = memory["userName"].(string)
	}
	account, _ = memory["account"].(string)
	sortCode, _ = memory["sortCode"].(string)
	userIntent, _ = memory["userIntent"].(string)
	lastUserMessage, _ = memory["lastUserMessage"].(string)
	if ctx, ok := memory["context"].(map[string]any); ok {
		if r, ok := ctx["reason"].(string); ok {
			handoffReason = r
		}
	}
	if handoffReason == "" {
		handoffReason, _ = memory["reason"].(string)
	}
	return
}

// isSystemMarker reports whether text is an internal control turn that must
// never be echoed to the client as a visible transcript.
func isSystemMarker(text string) bool {
	return strings.HasPrefix(text, systemMarkerPrefix)
}
