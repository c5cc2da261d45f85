// Package voicebridge implements the Voice Bridge: the bidirectional
// audio/event conduit wrapping one streaming session with the voice model.
// A Bridge is bound 1:1 to one Agent Runtime session; the runtime owns its
// lifecycle end to end.
package voicebridge

import (
	"context"
	"errors"
	"sync"

	"github.com/voicegw/voicegw/internal/audio"
)

// EventKind is the closed set of event kinds a Bridge emits, in emission
// order, on a single logical channel per session.
type EventKind string

const (
	EventAudio              EventKind = "audio"
	EventTranscript         EventKind = "transcript"
	EventToolUse            EventKind = "toolUse"
	EventMetadata           EventKind = "metadata"
	EventInterruption       EventKind = "interruption"
	EventUsage              EventKind = "usageEvent"
	EventContentStart       EventKind = "contentStart"
	EventContentEnd         EventKind = "contentEnd"
	EventInteractionTurnEnd EventKind = "interactionTurnEnd"
	EventSessionStart       EventKind = "session_start"
	EventError              EventKind = "error"
)

// Event is the single envelope type every Bridge emits; callers type-switch
// on Kind and read the field it populates.
type Event struct {
	Kind EventKind

	Audio []byte // EventAudio: raw PCM16, already even-length padded

	Role    string // EventTranscript: "user" | "assistant"
	Text    string // EventTranscript
	Final   bool   // EventTranscript

	ToolName  string         // EventToolUse
	ToolUseID string         // EventToolUse
	Input     map[string]any // EventToolUse

	Metadata map[string]any // EventMetadata, EventInterruption

	InputTokens  int // EventUsage
	OutputTokens int // EventUsage
	TotalTokens  int // EventUsage

	Err     error  // EventError
	Fatal   bool   // EventError: true if the bridge cannot continue
	Message string // EventError
}

// ToolDefinition is one tool surfaced to the voice model, carried through
// SetConfig from the agent's tool catalog.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Config must be applied before Start; the model does not reread it
// afterward.
type Config struct {
	SystemPrompt           string
	Tools                  []ToolDefinition
	VoiceID                string
	AgentCoreRuntimeARN    string
	MaxTokens              int
	TopP                   float64
	Temperature            float64
	EndpointingSensitivity string
}

// ErrNotConfigured is returned by Start when SetConfig was never called.
var ErrNotConfigured = errors.New("voicebridge: SetConfig must be called before Start")

// ErrAlreadyStarted is returned by SetConfig once Start has run, since the
// model never rereads the system prompt after that point.
var ErrAlreadyStarted = errors.New("voicebridge: SetConfig called after Start")

// OnEvent receives bridge events in emission order.
type OnEvent func(Event)

// Bridge is the contract every voice-model backend implements.
type Bridge interface {
	// SetConfig applies the inference configuration. Must be called exactly
	// once, before Start.
	SetConfig(cfg Config) error
	// Start opens the model stream for sessionID and begins delivering
	// events to onEvent until Stop is called or the stream ends fatally.
	Start(ctx context.Context, sessionID string, onEvent OnEvent) error
	// SendAudioChunk pushes a PCM16 chunk upstream. Enforces the even-length
	// invariant as defense-in-depth even though producers should already
	// have padded.
	SendAudioChunk(pcm []byte) error
	// SendText injects a user-role text turn — used for text/hybrid mode
	// and for the post-start context priming message.
	SendText(text string) error
	// SendToolResult returns a tool invocation's result to the model so it
	// can continue the turn.
	SendToolResult(toolUseID string, result any, isError bool) error
	// EndAudioInput marks end-of-user-utterance.
	EndAudioInput() error
	// Stop cleanly closes the stream. Idempotent.
	Stop() error
}

// baseState is embedded by every Bridge implementation to share the
// SetConfig-before-Start bookkeeping and the even-length defense-in-depth,
// so each backend only implements the actual wire protocol.
type baseState struct {
	mu      sync.Mutex
	cfg     Config
	hasCfg  bool
	started bool
	stopped bool
}

func (b *baseState) setConfig(cfg Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrAlreadyStarted
	}
	b.cfg = cfg
	b.hasCfg = true
	return nil
}

func (b *baseState) markStarted() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.hasCfg {
		return ErrNotConfigured
	}
	b.started = true
	return nil
}

func (b *baseState) markStopped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return false
	}
	b.stopped = true
	return true
}

func (b *baseState) config() Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

// padAudio is the defense-in-depth even-length enforcement point shared by
// every backend's SendAudioChunk and inbound audio demux.
func padAudio(pcm []byte) []byte { return audio.PadEven(pcm) }
