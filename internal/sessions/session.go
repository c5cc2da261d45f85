// Package sessions defines the Session type: the per-conversation mutable
// state exclusively owned by the Agent Runtime holding it. Every other
// component — Gateway, Tool Executor, Voice Bridge — observes a Session
// only through the narrow projections it exports (tools.SessionView,
// MemoryPatch), never by reaching into its fields, so the "at most one
// Agent Runtime holds a session" invariant has exactly one place it could
// be violated: here.
package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voicegw/voicegw/internal/tools"
)

// TranscriptEntry is one turn recorded in a session's transcript.
type TranscriptEntry struct {
	Role  string    `json:"role"` // "user" | "assistant"
	Text  string    `json:"text"`
	Ts    time.Time `json:"ts"`
	Final bool      `json:"final,omitempty"`
}

// Usage accumulates voice-model token counters across the life of a session,
// carried over handoffs within one Agent Runtime but reset per agent (each
// agent's Voice Bridge reports its own usage).
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// Session is the mutable per-conversation state machine driven by one Agent
// Runtime. The zero value is not usable; construct with New.
type Session struct {
	mu sync.RWMutex

	id             string
	currentAgentID string
	currentNodeID  string
	userIntent     string
	verifiedUser   *tools.VerifiedUser
	transcript     []TranscriptEntry
	usage          Usage
	audioInChunks  int
	audioOutChunks int
	startedAt      time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Session bound to agentID, deriving a cancellable context
// from parent so every suspension point the runtime enters on this
// session's behalf can be torn down together by Cancel.
func New(parent context.Context, sessionID, agentID string) *Session {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		id:             sessionID,
		currentAgentID: agentID,
		startedAt:      time.Now(),
		ctx:            ctx,
		cancel:         cancel,
	}
}

func (s *Session) ID() string { return s.id }

// Context is cancelled when the session ends; every suspension point the
// runtime enters (voice-model read, client read, tool HTTP call, memory
// touch) must select on it.
func (s *Session) Context() context.Context { return s.ctx }

// Cancel tears down every suspension point bound to this session. Safe to
// call more than once.
func (s *Session) Cancel() { s.cancel() }

func (s *Session) CurrentAgentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentAgentID
}

// SetCurrentAgentID is called once per handoff leg, when a successor Agent
// Runtime takes ownership of the same session ID (the struct itself is
// reconstructed per agent process; this setter exists for the in-process
// single-agent-binary case where one runtime plays multiple personas).
func (s *Session) SetCurrentAgentID(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentAgentID = agentID
}

func (s *Session) CurrentNodeID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentNodeID
}

func (s *Session) SetCurrentNodeID(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentNodeID = nodeID
}

func (s *Session) UserIntent() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userIntent
}

func (s *Session) SetUserIntent(intent string) {
	if intent == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userIntent = intent
}

func (s *Session) VerifiedUser() *tools.VerifiedUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.verifiedUser == nil {
		return nil
	}
	cp := *s.verifiedUser
	return &cp
}

func (s *Session) SetVerifiedUser(v tools.VerifiedUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifiedUser = &v
}

// AppendTranscript records one turn. The runtime filters internal system
// markers ("[SYSTEM:") before calling this for user-role text.
func (s *Session) AppendTranscript(role, text string, final bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, TranscriptEntry{Role: role, Text: text, Ts: time.Now(), Final: final})
}

// LastUserMessage returns the most recent user-role transcript entry's text,
// or "" if the session has no user turns yet.
func (s *Session) LastUserMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.transcript) - 1; i >= 0; i-- {
		if s.transcript[i].Role == "user" {
			return s.transcript[i].Text
		}
	}
	return ""
}

// Transcript returns a copy of the recorded turns so far.
func (s *Session) Transcript() []TranscriptEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TranscriptEntry, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// AddUsage accumulates a usageEvent reported by the Voice Bridge.
func (s *Session) AddUsage(input, output, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage.InputTokens += input
	s.usage.OutputTokens += output
	s.usage.TotalTokens += total
}

func (s *Session) Usage() Usage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage
}

func (s *Session) IncAudioIn()  { s.mu.Lock(); s.audioInChunks++; s.mu.Unlock() }
func (s *Session) IncAudioOut() { s.mu.Lock(); s.audioOutChunks++; s.mu.Unlock() }

func (s *Session) AudioCounts() (in, out int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audioInChunks, s.audioOutChunks
}

func (s *Session) StartedAt() time.Time { return s.startedAt }

// View projects the narrow read-only slice of state the Tool Executor needs
// to classify and validate a tool call, without granting it access to the
// full Session.
func (s *Session) View(graphState map[string]any) tools.SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tools.SessionView{
		SessionID:       s.id,
		CurrentAgentID:  s.currentAgentID,
		UserIntent:      s.userIntent,
		VerifiedUser:    s.verifiedUser,
		LastUserMessage: s.lastUserMessageLocked(),
		GraphState:      graphState,
	}
}

func (s *Session) lastUserMessageLocked() string {
	for i := len(s.transcript) - 1; i >= 0; i-- {
		if s.transcript[i].Role == "user" {
			return s.transcript[i].Text
		}
	}
	return ""
}

// MemoryPatch builds the map written to the Session Memory Store, composed
// by the caller (Agent Runtime/Gateway) from the current Session state
// (including lastAgent) plus whatever further handoff-specific fields
// (such as graphState) it wants to add.
func (s *Session) MemoryPatch() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	patch := map[string]any{
		"lastAgent":       s.currentAgentID,
		"lastUserMessage": s.lastUserMessageLocked(),
	}
	if s.userIntent != "" {
		patch["userIntent"] = s.userIntent
	}
	if s.verifiedUser != nil && s.verifiedUser.Verified {
		patch["verified"] = true
		patch["userName"] = s.verifiedUser.UserName
		patch["account"] = s.verifiedUser.Account
		patch["sortCode"] = s.verifiedUser.SortCode
	}
	return patch
}
