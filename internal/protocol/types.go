// Package protocol defines the closed set of typed control-frame messages
// exchanged over the client⇄gateway and gateway⇄agent WebSocket
// connections, plus the binary PCM16 framing helpers.
package protocol

// FrameType is the closed set of `type` values carried by JSON control frames.
// Binary frames carry no type field — they are raw PCM16 and are framed
// separately by the WebSocket message type (ws.BinaryMessage).
type FrameType string

// Client → Gateway frame types.
const (
	TypeSelectWorkflow FrameType = "select_workflow"
	TypeSessionInit    FrameType = "session_init"
	TypeUserInput      FrameType = "user_input"
	TypeEndOfSpeech    FrameType = "end_of_speech"
	TypePing           FrameType = "ping"
)

// Gateway → Client frame types.
const (
	TypeConnected      FrameType = "connected"
	TypeTranscript     FrameType = "transcript"
	TypeToolUse        FrameType = "tool_use"
	TypeToolResult     FrameType = "tool_result"
	TypeHandoffRequest FrameType = "handoff_request"
	TypeHandoffEvent   FrameType = "handoff_event"
	TypeMetadata       FrameType = "metadata"
	TypeInterruption   FrameType = "interruption"
	TypeUsage          FrameType = "usage"
	TypeError          FrameType = "error"

	TypeSessionStart       FrameType = "session_start"
	TypeContentStart       FrameType = "contentStart"
	TypeContentEnd         FrameType = "contentEnd"
	TypeInteractionTurnEnd FrameType = "interactionTurnEnd"
)

// Gateway-directed frames on the agent→gateway path (never forwarded to the client).
const (
	TypeUpdateMemory FrameType = "update_memory"
)

// Gateway → Agent frame types.
const (
	TypeEndSession FrameType = "end_session"
)

// Envelope is the generic shape every JSON control frame decodes into first;
// callers re-decode the raw frame bytes into the concrete payload once Type
// is known.
type Envelope struct {
	Type FrameType `json:"type"`
}

// --- Client → Gateway payloads ---

type SelectWorkflowFrame struct {
	Type       FrameType `json:"type"`
	WorkflowID string    `json:"workflowId"`
}

type SessionInitFrame struct {
	Type      FrameType      `json:"type"`
	SessionID string         `json:"sessionId,omitempty"`
	Memory    map[string]any `json:"memory,omitempty"`
	TraceID   string         `json:"traceId,omitempty"`
	Timestamp int64          `json:"timestamp,omitempty"`
}

type UserInputFrame struct {
	Type FrameType `json:"type"`
	Text string    `json:"text"`
}

type EndOfSpeechFrame struct {
	Type FrameType `json:"type"`
}

type PingFrame struct {
	Type FrameType `json:"type"`
}

// --- Gateway → Client payloads ---

type ConnectedFrame struct {
	Type      FrameType `json:"type"`
	SessionID string    `json:"sessionId"`
	Timestamp int64     `json:"timestamp"`
}

type TranscriptFrame struct {
	Type      FrameType `json:"type"`
	Role      string    `json:"role"` // "user" | "assistant"
	Text      string    `json:"text"`
	IsFinal   bool      `json:"isFinal,omitempty"`
	ID        string    `json:"id,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

type ToolUseFrame struct {
	Type      FrameType      `json:"type"`
	ToolName  string         `json:"toolName"`
	ToolUseID string         `json:"toolUseId"`
	Input     map[string]any `json:"input"`
}

type ToolResultFrame struct {
	Type      FrameType `json:"type"`
	ToolName  string    `json:"toolName"`
	ToolUseID string    `json:"toolUseId"`
	Success   bool      `json:"success"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type HandoffRequestFrame struct {
	Type          FrameType      `json:"type"`
	TargetAgentID string         `json:"targetAgentId"`
	Context       map[string]any `json:"context"`
	GraphState    map[string]any `json:"graphState,omitempty"`
}

type HandoffEventFrame struct {
	Type FrameType `json:"type"`
	From string    `json:"from"`
	To   string    `json:"to"`
}

type MetadataFrame struct {
	Type    FrameType      `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

type InterruptionFrame struct {
	Type    FrameType      `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

type UsageFrame struct {
	Type         FrameType `json:"type"`
	InputTokens  int       `json:"inputTokens"`
	OutputTokens int       `json:"outputTokens"`
	TotalTokens  int       `json:"totalTokens"`
}

type ErrorFrame struct {
	Type    FrameType `json:"type"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

type LifecycleFrame struct {
	Type FrameType `json:"type"`
}

// --- Gateway-directed (agent → gateway, never forwarded to client) ---

type UpdateMemoryFrame struct {
	Type   FrameType      `json:"type"`
	Memory map[string]any `json:"memory"`
}

// EndSessionFrame tells an agent to gracefully end its side of a session,
// sent by the gateway before a handoff rebinds the session elsewhere.
type EndSessionFrame struct {
	Type      FrameType `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
}
