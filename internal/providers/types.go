// Package providers implements the text-model clients behind the hybrid and
// text operating modes: a common Provider contract plus Anthropic,
// OpenAI-compatible, and DashScope backends. The voice path never touches
// this package — it exists so a persona can run without a streaming voice
// model, driven turn by turn over plain chat completions.
package providers

import "context"

// Provider is one text-model backend. Implementations must be safe for
// concurrent use by multiple sessions.
type Provider interface {
	// Chat runs one non-streaming completion over the full message history.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ChatStream runs one completion, delivering partial content through
	// onChunk as it arrives, and returns the assembled final response.
	ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error)

	// DefaultModel returns the model used when ChatRequest.Model is empty.
	DefaultModel() string

	// Name returns the backend identifier ("anthropic", "openai", ...).
	Name() string
}

// ChatRequest is the input to one Chat/ChatStream turn.
type ChatRequest struct {
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Model       string           `json:"model,omitempty"`
	MaxTokens   int              `json:"maxTokens,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
}

// ChatResponse is the assembled result of one turn.
type ChatResponse struct {
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"toolCalls,omitempty"`
	FinishReason string     `json:"finishReason"` // "stop", "tool_calls", "length"
	Usage        *Usage     `json:"usage,omitempty"`
}

// StreamChunk is one partial-content delivery during ChatStream.
type StreamChunk struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
}

// Message is one turn in the conversation history. Role is "system",
// "user", "assistant", or "tool" (a tool result, carrying ToolCallID).
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"`
}

// ToolCall is one tool invocation the model requested.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolDefinition describes a tool surfaced to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function ToolFunctionSchema `json:"function"`
}

// ToolFunctionSchema is the schema for one function tool.
type ToolFunctionSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Usage tracks token consumption for one turn.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}
