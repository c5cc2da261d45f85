package voicebridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/voicegw/voicegw/internal/providers"
)

// TextBridge is the Voice Bridge backend for MODE=text and
// MODE=hybrid personas: a request/response text model (providers.Provider)
// generalized to the Bridge contract by driving one ChatStream call per
// user turn and translating its StreamChunk/ToolCall output into the same
// closed Event set the Bedrock backend emits, so the Agent Runtime doesn't
// need to know which backend it's talking to. Audio is not supported by
// this backend; SendAudioChunk returns an error rather than silently
// dropping frames.
type TextBridge struct {
	baseState

	provider providers.Provider

	mu       sync.Mutex
	ctx      context.Context
	onEvent  OnEvent
	messages []providers.Message
	toolDefs []providers.ToolDefinition
	model    string
}

// NewTextBridge wraps an already-configured Provider (typically
// providers.NewAnthropicProvider).
func NewTextBridge(provider providers.Provider, model string) *TextBridge {
	return &TextBridge{provider: provider, model: model}
}

func (b *TextBridge) SetConfig(cfg Config) error {
	if err := b.setConfig(cfg); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = []providers.Message{{Role: "system", Content: cfg.SystemPrompt}}
	b.toolDefs = make([]providers.ToolDefinition, 0, len(cfg.Tools))
	for _, t := range cfg.Tools {
		b.toolDefs = append(b.toolDefs, providers.ToolDefinition{
			Type: "function",
			Function: providers.ToolFunctionSchema{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return nil
}

func (b *TextBridge) Start(ctx context.Context, sessionID string, onEvent OnEvent) error {
	if err := b.markStarted(); err != nil {
		return err
	}
	b.mu.Lock()
	b.ctx = ctx
	b.onEvent = onEvent
	b.mu.Unlock()
	onEvent(Event{Kind: EventSessionStart})
	return nil
}

func (b *TextBridge) SendAudioChunk(pcm []byte) error {
	return fmt.Errorf("voicebridge: text backend does not support audio input")
}

func (b *TextBridge) EndAudioInput() error { return nil }

func (b *TextBridge) SendText(text string) error {
	b.mu.Lock()
	b.messages = append(b.messages, providers.Message{Role: "user", Content: text})
	b.mu.Unlock()
	return b.runTurn()
}

func (b *TextBridge) SendToolResult(toolUseID string, result any, isError bool) error {
	content := fmt.Sprintf("%v", result)
	b.mu.Lock()
	b.messages = append(b.messages, providers.Message{Role: "tool", Content: content, ToolCallID: toolUseID})
	b.mu.Unlock()
	return b.runTurn()
}

func (b *TextBridge) Stop() error {
	b.markStopped()
	return nil
}

// runTurn drives one ChatStream call over the accumulated message history
// and translates the result into transcript/tool-use/usage events, emitted
// in order on the bridge's single logical channel.
func (b *TextBridge) runTurn() error {
	b.mu.Lock()
	ctx := b.ctx
	onEvent := b.onEvent
	req := providers.ChatRequest{
		Messages: append([]providers.Message(nil), b.messages...),
		Tools:    b.toolDefs,
		Model:    b.model,
	}
	b.mu.Unlock()

	if ctx == nil || onEvent == nil {
		return fmt.Errorf("voicebridge: runTurn called before Start")
	}

	var assembled string
	resp, err := b.provider.ChatStream(ctx, req, func(chunk providers.StreamChunk) {
		if chunk.Content == "" {
			return
		}
		assembled += chunk.Content
		onEvent(Event{Kind: EventTranscript, Role: "assistant", Text: chunk.Content, Final: false})
	})
	if err != nil {
		onEvent(Event{Kind: EventError, Err: err, Message: err.Error()})
		return err
	}

	onEvent(Event{Kind: EventTranscript, Role: "assistant", Text: assembled, Final: true})

	b.mu.Lock()
	b.messages = append(b.messages, providers.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})
	b.mu.Unlock()

	for _, tc := range resp.ToolCalls {
		onEvent(Event{Kind: EventToolUse, ToolName: tc.Name, ToolUseID: tc.ID, Input: tc.Arguments})
	}

	if resp.Usage != nil {
		onEvent(Event{
			Kind:         EventUsage,
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		})
	}

	onEvent(Event{Kind: EventInteractionTurnEnd})
	return nil
}
