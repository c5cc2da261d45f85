package voicebridge

import (
	"context"
	"errors"
	"testing"

	"github.com/voicegw/voicegw/internal/providers"
)

// scriptedProvider returns canned responses in order, streaming the content
// through onChunk in two halves the way a real backend would.
type scriptedProvider struct {
	responses []*providers.ChatResponse
	calls     int
	lastReq   providers.ChatRequest
}

func (p *scriptedProvider) Chat(_ context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	return p.next(req)
}

func (p *scriptedProvider) ChatStream(_ context.Context, req providers.ChatRequest, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	resp, err := p.next(req)
	if err != nil {
		return nil, err
	}
	half := len(resp.Content) / 2
	if half > 0 {
		onChunk(providers.StreamChunk{Content: resp.Content[:half]})
		onChunk(providers.StreamChunk{Content: resp.Content[half:]})
	}
	return resp, nil
}

func (p *scriptedProvider) next(req providers.ChatRequest) (*providers.ChatResponse, error) {
	p.lastReq = req
	if p.calls >= len(p.responses) {
		return nil, errors.New("no more scripted responses")
	}
	resp := p.responses[p.calls]
	p.calls++
	return resp, nil
}

func (p *scriptedProvider) DefaultModel() string { return "test-model" }
func (p *scriptedProvider) Name() string         { return "scripted" }

func collectEvents(events *[]Event) OnEvent {
	return func(ev Event) { *events = append(*events, ev) }
}

func TestTextBridgeRequiresConfigBeforeStart(t *testing.T) {
	b := NewTextBridge(&scriptedProvider{}, "test-model")
	err := b.Start(context.Background(), "sess-1", func(Event) {})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestTextBridgeRejectsConfigAfterStart(t *testing.T) {
	b := NewTextBridge(&scriptedProvider{}, "test-model")
	if err := b.SetConfig(Config{SystemPrompt: "p"}); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(context.Background(), "sess-1", func(Event) {}); err != nil {
		t.Fatal(err)
	}
	if err := b.SetConfig(Config{SystemPrompt: "q"}); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("err = %v, want ErrAlreadyStarted", err)
	}
}

func TestTextBridgeTurnEmitsOrderedEvents(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{{
		Content: "Hello there",
		Usage:   &providers.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}}}
	b := NewTextBridge(provider, "test-model")

	var events []Event
	if err := b.SetConfig(Config{SystemPrompt: "persona"}); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(context.Background(), "sess-1", collectEvents(&events)); err != nil {
		t.Fatal(err)
	}
	if err := b.SendText("hi"); err != nil {
		t.Fatal(err)
	}

	var kinds []EventKind
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	// session_start, two partials, final transcript, usage, turn end.
	want := []EventKind{EventSessionStart, EventTranscript, EventTranscript, EventTranscript, EventUsage, EventInteractionTurnEnd}
	if len(kinds) != len(want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds[%d] = %v, want %v (all: %v)", i, kinds[i], want[i], kinds)
		}
	}

	final := events[3]
	if !final.Final || final.Text != "Hello there" || final.Role != "assistant" {
		t.Errorf("final transcript = %+v", final)
	}
	if events[4].TotalTokens != 15 {
		t.Errorf("usage totalTokens = %d", events[4].TotalTokens)
	}
}

func TestTextBridgeEmitsToolUse(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{{
		Content: "",
		ToolCalls: []providers.ToolCall{{
			ID: "tu-1", Name: "agentcore_balance", Arguments: map[string]any{},
		}},
	}}}
	b := NewTextBridge(provider, "test-model")

	var events []Event
	if err := b.SetConfig(Config{SystemPrompt: "persona"}); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(context.Background(), "sess-1", collectEvents(&events)); err != nil {
		t.Fatal(err)
	}
	if err := b.SendText("balance please"); err != nil {
		t.Fatal(err)
	}

	var sawToolUse bool
	for _, ev := range events {
		if ev.Kind == EventToolUse {
			sawToolUse = true
			if ev.ToolName != "agentcore_balance" || ev.ToolUseID != "tu-1" {
				t.Errorf("tool use = %+v", ev)
			}
		}
	}
	if !sawToolUse {
		t.Errorf("no toolUse event emitted, events: %+v", events)
	}
}

func TestTextBridgeSystemPromptHeadsHistory(t *testing.T) {
	provider := &scriptedProvider{responses: []*providers.ChatResponse{{Content: "ok"}}}
	b := NewTextBridge(provider, "test-model")

	if err := b.SetConfig(Config{SystemPrompt: "the persona"}); err != nil {
		t.Fatal(err)
	}
	if err := b.Start(context.Background(), "sess-1", func(Event) {}); err != nil {
		t.Fatal(err)
	}
	if err := b.SendText("hi"); err != nil {
		t.Fatal(err)
	}

	msgs := provider.lastReq.Messages
	if len(msgs) < 2 || msgs[0].Role != "system" || msgs[0].Content != "the persona" {
		t.Errorf("system prompt must head the message history: %+v", msgs)
	}
}

func TestTextBridgeRejectsAudio(t *testing.T) {
	b := NewTextBridge(&scriptedProvider{}, "test-model")
	if err := b.SendAudioChunk([]byte{0, 1}); err == nil {
		t.Error("text backend must reject audio input")
	}
}
