package voicebridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// bidiStream narrows the bedrockruntime bidirectional-stream event stream to
// the operations this package needs, so the Bedrock-specific wire details
// stay isolated here and tests can substitute a fake stream instead of a
// live Nova Sonic session.
type bidiStream interface {
	Send(ctx context.Context, event types.InvokeModelWithBidirectionalStreamInput) error
	Events() <-chan types.InvokeModelWithBidirectionalStreamOutput
	Close() error
	Err() error
}

// bedrockClient narrows *bedrockruntime.Client to the one call this backend
// makes, for testability.
type bedrockClient interface {
	InvokeModelWithBidirectionalStream(ctx context.Context, params *bedrockruntime.InvokeModelWithBidirectionalStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithBidirectionalStreamOutput, error)
}

// BedrockBridge is the Voice Bridge backend for a Bedrock Nova
// Sonic-style bidirectional streaming model: audio in, audio+transcript+
// tool-use events out, over one long-lived event stream per session.
type BedrockBridge struct {
	baseState

	client  bedrockClient
	modelID string

	mu     sync.Mutex
	stream bidiStream
}

// NewBedrockBridge wraps an already-configured bedrockruntime client.
func NewBedrockBridge(client bedrockClient, modelID string) *BedrockBridge {
	return &BedrockBridge{client: client, modelID: modelID}
}

func (b *BedrockBridge) SetConfig(cfg Config) error { return b.setConfig(cfg) }

func (b *BedrockBridge) Start(ctx context.Context, sessionID string, onEvent OnEvent) error {
	if err := b.markStarted(); err != nil {
		return err
	}
	cfg := b.config()

	out, err := b.client.InvokeModelWithBidirectionalStream(ctx, &bedrockruntime.InvokeModelWithBidirectionalStreamInput{
		ModelId: &b.modelID,
	})
	if err != nil {
		return fmt.Errorf("voicebridge: open bedrock stream: %w", err)
	}

	b.mu.Lock()
	b.stream = out.GetStream()
	b.mu.Unlock()

	if err := b.sendSessionStart(ctx, cfg); err != nil {
		return fmt.Errorf("voicebridge: send session start: %w", err)
	}

	go b.demux(ctx, sessionID, onEvent)
	return nil
}

// sessionStartPayload mirrors the Nova Sonic session-start event shape:
// inference configuration plus the tool catalog and system prompt, sent
// once as the first frame on the stream.
type sessionStartPayload struct {
	SystemPrompt string              `json:"systemPrompt"`
	VoiceID      string              `json:"voiceId,omitempty"`
	Tools        []toolDefPayload    `json:"tools,omitempty"`
	Inference    inferenceConfig     `json:"inferenceConfiguration"`
}

type toolDefPayload struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

type inferenceConfig struct {
	MaxTokens              int     `json:"maxTokens,omitempty"`
	TopP                   float64 `json:"topP,omitempty"`
	Temperature            float64 `json:"temperature,omitempty"`
	EndpointingSensitivity string  `json:"endpointingSensitivity,omitempty"`
}

func (b *BedrockBridge) sendSessionStart(ctx context.Context, cfg Config) error {
	payload := sessionStartPayload{
		SystemPrompt: cfg.SystemPrompt,
		VoiceID:      cfg.VoiceID,
		Inference: inferenceConfig{
			MaxTokens:              cfg.MaxTokens,
			TopP:                   cfg.TopP,
			Temperature:            cfg.Temperature,
			EndpointingSensitivity: cfg.EndpointingSensitivity,
		},
	}
	for _, t := range cfg.Tools {
		payload.Tools = append(payload.Tools, toolDefPayload{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.sendChunkEvent(ctx, raw)
}

func (b *BedrockBridge) sendChunkEvent(ctx context.Context, body []byte) error {
	b.mu.Lock()
	stream := b.stream
	b.mu.Unlock()
	if stream == nil {
		return fmt.Errorf("voicebridge: stream not started")
	}
	return stream.Send(ctx, &types.InvokeModelWithBidirectionalStreamInputMemberChunk{
		Value: types.BidirectionalInputPayloadPart{Bytes: body},
	})
}

func (b *BedrockBridge) SendAudioChunk(pcm []byte) error {
	pcm = padAudio(pcm)
	envelope, err := json.Marshal(map[string]string{
		"audio": base64.StdEncoding.EncodeToString(pcm),
	})
	if err != nil {
		return err
	}
	return b.sendChunkEvent(context.Background(), envelope)
}

func (b *BedrockBridge) SendText(text string) error {
	raw, err := json.Marshal(map[string]string{"text": text, "role": "user"})
	if err != nil {
		return err
	}
	return b.sendChunkEvent(context.Background(), raw)
}

func (b *BedrockBridge) SendToolResult(toolUseID string, result any, isError bool) error {
	raw, err := json.Marshal(map[string]any{
		"toolResult": map[string]any{
			"toolUseId": toolUseID,
			"content":   result,
			"isError":   isError,
		},
	})
	if err != nil {
		return err
	}
	return b.sendChunkEvent(context.Background(), raw)
}

func (b *BedrockBridge) EndAudioInput() error {
	raw, err := json.Marshal(map[string]bool{"endOfAudio": true})
	if err != nil {
		return err
	}
	return b.sendChunkEvent(context.Background(), raw)
}

func (b *BedrockBridge) Stop() error {
	if !b.markStopped() {
		return nil
	}
	b.mu.Lock()
	stream := b.stream
	b.mu.Unlock()
	if stream == nil {
		return nil
	}
	return stream.Close()
}

// demux reads the bedrock event stream until it ends or ctx is cancelled,
// translating each frame into the closed Event set. One frame is fully
// decoded and forwarded before the next channel receive, so PCM frames are
// never interleaved with another frame's bytes.
func (b *BedrockBridge) demux(ctx context.Context, sessionID string, onEvent OnEvent) {
	defer b.Stop()

	b.mu.Lock()
	stream := b.stream
	b.mu.Unlock()
	if stream == nil {
		return
	}

	events := stream.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case out, ok := <-events:
			if !ok {
				if err := stream.Err(); err != nil {
					onEvent(Event{Kind: EventError, Err: err, Fatal: true, Message: err.Error()})
				}
				return
			}
			chunk, ok := out.(*types.InvokeModelWithBidirectionalStreamOutputMemberChunk)
			if !ok {
				continue
			}
			b.handleFrame(sessionID, chunk.Value.Bytes, onEvent)
		}
	}
}

// frameEnvelope is the generic shape of a Nova Sonic output frame: exactly
// one of these fields is populated per frame.
type frameEnvelope struct {
	Audio        string          `json:"audio,omitempty"`
	Transcript   *transcriptMsg  `json:"transcript,omitempty"`
	ToolUse      *toolUseMsg     `json:"toolUse,omitempty"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
	Interruption map[string]any  `json:"interruption,omitempty"`
	Usage        *usageMsg       `json:"usageEvent,omitempty"`
	Lifecycle    string          `json:"lifecycle,omitempty"`
}

type transcriptMsg struct {
	Role  string `json:"role"`
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

type toolUseMsg struct {
	ToolName  string         `json:"toolName"`
	ToolUseID string         `json:"toolUseId"`
	Input     map[string]any `json:"input"`
}

type usageMsg struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

func (b *BedrockBridge) handleFrame(sessionID string, raw []byte, onEvent OnEvent) {
	var env frameEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.Warn("voicebridge: malformed bedrock frame, dropping", "sessionId", sessionID, "error", err)
		return
	}

	switch {
	case env.Audio != "":
		pcm, err := base64.StdEncoding.DecodeString(env.Audio)
		if err != nil {
			return
		}
		onEvent(Event{Kind: EventAudio, Audio: padAudio(pcm)})
	case env.Transcript != nil:
		onEvent(Event{Kind: EventTranscript, Role: env.Transcript.Role, Text: env.Transcript.Text, Final: env.Transcript.Final})
	case env.ToolUse != nil:
		onEvent(Event{Kind: EventToolUse, ToolName: env.ToolUse.ToolName, ToolUseID: env.ToolUse.ToolUseID, Input: env.ToolUse.Input})
	case env.Metadata != nil:
		onEvent(Event{Kind: EventMetadata, Metadata: env.Metadata})
	case env.Interruption != nil:
		onEvent(Event{Kind: EventInterruption, Metadata: env.Interruption})
	case env.Usage != nil:
		onEvent(Event{Kind: EventUsage, InputTokens: env.Usage.InputTokens, OutputTokens: env.Usage.OutputTokens, TotalTokens: env.Usage.TotalTokens})
	case env.Lifecycle != "":
		onEvent(Event{Kind: EventKind(env.Lifecycle)})
	}
}
