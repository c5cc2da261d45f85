package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultClaudeModel = "claude-sonnet-4-5-20250929"

// AnthropicProvider drives the Anthropic Messages API through the official
// SDK.
type AnthropicProvider struct {
	client       sdk.Client
	defaultModel string
}

// NewAnthropicProvider builds a provider against the public Anthropic API.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{
		client:       sdk.NewClient(option.WithAPIKey(apiKey)),
		defaultModel: defaultClaudeModel,
	}
}

func (p *AnthropicProvider) Name() string         { return "anthropic" }
func (p *AnthropicProvider) DefaultModel() string { return p.defaultModel }

func (p *AnthropicProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic: messages.new: %w", err)
	}
	return translateMessage(msg), nil
}

func (p *AnthropicProvider) ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	acc := sdk.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := acc.Accumulate(event); err != nil {
			return nil, fmt.Errorf("anthropic: accumulate stream event: %w", err)
		}
		if onChunk == nil {
			continue
		}
		if deltaEvent, ok := event.AsAny().(sdk.ContentBlockDeltaEvent); ok {
			if textDelta, ok := deltaEvent.Delta.AsAny().(sdk.TextDelta); ok && textDelta.Text != "" {
				onChunk(StreamChunk{Content: textDelta.Text})
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic: stream: %w", err)
	}
	if onChunk != nil {
		onChunk(StreamChunk{Done: true})
	}
	return translateMessage(&acc), nil
}

// buildParams translates a ChatRequest into Messages API params: system
// messages fold into the top-level system blocks, tool results become
// user-role tool_result blocks.
func (p *AnthropicProvider) buildParams(req ChatRequest) (sdk.MessageNewParams, error) {
	var system []sdk.TextBlockParam
	var messages []sdk.MessageParam

	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			system = append(system, sdk.TextBlockParam{Text: msg.Content})

		case "user":
			messages = append(messages, sdk.NewUserMessage(sdk.NewTextBlock(msg.Content)))

		case "assistant":
			var blocks []sdk.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, sdk.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				input := any(tc.Arguments)
				if tc.Arguments == nil {
					input = map[string]any{}
				}
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) > 0 {
				messages = append(messages, sdk.NewAssistantMessage(blocks...))
			}

		case "tool":
			messages = append(messages, sdk.NewUserMessage(
				sdk.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))

		default:
			return sdk.MessageNewParams{}, fmt.Errorf("anthropic: unsupported message role %q", msg.Role)
		}
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = system
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = encodeTools(req.Tools)
	}
	return params, nil
}

func encodeTools(tools []ToolDefinition) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		// Round-trip the loose schema map through JSON to get a typed
		// ToolInputSchemaParam without reimplementing its field mapping.
		var schema sdk.ToolInputSchemaParam
		if raw, err := json.Marshal(t.Function.Parameters); err == nil {
			_ = json.Unmarshal(raw, &schema)
		}
		out = append(out, sdk.ToolUnionParam{
			OfTool: &sdk.ToolParam{
				Name:        t.Function.Name,
				Description: sdk.String(t.Function.Description),
				InputSchema: schema,
			},
		})
	}
	return out
}

func translateMessage(msg *sdk.Message) *ChatResponse {
	result := &ChatResponse{}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			result.Content += block.Text
		case "tool_use":
			args := map[string]any{}
			if block.Input != nil {
				_ = json.Unmarshal(block.Input, &args)
			}
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				ID: block.ID, Name: strings.TrimSpace(block.Name), Arguments: args,
			})
		}
	}

	switch msg.StopReason {
	case sdk.StopReasonToolUse:
		result.FinishReason = "tool_calls"
	case sdk.StopReasonMaxTokens:
		result.FinishReason = "length"
	default:
		result.FinishReason = "stop"
	}
	if len(result.ToolCalls) > 0 {
		result.FinishReason = "tool_calls"
	}

	result.Usage = &Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
		TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}
	return result
}
