package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// RuntimeInvoker is the subset of bedrockruntime.Client used to invoke a
// remote-runtime tool through an AgentCore-style runtime ARN. Narrowed to an
// interface so tests can substitute a fake.
type RuntimeInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// AgentCoreDispatcher routes remote-runtime tool calls (perform_idv_check,
// agentcore_balance, and the rest of the banking allow-list) through a
// configured AgentCore runtime ARN instead of the generic local tool HTTP
// service, when one is configured.
type AgentCoreDispatcher struct {
	client     RuntimeInvoker
	runtimeARN string
}

func NewAgentCoreDispatcher(client RuntimeInvoker, runtimeARN string) *AgentCoreDispatcher {
	return &AgentCoreDispatcher{client: client, runtimeARN: runtimeARN}
}

type agentCoreEnvelope struct {
	Tool  string         `json:"tool"`
	Input map[string]any `json:"input"`
}

type agentCoreResult struct {
	Result any    `json:"result"`
	Error  string `json:"error,omitempty"`
}

func (d *AgentCoreDispatcher) Dispatch(ctx context.Context, toolName string, input map[string]any) (any, error) {
	payload, err := json.Marshal(agentCoreEnvelope{Tool: toolName, Input: input})
	if err != nil {
		return nil, fmt.Errorf("tools: encode agentcore invocation: %w", err)
	}

	out, err := d.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     &d.runtimeARN,
		Body:        payload,
		ContentType: strPtr("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("tools: agentcore runtime invocation failed: %w", err)
	}

	var result agentCoreResult
	if err := json.Unmarshal(out.Body, &result); err != nil {
		return nil, fmt.Errorf("tools: decode agentcore response: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("%s", result.Error)
	}
	return result.Result, nil
}

func strPtr(s string) *string { return &s }
