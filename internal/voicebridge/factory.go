package voicebridge

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/voicegw/voicegw/internal/providers"
)

// BackendConfig selects and constructs one Voice Bridge backend. Only
// "bedrock" carries audio; the rest are MODE=text/hybrid fallbacks wired
// onto the same TextBridge used for "anthropic".
type BackendConfig struct {
	Backend      string // "bedrock" | "anthropic" | "openai" | "dashscope"
	Region       string
	ModelID      string
	AnthropicKey string
	APIKey       string // openai/dashscope
	APIBase      string // openai/dashscope, empty uses the provider's default
}

// New constructs the Bridge for cfg.Backend.
func New(ctx context.Context, cfg BackendConfig) (Bridge, error) {
	switch cfg.Backend {
	case "", "bedrock":
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("voicebridge: load AWS config: %w", err)
		}
		client := bedrockruntime.NewFromConfig(awsCfg)
		modelID := cfg.ModelID
		if modelID == "" {
			modelID = "amazon.nova-sonic-v1:0"
		}
		return NewBedrockBridge(client, modelID), nil
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("voicebridge: anthropic backend requires an API key")
		}
		provider := providers.NewAnthropicProvider(cfg.AnthropicKey)
		model := cfg.ModelID
		if model == "" {
			model = provider.DefaultModel()
		}
		return NewTextBridge(provider, model), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("voicebridge: openai backend requires an API key")
		}
		provider := providers.NewOpenAIProvider("openai", cfg.APIKey, cfg.APIBase, cfg.ModelID)
		return NewTextBridge(provider, provider.DefaultModel()), nil
	case "dashscope":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("voicebridge: dashscope backend requires an API key")
		}
		provider := providers.NewDashScopeProvider(cfg.APIKey, cfg.APIBase, cfg.ModelID)
		return NewTextBridge(provider, provider.DefaultModel()), nil
	default:
		return nil, fmt.Errorf("voicebridge: unknown backend %q", cfg.Backend)
	}
}
