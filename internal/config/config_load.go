package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadGateway reads the gateway configuration from path (JSON, optional —
// a missing file is not an error, defaults and env vars still apply) and
// layers GATEWAY_* / REDIS_URL environment overrides on top.
func LoadGateway(path string) (*GatewayConfig, error) {
	v := newViper(path)

	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("memory_dir", DefaultMemoryDir)
	v.SetDefault("memory_ttl", DefaultMemoryTTL)
	v.SetDefault("tool_timeout", DefaultToolTimeout)
	v.SetDefault("drain_timeout", DefaultDrainTimeout)
	v.SetDefault("keepalive_idle", DefaultKeepaliveIdle)
	v.SetDefault("keepalive_grace", DefaultKeepaliveGrace)
	v.SetDefault("default_workflow_id", DefaultWorkflowID)

	_ = v.BindEnv("listen_addr", "GATEWAY_LISTEN_ADDR")
	_ = v.BindEnv("redis_url", "REDIS_URL")
	_ = v.BindEnv("default_workflow_id", "DEFAULT_WORKFLOW_ID")

	if err := readIfExists(v, path); err != nil {
		return nil, err
	}

	var cfg GatewayConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode gateway config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadAgent reads one agent persona's configuration the same way, binding
// the AGENT_ID / AGENT_PORT / MODE / WORKFLOW_FILE / LOCAL_TOOLS_URL /
// REGION / voice-model credential env vars.
func LoadAgent(path string) (*AgentConfig, error) {
	v := newViper(path)

	v.SetDefault("mode", string(ModeVoice))
	v.SetDefault("agent_port", DefaultAgentPort)
	v.SetDefault("local_tools_url", DefaultLocalToolsURL)
	v.SetDefault("voice_model.backend", "bedrock")
	v.SetDefault("voice_model.max_tokens", 1024)

	_ = v.BindEnv("agent_id", "AGENT_ID")
	_ = v.BindEnv("agent_port", "AGENT_PORT")
	_ = v.BindEnv("mode", "MODE")
	_ = v.BindEnv("workflow_file", "WORKFLOW_FILE")
	_ = v.BindEnv("tool_file", "TOOL_FILE")
	_ = v.BindEnv("local_tools_url", "LOCAL_TOOLS_URL")
	_ = v.BindEnv("gateway_url", "GATEWAY_URL")
	_ = v.BindEnv("voice_model.region", "REGION")
	_ = v.BindEnv("voice_model.model_id", "VOICE_MODEL_ID")
	_ = v.BindEnv("voice_model.voice_id", "VOICE_ID")
	_ = v.BindEnv("voice_model.anthropic_api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("voice_model.api_key", "VOICE_MODEL_API_KEY")
	_ = v.BindEnv("voice_model.api_base", "VOICE_MODEL_API_BASE")
	_ = v.BindEnv("voice_model.agentcore_runtime_arn", "AGENTCORE_RUNTIME_ARN")

	if err := readIfExists(v, path); err != nil {
		return nil, err
	}

	var cfg AgentConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode agent config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadLocalTools reads the local tool HTTP service's configuration.
func LoadLocalTools(path string) (*LocalToolsConfig, error) {
	v := newViper(path)

	v.SetDefault("listen_addr", DefaultLocalToolsListenAddr)

	_ = v.BindEnv("listen_addr", "LOCAL_TOOLS_LISTEN_ADDR")
	_ = v.BindEnv("data_file", "LOCAL_TOOLS_DATA_FILE")

	if err := readIfExists(v, path); err != nil {
		return nil, err
	}

	var cfg LocalToolsConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode local tools config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if path != "" {
		v.SetConfigFile(path)
	}
	return v
}

// readIfExists loads the config file into v when path is non-empty and the
// file exists; a missing file is not an error — defaults plus env vars are
// enough to boot a dev checkout.
func readIfExists(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	return nil
}
