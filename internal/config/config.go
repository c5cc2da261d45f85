// Package config loads the gateway's and an agent's runtime configuration
// from a JSON file, with environment-variable overrides layered on top via
// viper.
package config

import "time"

// GatewayConfig configures the Gateway Router binary.
type GatewayConfig struct {
	// ListenAddr is the address the gateway's client-facing WebSocket server
	// binds to, e.g. ":8080".
	ListenAddr string `mapstructure:"listen_addr" json:"listenAddr"`

	// RedisURL, when set, selects memory.RedisStore as the Session Memory
	// Store backend. Empty falls back to memory.FileStore under MemoryDir
	// so a dev checkout runs without Redis.
	RedisURL string `mapstructure:"redis_url" json:"redisUrl,omitempty"`
	MemoryDir string `mapstructure:"memory_dir" json:"memoryDir,omitempty"`
	MemoryTTL time.Duration `mapstructure:"memory_ttl" json:"memoryTtl,omitempty"`

	// DefaultWorkflowID is the agent a client lands on when it connects
	// without a select_workflow frame.
	DefaultWorkflowID string `mapstructure:"default_workflow_id" json:"defaultWorkflowId"`

	// ToolTimeout is loaded and defaulted, but no gateway component reads
	// it; tool dispatch runs in the agent process.
	ToolTimeout time.Duration `mapstructure:"tool_timeout" json:"toolTimeout"`
	// DrainTimeout caps the outbound-queue drain phase of a handoff or
	// end-session.
	DrainTimeout time.Duration `mapstructure:"drain_timeout" json:"drainTimeout"`
	// KeepaliveIdle is the interval at which the gateway sends a keepalive
	// ping to the client, whether or not the client has sent traffic.
	KeepaliveIdle time.Duration `mapstructure:"keepalive_idle" json:"keepaliveIdle"`
	// KeepaliveGrace is how long the gateway waits for a pong after a
	// keepalive ping before ending the session.
	KeepaliveGrace time.Duration `mapstructure:"keepalive_grace" json:"keepaliveGrace"`

	// Agents is the static seed list of agent endpoints the gateway dials
	// out to on handoff/initial routing, registered into the Agent Registry
	// at startup. A production deployment would instead have agents
	// self-register over a control channel; the static list keeps a
	// standalone deployment to one config file.
	Agents []AgentEndpoint `mapstructure:"agents" json:"agents"`
}

// AgentEndpoint is one statically configured agent the gateway can route to.
type AgentEndpoint struct {
	ID             string   `mapstructure:"id" json:"id"`
	Endpoint       string   `mapstructure:"endpoint" json:"endpoint"`
	HandoffAliases []string `mapstructure:"handoff_aliases" json:"handoffAliases,omitempty"`
}

// Mode is the closed set of operating modes an agent process can run in.
type Mode string

const (
	ModeVoice  Mode = "voice"
	ModeText   Mode = "text"
	ModeHybrid Mode = "hybrid"
)

// VoiceModelConfig configures the Voice Bridge's backend selection.
type VoiceModelConfig struct {
	// Backend selects which Voice Bridge implementation to construct:
	// "bedrock" (Nova Sonic-style bidirectional stream), "anthropic",
	// "openai", or "dashscope" (the latter three are text/hybrid mode,
	// streamed request/response turns — no audio).
	Backend string `mapstructure:"backend" json:"backend"`

	Region         string `mapstructure:"region" json:"region,omitempty"`
	ModelID        string `mapstructure:"model_id" json:"modelId,omitempty"`
	VoiceID        string `mapstructure:"voice_id" json:"voiceId,omitempty"`
	AnthropicKey   string `mapstructure:"anthropic_api_key" json:"-"`
	APIKey         string `mapstructure:"api_key" json:"-"`
	APIBase        string `mapstructure:"api_base" json:"apiBase,omitempty"`
	RuntimeARN     string `mapstructure:"agentcore_runtime_arn" json:"agentcoreRuntimeArn,omitempty"`

	MaxTokens            int     `mapstructure:"max_tokens" json:"maxTokens,omitempty"`
	TopP                 float64 `mapstructure:"top_p" json:"topP,omitempty"`
	Temperature          float64 `mapstructure:"temperature" json:"temperature,omitempty"`
	EndpointingSensitivity string `mapstructure:"endpointing_sensitivity" json:"endpointingSensitivity,omitempty"`
}

// AgentConfig configures the Agent Runtime binary — one persona process.
type AgentConfig struct {
	AgentID  string `mapstructure:"agent_id" json:"agentId"`
	Port     int    `mapstructure:"agent_port" json:"agentPort"`
	Mode     Mode   `mapstructure:"mode" json:"mode"`

	WorkflowFile   string `mapstructure:"workflow_file" json:"workflowFile"`
	ToolFile       string `mapstructure:"tool_file" json:"toolFile"`
	PersonaFile    string `mapstructure:"persona_file" json:"personaFile,omitempty"`
	HandoffAliases []string `mapstructure:"handoff_aliases" json:"handoffAliases,omitempty"`

	LocalToolsURL string `mapstructure:"local_tools_url" json:"localToolsUrl"`
	GatewayURL    string `mapstructure:"gateway_url" json:"gatewayUrl,omitempty"`

	VoiceModel VoiceModelConfig `mapstructure:"voice_model" json:"voiceModel"`

	// PhantomActionsFile optionally overrides the default phantom-commitment
	// pattern table, e.g. "phantom_actions.json".
	PhantomActionsFile string `mapstructure:"phantom_actions_file" json:"phantomActionsFile,omitempty"`
}

// Defaults applied when a field is left zero after loading.
const (
	DefaultListenAddr        = ":8080"
	DefaultMemoryDir         = "./data/memory"
	DefaultMemoryTTL         = 1 * time.Hour
	DefaultToolTimeout       = 10 * time.Second
	DefaultDrainTimeout      = 2 * time.Second
	DefaultKeepaliveIdle     = 90 * time.Second
	DefaultKeepaliveGrace    = 30 * time.Second
	DefaultWorkflowID        = "triage"
	DefaultAgentPort         = 7100
	DefaultLocalToolsURL     = "http://localhost:8090"
)

func (c *GatewayConfig) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.MemoryDir == "" {
		c.MemoryDir = DefaultMemoryDir
	}
	if c.MemoryTTL <= 0 {
		c.MemoryTTL = DefaultMemoryTTL
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = DefaultToolTimeout
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = DefaultDrainTimeout
	}
	if c.KeepaliveIdle <= 0 {
		c.KeepaliveIdle = DefaultKeepaliveIdle
	}
	if c.KeepaliveGrace <= 0 {
		c.KeepaliveGrace = DefaultKeepaliveGrace
	}
	if c.DefaultWorkflowID == "" {
		c.DefaultWorkflowID = DefaultWorkflowID
	}
}

func (c *AgentConfig) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeVoice
	}
	if c.Port == 0 {
		c.Port = DefaultAgentPort
	}
	if c.LocalToolsURL == "" {
		c.LocalToolsURL = DefaultLocalToolsURL
	}
	if c.VoiceModel.Backend == "" {
		c.VoiceModel.Backend = "bedrock"
	}
	if c.VoiceModel.MaxTokens == 0 {
		c.VoiceModel.MaxTokens = 1024
	}
}

// LocalToolsConfig configures the local tool HTTP service (identity
// verification, balances, transactions, disputes, knowledge base) that an
// agent's remote tool dispatch calls over LocalToolsURL.
type LocalToolsConfig struct {
	ListenAddr string `mapstructure:"listen_addr" json:"listenAddr"`

	// DataFile optionally replaces the built-in demo dataset (accounts,
	// merchant aliases, knowledge-base articles).
	DataFile string `mapstructure:"data_file" json:"dataFile,omitempty"`
}

const DefaultLocalToolsListenAddr = ":8090"

func (c *LocalToolsConfig) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultLocalToolsListenAddr
	}
}
