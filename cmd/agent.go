package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/spf13/cobra"

	"github.com/voicegw/voicegw/internal/agent"
	"github.com/voicegw/voicegw/internal/bus"
	"github.com/voicegw/voicegw/internal/config"
	"github.com/voicegw/voicegw/internal/tools"
	"github.com/voicegw/voicegw/internal/voicebridge"
	"github.com/voicegw/voicegw/internal/workflow"
	"github.com/voicegw/voicegw/pkg/telemetry"
)

func agentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Run one Agent Runtime persona process",
		Run: func(cmd *cobra.Command, args []string) {
			runAgent()
		},
	}
}

func runAgent() {
	setupLogging()

	cfg, err := config.LoadAgent(resolveConfigPath())
	if err != nil {
		slog.Error("agent: failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tel, err := telemetry.Init(ctx, telemetry.Config{ServiceName: "voicegw-agent-" + cfg.AgentID, OTLPEndpoint: otlpEndpoint})
	if err != nil {
		slog.Error("agent: telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer tel.Shutdown(context.Background())

	def, err := workflow.Load(cfg.WorkflowFile)
	if err != nil {
		slog.Error("agent: failed to load workflow", "error", err)
		os.Exit(1)
	}
	engine := workflow.New(def)

	watcher, err := workflow.NewWatcher(cfg.WorkflowFile, func(reloaded *workflow.Definition) {
		slog.Info("agent: workflow definition reloaded", "workflowId", reloaded.ID)
	})
	if err != nil {
		slog.Warn("agent: workflow hot-reload watcher unavailable", "error", err)
	} else {
		defer watcher.Close()
	}

	catalog, err := tools.LoadCatalog(cfg.ToolFile)
	if err != nil {
		slog.Error("agent: failed to load tool catalog", "error", err)
		os.Exit(1)
	}

	executor, err := buildExecutor(ctx, cfg, catalog)
	if err != nil {
		slog.Error("agent: failed to build tool executor", "error", err)
		os.Exit(1)
	}

	personaPrompt, err := loadPersonaPrompt(cfg.PersonaFile)
	if err != nil {
		slog.Error("agent: failed to load persona prompt", "error", err)
		os.Exit(1)
	}

	phantomRules, err := agent.LoadPhantomRules(cfg.PhantomActionsFile)
	if err != nil {
		slog.Error("agent: failed to load phantom action rules", "error", err)
		os.Exit(1)
	}

	eventBus := bus.NewMemoryBus()
	eventBus.Subscribe("telemetry", func(ev bus.Event) {
		if ev.Name == bus.EventToolInvoked {
			tel.ToolInvocations.Add(ctx, 1)
		}
	})

	handoffTools := deriveHandoffToolNames(catalog)

	if err := validateMode(cfg.Mode, cfg.VoiceModel.Backend); err != nil {
		slog.Error("agent: invalid mode/backend combination", "error", err)
		os.Exit(1)
	}

	backendCfg := voicebridge.BackendConfig{
		Backend:      cfg.VoiceModel.Backend,
		Region:       cfg.VoiceModel.Region,
		ModelID:      cfg.VoiceModel.ModelID,
		AnthropicKey: cfg.VoiceModel.AnthropicKey,
		APIKey:       cfg.VoiceModel.APIKey,
		APIBase:      cfg.VoiceModel.APIBase,
	}

	runtimeCfg := agent.Config{
		AgentID:          cfg.AgentID,
		PersonaPrompt:    personaPrompt,
		HandoffToolNames: handoffTools,
		Engine:           engine,
		Executor:         executor,
		Phantom:          phantomRules,
		Bus:              eventBus,
		NewBridge: func(bridgeCtx context.Context) (voicebridge.Bridge, error) {
			return voicebridge.New(bridgeCtx, backendCfg)
		},
		BridgeTemplate: voicebridge.Config{
			Tools:                  bridgeTools(catalog),
			VoiceID:                cfg.VoiceModel.VoiceID,
			AgentCoreRuntimeARN:    cfg.VoiceModel.RuntimeARN,
			MaxTokens:              cfg.VoiceModel.MaxTokens,
			TopP:                   cfg.VoiceModel.TopP,
			Temperature:            cfg.VoiceModel.Temperature,
			EndpointingSensitivity: cfg.VoiceModel.EndpointingSensitivity,
		},
	}

	srv := agent.NewServer(runtimeCfg)

	httpSrv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: srv.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("agent: listening", "agentId", cfg.AgentID, "addr", httpSrv.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("agent: server error", "error", err)
		os.Exit(2)
	}
}

// buildExecutor wires the tool execution pipeline: remote-runtime
// allow-list tools go through AgentCore when a runtime ARN is configured,
// falling back to the local tool HTTP service for everything else.
func buildExecutor(ctx context.Context, cfg *config.AgentConfig, catalog map[string]*tools.Spec) (*tools.Executor, error) {
	remoteDispatch := tools.NewHTTPDispatcher(cfg.LocalToolsURL, 10*time.Second)

	var runtimeDispatch tools.Dispatcher
	if cfg.VoiceModel.RuntimeARN != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.VoiceModel.Region))
		if err != nil {
			return nil, fmt.Errorf("agent: load AWS config for AgentCore dispatch: %w", err)
		}
		client := bedrockruntime.NewFromConfig(awsCfg)
		runtimeDispatch = tools.NewAgentCoreDispatcher(client, cfg.VoiceModel.RuntimeARN)
	}

	return tools.NewExecutor(catalog, runtimeDispatch, remoteDispatch), nil
}

// validateMode rejects mode/backend pairings that cannot carry the session:
// voice needs the bidirectional audio backend, text/hybrid need a text one.
func validateMode(mode config.Mode, backend string) error {
	isVoiceBackend := backend == "" || backend == "bedrock"
	switch mode {
	case config.ModeVoice:
		if !isVoiceBackend {
			return fmt.Errorf("MODE=voice requires the bedrock backend, got %q", backend)
		}
	case config.ModeText:
		if isVoiceBackend {
			return fmt.Errorf("MODE=text requires a text backend (anthropic, openai, dashscope), got %q", backend)
		}
	case config.ModeHybrid:
		// Either backend works: hybrid sessions carry audio when the backend
		// supports it and fall back to text turns when it doesn't.
	default:
		return fmt.Errorf("unknown MODE %q", mode)
	}
	return nil
}

// bridgeTools projects the loaded catalog into the Voice Bridge's tool
// surface.
func bridgeTools(catalog map[string]*tools.Spec) []voicebridge.ToolDefinition {
	defs := make([]voicebridge.ToolDefinition, 0, len(catalog))
	for _, spec := range catalog {
		defs = append(defs, voicebridge.ToolDefinition{
			Name:        spec.Name,
			Description: spec.Description,
			InputSchema: spec.InputSchema,
		})
	}
	return defs
}

func loadPersonaPrompt(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("agent: read persona file: %w", err)
	}
	return string(data), nil
}

// deriveHandoffToolNames collects the catalog entries classified as
// handoffs, then ensures return_to_triage is present even when omitted from
// a persona's own tool file, since every specialist can hand back to triage.
func deriveHandoffToolNames(catalog map[string]*tools.Spec) []string {
	seen := make(map[string]bool)
	var names []string
	for name := range catalog {
		if tools.Classify(name) == tools.KindHandoff {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	if !seen["return_to_triage"] {
		names = append(names, "return_to_triage")
	}
	return names
}
