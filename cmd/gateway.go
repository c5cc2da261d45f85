package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/voicegw/voicegw/internal/bus"
	"github.com/voicegw/voicegw/internal/config"
	"github.com/voicegw/voicegw/internal/gateway"
	"github.com/voicegw/voicegw/internal/memory"
	"github.com/voicegw/voicegw/internal/registry"
	"github.com/voicegw/voicegw/pkg/telemetry"
)

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run the Gateway Router: the client-facing WebSocket fabric",
		Run: func(cmd *cobra.Command, args []string) {
			runGateway()
		},
	}
}

func runGateway() {
	setupLogging()

	cfg, err := config.LoadGateway(resolveConfigPath())
	if err != nil {
		slog.Error("gateway: failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tel, err := telemetry.Init(ctx, telemetry.Config{ServiceName: "voicegw-gateway", OTLPEndpoint: otlpEndpoint})
	if err != nil {
		slog.Error("gateway: telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer tel.Shutdown(context.Background())

	memStore, err := buildMemoryStore(cfg.RedisURL, cfg.MemoryDir)
	if err != nil {
		slog.Error("gateway: failed to build memory store", "error", err)
		os.Exit(1)
	}
	defer memStore.Close()

	reg := registry.New()
	for _, a := range cfg.Agents {
		if err := reg.Register(registry.AgentInfo{ID: a.ID, Endpoint: a.Endpoint, HandoffAliases: a.HandoffAliases}); err != nil {
			slog.Error("gateway: failed to register agent", "agentId", a.ID, "error", err)
			os.Exit(1)
		}
	}
	go reg.RunLivenessLoop(ctx)
	go reg.RunProbeLoop(ctx, healthProbe())
	defer reg.Close()

	eventBus := bus.NewMemoryBus()
	eventBus.Subscribe("telemetry", func(ev bus.Event) {
		switch ev.Name {
		case bus.EventHandoffCompleted:
			tel.Handoffs.Add(ctx, 1)
		case bus.EventToolInvoked:
			tel.ToolInvocations.Add(ctx, 1)
		}
	})

	srv := gateway.NewServer(cfg, reg, memStore, eventBus)
	if err := srv.Start(ctx); err != nil {
		slog.Error("gateway: server error", "error", err)
		os.Exit(2)
	}
}

// healthProbe builds the registry's liveness probe: each agent's WS endpoint
// maps to its /healthz sibling, reachable means alive.
func healthProbe() registry.Probe {
	client := &http.Client{Timeout: 3 * time.Second}
	return func(ctx context.Context, info registry.AgentInfo) bool {
		u, err := url.Parse(info.Endpoint)
		if err != nil {
			return false
		}
		switch u.Scheme {
		case "ws":
			u.Scheme = "http"
		case "wss":
			u.Scheme = "https"
		}
		u.Path = "/healthz"

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}
}

const memoryKeyPrefix = "voicegw:memory:"

func buildMemoryStore(redisURL, dir string) (memory.Store, error) {
	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("gateway: parse redis url: %w", err)
		}
		return memory.NewRedisStore(redis.NewClient(opts), memoryKeyPrefix), nil
	}
	return memory.NewFileStore(dir)
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}
