package registry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	if err := r.Register(AgentInfo{ID: "billing-agent", Endpoint: "ws://localhost:9001"}); err != nil {
		t.Fatal(err)
	}
	info, ok := r.Lookup("billing-agent")
	if !ok {
		t.Fatal("expected agent to be found")
	}
	if info.Endpoint != "ws://localhost:9001" {
		t.Errorf("Endpoint = %q, want ws://localhost:9001", info.Endpoint)
	}
}

func TestRegisterRejectsIDCollision(t *testing.T) {
	r := New()
	if err := r.Register(AgentInfo{ID: "billing-agent", Endpoint: "ws://localhost:9001"}); err != nil {
		t.Fatal(err)
	}
	err := r.Register(AgentInfo{ID: "billing-agent", Endpoint: "ws://localhost:9002"})
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestRegisterRejectsAliasCollision(t *testing.T) {
	r := New()
	if err := r.Register(AgentInfo{ID: "agent-a", Endpoint: "ws://a", HandoffAliases: []string{"billing"}}); err != nil {
		t.Fatal(err)
	}
	err := r.Register(AgentInfo{ID: "agent-b", Endpoint: "ws://b", HandoffAliases: []string{"billing"}})
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}
}

func TestResolveAliasFallsBackFromID(t *testing.T) {
	r := New()
	if err := r.Register(AgentInfo{ID: "agent-a", Endpoint: "ws://a", HandoffAliases: []string{"billing", "refunds"}}); err != nil {
		t.Fatal(err)
	}

	byID, ok := r.ResolveAlias("agent-a")
	if !ok || byID.ID != "agent-a" {
		t.Fatalf("expected direct ID resolution, got %+v ok=%v", byID, ok)
	}

	byAlias, ok := r.ResolveAlias("refunds")
	if !ok || byAlias.ID != "agent-a" {
		t.Fatalf("expected alias resolution to agent-a, got %+v ok=%v", byAlias, ok)
	}

	if _, ok := r.ResolveAlias("unknown-target"); ok {
		t.Fatal("expected unknown target to not resolve")
	}
}

func TestDeregisterReleasesAlias(t *testing.T) {
	r := New()
	if err := r.Register(AgentInfo{ID: "agent-a", Endpoint: "ws://a", HandoffAliases: []string{"billing"}}); err != nil {
		t.Fatal(err)
	}
	if err := r.Deregister("agent-a"); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.ResolveAlias("billing"); ok {
		t.Fatal("expected alias to be released after deregister")
	}

	// The alias should now be claimable by a different agent.
	if err := r.Register(AgentInfo{ID: "agent-b", Endpoint: "ws://b", HandoffAliases: []string{"billing"}}); err != nil {
		t.Fatal(err)
	}
}

func TestLivenessStateMachine(t *testing.T) {
	r := New(
		WithPingInterval(5*time.Millisecond),
		WithDegradeAfter(10*time.Millisecond),
		WithUnreachableAfter(25*time.Millisecond),
	)
	if err := r.Register(AgentInfo{ID: "agent-a", Endpoint: "ws://a"}); err != nil {
		t.Fatal(err)
	}

	if status, _ := r.Status("agent-a"); status != StatusHealthy {
		t.Fatalf("expected initial status healthy, got %s", status)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.RunLivenessLoop(ctx)

	time.Sleep(15 * time.Millisecond)
	if status, _ := r.Status("agent-a"); status != StatusDegraded {
		t.Fatalf("expected status degraded, got %s", status)
	}
	if !r.IsAvailable("agent-a") {
		t.Fatal("expected degraded agent to remain available")
	}

	time.Sleep(20 * time.Millisecond)
	if status, _ := r.Status("agent-a"); status != StatusUnreachable {
		t.Fatalf("expected status unreachable, got %s", status)
	}
	if r.IsAvailable("agent-a") {
		t.Fatal("expected unreachable agent to be unavailable")
	}

	if err := r.RecordPong("agent-a"); err != nil {
		t.Fatal(err)
	}
	if status, _ := r.Status("agent-a"); status != StatusHealthy {
		t.Fatalf("expected pong to restore healthy status, got %s", status)
	}
}

func TestProbeLoopKeepsRespondingAgentHealthy(t *testing.T) {
	r := New(
		WithPingInterval(5*time.Millisecond),
		WithDegradeAfter(15*time.Millisecond),
		WithUnreachableAfter(30*time.Millisecond),
	)
	if err := r.Register(AgentInfo{ID: "agent-up", Endpoint: "ws://up"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(AgentInfo{ID: "agent-down", Endpoint: "ws://down"}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.RunLivenessLoop(ctx)
	go r.RunProbeLoop(ctx, func(_ context.Context, info AgentInfo) bool {
		return info.ID == "agent-up"
	})

	time.Sleep(50 * time.Millisecond)

	if status, _ := r.Status("agent-up"); status != StatusHealthy {
		t.Errorf("probed agent should stay healthy, got %s", status)
	}
	if status, _ := r.Status("agent-down"); status != StatusUnreachable {
		t.Errorf("unresponsive agent should become unreachable, got %s", status)
	}
}

func TestRecordPongUnknownAgent(t *testing.T) {
	r := New()
	if err := r.RecordPong("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
