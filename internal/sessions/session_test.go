package sessions

import (
	"context"
	"testing"

	"github.com/voicegw/voicegw/internal/tools"
)

func TestLastUserMessage(t *testing.T) {
	s := New(context.Background(), "sess-1", "persona-triage")
	if got := s.LastUserMessage(); got != "" {
		t.Errorf("empty transcript LastUserMessage = %q", got)
	}

	s.AppendTranscript("user", "hello", true)
	s.AppendTranscript("assistant", "hi, how can I help?", true)
	s.AppendTranscript("user", "I want my balance", true)
	s.AppendTranscript("assistant", "sure", true)

	if got := s.LastUserMessage(); got != "I want my balance" {
		t.Errorf("LastUserMessage = %q", got)
	}
}

func TestMemoryPatchUnverified(t *testing.T) {
	s := New(context.Background(), "sess-1", "persona-triage")
	s.AppendTranscript("user", "hello", true)

	patch := s.MemoryPatch()
	if patch["lastAgent"] != "persona-triage" {
		t.Errorf("lastAgent = %v", patch["lastAgent"])
	}
	if patch["lastUserMessage"] != "hello" {
		t.Errorf("lastUserMessage = %v", patch["lastUserMessage"])
	}
	if _, ok := patch["verified"]; ok {
		t.Error("unverified session must not claim verified in memory")
	}
}

func TestMemoryPatchVerified(t *testing.T) {
	s := New(context.Background(), "sess-1", "persona-idv")
	s.SetVerifiedUser(tools.VerifiedUser{Verified: true, UserName: "Sarah Johnson", Account: "12345678", SortCode: "112233"})
	s.SetUserIntent("check balance")

	patch := s.MemoryPatch()
	if patch["verified"] != true || patch["userName"] != "Sarah Johnson" {
		t.Errorf("patch = %v", patch)
	}
	if patch["account"] != "12345678" || patch["sortCode"] != "112233" {
		t.Errorf("patch = %v", patch)
	}
	if patch["userIntent"] != "check balance" {
		t.Errorf("patch = %v", patch)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	s := New(context.Background(), "sess-1", "persona-triage")
	s.Cancel()
	s.Cancel()
	select {
	case <-s.Context().Done():
	default:
		t.Error("context not cancelled")
	}
}

func TestMintsIDWhenAbsent(t *testing.T) {
	s := New(context.Background(), "", "persona-triage")
	if s.ID() == "" {
		t.Error("empty session ID should be minted")
	}
}

func TestViewProjectsState(t *testing.T) {
	s := New(context.Background(), "sess-1", "persona-banking")
	s.SetUserIntent("dispute a charge")
	s.AppendTranscript("user", "I want to dispute", true)

	view := s.View(map[string]any{"currentNodeId": "verify"})
	if view.SessionID != "sess-1" || view.CurrentAgentID != "persona-banking" {
		t.Errorf("view = %+v", view)
	}
	if view.UserIntent != "dispute a charge" {
		t.Errorf("view.UserIntent = %q", view.UserIntent)
	}
	if view.LastUserMessage != "I want to dispute" {
		t.Errorf("view.LastUserMessage = %q", view.LastUserMessage)
	}
	if view.GraphState["currentNodeId"] != "verify" {
		t.Errorf("view.GraphState = %v", view.GraphState)
	}
}

func TestUsageAccumulates(t *testing.T) {
	s := New(context.Background(), "sess-1", "persona-triage")
	s.AddUsage(100, 40, 140)
	s.AddUsage(50, 10, 60)
	u := s.Usage()
	if u.InputTokens != 150 || u.OutputTokens != 50 || u.TotalTokens != 200 {
		t.Errorf("usage = %+v", u)
	}
}
