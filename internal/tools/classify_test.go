package tools

import "testing"

func TestClassifyHandoff(t *testing.T) {
	cases := []string{"transfer_to_banking", "transfer_to_mortgage", "transfer_to_persona-triage", "return_to_triage"}
	for _, name := range cases {
		if got := Classify(name); got != KindHandoff {
			t.Errorf("Classify(%q) = %q, want %q", name, got, KindHandoff)
		}
	}
}

func TestClassifyRemoteRuntime(t *testing.T) {
	for name := range remoteRuntimeAllowList {
		if got := Classify(name); got != KindLocalRuntime {
			t.Errorf("Classify(%q) = %q, want %q", name, got, KindLocalRuntime)
		}
	}
}

func TestClassifyKnowledgeBase(t *testing.T) {
	if got := Classify("search_knowledge_base"); got != KindKB {
		t.Errorf("Classify(search_knowledge_base) = %q, want %q", got, KindKB)
	}
}

func TestClassifyDefaultRemote(t *testing.T) {
	if got := Classify("get_weather"); got != KindRemote {
		t.Errorf("Classify(get_weather) = %q, want %q", got, KindRemote)
	}
}

func TestHandoffTargetAliasMapping(t *testing.T) {
	if got := handoffTarget("transfer_to_banking"); got != "persona-SimpleBanking" {
		t.Errorf("handoffTarget(transfer_to_banking) = %q", got)
	}
	if got := handoffTarget("transfer_to_mortgage"); got != "persona-mortgage" {
		t.Errorf("handoffTarget(transfer_to_mortgage) = %q", got)
	}
	if got := handoffTarget("transfer_to_persona-triage"); got != "persona-triage" {
		t.Errorf("handoffTarget(transfer_to_persona-triage) = %q, want passthrough suffix", got)
	}
}
