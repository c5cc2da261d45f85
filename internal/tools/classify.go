package tools

import "strings"

// Kind is the closed set of tool classifications. The Executor computes it
// from the tool name on every call (LoadCatalog also records it on each
// Spec), since classification for handoff/KB tools is name-derived and the
// remote-runtime set is a static allow-list.
type Kind string

const (
	KindHandoff      Kind = "handoff"
	KindLocalRuntime Kind = "remote-runtime"
	KindKB           Kind = "kb"
	KindRemote       Kind = "remote"
)

const (
	handoffTransferPrefix = "transfer_to_"
	handoffReturnToTriage = "return_to_triage"
	knowledgeBaseTool     = "search_knowledge_base"
)

// remoteRuntimeAllowList is the deterministic set of banking/runtime tools
// dispatched to the local tool service's remote-runtime path rather than
// default remote dispatch. Kept as a fixed list rather than a config toggle:
// these names carry real account-affecting side effects and should not be
// silently reclassified by a config change.
var remoteRuntimeAllowList = map[string]bool{
	"perform_idv_check":        true,
	"agentcore_balance":        true,
	"get_account_transactions": true,
	"create_dispute_case":      true,
	"lookup_merchant_alias":    true,
}

// handoffTargetAliases maps a transfer_to_<X> suffix to its registry target
// when the suffix doesn't already name the agent directly.
var handoffTargetAliases = map[string]string{
	"banking":  "persona-SimpleBanking",
	"mortgage": "persona-mortgage",
}

// Classify determines which dispatch path a tool invocation takes. First
// match wins: handoff, then remote-runtime allow-list, then knowledge base,
// then default remote.
func Classify(toolName string) Kind {
	if isHandoffTool(toolName) {
		return KindHandoff
	}
	if remoteRuntimeAllowList[toolName] {
		return KindLocalRuntime
	}
	if toolName == knowledgeBaseTool {
		return KindKB
	}
	return KindRemote
}

func isHandoffTool(toolName string) bool {
	return strings.HasPrefix(toolName, handoffTransferPrefix) || toolName == handoffReturnToTriage
}

// handoffTarget derives the target agent ID for a transfer_to_<X> tool name.
// return_to_triage has no derived target here; its destination is always
// the triage agent and is resolved by the caller.
func handoffTarget(toolName string) string {
	suffix := strings.TrimPrefix(toolName, handoffTransferPrefix)
	if alias, ok := handoffTargetAliases[suffix]; ok {
		return alias
	}
	return suffix
}
