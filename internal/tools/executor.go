package tools

import (
	"context"
	"fmt"
)

// Dispatcher sends a classified tool call to its backing service and
// returns the raw result payload.
type Dispatcher interface {
	Dispatch(ctx context.Context, toolName string, input map[string]any) (any, error)
}

// Executor implements the tool execution pipeline: classify, validate,
// dispatch, and (for identity-establishing tools) surface a Session update.
type Executor struct {
	catalog         map[string]*Spec
	runtimeDispatch Dispatcher // remote-runtime allow-list (AgentCore if configured, else HTTP)
	remoteDispatch  Dispatcher // default remote + knowledge-base dispatch
}

// NewExecutor builds an Executor. runtimeDispatch may be nil, in which case
// remote-runtime tools fall back to remoteDispatch.
func NewExecutor(catalog map[string]*Spec, runtimeDispatch, remoteDispatch Dispatcher) *Executor {
	return &Executor{
		catalog:         catalog,
		runtimeDispatch: runtimeDispatch,
		remoteDispatch:  remoteDispatch,
	}
}

// Execute runs the full classify → validate → dispatch pipeline for one
// tool-use call. The returned *IdentityUpdate is non-nil only when the call
// just established a verified identity.
func (e *Executor) Execute(ctx context.Context, sess SessionView, toolName string, input map[string]any) (ToolResult, *IdentityUpdate) {
	if input == nil {
		input = map[string]any{}
	}

	switch Classify(toolName) {
	case KindHandoff:
		return e.executeHandoff(sess, toolName, input), nil
	case KindKB:
		return e.executeValidatedDispatch(ctx, toolName, input, e.remoteDispatch), nil
	case KindLocalRuntime:
		result, identity := e.executeRuntimeTool(ctx, sess, toolName, input)
		return result, identity
	default:
		return e.executeValidatedDispatch(ctx, toolName, input, e.remoteDispatch), nil
	}
}

func (e *Executor) validate(toolName string, input map[string]any) error {
	if spec, ok := e.catalog[toolName]; ok {
		return spec.ValidateInput(input)
	}
	return nil
}

func (e *Executor) executeValidatedDispatch(ctx context.Context, toolName string, input map[string]any, dispatcher Dispatcher) ToolResult {
	if toolName == knowledgeBaseTool {
		query, _ := input["query"].(string)
		if query == "" {
			return ToolResult{Success: false, Error: "field query is required"}
		}
	}
	if err := e.validate(toolName, input); err != nil {
		return ToolResult{Success: false, Error: err.Error()}
	}
	if dispatcher == nil {
		return ToolResult{Success: false, Error: "no dispatcher configured for tool " + toolName}
	}

	result, err := dispatcher.Dispatch(ctx, toolName, input)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}
	}
	return ToolResult{Success: true, Result: result}
}

func (e *Executor) executeRuntimeTool(ctx context.Context, sess SessionView, toolName string, input map[string]any) (ToolResult, *IdentityUpdate) {
	dispatcher := e.runtimeDispatch
	if dispatcher == nil {
		dispatcher = e.remoteDispatch
	}

	if err := e.validate(toolName, input); err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	if dispatcher == nil {
		return ToolResult{Success: false, Error: "no dispatcher configured for tool " + toolName}, nil
	}

	result, err := dispatcher.Dispatch(ctx, toolName, input)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}

	identity := detectIdentityEstablished(sess, input, result)
	return ToolResult{Success: true, Result: result}, identity
}

// detectIdentityEstablished inspects a perform_idv_check-style result for
// auth_status == "VERIFIED" and, if present, surfaces the verified-user
// triple for the caller to persist. The IDV service reports the name as
// customer_name; the account/sort-code pair is usually what the caller
// supplied on the request, so the invocation input is the fallback when the
// result doesn't echo them back.
func detectIdentityEstablished(sess SessionView, input map[string]any, result any) *IdentityUpdate {
	m, ok := result.(map[string]any)
	if !ok {
		return nil
	}
	if status, _ := m["auth_status"].(string); status != "VERIFIED" {
		return nil
	}

	verified := VerifiedUser{Verified: true}
	verified.UserName = firstString(m, "customer_name", "userName")
	verified.Account = firstString(m, "account", "accountNumber")
	if verified.Account == "" {
		verified.Account = firstString(input, "account", "accountNumber", "account_number")
	}
	verified.SortCode = firstString(m, "sortCode", "sort_code")
	if verified.SortCode == "" {
		verified.SortCode = firstString(input, "sortCode", "sort_code")
	}
	return &IdentityUpdate{SessionID: sess.SessionID, Verified: verified}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func (e *Executor) executeHandoff(sess SessionView, toolName string, input map[string]any) ToolResult {
	isReturn := toolName == handoffReturnToTriage

	reasonCtx := map[string]any{}
	reasonCtx["fromAgent"] = sess.CurrentAgentID

	reason, _ := input["reason"].(string)
	if reason == "" {
		reason = sess.UserIntent
	}
	if reason == "" {
		reason = "User needs specialist assistance"
	}
	reasonCtx["reason"] = reason

	if sess.VerifiedUser != nil && sess.VerifiedUser.Verified {
		reasonCtx["verified"] = true
		reasonCtx["userName"] = sess.VerifiedUser.UserName
		reasonCtx["account"] = sess.VerifiedUser.Account
		reasonCtx["sortCode"] = sess.VerifiedUser.SortCode
	}

	if sess.LastUserMessage != "" {
		reasonCtx["lastUserMessage"] = sess.LastUserMessage
	}

	var targetID string
	if isReturn {
		taskCompleted, hasTaskCompleted := input["taskCompleted"]
		if !hasTaskCompleted {
			return ToolResult{Success: false, Error: fmt.Sprintf("%s: field taskCompleted is required", ErrInvalidInput)}
		}
		reasonCtx["taskCompleted"] = taskCompleted
		if summary, ok := input["summary"]; ok {
			reasonCtx["summary"] = summary
		}
		reasonCtx["isReturn"] = true
		targetID = "triage"
	} else {
		targetID = handoffTarget(toolName)
	}

	return ToolResult{
		Success: true,
		Result: HandoffRequest{
			TargetAgentID: targetID,
			Context:       reasonCtx,
			GraphState:    sess.GraphState,
		},
	}
}
