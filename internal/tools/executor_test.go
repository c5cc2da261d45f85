package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"
)

// fakeDispatcher records the last dispatch and returns a canned result.
type fakeDispatcher struct {
	lastTool  string
	lastInput map[string]any
	result    any
	err       error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, toolName string, input map[string]any) (any, error) {
	f.lastTool = toolName
	f.lastInput = input
	return f.result, f.err
}

func testSession() SessionView {
	return SessionView{
		SessionID:      "sess-1",
		CurrentAgentID: "persona-triage",
	}
}

func TestExecuteHandoffReasonFallbackChain(t *testing.T) {
	e := NewExecutor(nil, nil, &fakeDispatcher{})

	// Explicit reason wins.
	result, _ := e.Execute(context.Background(), testSession(), "transfer_to_banking", map[string]any{"reason": "balance query"})
	require.True(t, result.Success)
	handoff := result.Result.(HandoffRequest)
	assert.Equal(t, "balance query", handoff.Context["reason"])
	assert.Equal(t, "persona-SimpleBanking", handoff.TargetAgentID)

	// No reason falls back to the session's user intent.
	sess := testSession()
	sess.UserIntent = "check balance"
	result, _ = e.Execute(context.Background(), sess, "transfer_to_banking", nil)
	handoff = result.Result.(HandoffRequest)
	assert.Equal(t, "check balance", handoff.Context["reason"])

	// Neither present falls back to the fixed default string.
	result, _ = e.Execute(context.Background(), testSession(), "transfer_to_banking", nil)
	handoff = result.Result.(HandoffRequest)
	assert.Equal(t, "User needs specialist assistance", handoff.Context["reason"])
}

func TestExecuteHandoffCopiesVerifiedUser(t *testing.T) {
	e := NewExecutor(nil, nil, &fakeDispatcher{})
	sess := testSession()
	sess.VerifiedUser = &VerifiedUser{Verified: true, UserName: "Sarah Johnson", Account: "12345678", SortCode: "112233"}
	sess.LastUserMessage = "I want my balance"

	result, _ := e.Execute(context.Background(), sess, "transfer_to_banking", nil)
	require.True(t, result.Success)
	ctx := result.Result.(HandoffRequest).Context
	assert.Equal(t, true, ctx["verified"])
	assert.Equal(t, "Sarah Johnson", ctx["userName"])
	assert.Equal(t, "12345678", ctx["account"])
	assert.Equal(t, "112233", ctx["sortCode"])
	assert.Equal(t, "I want my balance", ctx["lastUserMessage"])
	assert.Equal(t, "persona-triage", ctx["fromAgent"])
}

func TestReturnToTriageRequiresTaskCompleted(t *testing.T) {
	e := NewExecutor(nil, nil, &fakeDispatcher{})

	result, _ := e.Execute(context.Background(), testSession(), "return_to_triage", map[string]any{})
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "taskCompleted is required")

	result, _ = e.Execute(context.Background(), testSession(), "return_to_triage", map[string]any{
		"taskCompleted": "balance_check",
		"summary":       "balance was read out",
	})
	require.True(t, result.Success)
	ctx := result.Result.(HandoffRequest).Context
	assert.Equal(t, "balance_check", ctx["taskCompleted"])
	assert.Equal(t, "balance was read out", ctx["summary"])
	assert.Equal(t, true, ctx["isReturn"])
	assert.Equal(t, "triage", result.Result.(HandoffRequest).TargetAgentID)
}

func TestKnowledgeBaseRequiresQuery(t *testing.T) {
	d := &fakeDispatcher{result: "kb answer"}
	e := NewExecutor(nil, nil, d)

	result, _ := e.Execute(context.Background(), testSession(), "search_knowledge_base", map[string]any{})
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "query is required")

	result, _ = e.Execute(context.Background(), testSession(), "search_knowledge_base", map[string]any{"query": "dispute policy"})
	require.True(t, result.Success)
	assert.Equal(t, "kb answer", result.Result)
}

func TestRuntimeToolPrefersRuntimeDispatcher(t *testing.T) {
	runtime := &fakeDispatcher{result: map[string]any{"balance": "812.55"}}
	remote := &fakeDispatcher{result: "wrong path"}
	e := NewExecutor(nil, runtime, remote)

	result, _ := e.Execute(context.Background(), testSession(), "agentcore_balance", map[string]any{})
	require.True(t, result.Success)
	assert.Equal(t, "agentcore_balance", runtime.lastTool)
	assert.Empty(t, remote.lastTool)
}

func TestRuntimeToolFallsBackToRemoteDispatcher(t *testing.T) {
	remote := &fakeDispatcher{result: map[string]any{"balance": "812.55"}}
	e := NewExecutor(nil, nil, remote)

	result, _ := e.Execute(context.Background(), testSession(), "agentcore_balance", map[string]any{})
	require.True(t, result.Success)
	assert.Equal(t, "agentcore_balance", remote.lastTool)
}

func TestIDVVerifiedSurfacesIdentityUpdate(t *testing.T) {
	d := &fakeDispatcher{result: map[string]any{
		"auth_status":   "VERIFIED",
		"customer_name": "Sarah Johnson",
	}}
	e := NewExecutor(nil, nil, d)

	input := map[string]any{"account": "12345678", "sortCode": "112233"}
	result, identity := e.Execute(context.Background(), testSession(), "perform_idv_check", input)
	require.True(t, result.Success)
	require.NotNil(t, identity)
	assert.Equal(t, "sess-1", identity.SessionID)
	assert.True(t, identity.Verified.Verified)
	assert.Equal(t, "Sarah Johnson", identity.Verified.UserName)
	// Account and sort code come from the invocation input when the IDV
	// service doesn't echo them back.
	assert.Equal(t, "12345678", identity.Verified.Account)
	assert.Equal(t, "112233", identity.Verified.SortCode)
}

func TestIDVFailedYieldsNoIdentityUpdate(t *testing.T) {
	d := &fakeDispatcher{result: map[string]any{"auth_status": "FAILED"}}
	e := NewExecutor(nil, nil, d)

	result, identity := e.Execute(context.Background(), testSession(), "perform_idv_check", map[string]any{})
	require.True(t, result.Success)
	assert.Nil(t, identity)
}

func TestTransportErrorSurfacesAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse every connection

	e := NewExecutor(nil, nil, NewHTTPDispatcher(srv.URL, 0))
	result, _ := e.Execute(context.Background(), testSession(), "get_account_transactions", map[string]any{})
	require.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestHTTPDispatchRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tools/execute", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":{"auth_status":"VERIFIED","customer_name":"Sarah Johnson"}}`))
	}))
	defer srv.Close()

	e := NewExecutor(nil, nil, NewHTTPDispatcher(srv.URL, 0))
	result, identity := e.Execute(context.Background(), testSession(), "perform_idv_check", map[string]any{"account": "12345678"})
	require.True(t, result.Success)
	require.NotNil(t, identity)
	assert.Equal(t, "Sarah Johnson", identity.Verified.UserName)
}

func TestDownstreamErrorPassedThroughVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":"account not found"}`))
	}))
	defer srv.Close()

	e := NewExecutor(nil, nil, NewHTTPDispatcher(srv.URL, 0))
	result, _ := e.Execute(context.Background(), testSession(), "agentcore_balance", map[string]any{})
	require.False(t, result.Success)
	assert.Equal(t, "account not found", result.Error)
}

func TestCatalogSchemaValidation(t *testing.T) {
	spec := &Spec{
		Name: "create_dispute_case",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []any{"merchant"},
			"properties": map[string]any{
				"merchant": map[string]any{"type": "string"},
			},
		},
	}
	spec.schemaLoader = gojsonschema.NewGoLoader(spec.InputSchema)

	catalog := map[string]*Spec{"create_dispute_case": spec}
	d := &fakeDispatcher{result: "ok"}
	e := NewExecutor(catalog, nil, d)

	result, _ := e.Execute(context.Background(), testSession(), "create_dispute_case", map[string]any{})
	require.False(t, result.Success)
	assert.True(t, strings.Contains(result.Error, "merchant"), "error should name the missing field: %s", result.Error)

	result, _ = e.Execute(context.Background(), testSession(), "create_dispute_case", map[string]any{"merchant": "ACME"})
	require.True(t, result.Success)
}
