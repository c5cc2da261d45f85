package localtools

import "context"

// Result is the return value of a local tool's Execute call. Value carries
// the structured payload handed back to the model through the tool
// executor's ToolResult envelope; ErrText marks a failed execution.
type Result struct {
	Value   any
	ErrText string
}

func NewResult(value any) *Result { return &Result{Value: value} }

func ErrorResult(message string) *Result { return &Result{ErrText: message} }

func (r *Result) IsError() bool { return r.ErrText != "" }

// Tool is one locally executable tool backing the agent tool executor's
// remote-runtime, knowledge-base, and default-remote dispatch paths.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) *Result
}
