// Package agentic defines the contract between a reasoning agent and the
// tools it may call: tool definitions offered to the model, tool calls the
// model emits, and tool results fed back into the conversation.
package agentic

import "context"

// ToolDefinition describes one callable tool in JSON Schema form.
type ToolDefinition struct {
	// Name is the tool identifier the model uses to invoke it.
	Name string `json:"name"`

	// Description tells the model what the tool does and when to use it.
	Description string `json:"description"`

	// Parameters is a JSON Schema object describing the tool arguments.
	Parameters map[string]any `json:"parameters"`
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	// ID correlates the call with its result.
	ID string `json:"id"`

	// Name is the tool to invoke.
	Name string `json:"name"`

	// Arguments holds the decoded call arguments.
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the outcome of executing one tool call.
// Expected failures (network errors, bad arguments) are reported in Error,
// not raised: the model sees them and reasons about them.
type ToolResult struct {
	// CallID matches the originating ToolCall.ID.
	CallID string `json:"call_id"`

	// Content is the tool output, usually JSON.
	Content string `json:"content"`

	// Error describes an expected failure, empty on success.
	Error string `json:"error,omitempty"`
}

// Executor executes tool calls on behalf of an agent.
type Executor interface {
	// ListTools returns the tool catalog offered to the model.
	ListTools() []ToolDefinition

	// Execute runs one tool call. Expected failures are returned inside the
	// ToolResult; a non-nil error is reserved for programming faults and
	// cancellation.
	Execute(ctx context.Context, call ToolCall) (ToolResult, error)
}
