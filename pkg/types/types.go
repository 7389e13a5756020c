// Package types defines the shared types used across all Voxhive packages.
//
// These types form the lingua franca between providers, the session pipeline,
// the tool host, and the memory layer. They are intentionally minimal — each
// package defines its own domain types, but cross-cutting data structures live
// here to avoid circular imports.
package types

// Message represents a single turn in a conversation transcript.
type Message struct {
	// Role is one of "system", "user", "assistant", or "tool".
	Role string

	// Content is the text content of the turn. May be empty for assistant
	// turns that only carry tool calls.
	Content string

	// ToolCalls contains any tool invocations requested by the assistant.
	ToolCalls []ToolCall

	// ToolCallID is set when Role is "tool", identifying which tool call this
	// turn responds to.
	ToolCallID string
}

// ToolCall represents a tool/function invocation requested by the LLM.
type ToolCall struct {
	// ID is the unique identifier for this tool call. Provider-assigned for
	// structured calls; synthesized for markdown-style calls.
	ID string

	// Name is the tool/function name.
	Name string

	// Arguments is the JSON-encoded arguments string.
	Arguments string
}

// ToolDefinition describes a tool that can be offered to an LLM.
type ToolDefinition struct {
	// Name is the tool's unique identifier.
	Name string

	// Description explains what the tool does (included in LLM prompts).
	Description string

	// Parameters is the JSON Schema describing the tool's input parameters.
	Parameters map[string]any
}

// ValueType enumerates the value types a device capability property may
// declare.
type ValueType string

const (
	ValueNumber  ValueType = "number"
	ValueBoolean ValueType = "boolean"
	ValueString  ValueType = "string"
)

// Valid reports whether t is one of the declared value types.
func (t ValueType) Valid() bool {
	switch t {
	case ValueNumber, ValueBoolean, ValueString:
		return true
	}
	return false
}

// Zero returns the default value for the type: 0, false or "".
func (t ValueType) Zero() any {
	switch t {
	case ValueNumber:
		return float64(0)
	case ValueBoolean:
		return false
	default:
		return ""
	}
}

// Matches reports whether v (as decoded from JSON) conforms to the type.
func (t ValueType) Matches(v any) bool {
	switch t {
	case ValueNumber:
		switch v.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case ValueBoolean:
		_, ok := v.(bool)
		return ok
	case ValueString:
		_, ok := v.(string)
		return ok
	}
	return false
}
