// Package llm defines the language-model contract used by the dispatcher.
//
// The dispatcher consumes an ordered stream of [Chunk] values: content deltas
// are forwarded to the segmenter while tool-call deltas switch the dispatcher
// into tool mode. The stream channel is closed when generation ends; a
// FinishReason of "error" carries the failure description in Text.
package llm

import (
	"context"

	"github.com/voxhive/voxhive/pkg/types"
)

// CompletionRequest describes a single generation request.
type CompletionRequest struct {
	// Messages is the conversation history, beginning with the system turn.
	Messages []types.Message

	// Tools, when non-empty, enables native tool calling with the given
	// schemas.
	Tools []types.ToolDefinition

	// Temperature controls sampling randomness. Zero means provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero means provider default.
	MaxTokens int
}

// Chunk is one streamed delta from the model.
type Chunk struct {
	// Text is the content delta. Empty for pure tool-call chunks.
	Text string

	// ToolCalls carries completed tool invocations. Providers accumulate
	// argument fragments internally and emit whole calls on the final chunk.
	ToolCalls []types.ToolCall

	// FinishReason is non-empty on the final chunk ("stop", "tool_calls",
	// "error", …).
	FinishReason string
}

// CompletionResponse is the result of a non-streaming completion.
type CompletionResponse struct {
	// Content is the full completion text.
	Content string

	// ToolCalls contains any tool invocations requested by the model.
	ToolCalls []types.ToolCall
}

// Provider generates completions. Implementations must be safe for
// concurrent use; one Provider instance is shared by all sessions.
type Provider interface {
	// StreamCompletion starts a streaming completion. The returned channel is
	// closed when the stream ends; errors surface as a final Chunk with
	// FinishReason "error".
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Complete performs a blocking completion. Used by the intent classifier
	// and the memory summarizer.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
