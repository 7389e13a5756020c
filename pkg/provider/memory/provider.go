// Package memory defines the conversation-memory contract.
//
// Memory is an opaque per-device string: the pipeline saves a summary of the
// finished conversation on teardown and queries the stored string when a new
// session starts, prepending it to the system prompt. The store's internal
// format is the provider's business.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxhive/voxhive/internal/textutil"
	"github.com/voxhive/voxhive/pkg/provider/llm"
	"github.com/voxhive/voxhive/pkg/types"
)

// Provider persists and retrieves per-device conversation memory.
//
// Implementations must be safe for concurrent use across sessions.
type Provider interface {
	// Save stores memory for the device, replacing any previous value.
	// Implementations typically summarize the transcript first.
	Save(ctx context.Context, deviceID string, transcript []types.Message) error

	// Query returns the stored memory string for the device, or "" when none
	// exists. text is the new utterance, available to stores that filter.
	Query(ctx context.Context, deviceID, text string) (string, error)

	// Close releases store resources.
	Close() error
}

// summaryPrompt asks the model to compress a conversation into a short
// memory record. The reply should be JSON but is stored either way.
const summaryPrompt = `请总结以下对话中关于用户的重要信息（喜好、事实、待办），输出 JSON：
{"memories": ["…", "…"]}
只保留值得长期记住的内容，没有就输出 {"memories": []}。`

// Summarize condenses a transcript into a memory string using the given
// model. The output is checked for JSON parseability, but the raw text is
// kept even when the check fails; an unparseable summary is still better
// than discarding the conversation.
func Summarize(ctx context.Context, model llm.Provider, transcript []types.Message) (string, error) {
	if model == nil {
		return "", fmt.Errorf("memory: no summarization model configured")
	}

	var dialogue strings.Builder
	for _, m := range transcript {
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		if m.Content == "" {
			continue
		}
		fmt.Fprintf(&dialogue, "%s: %s\n", m.Role, m.Content)
	}
	if dialogue.Len() == 0 {
		return "", nil
	}

	resp, err := model.Complete(ctx, llm.CompletionRequest{
		Messages: []types.Message{
			{Role: "system", Content: summaryPrompt},
			{Role: "user", Content: dialogue.String()},
		},
	})
	if err != nil {
		return "", fmt.Errorf("memory: summarize: %w", err)
	}

	summary := strings.TrimSpace(resp.Content)
	if textutil.ExtractJSON(summary) == "" {
		slog.Warn("memory summary is not JSON, storing raw text anyway")
	}
	return summary, nil
}
