// Package dialogue maintains the per-session conversation transcript.
//
// The transcript always begins with exactly one system turn. All mutation
// happens through the dispatcher goroutine, but reads can come from other
// tasks (intent context, teardown memory save), so access is mutex-guarded.
package dialogue

import (
	"sync"

	"github.com/voxhive/voxhive/pkg/types"
)

// memoryHeader prefixes retrieved conversation memory inside the system turn.
const memoryHeader = "相关记忆：\n"

// Dialogue is an ordered sequence of conversation turns.
type Dialogue struct {
	mu    sync.Mutex
	turns []types.Message
}

// New creates a transcript seeded with the system prompt.
func New(systemPrompt string) *Dialogue {
	return &Dialogue{
		turns: []types.Message{{Role: "system", Content: systemPrompt}},
	}
}

// Put appends a turn.
func (d *Dialogue) Put(m types.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.turns = append(d.turns, m)
}

// Messages returns a copy of the full transcript.
func (d *Dialogue) Messages() []types.Message {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]types.Message, len(d.turns))
	copy(out, d.turns)
	return out
}

// MessagesWithMemory returns a copy of the transcript with memory appended
// to the system turn under the memory header. An empty memory string returns
// the plain transcript.
func (d *Dialogue) MessagesWithMemory(memory string) []types.Message {
	out := d.Messages()
	if memory == "" || len(out) == 0 {
		return out
	}
	out[0].Content = out[0].Content + "\n\n" + memoryHeader + memory
	return out
}

// Recent returns up to n trailing user/assistant turns, in order. Used as
// context for the intent classifier.
func (d *Dialogue) Recent(n int) []types.Message {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []types.Message
	for i := len(d.turns) - 1; i >= 0 && len(out) < n; i-- {
		t := d.turns[i]
		if t.Role != "user" && t.Role != "assistant" {
			continue
		}
		if t.Content == "" {
			continue
		}
		out = append(out, t)
	}
	// Reverse to chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Len returns the number of turns.
func (d *Dialogue) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.turns)
}
