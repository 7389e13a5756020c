// Package mock provides a test double for the llm package.
//
// Provider replays scripted chunk sequences, one script per successive
// StreamCompletion call, which lets dispatcher tests drive multi-round
// tool-call conversations deterministically.
package mock

import (
	"context"
	"sync"

	"github.com/voxhive/voxhive/pkg/provider/llm"
)

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// Scripts holds one chunk sequence per successive StreamCompletion call.
	// When exhausted, the last script is replayed.
	Scripts [][]llm.Chunk

	// StreamErr, if non-nil, is returned by StreamCompletion itself.
	StreamErr error

	// CompleteResponse is returned by Complete.
	CompleteResponse *llm.CompletionResponse

	// CompleteErr, if non-nil, is returned by Complete.
	CompleteErr error

	// StreamCalls records the request of every StreamCompletion call.
	StreamCalls []llm.CompletionRequest

	// CompleteCalls records the request of every Complete call.
	CompleteCalls []llm.CompletionRequest

	next int
}

var _ llm.Provider = (*Provider)(nil)

// StreamCompletion implements llm.Provider.
func (p *Provider) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	p.mu.Lock()
	p.StreamCalls = append(p.StreamCalls, req)
	if p.StreamErr != nil {
		p.mu.Unlock()
		return nil, p.StreamErr
	}
	var script []llm.Chunk
	if len(p.Scripts) > 0 {
		idx := p.next
		if idx >= len(p.Scripts) {
			idx = len(p.Scripts) - 1
		}
		script = p.Scripts[idx]
		p.next++
	}
	p.mu.Unlock()

	ch := make(chan llm.Chunk, len(script)+1)
	go func() {
		defer close(ch)
		for _, c := range script {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = append(p.CompleteCalls, req)
	if p.CompleteErr != nil {
		return nil, p.CompleteErr
	}
	if p.CompleteResponse != nil {
		return p.CompleteResponse, nil
	}
	return &llm.CompletionResponse{}, nil
}

// StreamCallCount returns the number of StreamCompletion invocations so far.
func (p *Provider) StreamCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.StreamCalls)
}
