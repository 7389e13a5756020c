// Package mock provides a test double for the asr package.
package mock

import (
	"context"
	"sync"

	"github.com/voxhive/voxhive/pkg/provider/asr"
)

// TranscribeCall records a single Transcribe invocation.
type TranscribeCall struct {
	// Samples is the number of PCM samples submitted.
	Samples int
}

// Provider is a mock implementation of asr.Provider.
type Provider struct {
	mu sync.Mutex

	// Results is the scripted sequence of transcripts returned by successive
	// Transcribe calls. When exhausted, Text is returned.
	Results []string

	// Text is returned once Results is exhausted.
	Text string

	// Err, if non-nil, is returned by every Transcribe call.
	Err error

	// Calls records every Transcribe invocation in order.
	Calls []TranscribeCall

	next int
}

var _ asr.Provider = (*Provider)(nil)

// Transcribe implements asr.Provider.
func (p *Provider) Transcribe(ctx context.Context, pcm []int16) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, TranscribeCall{Samples: len(pcm)})
	if p.Err != nil {
		return "", p.Err
	}
	if p.next < len(p.Results) {
		text := p.Results[p.next]
		p.next++
		return text, nil
	}
	return p.Text, nil
}

// CallCount returns the number of Transcribe invocations so far.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Close implements asr.Provider.
func (p *Provider) Close() error { return nil }
