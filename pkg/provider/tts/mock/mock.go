// Package mock provides a test double for the tts package.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/voxhive/voxhive/pkg/provider/tts"
)

// Provider is a mock implementation of tts.Provider.
//
// By default every Synthesize call returns FramesPerSegment copies of a
// one-byte marker frame, so emitter tests can count frames per segment.
type Provider struct {
	mu sync.Mutex

	// FramesPerSegment is the number of frames returned per call.
	// Zero means 3.
	FramesPerSegment int

	// Delay, when non-zero, is slept (context-aware) before returning,
	// simulating synthesis latency.
	Delay time.Duration

	// Err, if non-nil, is returned by every Synthesize call.
	Err error

	// Texts records the text of every Synthesize call in order.
	Texts []string
}

var _ tts.Provider = (*Provider)(nil)

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string) ([][]byte, error) {
	p.mu.Lock()
	p.Texts = append(p.Texts, text)
	n := p.FramesPerSegment
	delay := p.Delay
	err := p.Err
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	if n == 0 {
		n = 3
	}
	frames := make([][]byte, n)
	for i := range frames {
		frames[i] = []byte{byte(i)}
	}
	return frames, nil
}

// SynthesizedTexts returns a copy of the texts synthesized so far.
func (p *Provider) SynthesizedTexts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.Texts))
	copy(out, p.Texts)
	return out
}

// Close implements tts.Provider.
func (p *Provider) Close() error { return nil }
