package resilience

import (
	"context"
	"errors"

	"github.com/voxhive/voxhive/pkg/provider/asr"
)

// ASRFallback implements [asr.Provider] with automatic failover across multiple
// recognition backends. Each backend has its own circuit breaker.
type ASRFallback struct {
	group *FallbackGroup[asr.Provider]
}

// Compile-time interface assertion.
var _ asr.Provider = (*ASRFallback)(nil)

// NewASRFallback creates an [ASRFallback] with primary as the preferred backend.
func NewASRFallback(primary asr.Provider, primaryName string, cfg FallbackConfig) *ASRFallback {
	return &ASRFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional ASR provider as a fallback.
func (f *ASRFallback) AddFallback(name string, provider asr.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe recognizes the utterance against the first healthy provider. If
// the primary fails, subsequent fallbacks are tried with the same samples.
func (f *ASRFallback) Transcribe(ctx context.Context, pcm []int16) (string, error) {
	return ExecuteWithResult(f.group, func(p asr.Provider) (string, error) {
		return p.Transcribe(ctx, pcm)
	})
}

// Close closes every backend in the group.
func (f *ASRFallback) Close() error {
	var errs []error
	for i := range f.group.entries {
		if err := f.group.entries[i].value.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
