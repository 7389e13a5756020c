// Package tts defines the speech-synthesis contract used by the session
// pipeline.
//
// Synthesis is segment-batched: the segmenter produces punctuation-bounded
// text segments and each one is synthesized as an independent unit. Providers
// return audio already re-encoded to the pipeline frame shape (60 ms Opus,
// 16 kHz mono) so the emitter can write frames to the wire verbatim.
package tts

import "context"

// Provider synthesizes speech for one text segment.
//
// Implementations must be safe for concurrent use: the per-session worker
// pool synthesizes several segments in parallel against one shared instance.
type Provider interface {
	// Synthesize converts text to Opus frames in the pipeline frame shape.
	// An empty frame list with a nil error means the provider produced no
	// audio; the emitter skips the segment.
	Synthesize(ctx context.Context, text string) ([][]byte, error)

	// Close releases provider resources.
	Close() error
}
