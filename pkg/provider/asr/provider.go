// Package asr defines the speech-recognition contract used by the session
// pipeline.
//
// Recognition is utterance-batched rather than streaming: the VAD gate
// collects one complete utterance, the pipeline decodes it to PCM, and the
// recognizer is invoked once per utterance. The pipeline guarantees at most
// one outstanding Transcribe call per session.
package asr

import "context"

// Provider transcribes one utterance of PCM audio.
//
// Implementations must be safe for concurrent use: a single Provider instance
// is shared by all sessions.
type Provider interface {
	// Transcribe recognizes pcm (16 kHz mono int16 samples) and returns the
	// transcript text. An empty string with a nil error means the recognizer
	// heard nothing usable; callers treat that as "no utterance".
	Transcribe(ctx context.Context, pcm []int16) (string, error)

	// Close releases provider resources (loaded models, HTTP clients).
	Close() error
}
