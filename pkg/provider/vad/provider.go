// Package vad defines the voice-activity-detection contract used by the
// session pipeline.
//
// The pipeline decodes each inbound Opus frame to PCM and evaluates the
// detector on fixed 512-sample windows (32 ms at 16 kHz). A detector session
// is stateful: recurrent models keep hidden state across windows, so each
// connection owns exactly one Session and windows must be submitted in order.
package vad

import "errors"

// ErrWindowSize is returned by Session.ProcessWindow when the submitted PCM
// window does not match Config.WindowSamples.
var ErrWindowSize = errors.New("vad: window sample count mismatch")

// Config holds the parameters for a detector session.
type Config struct {
	// SampleRate of the PCM windows in Hz. The pipeline uses 16000.
	SampleRate int

	// WindowSamples is the number of samples per evaluation window.
	// The pipeline uses 512 (32 ms at 16 kHz).
	WindowSamples int

	// Threshold is the speech probability above which a window counts as
	// voiced. Typical value 0.5.
	Threshold float32

	// MinSilenceMs is the minimum silence duration the model uses internally
	// to close a speech segment.
	MinSilenceMs int
}

// Event is the detection result for one window.
type Event struct {
	// Voice reports whether the window is classified as speech.
	Voice bool

	// Probability is the speech probability score (0.0–1.0) when the backend
	// reports one; backends that only report segment boundaries set it to 1
	// or 0 according to Voice.
	Probability float64
}

// Session is a stateful per-connection detector instance.
//
// Implementations are not required to be safe for concurrent use; the
// pipeline serializes all calls on the audio ingest path.
type Session interface {
	// ProcessWindow evaluates one PCM window (float32 samples in [-1, 1)) and
	// returns its classification.
	ProcessWindow(pcm []float32) (Event, error)

	// Reset clears accumulated model state between utterances.
	Reset() error

	// Close releases the session's resources.
	Close() error
}

// Engine creates detector sessions. One Engine is shared by all connections;
// implementations must make NewSession safe for concurrent use.
type Engine interface {
	NewSession(cfg Config) (Session, error)

	// Close releases engine-wide resources (loaded models).
	Close() error
}
