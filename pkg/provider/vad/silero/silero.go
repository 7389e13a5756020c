// Package silero provides a vad.Engine backed by the Silero VAD ONNX model
// via github.com/streamer45/silero-vad-go.
//
// The ONNX runtime shared library must be available at load time; the model
// file path comes from configuration. Each pipeline session gets its own
// detector because the model is recurrent and keeps per-stream hidden state.
package silero

import (
	"fmt"
	"sync"

	"github.com/streamer45/silero-vad-go/speech"

	"github.com/voxhive/voxhive/pkg/provider/vad"
)

// Compile-time assertion that Engine satisfies vad.Engine.
var _ vad.Engine = (*Engine)(nil)

// Engine creates Silero detector sessions from a shared model file.
type Engine struct {
	modelPath string
}

// New creates an Engine that loads the Silero model from modelPath for each
// session.
func New(modelPath string) (*Engine, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("silero: modelPath must not be empty")
	}
	return &Engine{modelPath: modelPath}, nil
}

// NewSession implements vad.Engine.
func (e *Engine) NewSession(cfg vad.Config) (vad.Session, error) {
	sd, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            e.modelPath,
		SampleRate:           cfg.SampleRate,
		Threshold:            cfg.Threshold,
		MinSilenceDurationMs: cfg.MinSilenceMs,
		SpeechPadMs:          0,
	})
	if err != nil {
		return nil, fmt.Errorf("silero: create detector: %w", err)
	}
	return &session{sd: sd, windowSamples: cfg.WindowSamples}, nil
}

// Close implements vad.Engine. Model state is per-session, so there is
// nothing engine-wide to release.
func (e *Engine) Close() error { return nil }

// session wraps one Silero detector instance.
type session struct {
	mu            sync.Mutex
	sd            *speech.Detector
	windowSamples int

	// active tracks whether the detector currently has an open speech
	// segment. Silero reports segment boundaries rather than per-window
	// probabilities, so the flag carries voice state between windows.
	active bool
}

// ProcessWindow implements vad.Session.
func (s *session) ProcessWindow(pcm []float32) (vad.Event, error) {
	if len(pcm) != s.windowSamples {
		return vad.Event{}, fmt.Errorf("%w: got %d, want %d", vad.ErrWindowSize, len(pcm), s.windowSamples)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	segments, err := s.sd.Detect(pcm)
	if err != nil {
		return vad.Event{}, fmt.Errorf("silero: detect: %w", err)
	}
	for _, seg := range segments {
		// SpeechEndAt stays zero while a segment is still open.
		s.active = seg.SpeechEndAt == 0
	}

	prob := 0.0
	if s.active {
		prob = 1.0
	}
	return vad.Event{Voice: s.active, Probability: prob}, nil
}

// Reset implements vad.Session.
func (s *session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	if err := s.sd.Reset(); err != nil {
		return fmt.Errorf("silero: reset: %w", err)
	}
	return nil
}

// Close implements vad.Session.
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sd.Destroy(); err != nil {
		return fmt.Errorf("silero: destroy: %w", err)
	}
	return nil
}
