// Package mock provides test doubles for the vad package interfaces.
//
// Session replays a scripted sequence of events, which lets tests drive the
// VAD gate through precise speech/silence transitions without a model.
package mock

import (
	"sync"

	"github.com/voxhive/voxhive/pkg/provider/vad"
)

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	mu sync.Mutex

	// Session is returned by NewSession. If nil, a fresh default Session is
	// returned instead.
	Session vad.Session

	// NewSessionErr, if non-nil, is returned as the error from NewSession.
	NewSessionErr error

	// NewSessionCalls records the Config of every NewSession call in order.
	NewSessionCalls []vad.Config
}

var _ vad.Engine = (*Engine)(nil)

// NewSession implements vad.Engine.
func (e *Engine) NewSession(cfg vad.Config) (vad.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls = append(e.NewSessionCalls, cfg)
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	if e.Session != nil {
		return e.Session, nil
	}
	return &Session{}, nil
}

// Close implements vad.Engine.
func (e *Engine) Close() error { return nil }

// Session is a mock implementation of vad.Session.
type Session struct {
	mu sync.Mutex

	// Events is the scripted sequence returned by successive ProcessWindow
	// calls. When exhausted, ProcessWindow returns Default.
	Events []vad.Event

	// Default is returned once Events is exhausted.
	Default vad.Event

	// ProcessErr, if non-nil, is returned by every ProcessWindow call.
	ProcessErr error

	// Windows records every submitted window's sample count.
	Windows []int

	// ResetCalls counts Reset invocations.
	ResetCalls int

	// Closed reports whether Close was called.
	Closed bool

	next int
}

var _ vad.Session = (*Session)(nil)

// ProcessWindow implements vad.Session.
func (s *Session) ProcessWindow(pcm []float32) (vad.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Windows = append(s.Windows, len(pcm))
	if s.ProcessErr != nil {
		return vad.Event{}, s.ProcessErr
	}
	if s.next < len(s.Events) {
		ev := s.Events[s.next]
		s.next++
		return ev, nil
	}
	return s.Default, nil
}

// Reset implements vad.Session.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCalls++
	return nil
}

// Close implements vad.Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}
