package session

import (
	"context"
	"sync"
	"testing"
	"time"

	ttsmock "github.com/voxhive/voxhive/pkg/provider/tts/mock"
)

// delayedTTS synthesizes with a per-text delay, so tests can force later
// segments to finish synthesis first.
type delayedTTS struct {
	mu     sync.Mutex
	delays map[string]time.Duration
	fail   map[string]bool
	texts  []string
}

func (p *delayedTTS) Synthesize(ctx context.Context, text string) ([][]byte, error) {
	p.mu.Lock()
	p.texts = append(p.texts, text)
	delay := p.delays[text]
	fail := p.fail[text]
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail {
		return nil, context.DeadlineExceeded
	}
	return [][]byte{{1}, {2}}, nil
}

func (p *delayedTTS) Close() error { return nil }

func TestReply_EmitsSegmentsInSubmissionOrder(t *testing.T) {
	t.Parallel()

	tts := &delayedTTS{delays: map[string]time.Duration{
		"第一句": 150 * time.Millisecond, // finishes after the second segment
	}}
	s, conn := newTestSession(t, Config{}, Providers{TTS: tts})

	r := newReply(s, time.Time{})
	r.speak(context.Background(), Segment{Index: 1, Text: "第一句"})
	r.speak(context.Background(), Segment{Index: 2, Text: "第二句"})
	r.finish()
	r.wait()

	var starts []string
	for _, f := range conn.framesOfType(t, "tts") {
		if f["state"] == "sentence_start" {
			starts = append(starts, f["text"].(string))
		}
	}
	if len(starts) != 2 || starts[0] != "第一句" || starts[1] != "第二句" {
		t.Fatalf("sentence_start order = %v, want [第一句 第二句]", starts)
	}

	states := conn.ttsStates(t)
	if states[0] != "start" || states[len(states)-1] != "stop" {
		t.Errorf("tts states = %v, want start first and stop last", states)
	}
	if got := conn.binaryCount(); got != 4 {
		t.Errorf("audio frames = %d, want 4", got)
	}
}

func TestReply_SkipsFailedSegment(t *testing.T) {
	t.Parallel()

	tts := &delayedTTS{fail: map[string]bool{"坏的一句": true}}
	s, conn := newTestSession(t, Config{}, Providers{TTS: tts})

	r := newReply(s, time.Time{})
	r.speak(context.Background(), Segment{Index: 1, Text: "坏的一句"})
	r.speak(context.Background(), Segment{Index: 2, Text: "好的一句"})
	r.finish()
	r.wait()

	var starts []string
	for _, f := range conn.framesOfType(t, "tts") {
		if f["state"] == "sentence_start" {
			starts = append(starts, f["text"].(string))
		}
	}
	if len(starts) != 1 || starts[0] != "好的一句" {
		t.Fatalf("sentence_start texts = %v, want [好的一句]", starts)
	}
	states := conn.ttsStates(t)
	if states[len(states)-1] != "stop" {
		t.Errorf("tts states = %v, want trailing stop", states)
	}
}

func TestReply_TimeoutSkipsSegment(t *testing.T) {
	t.Parallel()

	tts := &ttsmock.Provider{Delay: time.Second}
	s, conn := newTestSession(t, Config{TTSTimeout: 50 * time.Millisecond}, Providers{TTS: tts})

	r := newReply(s, time.Time{})
	r.speak(context.Background(), Segment{Index: 1, Text: "太慢了"})
	r.finish()

	done := make(chan struct{})
	go func() {
		r.wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("reply did not finish after synthesis timeout")
	}

	if got := conn.binaryCount(); got != 0 {
		t.Errorf("audio frames = %d, want 0", got)
	}
	if states := conn.ttsStates(t); len(states) != 0 {
		t.Errorf("tts states = %v, want none", states)
	}
}

func TestReply_NoFramesWithoutSegments(t *testing.T) {
	t.Parallel()

	s, conn := newTestSession(t, Config{}, Providers{})

	r := newReply(s, time.Time{})
	r.finish()
	r.wait()

	if frames := conn.frames(t); len(frames) != 0 {
		t.Fatalf("recorded %d frames, want 0", len(frames))
	}
}

func TestReply_AbortCutsEmission(t *testing.T) {
	t.Parallel()

	tts := &ttsmock.Provider{FramesPerSegment: 40}
	s, conn := newTestSession(t, Config{}, Providers{TTS: tts})

	r := newReply(s, time.Time{})
	r.speak(context.Background(), Segment{Index: 1, Text: "很长的一句话"})
	r.finish()

	// Abort once the first frames are on the wire.
	waitFor(t, time.Second, func() bool { return conn.binaryCount() > 0 },
		"no audio emitted before abort")
	s.aborted.Store(true)
	r.wait()

	if got := conn.binaryCount(); got >= 40 {
		t.Errorf("audio frames = %d, want fewer than 40 after abort", got)
	}
	for _, state := range conn.ttsStates(t) {
		if state == "stop" {
			t.Error("stop frame sent by aborted reply")
		}
	}
}

func TestReply_SpeakFramesBypassesSynthesis(t *testing.T) {
	t.Parallel()

	tts := &delayedTTS{}
	s, conn := newTestSession(t, Config{}, Providers{TTS: tts})

	r := newReply(s, time.Time{})
	r.speakFrames(1, "正在播放晴天.p3", [][]byte{{1}, {2}, {3}})
	r.finish()
	r.wait()

	if len(tts.texts) != 0 {
		t.Errorf("synthesis called for pre-rendered frames: %v", tts.texts)
	}
	if got := conn.binaryCount(); got != 3 {
		t.Errorf("audio frames = %d, want 3", got)
	}
}
