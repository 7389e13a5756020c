package session

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/voxhive/voxhive/pkg/audio"
	asrmock "github.com/voxhive/voxhive/pkg/provider/asr/mock"
	"github.com/voxhive/voxhive/pkg/provider/vad"
	vadmock "github.com/voxhive/voxhive/pkg/provider/vad/mock"
)

// encodeTestFrames produces n real Opus frames of a 440 Hz tone.
func encodeTestFrames(t *testing.T, n int) [][]byte {
	t.Helper()

	enc, err := audio.NewEncoder()
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	pcm := make([]int16, audio.FrameSamples)
	for i := range pcm {
		pcm[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/audio.SampleRate))
	}

	frames := make([][]byte, n)
	for i := range frames {
		frame, err := enc.Encode(pcm)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		frames[i] = frame
	}
	return frames
}

// eventScript mirrors the gate's windowing: each 60 ms frame contributes 960
// samples, analyzed in 512-sample windows with the remainder carried over.
type eventScript struct {
	events []vad.Event
	carry  int
}

// frames appends the events produced by n frames of uniform voicing.
func (s *eventScript) frames(n int, voice bool) {
	for i := 0; i < n; i++ {
		s.carry += audio.FrameSamples
		for s.carry >= vadWindowSamples {
			s.carry -= vadWindowSamples
			s.events = append(s.events, vad.Event{Voice: voice})
		}
	}
}

func TestGate_AutoUtteranceReachesRecognizer(t *testing.T) {
	t.Parallel()

	script := &eventScript{}
	script.frames(12, true)
	vs := &vadmock.Session{Events: script.events} // silence once exhausted
	engine := &vadmock.Engine{Session: vs}

	asrp := &asrmock.Provider{Text: "今天天气怎么样"}
	lm := chatScript("晴天。")
	s, conn := newTestSession(t, Config{}, Providers{VAD: engine, ASR: asrp, LLM: lm})

	ctx := context.Background()
	for _, frame := range encodeTestFrames(t, 14) { // 12 voiced + silence tail
		s.HandleAudio(ctx, frame)
	}

	waitFor(t, 3*time.Second, func() bool {
		return len(conn.framesOfType(t, "stt")) > 0
	}, "utterance never reached the recognizer")

	stt := conn.framesOfType(t, "stt")
	if stt[0]["text"] != "今天天气怎么样" {
		t.Errorf("stt echo = %v", stt[0])
	}
	if got := asrp.CallCount(); got != 1 {
		t.Errorf("Transcribe calls = %d, want 1", got)
	}
	// 12 voiced frames plus the trailing silence frame.
	if got := asrp.Calls[0].Samples; got != 13*audio.FrameSamples {
		t.Errorf("transcribed samples = %d, want %d", got, 13*audio.FrameSamples)
	}
}

func TestGate_PrerollPrependedToUtterance(t *testing.T) {
	t.Parallel()

	script := &eventScript{}
	script.frames(3, false) // idle frames fill the pre-roll
	script.frames(12, true)
	vs := &vadmock.Session{Events: script.events}
	engine := &vadmock.Engine{Session: vs}

	asrp := &asrmock.Provider{Text: "带前导的句子"}
	s, _ := newTestSession(t, Config{}, Providers{VAD: engine, ASR: asrp, LLM: chatScript("嗯。")})

	ctx := context.Background()
	for _, frame := range encodeTestFrames(t, 17) { // 3 idle + 12 voiced + tail
		s.HandleAudio(ctx, frame)
	}

	waitFor(t, 3*time.Second, func() bool { return asrp.CallCount() > 0 },
		"utterance never reached the recognizer")

	// 3 pre-roll + 12 voiced + 1 trailing silence frame.
	if got := asrp.Calls[0].Samples; got != 16*audio.FrameSamples {
		t.Errorf("transcribed samples = %d, want %d", got, 16*audio.FrameSamples)
	}
}

func TestGate_ShortUtteranceDiscarded(t *testing.T) {
	t.Parallel()

	script := &eventScript{}
	script.frames(4, true)
	vs := &vadmock.Session{Events: script.events}
	engine := &vadmock.Engine{Session: vs}

	asrp := &asrmock.Provider{Text: "不该识别"}
	s, _ := newTestSession(t, Config{}, Providers{VAD: engine, ASR: asrp, LLM: chatScript("嗯。")})

	ctx := context.Background()
	for _, frame := range encodeTestFrames(t, 6) {
		s.HandleAudio(ctx, frame)
	}

	time.Sleep(50 * time.Millisecond)
	if got := asrp.CallCount(); got != 0 {
		t.Fatalf("Transcribe calls = %d, want 0 for a blip", got)
	}
	if s.replying.Load() {
		t.Error("replying set for a discarded blip")
	}
	if vs.ResetCalls == 0 {
		t.Error("vad session not reset after utterance end")
	}
}

func TestGate_DropsAudioWhileReplying(t *testing.T) {
	t.Parallel()

	vs := &vadmock.Session{Default: vad.Event{Voice: true}}
	engine := &vadmock.Engine{Session: vs}
	s, _ := newTestSession(t, Config{}, Providers{VAD: engine})
	s.replying.Store(true)

	ctx := context.Background()
	for _, frame := range encodeTestFrames(t, 5) {
		s.HandleAudio(ctx, frame)
	}

	if len(vs.Windows) != 0 {
		t.Fatalf("vad saw %d windows while replying, want 0", len(vs.Windows))
	}
}

func TestGate_ManualCaptureFlushesOnStop(t *testing.T) {
	t.Parallel()

	asrp := &asrmock.Provider{Text: "手动录音的内容"}
	lm := chatScript("收到。")
	// No VAD engine: manual mode only.
	s, conn := newTestSession(t, Config{}, Providers{ASR: asrp, LLM: lm})

	ctx := context.Background()
	s.HandleText(ctx, []byte(`{"type":"listen","state":"start","mode":"manual"}`))
	for _, frame := range encodeTestFrames(t, 8) {
		s.HandleAudio(ctx, frame)
	}
	s.HandleText(ctx, []byte(`{"type":"listen","state":"stop"}`))

	waitFor(t, 3*time.Second, func() bool {
		return len(conn.framesOfType(t, "stt")) > 0
	}, "manual capture never dispatched")

	if got := asrp.Calls[0].Samples; got != 8*audio.FrameSamples {
		t.Errorf("transcribed samples = %d, want %d", got, 8*audio.FrameSamples)
	}
}

func TestGate_NoEngineNoManualIsInert(t *testing.T) {
	t.Parallel()

	asrp := &asrmock.Provider{Text: "不该识别"}
	s, _ := newTestSession(t, Config{}, Providers{ASR: asrp})

	ctx := context.Background()
	for _, frame := range encodeTestFrames(t, 5) {
		s.HandleAudio(ctx, frame)
	}

	time.Sleep(50 * time.Millisecond)
	if got := asrp.CallCount(); got != 0 {
		t.Fatalf("Transcribe calls = %d, want 0", got)
	}
}
