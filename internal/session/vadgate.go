package session

import (
	"context"
	"fmt"
	"time"

	"github.com/voxhive/voxhive/internal/protocol"
	"github.com/voxhive/voxhive/pkg/audio"
	"github.com/voxhive/voxhive/pkg/provider/vad"
)

const (
	// vadWindowSamples is the analysis window fed to the VAD model.
	vadWindowSamples = 512

	// vadThreshold is the speech probability cutoff.
	vadThreshold = 0.5

	// vadMinSilenceMs is how long speech must pause before an utterance ends.
	vadMinSilenceMs = 100

	// prerollFrames is how many frames preceding voice onset are prepended
	// to the utterance, so a soft first syllable is not clipped.
	prerollFrames = 5

	// minUtteranceFrames discards blips shorter than this many frames
	// (600 ms) without invoking the recognizer.
	minUtteranceFrames = 10
)

// vadGate turns the inbound Opus frame stream into complete utterances.
//
// In auto mode a VAD model decides where utterances start and end; in manual
// mode (or when no VAD engine is configured) the device brackets capture with
// listen start/stop frames. Either way the gate hands a complete PCM
// utterance to the dispatcher and suspends while the reply is in flight.
//
// The gate is only touched from the session's read loop, so it needs no
// locking of its own.
type vadGate struct {
	s   *Session
	dec *audio.Decoder
	vs  vad.Session // nil when no VAD engine is configured

	window    []float32 // samples pending VAD analysis
	preroll   [][]int16 // recent frames while idle, oldest first
	utterance []int16
	frames    int
	voicing   bool
}

// newVADGate creates the gate. engine may be nil; the gate then supports
// manual capture only.
func newVADGate(s *Session, engine vad.Engine) (*vadGate, error) {
	dec, err := audio.NewDecoder()
	if err != nil {
		return nil, fmt.Errorf("session: create opus decoder: %w", err)
	}
	g := &vadGate{s: s, dec: dec}

	if engine != nil {
		vs, err := engine.NewSession(vad.Config{
			SampleRate:    audio.SampleRate,
			WindowSamples: vadWindowSamples,
			Threshold:     vadThreshold,
			MinSilenceMs:  vadMinSilenceMs,
		})
		if err != nil {
			return nil, fmt.Errorf("session: create vad session: %w", err)
		}
		g.vs = vs
	}
	return g, nil
}

// ingest consumes one inbound Opus frame.
func (g *vadGate) ingest(ctx context.Context, frame []byte) {
	pcm, err := g.dec.Decode(frame)
	if err != nil {
		g.s.log.Debug("dropping undecodable audio frame", "error", err)
		return
	}

	if g.manualMode() {
		g.ingestManual(pcm)
		return
	}
	if g.vs == nil {
		// No VAD model and the device never opened manual capture.
		return
	}
	g.ingestAuto(ctx, pcm)
}

// manualMode reports whether the device selected manual listen mode.
func (g *vadGate) manualMode() bool {
	g.s.volatileMu.Lock()
	defer g.s.volatileMu.Unlock()
	return g.s.listenMode == protocol.ModeManual
}

// ingestManual buffers frames while capture is open.
func (g *vadGate) ingestManual(pcm []int16) {
	g.s.volatileMu.Lock()
	capturing := g.s.manualCapturing
	g.s.volatileMu.Unlock()
	if !capturing {
		return
	}
	g.utterance = append(g.utterance, pcm...)
	g.frames++
	g.s.touchVoice()
}

// ingestAuto runs the VAD state machine over one frame.
func (g *vadGate) ingestAuto(ctx context.Context, pcm []int16) {
	haveVoice := g.frameHasVoice(pcm)

	if haveVoice {
		g.s.touchVoice()
	}

	switch {
	case !g.voicing && haveVoice:
		// Voice onset: seed the utterance with the pre-roll so the first
		// syllable survives the detector's reaction time.
		g.voicing = true
		g.utterance = g.utterance[:0]
		for _, pre := range g.preroll {
			g.utterance = append(g.utterance, pre...)
		}
		g.frames = len(g.preroll)
		g.preroll = g.preroll[:0]
		g.utterance = append(g.utterance, pcm...)
		g.frames++

	case g.voicing && haveVoice:
		g.utterance = append(g.utterance, pcm...)
		g.frames++

	case g.voicing && !haveVoice:
		// Trailing frame is kept so the utterance does not end mid-word.
		g.utterance = append(g.utterance, pcm...)
		g.frames++
		g.endUtterance(ctx)

	default:
		g.pushPreroll(pcm)
	}
}

// frameHasVoice feeds the frame through the analysis windows and reports
// whether any window contained speech.
func (g *vadGate) frameHasVoice(pcm []int16) bool {
	g.window = append(g.window, audio.Int16ToFloat32(pcm)...)

	voice := false
	for len(g.window) >= vadWindowSamples {
		ev, err := g.vs.ProcessWindow(g.window[:vadWindowSamples])
		g.window = g.window[vadWindowSamples:]
		if err != nil {
			g.s.log.Debug("vad window failed", "error", err)
			continue
		}
		if ev.Voice {
			voice = true
		}
	}
	return voice
}

// pushPreroll keeps the last prerollFrames decoded frames while idle.
func (g *vadGate) pushPreroll(pcm []int16) {
	frame := make([]int16, len(pcm))
	copy(frame, pcm)
	g.preroll = append(g.preroll, frame)
	if len(g.preroll) > prerollFrames {
		g.preroll = g.preroll[1:]
	}
}

// endUtterance closes the current utterance and hands it to the dispatcher,
// unless it is too short to be real speech.
func (g *vadGate) endUtterance(ctx context.Context) {
	g.voicing = false
	frames := g.frames
	pcm := make([]int16, len(g.utterance))
	copy(pcm, g.utterance)
	g.utterance = g.utterance[:0]
	g.frames = 0
	if g.vs != nil {
		if err := g.vs.Reset(); err != nil {
			g.s.log.Debug("vad reset failed", "error", err)
		}
	}

	if frames < minUtteranceFrames {
		g.s.metrics.DiscardedUtterances.Add(ctx, 1)
		g.s.log.Debug("discarding short utterance", "frames", frames)
		return
	}

	// Suspend ingest before the recognizer runs; the gate reopens when the
	// reply's audio has been fully emitted.
	g.s.replying.Store(true)
	go g.s.processUtterance(ctx, pcm, time.Now())
}

// flushManual closes a manual capture window (listen stop) and dispatches
// the buffered audio.
func (g *vadGate) flushManual(ctx context.Context) {
	frames := g.frames
	pcm := make([]int16, len(g.utterance))
	copy(pcm, g.utterance)
	g.utterance = g.utterance[:0]
	g.frames = 0

	if frames == 0 {
		return
	}
	g.s.replying.Store(true)
	go g.s.processUtterance(ctx, pcm, time.Now())
}

// close releases the VAD session.
func (g *vadGate) close() {
	if g.vs != nil {
		g.vs.Close()
	}
}
