package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/voxhive/voxhive/internal/protocol"
	"github.com/voxhive/voxhive/pkg/audio"
)

// defaultSpeakerVolume applies when the config leaves the registration
// volume unset.
const defaultSpeakerVolume = 100

// speakerVolume is the volume pushed to a Speaker capability right after its
// descriptor registers, so a device rebooting mid-conversation comes back
// audible.
func (s *Session) speakerVolume() int {
	if s.cfg.SpeakerVolume > 0 {
		return s.cfg.SpeakerVolume
	}
	return defaultSpeakerVolume
}

// HandleText routes one inbound JSON frame. Frames that do not parse as a
// known message are echoed back verbatim, which keeps debugging consoles and
// older firmware probes harmless.
func (s *Session) HandleText(ctx context.Context, data []byte) {
	var msg protocol.Inbound
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
		s.log.Debug("echoing unrecognized text frame", "frame", string(data))
		if err := s.sendText(data); err != nil {
			s.log.Debug("echo failed", "error", err)
		}
		return
	}

	switch msg.Type {
	case protocol.TypeHello:
		s.handleHello(msg)
	case protocol.TypeAbort:
		s.handleAbort()
	case protocol.TypeListen:
		s.handleListen(ctx, msg)
	case protocol.TypeIoT:
		s.handleIoT(msg)
	default:
		s.log.Debug("ignoring frame of unknown type", "type", msg.Type)
	}
}

// Greet sends the welcome frame. The server calls this right after the
// transport is accepted, so the session id is the first thing a device sees.
func (s *Session) Greet() error {
	return s.sendJSON(s.welcome())
}

// handleHello answers the handshake. A repeated hello gets the same welcome
// again; devices re-handshake after network hiccups.
func (s *Session) handleHello(msg protocol.Inbound) {
	s.volatileMu.Lock()
	s.helloReceived = true
	s.volatileMu.Unlock()

	if msg.AudioParams != nil && msg.AudioParams.SampleRate != 0 &&
		msg.AudioParams.SampleRate != audio.SampleRate {
		s.log.Warn("device announced unexpected sample rate",
			"sample_rate", msg.AudioParams.SampleRate)
	}

	if err := s.sendJSON(s.welcome()); err != nil {
		s.log.Warn("sending welcome failed", "error", err)
	}
}

// welcome builds the hello reply: the fixed transport parameters plus any
// configured extras.
func (s *Session) welcome() map[string]any {
	w := map[string]any{
		"type":       protocol.TypeHello,
		"transport":  "websocket",
		"session_id": s.id,
		"audio_params": map[string]any{
			"format":         "opus",
			"sample_rate":    audio.SampleRate,
			"channels":       audio.Channels,
			"frame_duration": audio.FrameDurationMs,
		},
	}
	for k, v := range s.cfg.Welcome {
		w[k] = v
	}
	return w
}

// handleAbort cuts the current reply. The flag stops the emitter within one
// frame interval; the stop frame tells the device to flush its jitter buffer.
func (s *Session) handleAbort() {
	s.aborted.Store(true)
	s.log.Info("reply aborted by device")
	if err := s.sendJSON(protocol.NewTTS(protocol.TTSStop, "", s.id)); err != nil {
		s.log.Debug("sending abort stop failed", "error", err)
	}
}

// handleListen applies listen mode and capture state changes.
func (s *Session) handleListen(ctx context.Context, msg protocol.Inbound) {
	switch msg.State {
	case protocol.StateStart:
		s.volatileMu.Lock()
		if msg.Mode != "" {
			s.listenMode = msg.Mode
		}
		if s.listenMode == protocol.ModeManual {
			s.manualCapturing = true
		}
		s.volatileMu.Unlock()
		s.touchVoice()

	case protocol.StateStop:
		s.volatileMu.Lock()
		capturing := s.manualCapturing
		s.manualCapturing = false
		s.volatileMu.Unlock()
		if capturing {
			s.gate.flushManual(ctx)
		}

	case protocol.StateDetect:
		// Device-side detection: wake words or typed text arrive as a
		// finished utterance, skipping VAD and recognition entirely.
		if msg.Text == "" {
			return
		}
		s.touchVoice()
		if s.replying.Load() {
			s.log.Debug("dropping detect text while replying", "text", msg.Text)
			return
		}
		s.replying.Store(true)
		go s.dispatch(ctx, msg.Text, dispatchOpts{turnStart: time.Now()})

	default:
		s.log.Debug("ignoring listen frame with unknown state", "state", msg.State)
	}
}

// handleIoT registers capability descriptors and applies state updates.
func (s *Session) handleIoT(msg protocol.Inbound) {
	if len(msg.Descriptors) > 0 {
		s.registry.Register(msg.Descriptors)
		for _, d := range msg.Descriptors {
			if d.Name != "Speaker" {
				continue
			}
			if !s.registry.HasMethod("Speaker", "SetVolume") {
				continue
			}
			cmd, err := s.registry.Invoke("Speaker", "SetVolume",
				map[string]any{"volume": s.speakerVolume()})
			if err != nil {
				continue
			}
			if err := s.sendJSON(protocol.NewIoT(cmd)); err != nil {
				s.log.Debug("sending default volume failed", "error", err)
			}
		}
	}
	if len(msg.States) > 0 {
		applied := s.registry.UpdateStates(msg.States)
		s.log.Debug("device state updated", "applied", applied)
	}
}
