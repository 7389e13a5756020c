// Package session implements the per-connection conversation pipeline: the
// inbound frame router, the VAD gate and utterance buffer, the dispatch loop
// that streams LLM output through the segmenter, and the speaker that paces
// synthesized audio back to the device.
//
// One [Session] owns one device WebSocket. The server's read loop feeds
// frames in via [Session.HandleText] and [Session.HandleAudio]; everything
// the session sends back goes through a single serialized writer, so outbound
// frame order is deterministic regardless of which goroutine produced a
// frame.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/voxhive/voxhive/internal/dialogue"
	"github.com/voxhive/voxhive/internal/iot"
	"github.com/voxhive/voxhive/internal/music"
	"github.com/voxhive/voxhive/internal/observe"
	"github.com/voxhive/voxhive/internal/tools"
	"github.com/voxhive/voxhive/pkg/provider/asr"
	"github.com/voxhive/voxhive/pkg/provider/intent"
	"github.com/voxhive/voxhive/pkg/provider/llm"
	"github.com/voxhive/voxhive/pkg/provider/memory"
	"github.com/voxhive/voxhive/pkg/provider/tts"
	"github.com/voxhive/voxhive/pkg/provider/vad"
	"github.com/voxhive/voxhive/pkg/types"
)

const (
	// maxWorkers caps concurrent synthesis jobs per session.
	maxWorkers = 10

	// writeTimeout bounds a single outbound WebSocket write.
	writeTimeout = 10 * time.Second
)

// Conn abstracts the device WebSocket so the pipeline can be tested against
// a recorded connection.
type Conn interface {
	// WriteText sends one JSON text frame.
	WriteText(ctx context.Context, data []byte) error

	// WriteBinary sends one Opus audio frame.
	WriteBinary(ctx context.Context, data []byte) error

	// Close closes the connection with a normal status.
	Close() error
}

// Providers bundles the pipeline stages a session talks to. VAD, Intent, and
// Memory may be nil; ASR, LLM, and TTS are required.
type Providers struct {
	VAD    vad.Engine
	ASR    asr.Provider
	LLM    llm.Provider
	TTS    tts.Provider
	Intent intent.Provider
	Memory memory.Provider
}

// Config tunes one session's behaviour.
type Config struct {
	// Prompt seeds the transcript's system turn.
	Prompt string

	// Welcome is merged into the hello reply.
	Welcome map[string]any

	// ExitCommands end the session when an utterance matches one after
	// punctuation stripping.
	ExitCommands []string

	// IdleTimeout triggers the valedictory turn after this long without
	// voice. Zero disables the idle check.
	IdleTimeout time.Duration

	// TTSTimeout bounds synthesis of one segment; on expiry the segment is
	// skipped and the reply continues.
	TTSTimeout time.Duration

	// SpeakerVolume is pushed via SetVolume when a Speaker descriptor
	// registers. Zero means the 100 default.
	SpeakerVolume int

	// Library serves the play-music intent. May be nil.
	Library *music.Library

	// Host supplies process-wide tools (MCP servers). May be nil.
	Host *tools.Host
}

// Session is the per-connection pipeline state.
type Session struct {
	id       string
	deviceID string
	conn     Conn
	cfg      Config
	prov     Providers

	dialogue *dialogue.Dialogue
	registry *iot.Registry
	tools    *tools.SessionTools
	metrics  *observe.Metrics
	log      *slog.Logger

	// workers caps concurrent synthesis jobs.
	workers *semaphore.Weighted

	// writeMu serializes all outbound frames.
	writeMu sync.Mutex

	// aborted is set by an abort frame and cleared when the next reply
	// starts. The speaker checks it before every audio frame.
	aborted atomic.Bool

	// replying is true from utterance dispatch until the reply's audio is
	// fully emitted. The gate drops inbound audio while it is set.
	replying atomic.Bool

	// closeAfterReply requests teardown once the current reply finishes.
	closeAfterReply atomic.Bool

	// volatileMu guards the small mutable fields below.
	volatileMu      sync.Mutex
	listenMode      string // protocol.ModeAuto or ModeManual
	manualCapturing bool
	valedictoryDone bool
	helloReceived   bool

	// pendingMusic holds frames stashed by the play_music tool for the
	// dispatcher to flush into the current reply.
	pendingMusic [][]byte

	gate *vadGate

	// lastVoice is the unix-nano time of the last voiced frame (or session
	// start); the idle ticker compares against it.
	lastVoice atomic.Int64

	// idleTick is the idle watchdog poll interval; shortened in tests.
	idleTick time.Duration

	closeOnce sync.Once
	closedCh  chan struct{}
}

// New creates a session over conn. The VAD session (when a VAD engine is
// configured) is created eagerly so a broken model surfaces at connect time.
func New(conn Conn, deviceID string, cfg Config, prov Providers) (*Session, error) {
	if cfg.TTSTimeout <= 0 {
		cfg.TTSTimeout = 10 * time.Second
	}

	s := &Session{
		id:       uuid.NewString(),
		deviceID: deviceID,
		conn:     conn,
		cfg:      cfg,
		prov:     prov,
		dialogue: dialogue.New(cfg.Prompt),
		registry: iot.NewRegistry(),
		metrics:  observe.DefaultMetrics(),
		workers:  semaphore.NewWeighted(maxWorkers),
		idleTick: time.Second,
		closedCh: make(chan struct{}),
	}
	s.log = slog.With("session_id", s.id, "device_id", deviceID)
	s.listenMode = ""
	s.lastVoice.Store(time.Now().UnixNano())

	s.tools = tools.NewSessionTools(cfg.Host)
	s.registerBuiltinTools()

	g, err := newVADGate(s, prov.VAD)
	if err != nil {
		return nil, fmt.Errorf("session: create vad gate: %w", err)
	}
	s.gate = g
	return s, nil
}

// ID returns the server-assigned session ID.
func (s *Session) ID() string { return s.id }

// DeviceID returns the connecting device's ID.
func (s *Session) DeviceID() string { return s.deviceID }

// Start launches the idle watchdog. ctx cancellation stops it.
func (s *Session) Start(ctx context.Context) {
	s.metrics.ActiveSessions.Add(ctx, 1)
	if s.cfg.IdleTimeout > 0 {
		go s.idleWatch(ctx)
	}
}

// idleWatch injects the valedictory turn once the device has been silent for
// the configured timeout, then requests teardown after the farewell is
// spoken.
func (s *Session) idleWatch(ctx context.Context) {
	ticker := time.NewTicker(s.idleTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closedCh:
			return
		case <-ticker.C:
			if s.replying.Load() {
				continue
			}
			idle := time.Since(time.Unix(0, s.lastVoice.Load()))
			if idle < s.cfg.IdleTimeout {
				continue
			}
			s.volatileMu.Lock()
			already := s.valedictoryDone
			s.valedictoryDone = true
			s.volatileMu.Unlock()
			if already {
				continue
			}
			s.log.Info("idle timeout reached, speaking valedictory")
			s.closeAfterReply.Store(true)
			go s.dispatch(ctx, valedictoryPrompt, dispatchOpts{skipIntent: true, skipEcho: true})
		}
	}
}

// touchVoice records voice activity for the idle watchdog.
func (s *Session) touchVoice() {
	s.lastVoice.Store(time.Now().UnixNano())
}

// sendJSON marshals v and writes it as a text frame. Writes are serialized
// across goroutines.
func (s *Session) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session: marshal outbound frame: %w", err)
	}
	return s.sendText(data)
}

// sendText writes one raw text frame.
func (s *Session) sendText(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteText(ctx, data)
}

// sendAudio writes one Opus frame.
func (s *Session) sendAudio(frame []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteBinary(ctx, frame)
}

// HandleAudio feeds one inbound Opus frame to the VAD gate. Frames arriving
// while a reply is being emitted are dropped so barge-in requires an explicit
// abort frame.
func (s *Session) HandleAudio(ctx context.Context, frame []byte) {
	if s.replying.Load() {
		return
	}
	s.gate.ingest(ctx, frame)
}

// Close tears the session down: saves conversation memory, releases the VAD
// session, and closes the connection. Safe to call multiple times.
func (s *Session) Close(ctx context.Context) {
	s.closeOnce.Do(func() {
		close(s.closedCh)
		s.metrics.ActiveSessions.Add(ctx, -1)

		if s.prov.Memory != nil {
			transcript := s.dialogue.Messages()
			if hasConversation(transcript) {
				saveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if err := s.prov.Memory.Save(saveCtx, s.deviceID, transcript); err != nil {
					s.log.Warn("saving conversation memory failed", "error", err)
				}
				cancel()
			}
		}
		if s.gate != nil {
			s.gate.close()
		}
		if err := s.conn.Close(); err != nil {
			s.log.Debug("closing connection", "error", err)
		}
		s.log.Info("session closed", "turns", s.dialogue.Len())
	})
}

// hasConversation reports whether the transcript contains at least one user
// and one assistant turn worth remembering.
func hasConversation(transcript []types.Message) bool {
	var user, assistant bool
	for _, m := range transcript {
		switch m.Role {
		case "user":
			if m.Content != "" {
				user = true
			}
		case "assistant":
			if m.Content != "" {
				assistant = true
			}
		}
	}
	return user && assistant
}
