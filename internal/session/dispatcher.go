package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kaptinlin/jsonrepair"

	"github.com/voxhive/voxhive/internal/music"
	"github.com/voxhive/voxhive/internal/observe"
	"github.com/voxhive/voxhive/internal/protocol"
	"github.com/voxhive/voxhive/internal/textutil"
	"github.com/voxhive/voxhive/internal/tools"
	"github.com/voxhive/voxhive/pkg/provider/intent"
	"github.com/voxhive/voxhive/pkg/provider/llm"
	"github.com/voxhive/voxhive/pkg/types"
)

// valedictoryPrompt is injected as a user turn when the device has been
// silent past the idle timeout, so the farewell comes out in the assistant's
// own voice and style.
const valedictoryPrompt = `请你以"时间过得真快"为开头，用富有感情、依依不舍的话来结束这场对话吧。`

// defaultGoodbye is spoken when a farewell is needed and the model did not
// supply one.
const defaultGoodbye = "再见，期待下次和你聊天。"

// maxToolDepth bounds tool-call recursion within one turn.
const maxToolDepth = 3

// dispatchOpts tunes one dispatch.
type dispatchOpts struct {
	// skipIntent bypasses the intent layer (valedictory, tool re-entry).
	skipIntent bool

	// skipEcho suppresses the stt echo frame (the text was not spoken).
	skipEcho bool

	// turnStart anchors the turn latency metric; zero disables it.
	turnStart time.Time
}

// processUtterance transcribes a completed utterance and dispatches the
// result. Runs on its own goroutine with the gate already suspended.
func (s *Session) processUtterance(ctx context.Context, pcm []int16, turnStart time.Time) {
	ctx, span := observe.StartSpan(ctx, "asr.transcribe")
	start := time.Now()
	text, err := s.prov.ASR.Transcribe(ctx, pcm)
	s.metrics.ASRDuration.Record(ctx, time.Since(start).Seconds())
	span.End()
	if err != nil {
		s.metrics.RecordProviderError(ctx, "asr", "asr")
		s.log.Warn("transcription failed", "error", err)
		s.replying.Store(false)
		return
	}
	if text == "" {
		s.replying.Store(false)
		return
	}
	s.log.Info("utterance recognized", "text", text)
	s.dispatch(ctx, text, dispatchOpts{turnStart: turnStart})
}

// dispatch runs one conversation turn for the given user text. The caller
// must have set replying; dispatch clears it (and the abort flag) when the
// reply has fully played out, and tears the session down if requested.
func (s *Session) dispatch(ctx context.Context, text string, opts dispatchOpts) {
	ctx, span := observe.StartSpan(ctx, "session.turn")
	defer span.End()

	s.replying.Store(true)
	defer func() {
		s.aborted.Store(false)
		s.replying.Store(false)
		if s.closeAfterReply.Load() {
			s.Close(ctx)
		}
	}()

	normalized := textutil.Normalize(text)
	if normalized == "" {
		return
	}

	// Literal exit commands skip the model: a short farewell, then teardown.
	for _, cmd := range s.cfg.ExitCommands {
		if normalized == textutil.Normalize(cmd) {
			s.log.Info("exit command received", "text", text)
			s.closeAfterReply.Store(true)
			if !opts.skipEcho {
				if err := s.sendJSON(protocol.NewSTT(text, s.id)); err != nil {
					s.log.Debug("sending stt echo failed", "error", err)
				}
			}
			r := newReply(s, opts.turnStart)
			r.speak(ctx, Segment{Index: 1, Text: defaultGoodbye})
			r.finish()
			r.wait()
			return
		}
	}

	if s.prov.Intent != nil && !opts.skipIntent {
		s.routeIntent(ctx, text, opts)
		return
	}
	s.chat(ctx, text, opts)
}

// routeIntent classifies the utterance and routes it. Classification
// failures fall through to plain chat.
func (s *Session) routeIntent(ctx context.Context, text string, opts dispatchOpts) {
	var musicNames []string
	if s.cfg.Library != nil {
		musicNames = s.cfg.Library.Files()
	}

	res, err := s.prov.Intent.Detect(ctx, s.dialogue.Recent(2), text, musicNames)
	if err != nil {
		s.log.Warn("intent detection failed, continuing as chat", "error", err)
		res = intent.Result{Action: intent.ActionContinue}
	}
	s.metrics.RecordIntent(ctx, string(res.Action))

	switch res.Action {
	case intent.ActionEnd:
		// Let the model say goodbye in character, then tear down.
		s.closeAfterReply.Store(true)
		s.chat(ctx, text, opts)
	case intent.ActionPlayMusic:
		s.playMusic(ctx, text, res.MusicName, opts)
	default:
		s.chat(ctx, text, opts)
	}
}

// chat runs the full LLM reply pipeline: echo, memory, stream, segment,
// speak. The assistant's final text is appended to the transcript only after
// the reply completed, so an aborted reply leaves no phantom turn.
func (s *Session) chat(ctx context.Context, text string, opts dispatchOpts) {
	if !opts.skipEcho {
		if err := s.sendJSON(protocol.NewSTT(text, s.id)); err != nil {
			s.log.Debug("sending stt echo failed", "error", err)
		}
	}
	if err := s.sendJSON(protocol.NewThinkingCue(s.id)); err != nil {
		s.log.Debug("sending thinking cue failed", "error", err)
	}

	s.dialogue.Put(types.Message{Role: "user", Content: text})

	var mem string
	if s.prov.Memory != nil {
		var err error
		mem, err = s.prov.Memory.Query(ctx, s.deviceID, text)
		if err != nil {
			s.log.Warn("memory query failed", "error", err)
		}
	}
	messages := s.dialogue.MessagesWithMemory(mem)

	r := newReply(s, opts.turnStart)
	var seg Segmenter
	full, err := s.streamTurn(ctx, messages, r, &seg, 0)
	r.finish()
	r.wait()

	if err != nil {
		s.metrics.RecordProviderError(ctx, "llm", "llm")
		s.log.Warn("reply generation failed", "error", err)
		// The device already saw the stt echo and the llm cue; a stop frame
		// resynchronizes it when no audio ever started (the emitter sends its
		// own stop once a segment has played).
		if !r.started {
			if err := s.sendJSON(protocol.NewTTS(protocol.TTSStop, "", s.id)); err != nil {
				s.log.Debug("sending error stop failed", "error", err)
			}
		}
		return
	}
	if full != "" {
		s.dialogue.Put(types.Message{Role: "assistant", Content: full})
	}
	s.metrics.Turns.Add(ctx, 1)
}

// streamTurn consumes one LLM stream, feeding completed segments to the
// speaker as they form. Tool calls suspend segmentation; their results either
// speak directly or re-enter the model with the tool output appended.
// Returns the text that should become the assistant transcript turn.
func (s *Session) streamTurn(ctx context.Context, messages []types.Message, r *reply, seg *Segmenter, depth int) (string, error) {
	req := llm.CompletionRequest{
		Messages: messages,
		Tools:    s.tools.Definitions(),
	}

	ctx, span := observe.StartSpan(ctx, "llm.stream")
	defer span.End()

	start := time.Now()
	chunks, err := s.prov.LLM.StreamCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("session: start completion: %w", err)
	}

	var (
		full          strings.Builder
		toolCalls     []types.ToolCall
		contentIsTool bool
		firstToken    bool
	)

	for chunk := range chunks {
		if chunk.FinishReason == "error" {
			return "", fmt.Errorf("session: completion stream: %s", chunk.Text)
		}
		if len(chunk.ToolCalls) > 0 {
			toolCalls = append(toolCalls, chunk.ToolCalls...)
			continue
		}
		if chunk.Text == "" {
			continue
		}
		if !firstToken {
			firstToken = true
			s.metrics.LLMFirstToken.Record(ctx, time.Since(start).Seconds())
		}

		// Some backends emit tool calls as fenced JSON in the content
		// stream instead of structured deltas. Sniff the opening delta and
		// buffer instead of speaking when it looks like one.
		if full.Len() == 0 {
			t := strings.TrimSpace(chunk.Text)
			if strings.HasPrefix(t, "```") || strings.Contains(t, "<tool_call>") {
				contentIsTool = true
			}
		}
		full.WriteString(chunk.Text)

		if contentIsTool || s.aborted.Load() {
			continue
		}
		for _, segment := range seg.Feed(full.String()) {
			r.speak(ctx, segment)
		}
	}

	if s.aborted.Load() {
		return full.String(), nil
	}

	if len(toolCalls) > 0 || contentIsTool {
		call, err := s.resolveToolCall(toolCalls, full.String())
		if err != nil {
			return "", err
		}
		return s.runToolCall(ctx, messages, r, seg, depth, call)
	}

	text := full.String()
	for _, segment := range seg.Flush(text) {
		r.speak(ctx, segment)
	}
	return text, nil
}

// resolveToolCall normalizes a structured or content-embedded tool call.
func (s *Session) resolveToolCall(structured []types.ToolCall, content string) (types.ToolCall, error) {
	if len(structured) > 0 {
		call := structured[0]
		if call.ID == "" {
			call.ID = uuid.NewString()
		}
		return call, nil
	}

	raw := textutil.ExtractJSON(content)
	if raw == "" {
		return types.ToolCall{}, fmt.Errorf("session: no JSON object in tool-call content %q", content)
	}
	if repaired, err := jsonrepair.JSONRepair(raw); err == nil {
		raw = repaired
	}

	var parsed struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return types.ToolCall{}, fmt.Errorf("session: parse tool-call content: %w", err)
	}
	if parsed.Name == "" {
		return types.ToolCall{}, fmt.Errorf("session: tool-call content without a name: %q", raw)
	}

	args := "{}"
	if parsed.Arguments != nil {
		data, err := json.Marshal(parsed.Arguments)
		if err != nil {
			return types.ToolCall{}, fmt.Errorf("session: re-encode tool arguments: %w", err)
		}
		args = string(data)
	}
	return types.ToolCall{ID: uuid.NewString(), Name: parsed.Name, Arguments: args}, nil
}

// runToolCall executes a tool and routes its result.
func (s *Session) runToolCall(ctx context.Context, messages []types.Message, r *reply, seg *Segmenter, depth int, call types.ToolCall) (string, error) {
	s.log.Info("executing tool", "tool", call.Name, "args", call.Arguments)

	start := time.Now()
	res, err := s.tools.Execute(ctx, call.Name, call.Arguments)
	s.metrics.ToolExecutionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("session: tool %q: %w", call.Name, err)
	}

	switch res.Kind {
	case tools.ActionResponse, tools.ActionNotFound:
		if res.Text != "" {
			r.speak(ctx, seg.Next(res.Text))
		}
		s.playPendingMusic(r, seg)
		return res.Text, nil

	case tools.ActionRequestLLM:
		if depth >= maxToolDepth {
			return "", fmt.Errorf("session: tool recursion limit reached at %q", call.Name)
		}
		callTurn := types.Message{Role: "assistant", ToolCalls: []types.ToolCall{call}}
		resultTurn := types.Message{Role: "tool", ToolCallID: call.ID, Content: res.Text}

		// The round-trip is part of the durable transcript, so the teardown
		// summary sees tool activity too.
		s.dialogue.Put(callTurn)
		s.dialogue.Put(resultTurn)

		next := append(append([]types.Message{}, messages...), callTurn, resultTurn)
		return s.streamTurn(ctx, next, r, seg, depth+1)

	default:
		return "", nil
	}
}

// playPendingMusic flushes frames stashed by the play_music tool into the
// current reply.
func (s *Session) playPendingMusic(r *reply, seg *Segmenter) {
	s.volatileMu.Lock()
	frames := s.pendingMusic
	s.pendingMusic = nil
	s.volatileMu.Unlock()
	if len(frames) == 0 {
		return
	}
	r.speakFrames(seg.Next("").Index, "", frames)
}

// playMusic serves the play-music intent: announce the track, then stream
// its frames through the same reply pipeline.
func (s *Session) playMusic(ctx context.Context, userText, requested string, opts dispatchOpts) {
	lib := s.cfg.Library
	if lib == nil {
		s.chat(ctx, userText, opts)
		return
	}
	file, ok := lib.Match(requested)
	if !ok {
		s.log.Info("music library is empty, replying as chat")
		s.chat(ctx, userText, opts)
		return
	}
	frames, err := lib.LoadFrames(file)
	if err != nil {
		s.log.Warn("loading music failed, replying as chat", "file", file, "error", err)
		s.chat(ctx, userText, opts)
		return
	}

	if !opts.skipEcho {
		if err := s.sendJSON(protocol.NewSTT(userText, s.id)); err != nil {
			s.log.Debug("sending stt echo failed", "error", err)
		}
	}
	s.dialogue.Put(types.Message{Role: "user", Content: userText})

	announcement := music.Announcement(file)
	r := newReply(s, opts.turnStart)
	r.speak(ctx, Segment{Index: 1, Text: announcement})
	r.speakFrames(2, "", frames)
	r.finish()
	r.wait()

	s.dialogue.Put(types.Message{Role: "assistant", Content: announcement})
	s.metrics.Turns.Add(ctx, 1)
	s.log.Info("music played", "file", file)
}
