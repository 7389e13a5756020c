package session

import (
	"context"
	"time"

	"github.com/voxhive/voxhive/internal/protocol"
	"github.com/voxhive/voxhive/pkg/audio"
)

const (
	// frameDuration is the nominal playback time of one Opus frame.
	frameDuration = audio.FrameDurationMs * time.Millisecond

	// paceInterval is the per-frame send interval. Sending slightly faster
	// than real time keeps the device buffer primed without flooding it;
	// the trailing sleep in emit re-aligns with the playback clock.
	paceInterval = frameDuration * 4 / 5

	// jobQueueDepth bounds segments queued ahead of emission.
	jobQueueDepth = 64
)

// speakJob is one segment moving through the synthesis queue. Synthesis runs
// concurrently across jobs; emission consumes jobs strictly in submission
// order, so audio order always matches segment order.
type speakJob struct {
	index  int
	text   string
	frames [][]byte
	err    error

	// ready is closed once frames/err are set.
	ready chan struct{}
}

// reply serializes the audio emission of one assistant reply. The dispatcher
// submits segments as the stream produces them and calls finish after the
// last one; the emitter goroutine plays them in order and sends the tts stop
// frame after the final segment's audio has fully left the socket.
type reply struct {
	s    *Session
	jobs chan *speakJob
	done chan struct{}

	started    bool
	turnStart  time.Time
	firstFrame bool
}

// newReply creates a reply serializer and starts its emitter goroutine.
// turnStart anchors the turn latency metric (end of utterance).
func newReply(s *Session, turnStart time.Time) *reply {
	r := &reply{
		s:         s,
		jobs:      make(chan *speakJob, jobQueueDepth),
		done:      make(chan struct{}),
		turnStart: turnStart,
	}
	go r.run()
	return r
}

// speak queues a segment for synthesis and emission. Synthesis starts
// immediately on a worker slot; emission happens when all prior segments have
// been played.
func (r *reply) speak(ctx context.Context, seg Segment) {
	job := &speakJob{index: seg.Index, text: seg.Text, ready: make(chan struct{})}
	r.jobs <- job

	go func() {
		defer close(job.ready)
		if err := r.s.workers.Acquire(ctx, 1); err != nil {
			job.err = err
			return
		}
		defer r.s.workers.Release(1)

		synthCtx, cancel := context.WithTimeout(ctx, r.s.cfg.TTSTimeout)
		defer cancel()

		start := time.Now()
		frames, err := r.s.prov.TTS.Synthesize(synthCtx, seg.Text)
		if err != nil {
			r.s.metrics.RecordProviderError(ctx, "tts", "tts")
			job.err = err
			return
		}
		r.s.metrics.TTSFirstFrame.Record(ctx, time.Since(start).Seconds())
		job.frames = frames
	}()
}

// speakFrames queues pre-synthesized audio (music playback) with an optional
// spoken label shown in the sentence_start frame.
func (r *reply) speakFrames(index int, text string, frames [][]byte) {
	job := &speakJob{index: index, text: text, frames: frames, ready: make(chan struct{})}
	close(job.ready)
	r.jobs <- job
}

// finish signals that no more segments will be submitted. Queued jobs still
// play out; the stop frame follows the last one.
func (r *reply) finish() {
	close(r.jobs)
}

// wait blocks until the emitter has drained the queue and sent the stop
// frame (or the reply was aborted).
func (r *reply) wait() {
	<-r.done
}

// run is the emitter loop. One goroutine per reply.
func (r *reply) run() {
	defer close(r.done)

	for job := range r.jobs {
		if r.s.aborted.Load() {
			continue // drain without emitting
		}

		select {
		case <-job.ready:
		case <-time.After(r.s.cfg.TTSTimeout):
			r.s.log.Warn("segment synthesis timed out, skipping",
				"index", job.index, "text", job.text)
			continue
		}
		if job.err != nil {
			r.s.log.Warn("segment synthesis failed, skipping",
				"index", job.index, "error", job.err)
			continue
		}
		if len(job.frames) == 0 {
			continue
		}
		r.emit(job)
	}

	if r.started && !r.s.aborted.Load() {
		if err := r.s.sendJSON(protocol.NewTTS(protocol.TTSStop, "", r.s.id)); err != nil {
			r.s.log.Debug("sending tts stop failed", "error", err)
		}
	}
}

// emit plays one job: sentence markers around paced audio frames. The abort
// flag is re-checked before every frame so an abort cuts playback within one
// frame interval.
func (r *reply) emit(job *speakJob) {
	ctx := context.Background()

	if !r.started {
		r.started = true
		if err := r.s.sendJSON(protocol.NewTTS(protocol.TTSStart, "", r.s.id)); err != nil {
			r.s.log.Debug("sending tts start failed", "error", err)
			return
		}
	}
	if !r.firstFrame {
		r.firstFrame = true
		if !r.turnStart.IsZero() {
			r.s.metrics.TurnDuration.Record(ctx, time.Since(r.turnStart).Seconds())
		}
	}

	if err := r.s.sendJSON(protocol.NewTTS(protocol.TTSSentenceStart, job.text, r.s.id)); err != nil {
		r.s.log.Debug("sending sentence_start failed", "error", err)
		return
	}

	start := time.Now()
	sent := 0
	for _, frame := range job.frames {
		if r.s.aborted.Load() {
			return
		}
		if err := r.s.sendAudio(frame); err != nil {
			r.s.log.Debug("sending audio frame failed", "error", err)
			return
		}
		sent++
		time.Sleep(paceInterval)
	}
	// Re-align with the playback clock, minus one frame of headroom so the
	// next segment is queued before the device buffer drains.
	if rem := time.Duration(sent)*frameDuration - time.Since(start) - frameDuration; rem > 0 {
		time.Sleep(rem)
	}

	if err := r.s.sendJSON(protocol.NewTTS(protocol.TTSSentenceEnd, job.text, r.s.id)); err != nil {
		r.s.log.Debug("sending sentence_end failed", "error", err)
	}
}
