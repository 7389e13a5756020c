// Package audio provides the Opus codec helpers and PCM conversions used by
// the voice pipeline. Devices exchange 60 ms Opus frames at 16 kHz mono; the
// constants below are the single source of truth for that frame shape.
package audio

import (
	"fmt"

	"layeh.com/gopus"
)

const (
	// SampleRate is the pipeline-wide PCM sample rate in Hz.
	SampleRate = 16000

	// Channels is the pipeline-wide channel count (mono).
	Channels = 1

	// FrameDurationMs is the duration of one encoded audio frame.
	FrameDurationMs = 60

	// FrameSamples is the number of PCM samples in one 60 ms frame.
	FrameSamples = SampleRate * FrameDurationMs / 1000 // 960

	// maxFrameBytes bounds the encoded size of a single Opus frame.
	maxFrameBytes = 4000
)

// Decoder wraps a stateful Opus decoder for one inbound device stream.
// Opus decoders carry inter-frame state, so each session needs its own.
// Not safe for concurrent use.
type Decoder struct {
	dec *gopus.Decoder
}

// NewDecoder creates a decoder for the pipeline frame shape.
func NewDecoder() (*Decoder, error) {
	dec, err := gopus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}
	return &Decoder{dec: dec}, nil
}

// Decode decodes one Opus frame into PCM int16 samples.
func (d *Decoder) Decode(frame []byte) ([]int16, error) {
	pcm, err := d.dec.Decode(frame, FrameSamples, false)
	if err != nil {
		return nil, fmt.Errorf("audio: opus decode: %w", err)
	}
	return pcm, nil
}

// Encoder wraps a stateful Opus encoder for one outbound stream.
// Not safe for concurrent use.
type Encoder struct {
	enc *gopus.Encoder
}

// NewEncoder creates an encoder for the pipeline frame shape.
func NewEncoder() (*Encoder, error) {
	enc, err := gopus.NewEncoder(SampleRate, Channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus encoder: %w", err)
	}
	return &Encoder{enc: enc}, nil
}

// Encode encodes exactly one frame of PCM samples. Input shorter than
// FrameSamples is zero-padded to a full frame.
func (e *Encoder) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) > FrameSamples {
		return nil, fmt.Errorf("audio: opus encode: %d samples exceed frame size %d", len(pcm), FrameSamples)
	}
	if len(pcm) < FrameSamples {
		padded := make([]int16, FrameSamples)
		copy(padded, pcm)
		pcm = padded
	}
	frame, err := e.enc.Encode(pcm, FrameSamples, maxFrameBytes)
	if err != nil {
		return nil, fmt.Errorf("audio: opus encode: %w", err)
	}
	return frame, nil
}

// EncodeAll splits pcm into 60 ms frames and encodes each. The trailing
// partial frame, if any, is zero-padded.
func (e *Encoder) EncodeAll(pcm []int16) ([][]byte, error) {
	var frames [][]byte
	for off := 0; off < len(pcm); off += FrameSamples {
		end := off + FrameSamples
		if end > len(pcm) {
			end = len(pcm)
		}
		frame, err := e.Encode(pcm[off:end])
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}
