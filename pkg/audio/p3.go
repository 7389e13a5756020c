package audio

import (
	"encoding/binary"
	"fmt"
)

// The .p3 container is the raw frame format used by ESP32 voice firmware:
// a flat sequence of [type:u8][reserved:u8][len:u16 BE][payload] records
// where each payload is one Opus frame already in the pipeline frame shape.

// DecodeP3 splits a .p3 file into its Opus frames. Frames can be sent to a
// device verbatim, which makes .p3 the cheapest music format to serve.
func DecodeP3(data []byte) ([][]byte, error) {
	var frames [][]byte
	off := 0
	for off < len(data) {
		if off+4 > len(data) {
			return nil, fmt.Errorf("audio: truncated p3 header at offset %d", off)
		}
		payloadLen := int(binary.BigEndian.Uint16(data[off+2 : off+4]))
		body := off + 4
		if body+payloadLen > len(data) {
			return nil, fmt.Errorf("audio: truncated p3 frame at offset %d", off)
		}
		frame := make([]byte, payloadLen)
		copy(frame, data[body:body+payloadLen])
		frames = append(frames, frame)
		off = body + payloadLen
	}
	return frames, nil
}

// EncodeP3 packs Opus frames into the .p3 container format.
func EncodeP3(frames [][]byte) []byte {
	size := 0
	for _, f := range frames {
		size += 4 + len(f)
	}
	out := make([]byte, 0, size)
	hdr := make([]byte, 4)
	for _, f := range frames {
		hdr[0], hdr[1] = 0, 0
		binary.BigEndian.PutUint16(hdr[2:4], uint16(len(f)))
		out = append(out, hdr...)
		out = append(out, f...)
	}
	return out
}
