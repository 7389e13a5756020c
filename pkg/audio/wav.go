package audio

import (
	"encoding/binary"
	"fmt"
)

// DecodeWAV parses a RIFF/WAVE file containing 16-bit PCM and returns the
// samples together with the source sample rate and channel count. Only
// uncompressed PCM (format tag 1) is supported.
func DecodeWAV(data []byte) (pcm []int16, sampleRate, channels int, err error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, 0, fmt.Errorf("audio: not a RIFF/WAVE file")
	}

	var fmtFound bool
	var bitsPerSample int
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			return nil, 0, 0, fmt.Errorf("audio: truncated wav chunk %q", id)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, 0, fmt.Errorf("audio: short fmt chunk")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, 0, 0, fmt.Errorf("audio: unsupported wav format tag %d", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			fmtFound = true
		case "data":
			if !fmtFound {
				return nil, 0, 0, fmt.Errorf("audio: wav data chunk before fmt chunk")
			}
			if bitsPerSample != 16 {
				return nil, 0, 0, fmt.Errorf("audio: unsupported wav bit depth %d", bitsPerSample)
			}
			return BytesToInt16(data[body : body+size]), sampleRate, channels, nil
		}
		// Chunks are word-aligned.
		off = body + size + size%2
	}
	return nil, 0, 0, fmt.Errorf("audio: wav data chunk not found")
}

// EncodeWAV wraps mono 16-bit PCM samples in a minimal RIFF/WAVE container.
// Used when uploading utterances to HTTP transcription APIs.
func EncodeWAV(pcm []int16, sampleRate int) []byte {
	dataLen := len(pcm) * 2
	buf := make([]byte, 44+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                   // bits per sample

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	copy(buf[44:], Int16ToBytes(pcm))
	return buf
}
