package audio

// Int16ToBytes converts int16 PCM samples to little-endian bytes.
func Int16ToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// BytesToInt16 converts little-endian bytes to int16 PCM samples.
// A trailing odd byte is ignored.
func BytesToInt16(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}

// Int16ToFloat32 converts int16 PCM samples to float32 in [-1, 1), the input
// format expected by the VAD model.
func Int16ToFloat32(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, s := range pcm {
		out[i] = float32(s) / 32768
	}
	return out
}

// ResampleMono16 resamples mono int16 PCM from one sample rate to another
// using linear interpolation. Returns the input unchanged when the rates
// match. Quality is adequate for speech; TTS providers that return 24 kHz
// PCM are brought down to the pipeline rate with this.
func ResampleMono16(pcm []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate || len(pcm) == 0 {
		return pcm
	}
	outLen := int(int64(len(pcm)) * int64(toRate) / int64(fromRate))
	if outLen == 0 {
		return nil
	}
	out := make([]int16, outLen)
	ratio := float64(fromRate) / float64(toRate)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(pcm)-1 {
			out[i] = pcm[len(pcm)-1]
			continue
		}
		frac := pos - float64(idx)
		a := float64(pcm[idx])
		b := float64(pcm[idx+1])
		out[i] = int16(a + (b-a)*frac)
	}
	return out
}

// StereoToMono downmixes interleaved stereo int16 PCM to mono by averaging
// each L/R pair.
func StereoToMono(pcm []int16) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		l := int32(pcm[i*2])
		r := int32(pcm[i*2+1])
		out[i] = int16((l + r) / 2)
	}
	return out
}
