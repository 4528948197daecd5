// Package audio provides sample-level conversions shared by the capture and
// transcription stages. Recorded audio is stored as 16-bit PCM; speech models
// consume normalised float32 mono samples at their own fixed rate.
package audio

import "fmt"

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns a human-readable form such as "44100Hz mono".
func (f Format) String() string {
	return formatString(f.SampleRate, f.Channels)
}

// Int16ToFloat32 converts signed 16-bit samples to float32 normalised to the
// range [-1.0, 1.0).
func Int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768.0
	}
	return out
}

// IntToFloat32 normalises integer samples of the given bit depth to float32.
// A bitDepth of zero or less is treated as 16. 8-bit samples are unsigned
// with silence at 128, as stored in WAV files.
func IntToFloat32(samples []int, bitDepth int) []float32 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	half := int64(1) << (bitDepth - 1)
	var offset int64
	if bitDepth == 8 {
		offset = half
	}
	scale := float32(half)
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(int64(s)-offset) / scale
	}
	return out
}

// DownmixFloat32 averages interleaved multi-channel samples into mono. If
// channels is 1 or less the input is returned unchanged. A trailing partial
// frame is dropped.
func DownmixFloat32(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			sum += samples[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// ResampleFloat32 resamples mono samples from srcRate to dstRate using linear
// interpolation. If the rates match or either is invalid, the input is
// returned unchanged.
func ResampleFloat32(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 {
		return samples
	}
	if srcRate == dstRate || len(samples) < 2 {
		return samples
	}
	dstSamples := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstSamples == 0 {
		return nil
	}

	out := make([]float32, dstSamples)
	ratio := float64(srcRate) / float64(dstRate)

	for i := range dstSamples {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		s0 := samples[srcIdx]
		s1 := s0
		if srcIdx+1 < len(samples) {
			s1 = samples[srcIdx+1]
		}
		out[i] = s0*(1-frac) + s1*frac
	}
	return out
}

// Float32ToPCM16 converts normalised float32 samples to 16-bit signed
// little-endian PCM bytes, clamping out-of-range values.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := s * 32767
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		sample := int16(v)
		out[i*2] = byte(sample)
		out[i*2+1] = byte(sample >> 8)
	}
	return out
}

// formatString returns a human-readable string for a sample rate and channel count,
// e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
