// Package stt defines the Engine interface for speech-to-text backends.
//
// An Engine turns a complete recording into an ordered list of recognised
// segments. Recordings are handed over as 16 kHz mono float32 samples, which
// is the native input format of Whisper-family models; callers are
// responsible for decoding and resampling (see pkg/audio).
package stt

import (
	"context"
	"time"
)

// SampleRate is the sample rate, in Hz, of audio passed to an Engine.
const SampleRate = 16000

// Segment is a contiguous span of recognised speech.
type Segment struct {
	// Text is the recognised text. It may carry leading or trailing
	// whitespace as emitted by the model.
	Text string

	// Start is the offset of the segment from the beginning of the audio.
	Start time.Duration

	// End is the offset at which the segment ends.
	End time.Duration
}

// Config carries recognition hints for a single transcription.
type Config struct {
	// Language is the spoken language code (e.g., "en", "de"). "auto" or an
	// empty string lets the engine detect the language.
	Language string
}

// Engine is the abstraction over any batch speech-to-text backend.
//
// Implementations must be safe for concurrent use.
type Engine interface {
	// Transcribe runs recognition over samples (mono, [SampleRate] Hz,
	// normalised to [-1, 1]) and returns the recognised segments in order.
	// Silence yields an empty slice and a nil error.
	Transcribe(ctx context.Context, samples []float32, cfg Config) ([]Segment, error)
}
