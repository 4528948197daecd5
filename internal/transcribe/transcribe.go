// Package transcribe turns recorded waveform files into plain-text
// transcripts.
//
// The waveform is decoded, mixed down to mono, resampled to the rate expected
// by the speech engine and handed over in one piece. The recognised segments
// are joined into a single line of text and persisted as
// transcript_<timestamp>.txt.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-audio/wav"

	"github.com/MrWong99/notemate/internal/outfile"
	"github.com/MrWong99/notemate/pkg/audio"
	"github.com/MrWong99/notemate/pkg/provider/stt"
)

// FilePrefix is the file name prefix of transcript files.
const FilePrefix = "transcript"

// ErrTranscription is returned, wrapped, for every transcription failure:
// unreadable or undecodable audio and speech engine errors alike.
var ErrTranscription = errors.New("transcription failed")

// Transcript is the result of a successful transcription.
type Transcript struct {
	// Text is the joined, trimmed transcript. Empty for silent audio.
	Text string

	// Path is the transcript file that was written.
	Path string

	// AudioPath is the waveform file the transcript was produced from.
	AudioPath string

	// Segments are the raw segments returned by the engine.
	Segments []stt.Segment

	// Duration is the length of the decoded audio.
	Duration time.Duration
}

// Option configures a [Transcriber].
type Option func(*Transcriber)

// WithLanguage sets the language hint passed to the engine. Empty or "auto"
// lets the engine detect the language.
func WithLanguage(lang string) Option {
	return func(t *Transcriber) { t.language = lang }
}

// Transcriber runs a speech engine over waveform files.
type Transcriber struct {
	engine   stt.Engine
	dir      *outfile.Dir
	language string
}

// New returns a Transcriber that writes transcripts into dir.
func New(engine stt.Engine, dir *outfile.Dir, opts ...Option) *Transcriber {
	t := &Transcriber{engine: engine, dir: dir}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Transcribe converts the waveform file at path into text and writes it to a
// new transcript file. No file is written when decoding or recognition fails.
func (t *Transcriber) Transcribe(ctx context.Context, path string) (*Transcript, error) {
	samples, dur, err := loadSamples(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTranscription, err)
	}

	segments, err := t.engine.Transcribe(ctx, samples, stt.Config{Language: t.language})
	if err != nil {
		return nil, fmt.Errorf("%w: speech engine: %w", ErrTranscription, err)
	}

	text := JoinSegments(segments)
	out, err := t.dir.WriteText(FilePrefix, ".txt", text)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	slog.Info("transcript saved",
		"path", out,
		"audio", path,
		"segments", len(segments),
		"chars", len(text),
	)
	return &Transcript{
		Text:      text,
		Path:      out,
		AudioPath: path,
		Segments:  segments,
		Duration:  dur,
	}, nil
}

// JoinSegments trims each segment text, drops empty ones and joins the rest
// with single spaces.
func JoinSegments(segments []stt.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if txt := strings.TrimSpace(s.Text); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, " ")
}

// loadSamples decodes a PCM WAV file into mono float32 samples at
// [stt.SampleRate].
func loadSamples(path string) ([]float32, time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, 0, fmt.Errorf("%q is not a valid WAV file", path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode %q: %w", path, err)
	}

	rate := int(d.SampleRate)
	channels := int(d.NumChans)
	if buf.Format != nil {
		if buf.Format.SampleRate > 0 {
			rate = buf.Format.SampleRate
		}
		if buf.Format.NumChannels > 0 {
			channels = buf.Format.NumChannels
		}
	}
	if rate <= 0 {
		return nil, 0, fmt.Errorf("%q has no sample rate", path)
	}

	mono := audio.DownmixFloat32(audio.IntToFloat32(buf.Data, int(d.BitDepth)), channels)
	dur := time.Duration(len(mono)) * time.Second / time.Duration(rate)
	return audio.ResampleFloat32(mono, rate, stt.SampleRate), dur, nil
}
