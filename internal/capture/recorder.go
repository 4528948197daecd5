// Package capture records microphone audio into timestamped waveform files.
//
// A [Recorder] owns at most one live recording session. Audio chunks are
// handed from the device callback to a single collector goroutine over a
// channel; [Recorder.Stop] closes the stream, waits for the collector to
// drain, and writes all chunks in arrival order to a 16-bit PCM WAV file.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/MrWong99/notemate/internal/outfile"
	"github.com/MrWong99/notemate/pkg/audio"
)

const (
	// DefaultSampleRate is the fixed capture rate in Hz.
	DefaultSampleRate = 44100

	// FilePrefix is the file name prefix of recorded waveform files.
	FilePrefix = "meeting"

	bitDepth      = 16
	wavFormatPCM  = 1
	chunkQueueLen = 256
)

var (
	// ErrEmptyRecording is returned by Stop when no samples were captured.
	// No file is written in that case.
	ErrEmptyRecording = errors.New("capture: empty recording")

	// ErrAlreadyRecording is returned by Start while a session is active.
	ErrAlreadyRecording = errors.New("capture: already recording")
)

// Option configures a [Recorder].
type Option func(*Recorder)

// WithSampleRate sets the capture sample rate in Hz. Defaults to 44100.
func WithSampleRate(rate int) Option {
	return func(r *Recorder) {
		if rate > 0 {
			r.format.SampleRate = rate
		}
	}
}

// Recorder captures mono audio from a [Device]. Start and Stop are its only
// mutators; all methods are safe for concurrent use.
type Recorder struct {
	device Device
	dir    *outfile.Dir
	format audio.Format

	mu      sync.Mutex
	session *session
}

// NewRecorder returns a Recorder that writes recordings into dir.
func NewRecorder(device Device, dir *outfile.Dir, opts ...Option) *Recorder {
	r := &Recorder{
		device: device,
		dir:    dir,
		format: audio.Format{SampleRate: DefaultSampleRate, Channels: 1},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Format returns the fixed capture format.
func (r *Recorder) Format() audio.Format { return r.format }

// Start opens the input stream and begins accumulating audio. It returns as
// soon as the stream is running. Device errors are returned immediately.
func (r *Recorder) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("capture: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		return ErrAlreadyRecording
	}

	s := newSession()
	stream, err := r.device.Open(r.format, s.push)
	if err != nil {
		return fmt.Errorf("capture: open stream: %w", err)
	}
	s.stream = stream

	go s.collect()

	if err := stream.Start(); err != nil {
		s.finish()
		return fmt.Errorf("capture: start stream: %w", err)
	}

	r.session = s
	slog.Info("recording started", "format", r.format.String())
	return nil
}

// Recording reports whether a session is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session != nil
}

// Elapsed returns the duration of audio captured so far in the active
// session, or zero when not recording.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	s := r.session
	r.mu.Unlock()
	if s == nil || r.format.SampleRate <= 0 {
		return 0
	}
	n := s.samples.Load()
	return time.Duration(n) * time.Second / time.Duration(r.format.SampleRate)
}

// Stop ends the active session, writes the captured audio to a new
// meeting_<timestamp>.wav file and returns its path. Calling Stop without
// captured samples, including without a prior Start, returns
// [ErrEmptyRecording] and writes nothing.
func (r *Recorder) Stop() (string, error) {
	r.mu.Lock()
	s := r.session
	r.session = nil
	r.mu.Unlock()

	if s == nil {
		return "", fmt.Errorf("%w: recorder was not started", ErrEmptyRecording)
	}

	chunks := s.finish()
	samples := concat(chunks)
	if len(samples) == 0 {
		return "", ErrEmptyRecording
	}

	path, err := r.writeWAV(samples)
	if err != nil {
		return "", err
	}
	slog.Info("recording saved",
		"path", path,
		"samples", len(samples),
		"duration", time.Duration(len(samples))*time.Second/time.Duration(r.format.SampleRate),
	)
	return path, nil
}

// writeWAV encodes samples as a 16-bit PCM WAV file in the output directory.
// A partially written file is removed on failure.
func (r *Recorder) writeWAV(samples []int16) (string, error) {
	f, err := r.dir.Create(FilePrefix, ".wav")
	if err != nil {
		return "", fmt.Errorf("capture: %w", err)
	}
	path := f.Name()

	fail := func(err error) (string, error) {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("capture: write %q: %w", path, err)
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: r.format.Channels,
			SampleRate:  r.format.SampleRate,
		},
		Data:           data,
		SourceBitDepth: bitDepth,
	}

	enc := wav.NewEncoder(f, r.format.SampleRate, bitDepth, r.format.Channels, wavFormatPCM)
	if err := enc.Write(buf); err != nil {
		return fail(err)
	}
	if err := enc.Close(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("capture: close %q: %w", path, err)
	}
	return path, nil
}

// concat joins chunks in order into a single sample slice.
func concat(chunks [][]int16) []int16 {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	if total == 0 {
		return nil
	}
	out := make([]int16, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// ---- session ----------------------------------------------------------------

// session is one recording. The chunk buffer is owned by the collect
// goroutine until done is closed.
type session struct {
	stream Stream

	queue chan []int16
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once

	chunks  [][]int16
	samples atomic.Int64
}

func newSession() *session {
	return &session{
		queue: make(chan []int16, chunkQueueLen),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// push is the device callback. It copies the chunk and hands it to the
// collector. Chunks arriving after stop are discarded.
func (s *session) push(samples []int16) {
	if len(samples) == 0 {
		return
	}
	c := make([]int16, len(samples))
	copy(c, samples)
	select {
	case s.queue <- c:
	case <-s.stop:
	}
}

// collect appends queued chunks until stop is closed, then drains whatever
// is still queued.
func (s *session) collect() {
	defer close(s.done)
	for {
		select {
		case c := <-s.queue:
			s.append(c)
		case <-s.stop:
			for {
				select {
				case c := <-s.queue:
					s.append(c)
				default:
					return
				}
			}
		}
	}
}

func (s *session) append(c []int16) {
	s.chunks = append(s.chunks, c)
	s.samples.Add(int64(len(c)))
}

// finish closes the stream, stops the collector and returns the buffered
// chunks. Safe to call more than once; later calls return nil.
func (s *session) finish() [][]int16 {
	var chunks [][]int16
	s.once.Do(func() {
		if s.stream != nil {
			if err := s.stream.Close(); err != nil {
				slog.Warn("capture: close stream", "err", err)
			}
		}
		close(s.stop)
		<-s.done
		chunks = s.chunks
		s.chunks = nil
	})
	return chunks
}
