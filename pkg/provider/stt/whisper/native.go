// This file contains the NativeEngine implementation backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/notemate/pkg/provider/stt"
)

// Compile-time assertion that NativeEngine satisfies stt.Engine.
var _ stt.Engine = (*NativeEngine)(nil)

// NativeEngine implements stt.Engine using whisper.cpp Go bindings (CGO).
//
// The model is loaded lazily on the first call to Transcribe and reused for
// every later call until Close. Loading takes seconds for the larger models,
// so the first transcription of a run is noticeably slower than the rest;
// in exchange, starting the application and recording audio never wait on
// the model.
type NativeEngine struct {
	modelPath string
	language  string
	threads   uint

	// load is swapped out in tests.
	load func(path string) (whisperlib.Model, error)

	mu    sync.Mutex
	model whisperlib.Model
}

// NativeOption is a functional option for configuring a NativeEngine.
type NativeOption func(*NativeEngine)

// WithNativeLanguage sets the default language code for transcription
// (e.g., "en", "de"). "auto" enables detection. Defaults to "auto".
func WithNativeLanguage(lang string) NativeOption {
	return func(e *NativeEngine) { e.language = lang }
}

// WithNativeThreads sets the number of CPU threads used for inference.
// Zero keeps the whisper.cpp default.
func WithNativeThreads(n uint) NativeOption {
	return func(e *NativeEngine) { e.threads = n }
}

// NewNative creates a NativeEngine for the whisper.cpp model file at
// modelPath. The file is not opened until the first transcription.
func NewNative(modelPath string, opts ...NativeOption) (*NativeEngine, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	e := &NativeEngine{
		modelPath: modelPath,
		language:  autoLanguage,
		load:      whisperlib.New,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Close releases the whisper model if it was loaded.
func (e *NativeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil
	}
	err := e.model.Close()
	e.model = nil
	return err
}

// loadedModel returns the shared model, loading it on first use.
func (e *NativeEngine) loadedModel() (whisperlib.Model, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model != nil {
		return e.model, nil
	}
	start := time.Now()
	model, err := e.load(e.modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", e.modelPath, err)
	}
	slog.Info("whisper model loaded", "path", e.modelPath, "took", time.Since(start))
	e.model = model
	return model, nil
}

// Transcribe implements stt.Engine. Each call creates its own whisper.cpp
// context from the shared model, so concurrent calls do not interfere.
func (e *NativeEngine) Transcribe(ctx context.Context, samples []float32, cfg stt.Config) ([]stt.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}
	if len(samples) == 0 {
		return nil, nil
	}

	model, err := e.loadedModel()
	if err != nil {
		return nil, err
	}

	// Each context is NOT thread-safe, but the model can be shared across goroutines.
	wctx, err := model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = e.language
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}
	if e.threads > 0 {
		wctx.SetThreads(e.threads)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	var segments []stt.Segment
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		segments = append(segments, stt.Segment{
			Text:  segment.Text,
			Start: segment.Start,
			End:   segment.End,
		})
	}
	return segments, nil
}
