// Package mock provides a test double for the stt.Engine interface.
//
// Example:
//
//	e := &mock.Engine{Segments: []stt.Segment{{Text: " Hello"}}}
//	segs, err := e.Transcribe(ctx, samples, stt.Config{})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/notemate/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Engine.Transcribe.
type TranscribeCall struct {
	// Samples is a copy of the audio passed to Transcribe.
	Samples []float32
	// Cfg is the Config passed to Transcribe.
	Cfg stt.Config
}

// Engine is a mock implementation of stt.Engine.
type Engine struct {
	mu sync.Mutex

	// Segments is returned by Transcribe.
	Segments []stt.Segment

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Calls records every invocation of Transcribe in order.
	Calls []TranscribeCall
}

// Transcribe records the call and returns Segments, Err.
func (e *Engine) Transcribe(_ context.Context, samples []float32, cfg stt.Config) ([]stt.Segment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := make([]float32, len(samples))
	copy(cp, samples)
	e.Calls = append(e.Calls, TranscribeCall{Samples: cp, Cfg: cfg})
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([]stt.Segment, len(e.Segments))
	copy(out, e.Segments)
	return out, nil
}

// CallCount returns the number of recorded Transcribe calls.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Calls)
}

// Ensure Engine implements stt.Engine at compile time.
var _ stt.Engine = (*Engine)(nil)
