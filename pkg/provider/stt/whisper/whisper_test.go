package whisper_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/notemate/pkg/provider/stt"
	"github.com/MrWong99/notemate/pkg/provider/stt/whisper"
)

// ---- helpers ----------------------------------------------------------------

// inferenceRequest captures what the mock server received.
type inferenceRequest struct {
	language       string
	model          string
	responseFormat string
	fileSize       int
}

// newMockServer creates a test server that responds to POST /inference with
// the given JSON body and records each request it matched.
func newMockServer(t *testing.T, response any) (*httptest.Server, func() []inferenceRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []inferenceRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rec := inferenceRequest{
			language:       r.FormValue("language"),
			model:          r.FormValue("model"),
			responseFormat: r.FormValue("response_format"),
		}
		if f, _, err := r.FormFile("file"); err == nil {
			data, _ := io.ReadAll(f)
			rec.fileSize = len(data)
			f.Close()
		}
		mu.Lock()
		reqs = append(reqs, rec)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []inferenceRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]inferenceRequest(nil), reqs...)
	}
}

func oneSecond() []float32 {
	return make([]float32, stt.SampleRate)
}

// ---- construction -----------------------------------------------------------

func TestNew_EmptyServerURL_ReturnsError(t *testing.T) {
	_, err := whisper.New("")
	if err == nil {
		t.Fatal("expected error for empty serverURL, got nil")
	}
}

func TestNew_WithOptions_DoesNotError(t *testing.T) {
	e, err := whisper.New("http://localhost:8080",
		whisper.WithModel("base.en"),
		whisper.WithLanguage("de"),
		whisper.WithTimeout(10*time.Second),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e == nil {
		t.Fatal("expected non-nil engine")
	}
}

// ---- transcription ----------------------------------------------------------

func TestTranscribe_ParsesSegments(t *testing.T) {
	t.Parallel()
	srv, requests := newMockServer(t, map[string]any{
		"text": " Hello there. General Kenobi.",
		"segments": []map[string]any{
			{"text": " Hello there.", "start": 0.0, "end": 1.5},
			{"text": " General Kenobi.", "start": 1.5, "end": 3.25},
		},
	})
	e, _ := whisper.New(srv.URL+"/", whisper.WithModel("small"))

	segs, err := e.Transcribe(context.Background(), oneSecond(), stt.Config{Language: "en"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if segs[1].Text != " General Kenobi." {
		t.Errorf("segment text: got %q", segs[1].Text)
	}
	if segs[1].Start != 1500*time.Millisecond || segs[1].End != 3250*time.Millisecond {
		t.Errorf("segment timing: got %v-%v", segs[1].Start, segs[1].End)
	}

	reqs := requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	r := reqs[0]
	if r.language != "en" {
		t.Errorf("language: got %q, want en", r.language)
	}
	if r.model != "small" {
		t.Errorf("model: got %q, want small", r.model)
	}
	if r.responseFormat != "verbose_json" {
		t.Errorf("response_format: got %q", r.responseFormat)
	}
	// 44 byte header plus 2 bytes per sample.
	if want := 44 + 2*stt.SampleRate; r.fileSize != want {
		t.Errorf("uploaded file size: got %d, want %d", r.fileSize, want)
	}
}

func TestTranscribe_DefaultLanguageIsAuto(t *testing.T) {
	t.Parallel()
	srv, requests := newMockServer(t, map[string]any{"text": ""})
	e, _ := whisper.New(srv.URL)

	if _, err := e.Transcribe(context.Background(), oneSecond(), stt.Config{}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got := requests()[0].language; got != "auto" {
		t.Errorf("language: got %q, want auto", got)
	}
}

func TestTranscribe_TextOnlyResponseBecomesOneSegment(t *testing.T) {
	t.Parallel()
	srv, _ := newMockServer(t, map[string]any{"text": "just text"})
	e, _ := whisper.New(srv.URL)

	segs, err := e.Transcribe(context.Background(), oneSecond(), stt.Config{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segs) != 1 || segs[0].Text != "just text" {
		t.Fatalf("expected single segment, got %+v", segs)
	}
	if segs[0].End != time.Second {
		t.Errorf("segment end: got %v, want 1s", segs[0].End)
	}
}

func TestTranscribe_EmptyResponse_ProducesNoSegments(t *testing.T) {
	t.Parallel()
	srv, _ := newMockServer(t, map[string]any{"text": "  "})
	e, _ := whisper.New(srv.URL)

	segs, err := e.Transcribe(context.Background(), oneSecond(), stt.Config{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(segs) != 0 {
		t.Errorf("expected no segments, got %+v", segs)
	}
}

func TestTranscribe_EmptySamples_SkipsRequest(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()
	e, _ := whisper.New(srv.URL)

	segs, err := e.Transcribe(context.Background(), nil, stt.Config{})
	if err != nil || len(segs) != 0 {
		t.Fatalf("expected empty result, got %v, %v", segs, err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no HTTP calls, got %d", calls.Load())
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()
	e, _ := whisper.New(srv.URL)

	_, err := e.Transcribe(context.Background(), oneSecond(), stt.Config{})
	if err == nil {
		t.Fatal("expected error for HTTP 500")
	}
	if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "model not loaded") {
		t.Errorf("error should carry status and body, got %v", err)
	}
}

func TestTranscribe_MalformedJSON(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()
	e, _ := whisper.New(srv.URL)

	if _, err := e.Transcribe(context.Background(), oneSecond(), stt.Config{}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestTranscribe_CancelledContext(t *testing.T) {
	t.Parallel()
	e, _ := whisper.New("http://127.0.0.1:1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Transcribe(ctx, oneSecond(), stt.Config{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
