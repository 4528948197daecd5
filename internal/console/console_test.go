package console_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/notemate/internal/app"
	"github.com/MrWong99/notemate/internal/capture"
	"github.com/MrWong99/notemate/internal/console"
	"github.com/MrWong99/notemate/internal/credential"
	"github.com/MrWong99/notemate/internal/observe"
	"github.com/MrWong99/notemate/internal/outfile"
	"github.com/MrWong99/notemate/internal/summarize"
	"github.com/MrWong99/notemate/internal/transcribe"
	"github.com/MrWong99/notemate/pkg/audio"
	"github.com/MrWong99/notemate/pkg/provider/llm"
	llmmock "github.com/MrWong99/notemate/pkg/provider/llm/mock"
	"github.com/MrWong99/notemate/pkg/provider/stt"
	sttmock "github.com/MrWong99/notemate/pkg/provider/stt/mock"
)

// chunkDevice delivers one chunk of silence as soon as the stream starts.
type chunkDevice struct{}

func (chunkDevice) Open(_ audio.Format, onData func([]int16)) (capture.Stream, error) {
	return &chunkStream{onData: onData}, nil
}

type chunkStream struct{ onData func([]int16) }

func (s *chunkStream) Start() error {
	s.onData(make([]int16, 1600))
	return nil
}

func (s *chunkStream) Close() error { return nil }

type env struct {
	app      *app.App
	creds    *credential.MemoryStore
	summ     *summarize.Summarizer
	llm      *llmmock.Provider
	audioDir *outfile.Dir
	root     string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	root := t.TempDir()
	e := &env{
		creds: credential.NewMemoryStore(""),
		llm: &llmmock.Provider{
			CompleteResponse: &llm.CompletionResponse{Content: "## Action items\n- Alice sends the report"},
		},
		audioDir: outfile.New(filepath.Join(root, "audio_files")),
		root:     root,
	}

	stats := observe.NewStatsReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(stats.Reader()))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatal(err)
	}

	engine := &sttmock.Engine{Segments: []stt.Segment{{Text: " Alice will send the report."}}}
	factory := func(summarize.Endpoint, string) (llm.Provider, error) { return e.llm, nil }
	e.summ = summarize.New(factory, e.creds, outfile.New(filepath.Join(root, "summaries")))
	a, err := app.New(app.Deps{
		Recorder:    capture.NewRecorder(chunkDevice{}, e.audioDir, capture.WithSampleRate(16000)),
		Transcriber: transcribe.New(engine, outfile.New(filepath.Join(root, "transcripts"))),
		Summarizer:  e.summ,
		Credentials: e.creds,
		Provider:    summarize.Remote,
	}, app.WithMetrics(metrics), app.WithStats(stats))
	if err != nil {
		t.Fatal(err)
	}
	e.app = a
	return e
}

// run feeds script to a console and returns everything it printed.
func (e *env) run(t *testing.T, script string, opts ...console.Option) string {
	t.Helper()
	var out bytes.Buffer
	opts = append([]console.Option{console.WithAudioDir(e.audioDir)}, opts...)
	c := console.New(e.app, strings.NewReader(script), &out, opts...)
	if err := c.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String()
}

func (e *env) writeRecording(t *testing.T, name string) string {
	t.Helper()
	if err := os.MkdirAll(e.audioDir.Path(), 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(e.audioDir.Path(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           make([]int, 1600),
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func assertContains(t *testing.T, out string, wants ...string) {
	t.Helper()
	for _, w := range wants {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

func TestConsole_RecordStopLocal(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	out := e.run(t, "provider local\nrecord\nstop\nquit\n")

	assertContains(t, out,
		"provider: local",
		"recording...",
		"recording saved: ",
		"processing...",
		"audio: ",
		"transcript: ",
		"summary: ",
		"- Alice sends the report",
	)
	if strings.Contains(out, "error:") {
		t.Errorf("unexpected error in output:\n%s", out)
	}
	if strings.Contains(out, "API key") {
		t.Errorf("local provider must not prompt for a key:\n%s", out)
	}
}

func TestConsole_RemotePromptsForKey(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	path := e.writeRecording(t, "meeting_20260314_093000.wav")

	out := e.run(t, "open "+path+"\nsk-live\nquit\n")

	assertContains(t, out, "needs an API key", "API key: ", "processing meeting_20260314_093000.wav...", "- Alice sends the report")
	if key, err := e.creds.Get(); err != nil || key != "sk-live" {
		t.Errorf("stored key = %q, %v", key, err)
	}
}

func TestConsole_StopSavesAudioBeforeKeyPrompt(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	var stateAtPrompt app.State
	secret := func() (string, error) {
		stateAtPrompt = e.app.State()
		return "sk-live", nil
	}

	out := e.run(t, "record\nstop\nquit\n", console.WithSecretReader(secret))

	assertContains(t, out, "recording saved: ", "needs an API key", "summary: ")
	if strings.Index(out, "recording saved: ") > strings.Index(out, "needs an API key") {
		t.Errorf("the recording must be saved before the key prompt:\n%s", out)
	}
	if stateAtPrompt != app.StateIdle {
		t.Errorf("state during the key prompt = %s, want idle", stateAtPrompt)
	}
}

func TestConsole_MissingKeyKeepsTranscript(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	path := e.writeRecording(t, "meeting_20260314_093000.wav")

	out := e.run(t, "open "+path+"\n\nquit\n")

	assertContains(t, out,
		"error: the API key must not be empty",
		"transcript: ",
		"error: the remote provider needs an API key; set one with 'key'",
	)
	if n := len(e.llm.CompleteCalls); n != 0 {
		t.Errorf("LLM calls = %d, want 0", n)
	}
}

func TestConsole_KeyUsesSecretReader(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	reads := 0
	secret := func() (string, error) {
		reads++
		return "sk-secret\n", nil
	}

	out := e.run(t, "key\nstatus\nquit\n", console.WithSecretReader(secret))

	assertContains(t, out, "API key saved.", "state: idle", "provider: remote")
	if strings.Contains(out, "API key: missing") {
		t.Errorf("status still reports a missing key:\n%s", out)
	}
	if reads != 1 {
		t.Errorf("secret reads = %d, want 1", reads)
	}
	if key, _ := e.creds.Get(); key != "sk-secret" {
		t.Errorf("stored key = %q", key)
	}
}

func TestConsole_KeyWarnsAboutConfiguredKey(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	eps := summarize.DefaultEndpoints()
	remote := eps[summarize.Remote]
	remote.APIKey = "sk-config"
	eps[summarize.Remote] = remote
	e.summ.SetEndpoints(eps)

	out := e.run(t, "key\nsk-typed\nquit\n")

	assertContains(t, out, "API key saved.", "overrides the saved key")
}

func TestConsole_OpenPicksFromList(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.writeRecording(t, "meeting_20260314_093000.wav")
	e.writeRecording(t, "meeting_20260314_100000.wav")

	out := e.run(t, "provider local\nopen\n2\nquit\n")

	assertContains(t, out,
		"1) meeting_20260314_093000.wav",
		"2) meeting_20260314_100000.wav",
		"processing meeting_20260314_100000.wav...",
		"summary: ",
	)
}

func TestConsole_OpenInvalidSelection(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.writeRecording(t, "meeting_20260314_093000.wav")

	out := e.run(t, "open\n7\nquit\n")

	assertContains(t, out, `error: invalid selection "7"`)
	if strings.Contains(out, "processing") {
		t.Errorf("nothing should be processed:\n%s", out)
	}
}

func TestConsole_OpenEmptyDirectory(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	out := e.run(t, "open\nquit\n")
	assertContains(t, out, "no recordings in ")
}

func TestConsole_ErrorsDoNotEndTheLoop(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	out := e.run(t, "stop\nbogus\nprovider cloud\nrecord\nrecord\nhelp\nquit\n")

	assertContains(t, out,
		"error: no audio was recorded",
		`error: unknown command "bogus"`,
		"error: unknown provider; choose remote or local",
		"error: busy: wait for the current recording or processing to finish",
		"commands:",
	)
	if err := e.app.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestConsole_Stats(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	e.llm.CompleteResponse.Usage = llm.Usage{PromptTokens: 120, CompletionTokens: 30}
	path := e.writeRecording(t, "meeting_20260314_093000.wav")
	e.run(t, "provider local\nopen "+path+"\nquit\n")

	out := e.run(t, "stats\nquit\n")

	assertContains(t, out,
		"recording: 0 runs, 0 failed",
		"transcription: 1 runs, 0 failed",
		"summarization: 1 runs, 0 failed",
		"requests local: 1 ok, 0 failed",
		"requests stt: 1 ok, 0 failed",
		"tokens: 120 prompt, 30 completion",
	)
}

func TestConsole_Instruction(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	out := e.run(t, "instruction\ninstruction Only decisions.\ninstruction\ninstruction default\nquit\n")

	assertContains(t, out, "instruction: (default)", "instruction: Only decisions.")
	if got := e.app.Instruction(); got != "" {
		t.Errorf("instruction after reset = %q", got)
	}
}

func TestConsole_EOFWaitsForProcessing(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	path := e.writeRecording(t, "meeting_20260314_093000.wav")

	// No trailing quit and no trailing newline.
	out := e.run(t, "provider local\nopen "+path)

	assertContains(t, out, "- Alice sends the report")
}

func TestConsole_CancelledContext(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := console.New(e.app, pr, io.Discard)
	if err := c.Run(ctx); err != nil {
		t.Errorf("Run: %v", err)
	}
}
