// Package app sequences the note-taking pipeline: capture, transcription and
// summarization.
//
// An [App] is driven by a presentation layer (the console). It owns the
// selected provider and the user instruction, enforces that only one
// pipeline runs at a time, and returns every stage failure as an error
// value. [UserMessage] turns those errors into text for the user. Nothing is
// retried and files written by earlier stages are kept.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/notemate/internal/capture"
	"github.com/MrWong99/notemate/internal/config"
	"github.com/MrWong99/notemate/internal/credential"
	"github.com/MrWong99/notemate/internal/observe"
	"github.com/MrWong99/notemate/internal/summarize"
	"github.com/MrWong99/notemate/internal/transcribe"
)

// ErrNoStats is returned by [App.Stats] when no stats reader is configured.
var ErrNoStats = errors.New("app: statistics are not collected")

// ErrBusy is returned when an operation conflicts with the current state,
// e.g. starting a recording while a meeting is being processed.
var ErrBusy = errors.New("app: busy")

// Recorder captures microphone audio. Implemented by *capture.Recorder.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() (string, error)
	Recording() bool
	Elapsed() time.Duration
}

// Transcriber turns a waveform file into a transcript. Implemented by
// *transcribe.Transcriber.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (*transcribe.Transcript, error)
}

// Summarizer turns a transcript into meeting notes. Implemented by
// *summarize.Summarizer.
type Summarizer interface {
	Summarize(ctx context.Context, transcript, instruction string, p summarize.Provider) (*summarize.Summary, error)
	NeedsCredential(p summarize.Provider) bool
	StaticCredential(p summarize.Provider) bool
	SetEndpoints(eps summarize.Endpoints)
	SetDefaultInstruction(instr string)
}

// State is the pipeline state of an [App].
type State int

const (
	StateIdle State = iota
	StateRecording
	StateProcessing
)

// String returns "idle", "recording" or "processing".
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result collects the files produced by one pipeline run. Fields of stages
// that did not complete are nil or empty.
type Result struct {
	// AudioPath is the waveform file that was processed.
	AudioPath string

	// Transcript is set once transcription succeeded.
	Transcript *transcribe.Transcript

	// Summary is set once summarization succeeded.
	Summary *summarize.Summary
}

// Deps holds the collaborators of an [App].
type Deps struct {
	Recorder    Recorder
	Transcriber Transcriber
	Summarizer  Summarizer
	Credentials credential.Store

	// Provider is the initially selected summarization provider.
	Provider summarize.Provider

	// STTName labels transcription requests in metrics.
	STTName string
}

// Option configures an [App].
type Option func(*App)

// WithMetrics sets the metrics the pipeline records into. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithStats lets [App.Stats] report the metrics collected by r. r must be
// registered with the meter provider behind the app's metrics.
func WithStats(r *observe.StatsReader) Option {
	return func(a *App) { a.stats = r }
}

// WithLogLevel lets [App.ApplyConfig] change the log level at runtime.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// App orchestrates the pipeline. All exported methods are safe for
// concurrent use.
type App struct {
	rec     Recorder
	trans   Transcriber
	sum     Summarizer
	creds   credential.Store
	sttName string
	metrics *observe.Metrics
	stats   *observe.StatsReader
	level   *slog.LevelVar

	mu          sync.Mutex
	state       State
	recStart    time.Time
	provider    summarize.Provider
	instruction string
}

// New returns an App. Recorder, Transcriber and Summarizer are required.
func New(d Deps, opts ...Option) (*App, error) {
	if d.Recorder == nil || d.Transcriber == nil || d.Summarizer == nil {
		return nil, errors.New("app: recorder, transcriber and summarizer are required")
	}
	if !d.Provider.Valid() {
		return nil, fmt.Errorf("app: %w", summarize.ErrUnknownProvider)
	}
	a := &App{
		rec:      d.Recorder,
		trans:    d.Transcriber,
		sum:      d.Summarizer,
		creds:    d.Credentials,
		sttName:  d.STTName,
		provider: d.Provider,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.sttName == "" {
		a.sttName = "stt"
	}
	return a, nil
}

// State returns the current pipeline state.
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Elapsed returns the length of the recording in progress, or zero.
func (a *App) Elapsed() time.Duration {
	return a.rec.Elapsed()
}

// StartRecording begins capturing audio. It fails with [ErrBusy] unless the
// app is idle.
func (a *App) StartRecording(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateIdle {
		return fmt.Errorf("%w: %s", ErrBusy, a.state)
	}
	if err := a.rec.Start(ctx); err != nil {
		return err
	}
	a.state = StateRecording
	a.recStart = time.Now()
	a.metrics.ActiveRecordings.Add(ctx, 1)
	return nil
}

// StopRecording stops the recording in progress and returns the waveform
// path without processing it. Calling it while not recording returns the
// recorder's empty-recording error.
func (a *App) StopRecording(ctx context.Context) (string, error) {
	started, err := a.beginStop()
	if err != nil {
		return "", err
	}
	defer a.setIdle()
	return a.stopRecorder(ctx, started)
}

// StopAndProcess stops the recording in progress, then transcribes and
// summarizes it. Calling it while not recording returns the recorder's
// empty-recording error.
//
// The returned Result is non-nil whenever at least the waveform file was
// written, even if a later stage failed.
func (a *App) StopAndProcess(ctx context.Context) (*Result, error) {
	started, err := a.beginStop()
	if err != nil {
		return nil, err
	}
	defer a.setIdle()

	ctx, span := observe.StartSpan(ctx, "notemate.pipeline")
	path, err := a.stopRecorder(ctx, started)
	if err != nil {
		observe.EndSpan(span, err)
		return nil, err
	}
	res, err := a.process(ctx, path)
	observe.EndSpan(span, err)
	return res, err
}

// beginStop moves a recording app to the processing state and returns when
// the recording started.
func (a *App) beginStop() (time.Time, error) {
	a.mu.Lock()
	switch a.state {
	case StateProcessing:
		a.mu.Unlock()
		return time.Time{}, fmt.Errorf("%w: %s", ErrBusy, a.state)
	case StateIdle:
		a.mu.Unlock()
		// Let the recorder report the empty session.
		if _, err := a.rec.Stop(); err != nil {
			return time.Time{}, err
		}
		return time.Time{}, capture.ErrEmptyRecording
	}
	a.state = StateProcessing
	started := a.recStart
	a.mu.Unlock()
	return started, nil
}

func (a *App) stopRecorder(ctx context.Context, started time.Time) (string, error) {
	path, err := a.rec.Stop()
	a.metrics.ActiveRecordings.Add(ctx, -1)
	a.metrics.RecordStage(ctx, observe.StageRecording, time.Since(started), err)
	return path, err
}

// ProcessFile transcribes and summarizes an existing waveform file. It fails
// with [ErrBusy] unless the app is idle.
func (a *App) ProcessFile(ctx context.Context, path string) (*Result, error) {
	a.mu.Lock()
	if a.state != StateIdle {
		state := a.state
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrBusy, state)
	}
	a.state = StateProcessing
	a.mu.Unlock()
	defer a.setIdle()

	ctx, span := observe.StartSpan(ctx, "notemate.pipeline")
	res, err := a.process(ctx, path)
	observe.EndSpan(span, err)
	return res, err
}

func (a *App) setIdle() {
	a.mu.Lock()
	a.state = StateIdle
	a.mu.Unlock()
}

// process runs transcription and summarization for path.
func (a *App) process(ctx context.Context, path string) (*Result, error) {
	res := &Result{AudioPath: path}
	log := observe.Logger(ctx)

	tr, err := a.transcribe(ctx, path)
	if err != nil {
		log.Error("transcription failed", "audio", path, "err", err)
		return res, err
	}
	res.Transcript = tr
	a.metrics.AudioDuration.Record(ctx, tr.Duration.Seconds())

	p, instr := a.Provider(), a.Instruction()
	sum, err := a.summarize(ctx, tr.Text, instr, p)
	if err != nil {
		log.Error("summarization failed", "provider", p.String(), "transcript", tr.Path, "err", err)
		return res, err
	}
	res.Summary = sum
	log.Info("meeting processed", "audio", path, "transcript", tr.Path, "summary", sum.Path)
	return res, nil
}

func (a *App) transcribe(ctx context.Context, path string) (*transcribe.Transcript, error) {
	ctx, span := observe.StartSpan(ctx, "notemate.transcribe")
	start := time.Now()
	tr, err := a.trans.Transcribe(ctx, path)
	a.metrics.RecordStage(ctx, observe.StageTranscription, time.Since(start), err)
	a.metrics.RecordProviderRequest(ctx, a.sttName, "stt", observe.StatusOf(err))
	observe.EndSpan(span, err)
	return tr, err
}

func (a *App) summarize(ctx context.Context, text, instr string, p summarize.Provider) (*summarize.Summary, error) {
	ctx, span := observe.StartSpan(ctx, "notemate.summarize")
	start := time.Now()
	sum, err := a.sum.Summarize(ctx, text, instr, p)
	a.metrics.RecordStage(ctx, observe.StageSummarization, time.Since(start), err)
	// A missing credential fails before any request is sent.
	if !errors.Is(err, summarize.ErrMissingCredential) {
		a.metrics.RecordProviderRequest(ctx, p.String(), "llm", observe.StatusOf(err))
	}
	if sum != nil {
		a.metrics.RecordTokens(ctx, p.String(), sum.Usage.PromptTokens, sum.Usage.CompletionTokens)
	}
	observe.EndSpan(span, err)
	return sum, err
}

// Stats returns the pipeline statistics since startup.
func (a *App) Stats(ctx context.Context) (observe.Stats, error) {
	if a.stats == nil {
		return observe.Stats{}, ErrNoStats
	}
	return a.stats.Collect(ctx)
}

// Provider returns the selected summarization provider.
func (a *App) Provider() summarize.Provider {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.provider
}

// SetProvider selects the summarization provider for subsequent runs.
func (a *App) SetProvider(p summarize.Provider) error {
	if !p.Valid() {
		return fmt.Errorf("%w %s", summarize.ErrUnknownProvider, p)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.provider = p
	return nil
}

// Instruction returns the user instruction. Empty means the default one.
func (a *App) Instruction() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.instruction
}

// SetInstruction sets the user instruction for subsequent runs. A blank
// instruction falls back to the default.
func (a *App) SetInstruction(instr string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.instruction = strings.TrimSpace(instr)
}

// CredentialRequired reports whether summarizing with the selected provider
// needs a credential that is not available yet.
func (a *App) CredentialRequired() bool {
	return a.sum.NeedsCredential(a.Provider())
}

// CredentialOverridden reports whether the remote endpoint has an API key
// in the configuration file. Such a key is used instead of the stored
// credential.
func (a *App) CredentialOverridden() bool {
	return a.sum.StaticCredential(summarize.Remote)
}

// ChangeCredential persists key as the remote provider credential. It is
// used by the next summarization unless [App.CredentialOverridden] reports
// a configured key.
func (a *App) ChangeCredential(key string) error {
	if a.creds == nil {
		return errors.New("app: no credential store configured")
	}
	if err := a.creds.Set(key); err != nil {
		return err
	}
	if a.CredentialOverridden() {
		slog.Warn("API credential stored, but summarization.remote.api_key in the config file takes precedence")
		return nil
	}
	slog.Info("API credential updated")
	return nil
}

// ApplyConfig applies the hot-reloadable parts of a configuration change
// and logs the settings that need a restart.
func (a *App) ApplyConfig(old, new *config.Config) config.ConfigDiff {
	d := config.Diff(old, new)
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(ParseLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.EndpointsChanged {
		a.sum.SetEndpoints(new.Summarization.Endpoints())
		slog.Info("summarization endpoints reloaded")
	}
	if d.InstructionChanged {
		a.sum.SetDefaultInstruction(new.Summarization.Instruction)
		slog.Info("default instruction reloaded")
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "sections", d.RestartRequired)
	}
	return d
}

// Close stops a recording in progress and saves what was captured.
func (a *App) Close() error {
	a.mu.Lock()
	recording := a.state == StateRecording
	if recording {
		a.state = StateIdle
	}
	a.mu.Unlock()
	if !recording {
		return nil
	}
	a.metrics.ActiveRecordings.Add(context.Background(), -1)
	path, err := a.rec.Stop()
	if err != nil {
		if errors.Is(err, capture.ErrEmptyRecording) {
			return nil
		}
		return fmt.Errorf("app: save recording on close: %w", err)
	}
	slog.Info("unfinished recording saved", "path", path)
	return nil
}

// ParseLevel maps a config log level to its slog level. Unknown values map
// to info.
func ParseLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
