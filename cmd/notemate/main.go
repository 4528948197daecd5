// Command notemate records meetings from the microphone, transcribes them
// and turns the transcript into meeting notes with an LLM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/MrWong99/notemate/internal/app"
	"github.com/MrWong99/notemate/internal/capture"
	"github.com/MrWong99/notemate/internal/config"
	"github.com/MrWong99/notemate/internal/console"
	"github.com/MrWong99/notemate/internal/credential"
	"github.com/MrWong99/notemate/internal/observe"
	"github.com/MrWong99/notemate/internal/outfile"
	"github.com/MrWong99/notemate/internal/summarize"
	"github.com/MrWong99/notemate/internal/transcribe"
)

// version is set at build time.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file (defaults apply when it does not exist)")
	watch := flag.Bool("watch", true, "reload the configuration file when it changes")
	flag.Parse()

	// Configuration
	var application *app.App
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		if application != nil {
			application.ApplyConfig(old, new)
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "notemate: %v\n", err)
		return 1
	}
	cfg := watcher.Current()

	// Logger
	level := new(slog.LevelVar)
	level.Set(app.ParseLevel(cfg.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	slog.Info("notemate starting", "config", *configPath, "version", version, "log_level", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	stats := observe.NewStatsReader()
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version, Stats: stats})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()

	// Providers
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	engine, err := reg.CreateSTT(cfg.Transcription.Engine)
	if err != nil {
		slog.Error("failed to create speech-to-text engine", "name", cfg.Transcription.Engine.Name, "err", err)
		return 1
	}
	if c, ok := engine.(io.Closer); ok {
		defer c.Close()
	}

	device, err := capture.NewMalgoDevice()
	if err != nil {
		slog.Error("failed to open audio system", "err", err)
		return 1
	}
	defer device.Close()

	// Pipeline
	audioDir := outfile.New(cfg.Paths.AudioDir)
	creds := credential.NewEnvFileStore(cfg.Paths.EnvFile, cfg.Summarization.CredentialVariable)
	sum := cfg.Summarization
	summarizer := summarize.New(app.ClientFactory(reg), creds, outfile.New(cfg.Paths.SummaryDir),
		summarize.WithEndpoints(sum.Endpoints()),
		summarize.WithDefaultInstruction(sum.Instruction),
		summarize.WithTemperature(sum.Temperature),
		summarize.WithTimeout(sum.Timeout),
		summarize.WithDocx(sum.Docx),
	)

	application, err = app.New(app.Deps{
		Recorder:    capture.NewRecorder(device, audioDir, capture.WithSampleRate(cfg.Capture.SampleRate)),
		Transcriber: transcribe.New(engine, outfile.New(cfg.Paths.TranscriptDir), transcribe.WithLanguage(cfg.Transcription.Language)),
		Summarizer:  summarizer,
		Credentials: creds,
		Provider:    sum.DefaultProvider,
		STTName:     cfg.Transcription.Engine.Name,
	}, app.WithLogLevel(level), app.WithStats(stats))
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer func() {
		if err := application.Close(); err != nil {
			slog.Error("close", "err", err)
		}
	}()

	printStartupSummary(cfg)

	conOpts := []console.Option{console.WithAudioDir(audioDir)}
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		conOpts = append(conOpts, console.WithSecretReader(func() (string, error) {
			b, err := term.ReadPassword(fd)
			return string(b), err
		}))
	}
	con := console.New(application, os.Stdin, os.Stdout, conOpts...)

	g, gctx := errgroup.WithContext(ctx)
	gctx, cancel := context.WithCancel(gctx)
	g.Go(func() error {
		// Leaving the console ends the watcher too.
		defer cancel()
		return con.Run(gctx)
	})
	if *watch {
		g.Go(func() error { return watcher.Run(gctx) })
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

func printStartupSummary(cfg *config.Config) {
	fmt.Println("notemate")
	fmt.Printf("  speech-to-text : %s\n", describe(cfg.Transcription.Engine))
	fmt.Printf("  remote LLM     : %s\n", describe(cfg.Summarization.Remote))
	fmt.Printf("  local LLM      : %s\n", describe(cfg.Summarization.Local))
	fmt.Printf("  provider       : %s\n", cfg.Summarization.DefaultProvider)
	fmt.Printf("  recordings     : %s\n", cfg.Paths.AudioDir)
	fmt.Printf("  transcripts    : %s\n", cfg.Paths.TranscriptDir)
	fmt.Printf("  summaries      : %s\n", cfg.Paths.SummaryDir)
}

func describe(e config.ProviderEntry) string {
	s := e.Name
	if e.Model != "" {
		s += " / " + e.Model
	}
	if e.BaseURL != "" {
		s += " @ " + e.BaseURL
	}
	return s
}
