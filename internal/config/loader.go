package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/notemate/internal/credential"
	"github.com/MrWong99/notemate/internal/summarize"
)

// Registered engine and backend names.
const (
	STTWhisperNative = "whisper-native"
	STTWhisperServer = "whisper-server"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt": {STTWhisperNative, STTWhisperServer},
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every unset field of cfg with its default value.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}

	setDefault(&cfg.Paths.AudioDir, "audio_files")
	setDefault(&cfg.Paths.TranscriptDir, "transcripts")
	setDefault(&cfg.Paths.SummaryDir, "summaries")
	setDefault(&cfg.Paths.EnvFile, ".env")

	if cfg.Capture.SampleRate == 0 {
		cfg.Capture.SampleRate = 44100
	}

	setDefault(&cfg.Transcription.Engine.Name, STTWhisperNative)
	if cfg.Transcription.Engine.Name == STTWhisperNative {
		setDefault(&cfg.Transcription.Engine.Model, "models/ggml-base.bin")
	}
	if cfg.Transcription.Engine.Name == STTWhisperServer {
		setDefault(&cfg.Transcription.Engine.BaseURL, "http://localhost:8080")
	}
	setDefault(&cfg.Transcription.Language, "auto")

	eps := summarize.DefaultEndpoints()
	defaultEntry(&cfg.Summarization.Remote, eps[summarize.Remote])
	defaultEntry(&cfg.Summarization.Local, eps[summarize.Local])
	setDefault(&cfg.Summarization.Instruction, summarize.DefaultInstruction)
	if cfg.Summarization.Temperature == 0 {
		cfg.Summarization.Temperature = summarize.DefaultTemperature
	}
	if cfg.Summarization.Timeout == 0 {
		cfg.Summarization.Timeout = summarize.DefaultTimeout
	}
	setDefault(&cfg.Summarization.CredentialVariable, credential.DefaultVariable)
}

func setDefault(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}

// defaultEntry fills an LLM entry from a built-in endpoint. The URL and model
// defaults only apply when the backend is the built-in one.
func defaultEntry(e *ProviderEntry, ep summarize.Endpoint) {
	setDefault(&e.Name, ep.Backend)
	if e.Name != ep.Backend {
		return
	}
	setDefault(&e.BaseURL, ep.BaseURL)
	setDefault(&e.Model, ep.Model)
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like [Load] but returns [Default] when the file does
// not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("config file not found, using defaults", "path", path)
		return Default(), nil
	}
	return cfg, err
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. An empty document yields the defaults.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Paths
	dirs := map[string]string{
		"paths.audio_dir":      cfg.Paths.AudioDir,
		"paths.transcript_dir": cfg.Paths.TranscriptDir,
		"paths.summary_dir":    cfg.Paths.SummaryDir,
		"paths.env_file":       cfg.Paths.EnvFile,
	}
	for _, key := range slices.Sorted(maps.Keys(dirs)) {
		if strings.TrimSpace(dirs[key]) == "" {
			errs = append(errs, fmt.Errorf("%s is required", key))
		}
	}

	// Capture
	if sr := cfg.Capture.SampleRate; sr < 8000 || sr > 192000 {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d is out of range [8000, 192000]", sr))
	}

	// Transcription
	eng := cfg.Transcription.Engine
	validateProviderName("stt", eng.Name)
	switch eng.Name {
	case STTWhisperNative:
		if eng.Model == "" {
			errs = append(errs, errors.New("transcription.engine.model is required for whisper-native (path to a ggml model file)"))
		}
	case STTWhisperServer:
		if eng.BaseURL == "" {
			errs = append(errs, errors.New("transcription.engine.base_url is required for whisper-server"))
		}
	case "":
		errs = append(errs, errors.New("transcription.engine.name is required"))
	}
	if n := eng.OptionInt("threads", 0); n < 0 {
		errs = append(errs, fmt.Errorf("transcription.engine.options.threads %d must not be negative", n))
	}

	// Summarization
	sum := cfg.Summarization
	if !sum.DefaultProvider.Valid() {
		errs = append(errs, fmt.Errorf("summarization.default_provider %v is invalid; valid values: remote, local", sum.DefaultProvider))
	}
	llmEntries := []struct {
		key   string
		entry ProviderEntry
	}{{"remote", sum.Remote}, {"local", sum.Local}}
	for _, e := range llmEntries {
		key, entry := e.key, e.entry
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("summarization.%s.name is required", key))
			continue
		}
		validateProviderName("llm", entry.Name)
		if entry.Model == "" {
			errs = append(errs, fmt.Errorf("summarization.%s.model is required for backend %q", key, entry.Name))
		}
	}
	if sum.Temperature < 0 || sum.Temperature > 2 {
		errs = append(errs, fmt.Errorf("summarization.temperature %.2f is out of range [0, 2]", sum.Temperature))
	}
	if sum.Timeout < 0 {
		errs = append(errs, fmt.Errorf("summarization.timeout %s must not be negative", sum.Timeout))
	} else if sum.Timeout > 0 && sum.Timeout < time.Second {
		slog.Warn("summarization.timeout is below one second; most requests will time out", "timeout", sum.Timeout)
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
