// Package config provides the configuration schema, loader, watcher and
// provider registry for notemate.
package config

import (
	"maps"
	"time"

	"github.com/MrWong99/notemate/internal/summarize"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for notemate.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	Paths         PathsConfig         `yaml:"paths"`
	Capture       CaptureConfig       `yaml:"capture"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Summarization SummarizationConfig `yaml:"summarization"`
}

// PathsConfig holds the output directories and the credential file.
// Relative paths are resolved against the working directory.
type PathsConfig struct {
	// AudioDir receives meeting_<timestamp>.wav files.
	AudioDir string `yaml:"audio_dir"`

	// TranscriptDir receives transcript_<timestamp>.txt files.
	TranscriptDir string `yaml:"transcript_dir"`

	// SummaryDir receives summary_<timestamp>.txt files.
	SummaryDir string `yaml:"summary_dir"`

	// EnvFile is the dotenv file the API credential is persisted to.
	EnvFile string `yaml:"env_file"`
}

// CaptureConfig holds microphone settings.
type CaptureConfig struct {
	// SampleRate is the capture rate in Hz.
	SampleRate int `yaml:"sample_rate"`
}

// TranscriptionConfig selects and configures the speech-to-text engine.
type TranscriptionConfig struct {
	// Engine selects the registered STT engine ("whisper-native" or
	// "whisper-server"). Model holds the model file for the native engine
	// and the optional model name for the server engine; BaseURL is the
	// server address.
	Engine ProviderEntry `yaml:"engine"`

	// Language is the spoken language code, or "auto" for detection.
	Language string `yaml:"language"`
}

// SummarizationConfig holds the provider table and request settings.
type SummarizationConfig struct {
	// DefaultProvider is the provider selected at startup.
	DefaultProvider summarize.Provider `yaml:"default_provider"`

	// Remote is the hosted LLM endpoint. It needs an API credential.
	Remote ProviderEntry `yaml:"remote"`

	// Local is the self-hosted LLM endpoint.
	Local ProviderEntry `yaml:"local"`

	// Instruction replaces the built-in default instruction.
	Instruction string `yaml:"instruction"`

	// Temperature is the sampling temperature of every request.
	Temperature float64 `yaml:"temperature"`

	// Timeout bounds one summarization request.
	Timeout time.Duration `yaml:"timeout"`

	// Docx additionally renders every summary as a .docx document.
	Docx bool `yaml:"docx"`

	// CredentialVariable is the variable the remote API key is stored under.
	CredentialVariable string `yaml:"credential_variable"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "ollama").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	// For the remote summarization endpoint the credential store is used
	// when this is empty.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o", "llama3").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// Endpoints converts the summarization block into the summarizer's endpoint
// table.
func (s SummarizationConfig) Endpoints() summarize.Endpoints {
	return summarize.Endpoints{
		summarize.Remote: {
			Backend:            s.Remote.Name,
			BaseURL:            s.Remote.BaseURL,
			Model:              s.Remote.Model,
			APIKey:             s.Remote.APIKey,
			RequiresCredential: true,
			Options:            maps.Clone(s.Remote.Options),
		},
		summarize.Local: {
			Backend: s.Local.Name,
			BaseURL: s.Local.BaseURL,
			Model:   s.Local.Model,
			APIKey:  s.Local.APIKey,
			Options: maps.Clone(s.Local.Options),
		},
	}
}

// OptionInt returns the integer option key, or def when it is absent or not
// a number.
func (e ProviderEntry) OptionInt(key string, def int) int {
	switch v := e.Options[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}
