package main

import (
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/notemate/internal/config"
	"github.com/MrWong99/notemate/pkg/provider/llm"
	"github.com/MrWong99/notemate/pkg/provider/llm/anyllm"
	"github.com/MrWong99/notemate/pkg/provider/llm/openai"
	"github.com/MrWong99/notemate/pkg/provider/stt"
	"github.com/MrWong99/notemate/pkg/provider/stt/whisper"
)

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation package.
func registerBuiltinProviders(reg *config.Registry) {
	// LLM

	// openai uses the official SDK. Its retries are off unless max_retries
	// is configured.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, openai.WithTimeout(d))
		}
		opts = append(opts, openai.WithMaxRetries(entry.OptionInt("max_retries", 0)))
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// Every other backend goes through any-llm-go: optional APIKey, BaseURL
	// and timeout. ollama, llamacpp and llamafile are local servers.
	for _, name := range anyllm.Backends() {
		if name == "openai" {
			continue
		}
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			if d := optDuration(entry.Options, "timeout"); d > 0 {
				opts = append(opts, anyllmlib.WithHTTPClient(anyllm.NewHTTPClient(d)))
			}
			return anyllm.New(name, entry.Model, opts...)
		})
	}

	// STT

	reg.RegisterSTT(config.STTWhisperNative, func(entry config.ProviderEntry) (stt.Engine, error) {
		var opts []whisper.NativeOption
		if n := entry.OptionInt("threads", 0); n > 0 {
			opts = append(opts, whisper.WithNativeThreads(uint(n)))
		}
		return whisper.NewNative(entry.Model, opts...)
	})

	reg.RegisterSTT(config.STTWhisperServer, func(entry config.ProviderEntry) (stt.Engine, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, whisper.WithTimeout(d))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	slog.Debug("registered providers", "llm", reg.LLMNames())
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optDuration parses a duration option such as "90s". Invalid values are
// logged and ignored.
func optDuration(opts map[string]any, key string) time.Duration {
	s := optString(opts, key)
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		slog.Warn("ignoring invalid duration option", "key", key, "value", s, "err", err)
		return 0
	}
	return d
}
