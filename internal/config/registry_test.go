package config_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/notemate/internal/config"
	"github.com/MrWong99/notemate/pkg/provider/llm"
	llmmock "github.com/MrWong99/notemate/pkg/provider/llm/mock"
	"github.com/MrWong99/notemate/pkg/provider/stt"
	sttmock "github.com/MrWong99/notemate/pkg/provider/stt/mock"
)

func TestRegistry_CreateRegistered(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()

	var gotEntry config.ProviderEntry
	want := &llmmock.Provider{}
	r.RegisterLLM("ollama", func(e config.ProviderEntry) (llm.Provider, error) {
		gotEntry = e
		return want, nil
	})
	r.RegisterSTT(config.STTWhisperServer, func(config.ProviderEntry) (stt.Engine, error) {
		return &sttmock.Engine{}, nil
	})

	p, err := r.CreateLLM(config.ProviderEntry{Name: "ollama", Model: "llama3"})
	if err != nil {
		t.Fatalf("CreateLLM: %v", err)
	}
	if p != want {
		t.Error("expected the factory's provider")
	}
	if gotEntry.Model != "llama3" {
		t.Errorf("factory received %+v", gotEntry)
	}
	if _, err := r.CreateSTT(config.ProviderEntry{Name: config.STTWhisperServer}); err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	if _, err := r.CreateLLM(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateLLM: expected ErrProviderNotRegistered, got %v", err)
	}
	if _, err := r.CreateSTT(config.ProviderEntry{Name: "nope"}); !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("CreateSTT: expected ErrProviderNotRegistered, got %v", err)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	boom := errors.New("boom")
	r.RegisterLLM("openai", func(config.ProviderEntry) (llm.Provider, error) { return nil, boom })
	if _, err := r.CreateLLM(config.ProviderEntry{Name: "openai"}); !errors.Is(err, boom) {
		t.Errorf("expected factory error, got %v", err)
	}
}

func TestRegistry_LLMNames(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	for _, n := range []string{"openai", "groq", "ollama"} {
		r.RegisterLLM(n, func(config.ProviderEntry) (llm.Provider, error) { return nil, nil })
	}
	if got := r.LLMNames(); !slices.Equal(got, []string{"groq", "ollama", "openai"}) {
		t.Errorf("got %v", got)
	}
}
