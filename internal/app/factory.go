package app

import (
	"github.com/MrWong99/notemate/internal/config"
	"github.com/MrWong99/notemate/internal/summarize"
	"github.com/MrWong99/notemate/pkg/provider/llm"
)

// ClientFactory returns a [summarize.ClientFactory] that builds LLM clients
// through the LLM factories registered in reg, keyed by the endpoint's
// backend name.
func ClientFactory(reg *config.Registry) summarize.ClientFactory {
	return func(ep summarize.Endpoint, apiKey string) (llm.Provider, error) {
		return reg.CreateLLM(config.ProviderEntry{
			Name:    ep.Backend,
			APIKey:  apiKey,
			BaseURL: ep.BaseURL,
			Model:   ep.Model,
			Options: ep.Options,
		})
	}
}
