package summarize

import (
	"errors"
	"fmt"
	"maps"
	"strings"
)

// Provider selects which configured LLM endpoint produces the summary.
type Provider int

const (
	// Remote is the hosted endpoint. It needs an API credential.
	Remote Provider = iota

	// Local is the self-hosted endpoint.
	Local
)

// ErrUnknownProvider is returned for a provider outside the known set.
var ErrUnknownProvider = errors.New("summarize: unknown provider")

// Providers lists every valid provider in display order.
func Providers() []Provider { return []Provider{Remote, Local} }

// String returns "remote" or "local".
func (p Provider) String() string {
	switch p {
	case Remote:
		return "remote"
	case Local:
		return "local"
	default:
		return fmt.Sprintf("provider(%d)", int(p))
	}
}

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool { return p == Remote || p == Local }

// ParseProvider parses a provider name. "openai" and "ollama" are accepted
// as aliases for remote and local.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "remote", "openai":
		return Remote, nil
	case "local", "ollama":
		return Local, nil
	default:
		return 0, fmt.Errorf("%w %q (want remote or local)", ErrUnknownProvider, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Provider) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w %d", ErrUnknownProvider, int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Provider) UnmarshalText(b []byte) error {
	v, err := ParseProvider(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Endpoint is one row of the provider table.
type Endpoint struct {
	// Backend names the client implementation, e.g. "openai" or "ollama".
	Backend string

	// BaseURL is the API root of the endpoint.
	BaseURL string

	// Model is the model identifier sent with each request.
	Model string

	// APIKey is a static key from configuration. When empty and
	// RequiresCredential is set, the key comes from the credential store.
	APIKey string

	// RequiresCredential makes a non-empty key a precondition of every
	// request.
	RequiresCredential bool

	// Options holds backend-specific settings such as a request timeout.
	Options map[string]any
}

// Endpoints maps each provider to its endpoint.
type Endpoints map[Provider]Endpoint

// DefaultEndpoints returns the built-in provider table.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Remote: {
			Backend:            "openai",
			BaseURL:            "https://api.openai.com/v1",
			Model:              "gpt-4o",
			RequiresCredential: true,
		},
		Local: {
			Backend: "ollama",
			BaseURL: "http://localhost:11434",
			Model:   "llama3",
		},
	}
}

// clone returns a copy of e.
func (e Endpoints) clone() Endpoints {
	out := make(Endpoints, len(e))
	for k, v := range e {
		v.Options = maps.Clone(v.Options)
		out[k] = v
	}
	return out
}
