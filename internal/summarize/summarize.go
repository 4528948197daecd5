// Package summarize turns a transcript into meeting notes with an LLM.
//
// A [Summarizer] resolves the selected [Provider] against its endpoint table,
// checks the credential precondition, sends exactly one completion request
// and persists the reply as summary_<timestamp>.txt (and optionally as a
// .docx rendering of the same text).
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/notemate/internal/credential"
	"github.com/MrWong99/notemate/internal/outfile"
	"github.com/MrWong99/notemate/pkg/provider/llm"
)

const (
	// FilePrefix is the file name prefix of summary files.
	FilePrefix = "summary"

	// DefaultTemperature is the sampling temperature of every request.
	DefaultTemperature = 0.3

	// DefaultTimeout bounds a single completion request.
	DefaultTimeout = 2 * time.Minute
)

var (
	// ErrMissingCredential is returned when the selected endpoint needs an
	// API key and none can be resolved. No client is created in that case.
	ErrMissingCredential = errors.New("missing API credential")

	// ErrProviderRequest wraps every failure of the LLM request itself.
	ErrProviderRequest = errors.New("provider request failed")
)

// ClientFactory builds an LLM client for an endpoint. apiKey is the resolved
// credential and may be empty for endpoints that need none.
type ClientFactory func(ep Endpoint, apiKey string) (llm.Provider, error)

// Summary is the result of a successful summarization.
type Summary struct {
	// Text is the reply of the model.
	Text string

	// Path is the summary text file that was written.
	Path string

	// DocxPath is the .docx rendering, empty when disabled or when it
	// could not be written.
	DocxPath string

	// Provider is the provider that produced the summary.
	Provider Provider

	// Model is the model reported by the backend, or the configured one.
	Model string

	// Usage is the token accounting of the request.
	Usage llm.Usage
}

// Option configures a [Summarizer].
type Option func(*Summarizer)

// WithEndpoints replaces the default endpoint table.
func WithEndpoints(eps Endpoints) Option {
	return func(s *Summarizer) { s.endpoints = eps.clone() }
}

// WithDefaultInstruction replaces [DefaultInstruction].
func WithDefaultInstruction(instr string) Option {
	return func(s *Summarizer) { s.defaultInstruction = instr }
}

// WithTemperature sets the sampling temperature. Defaults to 0.3.
func WithTemperature(t float64) Option {
	return func(s *Summarizer) { s.temperature = t }
}

// WithTimeout bounds each completion request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Summarizer) { s.timeout = d }
}

// WithDocx enables the additional .docx export of every summary.
func WithDocx(enabled bool) Option {
	return func(s *Summarizer) { s.docx = enabled }
}

// Summarizer sends transcripts to the configured LLM endpoints.
type Summarizer struct {
	factory ClientFactory
	creds   credential.Store
	dir     *outfile.Dir

	temperature float64
	timeout     time.Duration
	docx        bool

	mu                 sync.RWMutex
	endpoints          Endpoints
	defaultInstruction string
}

// New returns a Summarizer that writes summaries into dir.
func New(factory ClientFactory, creds credential.Store, dir *outfile.Dir, opts ...Option) *Summarizer {
	s := &Summarizer{
		factory:            factory,
		creds:              creds,
		dir:                dir,
		temperature:        DefaultTemperature,
		timeout:            DefaultTimeout,
		endpoints:          DefaultEndpoints(),
		defaultInstruction: DefaultInstruction,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SetEndpoints swaps the endpoint table. Requests already in flight keep the
// endpoint they resolved.
func (s *Summarizer) SetEndpoints(eps Endpoints) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoints = eps.clone()
}

// SetDefaultInstruction swaps the instruction used when the caller gives none.
func (s *Summarizer) SetDefaultInstruction(instr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultInstruction = instr
}

// Endpoint returns the endpoint configured for p.
func (s *Summarizer) Endpoint(p Provider) (Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ep, ok := s.endpoints[p]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w %s", ErrUnknownProvider, p)
	}
	return ep, nil
}

// NeedsCredential reports whether summarizing with p would currently fail
// with [ErrMissingCredential].
func (s *Summarizer) NeedsCredential(p Provider) bool {
	ep, err := s.Endpoint(p)
	if err != nil {
		return false
	}
	_, err = s.resolveKey(ep)
	return errors.Is(err, ErrMissingCredential)
}

// StaticCredential reports whether p uses an API key from configuration,
// which takes precedence over the credential store.
func (s *Summarizer) StaticCredential(p Provider) bool {
	ep, err := s.Endpoint(p)
	return err == nil && strings.TrimSpace(ep.APIKey) != ""
}

// Summarize sends transcript with instruction to the endpoint of p and
// writes the reply to a new summary file. A blank instruction uses the
// default instruction.
func (s *Summarizer) Summarize(ctx context.Context, transcript, instruction string, p Provider) (*Summary, error) {
	ep, err := s.Endpoint(p)
	if err != nil {
		return nil, err
	}
	key, err := s.resolveKey(ep)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	prompt := BuildPrompt(transcript, instruction, s.defaultInstruction)
	s.mu.RUnlock()

	client, err := s.factory(ep, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s client: %w", ErrProviderRequest, ep.Backend, err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := client.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Temperature: s.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrProviderRequest, p, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("%w: %s: empty response", ErrProviderRequest, p)
	}

	path, err := s.dir.WriteText(FilePrefix, ".txt", resp.Content)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	model := resp.Model
	if model == "" {
		model = ep.Model
	}
	sum := &Summary{
		Text:     resp.Content,
		Path:     path,
		Provider: p,
		Model:    model,
		Usage:    resp.Usage,
	}

	if s.docx {
		docxPath, err := s.writeDocx("Meeting notes", resp.Content)
		if err != nil {
			slog.Warn("summary docx export failed", "err", err)
		} else {
			sum.DocxPath = docxPath
		}
	}

	slog.Info("summary saved",
		"path", path,
		"provider", p.String(),
		"model", model,
		"tokens", resp.Usage.TotalTokens,
		"took", time.Since(start),
	)
	return sum, nil
}

// resolveKey returns the API key for ep. The credential store is only
// consulted for endpoints that need a credential.
func (s *Summarizer) resolveKey(ep Endpoint) (string, error) {
	if key := strings.TrimSpace(ep.APIKey); key != "" {
		return key, nil
	}
	if !ep.RequiresCredential {
		return "", nil
	}
	if s.creds == nil {
		return "", ErrMissingCredential
	}
	key, err := s.creds.Get()
	switch {
	case err == nil && strings.TrimSpace(key) != "":
		return strings.TrimSpace(key), nil
	case err == nil || errors.Is(err, credential.ErrNotFound):
		return "", ErrMissingCredential
	default:
		return "", fmt.Errorf("%w: %w", ErrMissingCredential, err)
	}
}
