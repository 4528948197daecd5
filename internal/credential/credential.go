// Package credential stores the API key used by the remote summarization
// provider.
//
// The production store is a dotenv file next to the configuration. The
// process environment always takes precedence over the file, so a key
// exported in the shell is used without touching the file.
package credential

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// DefaultVariable is the variable name the remote provider's key is stored
// under.
const DefaultVariable = "OPENAI_API_KEY"

var (
	// ErrNotFound is returned by Get when no key is stored.
	ErrNotFound = errors.New("credential: not found")

	// ErrEmptyKey is returned by Set for a blank key.
	ErrEmptyKey = errors.New("credential: key must not be empty")
)

// Store reads and persists a single secret.
type Store interface {
	// Get returns the stored key or ErrNotFound.
	Get() (string, error)

	// Set persists key, replacing any previous value.
	Set(key string) error
}

// Compile-time interface assertions.
var (
	_ Store = (*EnvFileStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// EnvFileStore keeps the key in a dotenv file.
type EnvFileStore struct {
	path     string
	variable string

	mu sync.Mutex
}

// NewEnvFileStore returns a store backed by the dotenv file at path. An empty
// variable selects [DefaultVariable].
func NewEnvFileStore(path, variable string) *EnvFileStore {
	if variable == "" {
		variable = DefaultVariable
	}
	return &EnvFileStore{path: path, variable: variable}
}

// Path returns the dotenv file path.
func (s *EnvFileStore) Path() string { return s.path }

// Variable returns the variable name the key is stored under.
func (s *EnvFileStore) Variable() string { return s.variable }

// Get returns the key from the process environment, falling back to the
// dotenv file.
func (s *EnvFileStore) Get() (string, error) {
	if v := strings.TrimSpace(os.Getenv(s.variable)); v != "" {
		return v, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	env, err := s.read()
	if err != nil {
		return "", err
	}
	if v := strings.TrimSpace(env[s.variable]); v != "" {
		return v, nil
	}
	return "", ErrNotFound
}

// Set writes key to the dotenv file, keeping any other variables in it, and
// exports it into the process environment.
func (s *EnvFileStore) Set(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	env, err := s.read()
	if err != nil {
		return err
	}
	env[s.variable] = key

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("credential: create dir %q: %w", dir, err)
		}
	}
	if err := godotenv.Write(env, s.path); err != nil {
		return fmt.Errorf("credential: write %q: %w", s.path, err)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		return fmt.Errorf("credential: chmod %q: %w", s.path, err)
	}
	if err := os.Setenv(s.variable, key); err != nil {
		return fmt.Errorf("credential: export %s: %w", s.variable, err)
	}
	return nil
}

// read parses the dotenv file. A missing file is an empty map.
func (s *EnvFileStore) read() (map[string]string, error) {
	env, err := godotenv.Read(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credential: read %q: %w", s.path, err)
	}
	return env, nil
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu  sync.Mutex
	key string

	// SetErr, if non-nil, is returned by Set.
	SetErr error
}

// NewMemoryStore returns a MemoryStore holding key. An empty key means
// nothing is stored.
func NewMemoryStore(key string) *MemoryStore {
	return &MemoryStore{key: key}
}

// Get implements Store.
func (m *MemoryStore) Get() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.key == "" {
		return "", ErrNotFound
	}
	return m.key, nil
}

// Set implements Store.
func (m *MemoryStore) Set(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.key = key
	return nil
}
