package apiurl

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// StorageKey is the name under which the override is persisted.
const StorageKey = "api_base_url"

// Store persists the user's base-URL override. Get returns "" when no override is set.
type Store interface {
	Get() (string, error)
	Set(value string) error
	Clear() error
}

// MemoryStore keeps the override in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	value string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, nil
}

func (s *MemoryStore) Set(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
	return nil
}

func (s *MemoryStore) Clear() error {
	return s.Set("")
}

// stateFile is the on-disk layout of FileStore.
type stateFile struct {
	APIBaseURL string `yaml:"api_base_url,omitempty"`
}

// FileStore persists the override in a small YAML file so it survives restarts.
// The file is read once and cached; writes go through to disk.
type FileStore struct {
	path string

	mu     sync.Mutex
	loaded bool
	value  string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return "", err
	}
	return s.value, nil
}

func (s *FileStore) Set(value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value == "" {
		return s.clearLocked()
	}

	data, err := yaml.Marshal(stateFile{APIBaseURL: value})
	if err != nil {
		return fmt.Errorf("failed to encode state file: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	s.value = value
	s.loaded = true
	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked()
}

func (s *FileStore) clearLocked() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	s.value = ""
	s.loaded = true
	return nil
}

func (s *FileStore) loadLocked() error {
	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var state stateFile
	if err := yaml.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse state file %s: %w", s.path, err)
	}

	s.value = state.APIBaseURL
	s.loaded = true
	return nil
}
