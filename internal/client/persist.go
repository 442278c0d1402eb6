package client

import (
	"encoding/json"
	"os"
	"sync"
)

// The two keys the app persists between sessions. Both are cleared on
// sign-out and on account deletion.
const (
	// KeyLastRoute holds the last visited route path+query+hash so a
	// reload can restore it.
	KeyLastRoute = "brandbond.lastRoute"
	// KeyRegistrationDraft holds in-progress registration form data.
	KeyRegistrationDraft = "brandbond.registrationDraft"
)

// StateStore persists small key/value state across client restarts.
type StateStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryStore is an in-process StateStore for tests and ephemeral clients.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// FileStore persists state as a JSON object on disk.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore constructs a store backed by the given file path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		return "", false
	}
	value, ok := values[key]
	return value, ok
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		values = map[string]string{}
	}
	values[key] = value
	return s.write(values)
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.read()
	if err != nil {
		return nil
	}
	delete(values, key)
	return s.write(values)
}

func (s *FileStore) read() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	values := map[string]string{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *FileStore) write(values map[string]string) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o600)
}
