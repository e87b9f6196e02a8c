package auth

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mrz1836/sigilgate/internal/fileutil"
)

// FileStore keeps flags in one JSON object on disk. Every write replaces
// the file atomically.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path. The file is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Get returns the value stored under key.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flags, err := s.load()
	if err != nil {
		return nil, false, err
	}
	v, ok := flags[key]
	return []byte(v), ok, nil
}

// Put stores value under key. value must be valid JSON.
func (s *FileStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flags, err := s.load()
	if err != nil {
		return err
	}
	flags[key] = json.RawMessage(append([]byte(nil), value...))
	return fileutil.WriteJSON(s.path, flags, 0o600)
}

// Delete removes keys. The file is not rewritten when nothing changed.
func (s *FileStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flags, err := s.load()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := flags[k]; ok {
			delete(flags, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return fileutil.WriteJSON(s.path, flags, 0o600)
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) load() (map[string]json.RawMessage, error) {
	flags := map[string]json.RawMessage{}
	if _, err := fileutil.ReadJSON(s.path, &flags); err != nil {
		return nil, err
	}
	if flags == nil {
		flags = map[string]json.RawMessage{}
	}
	return flags, nil
}
