package auth

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/mrz1836/sigilgate/internal/config"
	gateerr "github.com/mrz1836/sigilgate/pkg/errors"
)

// FlagStore persists sign-in flags, keyed like "signInAuth-23295".
type FlagStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// OpenStore opens the configured flag store.
func OpenStore(cfg config.AuthConfig) (FlagStore, error) {
	path := config.ExpandHome(cfg.Path)
	switch cfg.Store {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendFile:
		return NewFileStore(path), nil
	case BackendSQLite:
		if filepath.Ext(path) == ".json" {
			path = path[:len(path)-len(".json")] + ".db"
		}
		return NewSQLiteStore(path)
	default:
		return nil, gateerr.WithDetails(gateerr.ErrConfigInvalid, map[string]string{
			"auth.store": fmt.Sprintf("%q", cfg.Store),
		})
	}
}

// MemoryStore keeps flags for the life of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	flags map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{flags: map[string][]byte{}}
}

// Get returns the value stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.flags[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Put stores value under key.
func (s *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes keys. Missing keys are ignored.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.flags, k)
	}
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
