// Package storage defines the generic key to string-blob persistence
// boundary used for favorites and session preferences.
package storage

import "sync"

// Blob keys used by the application.
const (
	KeyFavorites = "radio_favorites"
	KeyTheme     = "app-theme"
)

// KV is a durable key to string-blob store. Implementations must treat a
// missing key as (value "", ok false) rather than an error.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

// MemoryKV is an in-process KV implementation. Used by tests and by hosts
// that run with persistence disabled.
type MemoryKV struct {
	mu    sync.RWMutex
	blobs map[string]string
}

// NewMemoryKV creates an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{blobs: make(map[string]string)}
}

// Get returns the stored value for key.
func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.blobs[key]
	return v, ok, nil
}

// Set stores value under key.
func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = value
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (m *MemoryKV) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}
