// Package memstore provides an in-memory persist.Store.
// This implementation is designed for fast unit testing and demos and does
// not persist data beyond the lifetime of the process.
package memstore

import (
	"bytes"
	"context"
	"sync"

	"github.com/yiblet/cliphist/internal/persist"
)

var _ persist.Store = (*MemoryStore)(nil)

// MemoryStore holds the document in memory. It is thread-safe.
type MemoryStore struct {
	mu    sync.RWMutex
	data  []byte
	saved bool
	saves int

	// LoadErr and SaveErr, when set, make the matching call fail.
	LoadErr error
	SaveErr error
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the saved document.
func (m *MemoryStore) Load(ctx context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if !m.saved {
		return nil, persist.ErrNotFound
	}
	return bytes.Clone(m.data), nil
}

// Save stores a copy of data.
func (m *MemoryStore) Save(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.data = bytes.Clone(data)
	m.saved = true
	m.saves++
	return nil
}

// Close releases resources (no-op for memory store).
func (m *MemoryStore) Close() error {
	return nil
}

// Saves returns how many times Save succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// SetErrors reconfigures the failure hooks while other goroutines may be
// using the store.
func (m *MemoryStore) SetErrors(load, save error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LoadErr = load
	m.SaveErr = save
}
