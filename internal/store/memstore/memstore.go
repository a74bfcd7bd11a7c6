// Package memstore provides an in-memory store implementation for testing.
package memstore

import (
	"context"
	"sync"

	"github.com/discochess/irwin/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store is an in-memory store for testing. Blobs are kept uncompressed.
type Store struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	writes int
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		blobs: make(map[string][]byte),
	}
}

// Read returns a copy of the blob stored under name.
func (s *Store) Read(ctx context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[name]
	if !ok {
		return nil, store.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Write stores a copy of data under name.
func (s *Store) Write(ctx context.Context, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[name] = append([]byte(nil), data...)
	s.writes++
	return nil
}

// Writes returns how many Write calls succeeded.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Close is a no-op for the memory store.
func (s *Store) Close() error {
	return nil
}
