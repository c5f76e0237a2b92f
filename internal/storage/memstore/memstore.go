// Package memstore provides an in-memory storage backend for
// development and testing.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/beborico/runway-crawler/internal/runway"
)

// Store keeps the snapshot in memory. It implements the same contract
// as the durable backends, including the single-writer guarantee.
type Store struct {
	mu       sync.Mutex
	snapshot runway.Snapshot
	written  bool

	// FailNextWrite forces the next Write to fail; tests use it to
	// exercise rollback paths.
	FailNextWrite error

	// Writes counts successful Write calls.
	Writes int
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{snapshot: runway.NewSnapshot(time.Now().UTC())}
}

// Read returns a deep copy of the stored snapshot.
func (s *Store) Read(_ context.Context) (runway.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Clone(), nil
}

// Write replaces the stored snapshot.
func (s *Store) Write(_ context.Context, snap runway.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailNextWrite != nil {
		err := s.FailNextWrite
		s.FailNextWrite = nil
		return err
	}
	s.snapshot = snap.Clone()
	s.written = true
	s.Writes++
	return nil
}

// Exists reports whether anything has been written.
func (s *Store) Exists(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written, nil
}

// Location identifies the store for logs.
func (s *Store) Location() string {
	return "memory"
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
