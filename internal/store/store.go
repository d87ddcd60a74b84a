package store

import (
	"errors"
	"fmt"
	"sync"
)

// ErrCapacity is returned by Write when the record sequence would push the
// store past its byte budget. Overflow is a hard failure, not graceful
// degradation; size the capacity generously relative to expected peak
// in-flight items per slot.
var ErrCapacity = errors.New("store: capacity exceeded")

// ErrClosed is returned by Write after the store has been destroyed.
var ErrClosed = errors.New("store: closed")

// Store is a bounded key-to-slot mapping shared by the supervisor and all
// workers. See the package documentation for the locking discipline.
type Store struct {
	capacity int
	used     int
	slots    map[int][][]byte
	closed   bool

	closeOnce sync.Once
}

// Open creates a Store with the given byte capacity.
func Open(capacity int) (*Store, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("store: capacity must be positive, got %d", capacity)
	}
	return &Store{
		capacity: capacity,
		slots:    make(map[int][][]byte),
	}, nil
}

// Read returns the record sequence at key, or an empty sequence when the
// slot is unset. The returned slice is a copy; mutating it does not affect
// the slot. Callers must hold the Guard.
func (s *Store) Read(key int) [][]byte {
	recs := s.slots[key]
	if len(recs) == 0 {
		return nil
	}
	out := make([][]byte, len(recs))
	copy(out, recs)
	return out
}

// Write replaces the slot at key with recs; an empty sequence clears the
// slot. Callers must hold the Guard.
func (s *Store) Write(key int, recs [][]byte) error {
	if s.closed {
		return ErrClosed
	}
	newSize := 0
	for _, r := range recs {
		newSize += len(r)
	}
	oldSize := 0
	for _, r := range s.slots[key] {
		oldSize += len(r)
	}
	if s.used-oldSize+newSize > s.capacity {
		return ErrCapacity
	}
	s.used += newSize - oldSize
	if len(recs) == 0 {
		delete(s.slots, key)
		return nil
	}
	kept := make([][]byte, len(recs))
	copy(kept, recs)
	s.slots[key] = kept
	return nil
}

// Used reports the current byte footprint across all slots. Callers must
// hold the Guard.
func (s *Store) Used() int {
	return s.used
}

// Capacity reports the byte budget fixed at creation.
func (s *Store) Capacity() int {
	return s.capacity
}

// Close destroys the backing region. Safe to call more than once; only the
// first call has effect. Only the process that created the store closes it.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closed = true
		s.slots = nil
		s.used = 0
	})
	return nil
}
