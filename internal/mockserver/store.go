// Package mockserver is an in-memory URL shortener implementing the API the
// load profiles drive. It exists for local runs and tests.
package mockserver

import (
	"sync"

	"github.com/google/uuid"
)

// Entry is one stored short URL.
type Entry struct {
	ID          string
	OriginalURL string
	Clicks      int64
}

// Store maps short ids to entries. It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*Entry)}
}

// Insert stores originalURL under a fresh id. Inserting the same URL twice
// yields two ids.
func (s *Store) Insert(originalURL string) string {
	id := uuid.New().String()

	s.mu.Lock()
	s.entries[id] = &Entry{ID: id, OriginalURL: originalURL}
	s.mu.Unlock()

	return id
}

// Visit counts a click and returns the original URL.
func (s *Store) Visit(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return "", false
	}
	e.Clicks++
	return e.OriginalURL, true
}

// Get returns a copy of the entry.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of stored URLs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
