package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ivlev/mockupwarp/internal/wizard"
)

var ErrSessionNotFound = errors.New("session not found")

type storeEntry struct {
	wizard *wizard.Wizard
	seen   time.Time
}

// Store keeps wizard sessions in memory. Entries idle for longer than ttl
// are dropped by Sweep.
type Store struct {
	mu    sync.Mutex
	items map[string]*storeEntry
	ttl   time.Duration
	now   func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		items: make(map[string]*storeEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *Store) Create(w *wizard.Wizard) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.items[id] = &storeEntry{wizard: w, seen: s.now()}
	s.mu.Unlock()
	return id
}

// Get returns the session and marks it as used.
func (s *Store) Get(id string) (*wizard.Wizard, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	e.seen = s.now()
	return e.wizard, nil
}

func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[id]
	delete(s.items, id)
	return ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Sweep removes expired sessions and returns how many were dropped.
func (s *Store) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	deadline := s.now().Add(-s.ttl)
	n := 0
	for id, e := range s.items {
		if e.seen.Before(deadline) {
			delete(s.items, id)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration, onSweep func(n int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}
