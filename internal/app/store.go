package app

import (
	"sync"
	"time"

	"github.com/bft-labs/serialbridge/internal/domain"
)

// Store holds the two published slots.
// One writer (the ingestor) publishes; any number of HTTP handlers read.
// A single RWMutex guards both slots so readers always copy a whole slot.
type Store struct {
	mu          sync.RWMutex
	current     domain.Slot
	lastChanged domain.Slot
	published   uint64
	changes     uint64
	now         func() time.Time
}

// NewStore creates a store with both slots absent.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Publish sets current to frame and, iff changed, lastChanged as well.
// Both slots written by one call share UpdatedAt and Seq.
func (s *Store) Publish(frame domain.Frame, changed bool) domain.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.published++
	slot := domain.Slot{
		Frame:     frame,
		Present:   true,
		UpdatedAt: s.now(),
		Seq:       s.published,
	}
	s.current = slot
	if changed {
		s.changes++
		s.lastChanged = slot
	}
	return slot
}

// Current returns a copy of the current slot.
func (s *Store) Current() domain.Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// LastChanged returns a copy of the last changed slot.
func (s *Store) LastChanged() domain.Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastChanged
}

// Snapshot returns both slots and the publish counters from one read section.
func (s *Store) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Snapshot{
		Current:     s.current,
		LastChanged: s.lastChanged,
		Published:   s.published,
		Changes:     s.changes,
	}
}
