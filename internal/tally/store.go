// Package tally owns the authoritative in-memory vote counts.
//
// The unit set is fixed when the Store is built. Counters only move through
// ApplyVote, and every read hands out a copy.
package tally

import (
	"fmt"
	"sync"
)

// Snapshot is a point-in-time copy of every unit, in configured order.
// Version counts the votes accepted before the copy was taken.
type Snapshot struct {
	Version uint64
	Units   []Unit
}

// ByID indexes the snapshot's units by id.
func (s Snapshot) ByID() map[string]Unit {
	m := make(map[string]Unit, len(s.Units))
	for _, u := range s.Units {
		m[u.ID] = u
	}
	return m
}

// Unit returns the unit with the given id from the snapshot.
func (s Snapshot) Unit(id string) (Unit, bool) {
	for _, u := range s.Units {
		if u.ID == id {
			return u, true
		}
	}
	return Unit{}, false
}

type Store struct {
	mu      sync.RWMutex
	units   []Unit
	index   map[string]int
	version uint64
}

// NewStore builds a store over units. Positions are assigned from slice order
// and any counters in the input are kept as the starting values. Duplicate ids
// are rejected.
func NewStore(units []Unit) (*Store, error) {
	s := &Store{
		units: make([]Unit, len(units)),
		index: make(map[string]int, len(units)),
	}
	for i, u := range units {
		if u.ID == "" {
			return nil, fmt.Errorf("unit %d: empty id", i)
		}
		if _, dup := s.index[u.ID]; dup {
			return nil, fmt.Errorf("unit %d: duplicate id %q", i, u.ID)
		}
		u.Position = i
		s.units[i] = u
		s.index[u.ID] = i
	}
	return s, nil
}

// Snapshot returns a copy of all units. It is safe to call concurrently with
// ApplyVote.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	units := make([]Unit, len(s.units))
	copy(units, s.units)
	return Snapshot{Version: s.version, Units: units}
}

func (s *Store) Get(id string) (Unit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return Unit{}, false
	}
	return s.units[i], true
}

// ApplyVote increments one counter of one unit by exactly one and returns the
// updated unit. Authorization is not checked here.
func (s *Store) ApplyVote(unitID string, o Option) (Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[unitID]
	if !ok {
		return Unit{}, fmt.Errorf("%w: %q", ErrNotFound, unitID)
	}
	if !s.units[i].Votes.incr(o) {
		return Unit{}, fmt.Errorf("%w: %q", ErrInvalidOption, o)
	}
	s.version++
	return s.units[i], nil
}

// Version is the number of votes applied since the store was built.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.units)
}
