// Package memory is an in-memory sched.Repository used by tests, so
// scheduler-core behavior can be exercised without a Postgres instance.
package memory

import (
	"context"
	"sync"

	"github.com/minisource/schedulerd/internal/sched/job"
)

// Store is a map-backed sched.Repository.
type Store struct {
	mu      sync.Mutex
	seed    []*job.Record
	dropped []job.Identity
}

// NewStore creates a Store that returns seed from every LoadAll call.
// Tests construct seed directly with job.New.
func NewStore(seed []*job.Record) *Store {
	return &Store{seed: seed}
}

// LoadAll returns the seeded records. Called once at manager boot.
func (s *Store) LoadAll(ctx context.Context) ([]*job.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seed, nil
}

// DropPersisted records id as dropped; tests assert against Dropped().
func (s *Store) DropPersisted(ctx context.Context, id job.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropped = append(s.dropped, id)
	return nil
}

// Dropped returns every identity passed to DropPersisted so far.
func (s *Store) Dropped() []job.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]job.Identity, len(s.dropped))
	copy(out, s.dropped)
	return out
}
