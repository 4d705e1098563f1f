package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"ledgerflow/internal/record"
)

// MemStore is an in-memory Store for tests and dry runs.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string]map[string]record.Record // owner -> id -> record
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]map[string]record.Record)}
}

// Fetch returns the owner's entries ordered by date then ID.
func (s *MemStore) Fetch(_ context.Context, f record.Filter) ([]record.Record, error) {
	if f.OwnerID == "" {
		return nil, ErrNoOwner
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []record.Record
	for _, r := range s.entries[f.OwnerID] {
		if f.Includes(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].SourceID < out[j].SourceID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Get returns one entry or ErrNotFound.
func (s *MemStore) Get(_ context.Context, ownerID, id string) (record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.entries[ownerID][id]
	if !ok {
		return record.Record{}, fmt.Errorf("%w: %s/%s", ErrNotFound, ownerID, id)
	}
	return r, nil
}

// Create stores r for ownerID. An empty SourceID is assigned a UUID.
func (s *MemStore) Create(_ context.Context, ownerID string, r record.Record) (record.Record, error) {
	if ownerID == "" {
		return record.Record{}, ErrNoOwner
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.put(ownerID, r)
	if !ok {
		return record.Record{}, fmt.Errorf("%w: %s/%s", ErrDuplicate, ownerID, r.SourceID)
	}
	return r, nil
}

// Import stores every record whose ID is free.
func (s *MemStore) Import(_ context.Context, ownerID string, records []record.Record) (int, error) {
	if ownerID == "" {
		return 0, ErrNoOwner
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range records {
		if _, ok := s.put(ownerID, r); ok {
			n++
		}
	}
	return n, nil
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }

func (s *MemStore) put(ownerID string, r record.Record) (record.Record, bool) {
	if r.SourceID == "" {
		r.SourceID = uuid.NewString()
	}
	owned := s.entries[ownerID]
	if owned == nil {
		owned = make(map[string]record.Record)
		s.entries[ownerID] = owned
	}
	if _, taken := owned[r.SourceID]; taken {
		return r, false
	}
	owned[r.SourceID] = r
	return r, true
}
