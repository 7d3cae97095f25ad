package session

import (
	"context"
	"fmt"
	"iter"
	"sync"
)

// MemoryStore is a volatile [Store] keeping encoded envelopes in a process
// local map. Records round-trip through the binary codec so behavior matches
// the durable backends exactly. Best suited for tests and ephemeral demo
// servers.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore constructs an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// Put commits rec under the store mutex, enforcing the version check against
// the currently stored envelope.
func (s *MemoryStore) Put(ctx context.Context, rec *Record, expectedVersion uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[rec.ID]
	if expectedVersion == NoVersion {
		if ok {
			return fmt.Errorf("%w: record exists", ErrVersionConflict)
		}
	} else {
		if !ok {
			return fmt.Errorf("%w: record gone, expected %d", ErrVersionConflict, expectedVersion)
		}
		stored, err := Decode(current)
		if err != nil {
			return err
		}
		if stored.Version != expectedVersion {
			return fmt.Errorf("%w: have %d, expected %d", ErrVersionConflict, stored.Version, expectedVersion)
		}
	}

	s.records[rec.ID] = data
	return nil
}

// Get decodes the stored envelope for id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	return Decode(data)
}

// Delete removes the record, failing with [ErrNotFound] when absent.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// ListIDs yields a point-in-time copy of the key set.
func (s *MemoryStore) ListIDs(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		s.mu.RLock()
		ids := make([]string, 0, len(s.records))
		for id := range s.records {
			ids = append(ids, id)
		}
		s.mu.RUnlock()

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				yield("", err)
				return
			}
			if !yield(id, nil) {
				return
			}
		}
	}
}

// Corrupt overwrites the stored bytes for id with arbitrary data. Test hook
// for exercising [ErrCorruptRecord] paths without a filesystem.
func (s *MemoryStore) Corrupt(id string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = data
}
