// Package memory provides an in-memory catalog.Store for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/wardrobe-ai/catalog-sync/internal/catalog"
)

// Store keeps products in memory, partitioned by source.
type Store struct {
	mu   sync.RWMutex
	rows map[string]map[string]catalog.Product
}

// New creates an empty Store.
func New() *Store {
	return &Store{rows: map[string]map[string]catalog.Product{}}
}

// Upsert inserts or replaces the product keyed by (source, id).
func (s *Store) Upsert(_ context.Context, p catalog.Product) error {
	if p.ID == "" {
		return fmt.Errorf("product id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	partition, ok := s.rows[p.Source]
	if !ok {
		partition = map[string]catalog.Product{}
		s.rows[p.Source] = partition
	}
	partition[p.ID] = p
	return nil
}

// ListIDs returns the ids persisted for source, sorted for determinism.
func (s *Store) ListIDs(_ context.Context, source string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	partition := s.rows[source]
	ids := make([]string, 0, len(partition))
	for id := range partition {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteBatch removes all given ids from the source partition.
func (s *Store) DeleteBatch(_ context.Context, source string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	partition := s.rows[source]
	for _, id := range ids {
		delete(partition, id)
	}
	return nil
}

// Delete removes one id from the source partition.
func (s *Store) Delete(_ context.Context, source string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows[source], id)
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Get returns the stored product, for test assertions.
func (s *Store) Get(source, id string) (catalog.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.rows[source][id]
	return p, ok
}
