package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/worklens/backend/pkg/store"
)

// Store is an in-memory DocumentStore used by tests and local runs. It
// mirrors the batching behavior of the persistent store: DeleteAll removes
// documents in chunks of at most store.BatchLimit and records each batch
// size so chunking is observable.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string]map[string]map[string]any

	// DeleteBatches holds the size of every delete batch issued, in order.
	DeleteBatches []int
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]map[string]map[string]map[string]any),
	}
}

// lookup is the read-side accessor; it never allocates buckets and is safe
// under the read lock.
func (s *Store) lookup(tenant, collection string) map[string]map[string]any {
	t, ok := s.data[tenant]
	if !ok {
		return nil
	}
	return t[collection]
}

func (s *Store) collection(tenant, collection string) map[string]map[string]any {
	t, ok := s.data[tenant]
	if !ok {
		t = make(map[string]map[string]map[string]any)
		s.data[tenant] = t
	}
	c, ok := t[collection]
	if !ok {
		c = make(map[string]map[string]any)
		t[collection] = c
	}
	return c
}

// clone passes fields through JSON so stored documents never alias caller
// maps and value types match what a persistent store would return.
func clone(fields map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return out, nil
}

func (s *Store) List(ctx context.Context, tenant, collection string) ([]store.Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.lookup(tenant, collection)
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	docs := make([]store.Doc, 0, len(ids))
	for _, id := range ids {
		data, err := clone(c[id])
		if err != nil {
			return nil, err
		}
		docs = append(docs, store.Doc{ID: id, Data: data})
	}
	return docs, nil
}

func (s *Store) Get(ctx context.Context, tenant, collection, id string) (map[string]any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields, ok := s.lookup(tenant, collection)[id]
	if !ok {
		return nil, false, nil
	}
	data, err := clone(fields)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *Store) Upsert(ctx context.Context, tenant, collection, id string, fields map[string]any, merge bool) error {
	if id == "" {
		return fmt.Errorf("document id is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.collection(tenant, collection)
	data, err := clone(fields)
	if err != nil {
		return err
	}
	if existing, ok := c[id]; ok && merge {
		data = store.MergeFields(existing, data)
	}
	c[id] = data
	return nil
}

func (s *Store) DeleteAll(ctx context.Context, tenant, collection string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.lookup(tenant, collection)
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	err := store.ChunkRange(len(ids), store.BatchLimit, func(start, end int) error {
		for _, id := range ids[start:end] {
			delete(c, id)
		}
		s.DeleteBatches = append(s.DeleteBatches, end-start)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (s *Store) Query(ctx context.Context, tenant, collection, field, prefix string, limit int) ([]store.Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type match struct {
		id    string
		key   string
		data  map[string]any
	}

	p := strings.ToLower(prefix)
	matches := make([]match, 0)
	for id, fields := range s.lookup(tenant, collection) {
		value, ok := fields[field].(string)
		if !ok {
			continue
		}
		key := strings.ToLower(value)
		if !strings.HasPrefix(key, p) {
			continue
		}
		data, err := clone(fields)
		if err != nil {
			return nil, err
		}
		matches = append(matches, match{id: id, key: key, data: data})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].key != matches[j].key {
			return matches[i].key < matches[j].key
		}
		return matches[i].id < matches[j].id
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	docs := make([]store.Doc, 0, len(matches))
	for _, m := range matches {
		docs = append(docs, store.Doc{ID: m.id, Data: m.data})
	}
	return docs, nil
}

func (s *Store) Count(ctx context.Context, tenant, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lookup(tenant, collection)), nil
}
