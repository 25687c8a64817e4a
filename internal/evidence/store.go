package evidence

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	id "dealflow/pkg/domain"
)

// Store persists evidence rows.
type Store interface {
	Save(ctx context.Context, ev *Evidence) error
	ListByCondition(ctx context.Context, conditionID id.ConditionID) ([]*Evidence, error)
}

// DocumentStore writes document content somewhere durable and returns an
// opaque reference. Failures here are external-dependency failures and
// never corrupt core state.
type DocumentStore interface {
	Put(ctx context.Context, doc Document) (string, error)
}

// InMemoryStore keeps evidence rows in a mutex-guarded map.
type InMemoryStore struct {
	mu   sync.RWMutex
	rows map[id.ConditionID][]*Evidence
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rows: make(map[id.ConditionID][]*Evidence)}
}

func (s *InMemoryStore) Save(_ context.Context, ev *Evidence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *ev
	s.rows[ev.ConditionID] = append(s.rows[ev.ConditionID], &copied)
	return nil
}

func (s *InMemoryStore) ListByCondition(_ context.Context, conditionID id.ConditionID) ([]*Evidence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Evidence, 0, len(s.rows[conditionID]))
	for _, ev := range s.rows[conditionID] {
		copied := *ev
		out = append(out, &copied)
	}
	return out, nil
}

// InMemoryDocumentStore is a document store for tests and local runs. Refs
// look like "doc://<uuid>" so callers treat them as opaque.
type InMemoryDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]Document
}

func NewInMemoryDocumentStore() *InMemoryDocumentStore {
	return &InMemoryDocumentStore{docs: make(map[string]Document)}
}

func (s *InMemoryDocumentStore) Put(_ context.Context, doc Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := fmt.Sprintf("doc://%s", uuid.NewString())
	s.docs[ref] = doc
	return ref, nil
}

// Get exists for tests to confirm content round-trips.
func (s *InMemoryDocumentStore) Get(ref string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[ref]
	return doc, ok
}
