// Package offer tracks offer acceptance per transaction. The advancement
// gate consults it for steps that require an accepted offer; the full
// negotiation lifecycle lives elsewhere and only the accepted fact matters
// here.
package offer

import (
	"context"
	"sync"
	"time"

	id "dealflow/pkg/domain"
)

// Store records and reports offer acceptance.
type Store interface {
	MarkAccepted(ctx context.Context, txID id.TransactionID, at time.Time) error
	ClearAccepted(ctx context.Context, txID id.TransactionID) error
	HasAcceptedOffer(ctx context.Context, txID id.TransactionID) (bool, error)
}

// InMemoryStore keeps acceptance flags in a mutex-guarded map.
type InMemoryStore struct {
	mu       sync.RWMutex
	accepted map[id.TransactionID]time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{accepted: make(map[id.TransactionID]time.Time)}
}

func (s *InMemoryStore) MarkAccepted(_ context.Context, txID id.TransactionID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted[txID] = at
	return nil
}

func (s *InMemoryStore) ClearAccepted(_ context.Context, txID id.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accepted, txID)
	return nil
}

func (s *InMemoryStore) HasAcceptedOffer(_ context.Context, txID id.TransactionID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accepted[txID]
	return ok, nil
}
