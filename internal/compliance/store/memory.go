package store

import (
	"context"
	"sync"

	"dealflow/internal/compliance/models"
	id "dealflow/pkg/domain"
	"dealflow/pkg/platform/sentinel"
)

// InMemory keeps compliance records in a mutex-guarded map keyed by the
// condition they close out.
type InMemory struct {
	mu      sync.RWMutex
	records map[id.ConditionID]*models.Record
}

func NewInMemory() *InMemory {
	return &InMemory{records: make(map[id.ConditionID]*models.Record)}
}

func (s *InMemory) Upsert(_ context.Context, r *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *r
	s.records[r.ConditionID] = &copied
	return nil
}

func (s *InMemory) FindByCondition(_ context.Context, conditionID id.ConditionID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[conditionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

// Execute atomically validates then mutates one record while holding the
// store lock, mirroring a SELECT ... FOR UPDATE in the postgres store.
func (s *InMemory) Execute(_ context.Context, conditionID id.ConditionID, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[conditionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(r); err != nil {
		return nil, err
	}
	mutate(r)
	copied := *r
	return &copied, nil
}
