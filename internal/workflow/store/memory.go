package store

import (
	"context"
	"sort"
	"sync"

	"dealflow/internal/workflow/models"
	id "dealflow/pkg/domain"
	"dealflow/pkg/platform/sentinel"
)

// InMemory keeps transactions and steps in mutex-guarded maps. It backs
// unit tests and local runs.
type InMemory struct {
	mu           sync.RWMutex
	transactions map[id.TransactionID]*models.Transaction
	steps        map[id.StepID]*models.TransactionStep
}

func NewInMemory() *InMemory {
	return &InMemory{
		transactions: make(map[id.TransactionID]*models.Transaction),
		steps:        make(map[id.StepID]*models.TransactionStep),
	}
}

func (s *InMemory) CreateTransaction(_ context.Context, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transactions[t.ID]; exists {
		return sentinel.ErrConflict
	}
	copied := *t
	s.transactions[t.ID] = &copied
	return nil
}

func (s *InMemory) FindTransaction(_ context.Context, txID id.TransactionID) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[txID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *t
	return &copied, nil
}

func (s *InMemory) UpdateTransaction(_ context.Context, t *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[t.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copied := *t
	s.transactions[t.ID] = &copied
	return nil
}

// DeleteTransaction removes a transaction and all of its steps. Deleting
// an absent transaction is a no-op.
func (s *InMemory) DeleteTransaction(_ context.Context, txID id.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transactions, txID)
	for stepID, step := range s.steps {
		if step.TransactionID == txID {
			delete(s.steps, stepID)
		}
	}
	return nil
}

func (s *InMemory) CreateStep(_ context.Context, step *models.TransactionStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.steps[step.ID]; exists {
		return sentinel.ErrConflict
	}
	for _, existing := range s.steps {
		if existing.TransactionID == step.TransactionID && existing.StepOrder == step.StepOrder {
			return sentinel.ErrConflict
		}
	}
	copied := *step
	s.steps[step.ID] = &copied
	return nil
}

func (s *InMemory) FindStep(_ context.Context, stepID id.StepID) (*models.TransactionStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	step, ok := s.steps[stepID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *step
	return &copied, nil
}

func (s *InMemory) FindStepByOrder(_ context.Context, txID id.TransactionID, order int) (*models.TransactionStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, step := range s.steps {
		if step.TransactionID == txID && step.StepOrder == order {
			copied := *step
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListSteps(_ context.Context, txID id.TransactionID) ([]*models.TransactionStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.TransactionStep
	for _, step := range s.steps {
		if step.TransactionID == txID {
			copied := *step
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepOrder < out[j].StepOrder })
	return out, nil
}

func (s *InMemory) UpdateStep(_ context.Context, step *models.TransactionStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.steps[step.ID]; !ok {
		return sentinel.ErrNotFound
	}
	copied := *step
	s.steps[step.ID] = &copied
	return nil
}
