package store

import (
	"context"
	"sync"
	"time"

	"dealflow/internal/condition/models"
	id "dealflow/pkg/domain"
	"dealflow/pkg/platform/sentinel"
)

// InMemory keeps conditions in a mutex-guarded map. It favors clarity over
// performance and backs unit tests and local runs.
type InMemory struct {
	mu         sync.RWMutex
	conditions map[id.ConditionID]*models.Condition
}

func NewInMemory() *InMemory {
	return &InMemory{conditions: make(map[id.ConditionID]*models.Condition)}
}

func (s *InMemory) Create(_ context.Context, c *models.Condition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.conditions[c.ID]; exists {
		return sentinel.ErrConflict
	}
	copied := *c
	s.conditions[c.ID] = &copied
	return nil
}

func (s *InMemory) FindByID(_ context.Context, conditionID id.ConditionID) (*models.Condition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conditions[conditionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (s *InMemory) ListByTransaction(_ context.Context, txID id.TransactionID) ([]*models.Condition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Condition
	for _, c := range s.conditions {
		if c.TransactionID == txID {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

// ListGating returns unarchived conditions that belong to the given step or
// are unassigned (global) on the transaction. Both pending and completed
// rows are returned; the gate computation needs the full picture.
func (s *InMemory) ListGating(_ context.Context, txID id.TransactionID, stepID *id.StepID) ([]*models.Condition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Condition
	for _, c := range s.conditions {
		if c.TransactionID != txID || c.Archived {
			continue
		}
		if c.StepID == nil || (stepID != nil && *c.StepID == *stepID) {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

// Execute atomically validates then mutates one condition while holding the
// store lock, mirroring a SELECT ... FOR UPDATE in the postgres store.
func (s *InMemory) Execute(_ context.Context, conditionID id.ConditionID, validate func(*models.Condition) error, mutate func(*models.Condition)) (*models.Condition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conditions[conditionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(c); err != nil {
		return nil, err
	}
	mutate(c)
	copied := *c
	return &copied, nil
}

// ArchiveByStep freezes all unarchived conditions attached to the step.
// Unassigned conditions survive step close; they keep gating later steps.
func (s *InMemory) ArchiveByStep(_ context.Context, txID id.TransactionID, stepID id.StepID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conditions {
		if c.TransactionID == txID && c.StepID != nil && *c.StepID == stepID {
			c.ApplyArchive(now)
		}
	}
	return nil
}

// ExistsByTemplate reports whether any condition on the transaction was
// materialized from the given template. Pack application uses it for
// additive dedup.
func (s *InMemory) ExistsByTemplate(_ context.Context, txID id.TransactionID, templateID id.TemplateID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conditions {
		if c.TransactionID == txID && c.TemplateID != nil && *c.TemplateID == templateID {
			return true, nil
		}
	}
	return false, nil
}
