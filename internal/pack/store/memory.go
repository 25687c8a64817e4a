package store

import (
	"context"
	"sync"

	conditionmodels "dealflow/internal/condition/models"
	"dealflow/internal/pack/models"
	id "dealflow/pkg/domain"
	"dealflow/pkg/platform/sentinel"
)

// InMemory is the pack catalog. Packs are curated configuration rather
// than user data, so an in-memory catalog seeded at startup is the
// primary store.
type InMemory struct {
	mu    sync.RWMutex
	packs map[id.PackID]*models.Pack
}

func NewInMemory() *InMemory {
	return &InMemory{packs: make(map[id.PackID]*models.Pack)}
}

// NewSeeded returns a catalog preloaded with the standard packs.
func NewSeeded() *InMemory {
	s := NewInMemory()
	for _, p := range standardPacks() {
		s.packs[p.ID] = p
	}
	return s
}

func (s *InMemory) Put(_ context.Context, p *models.Pack) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *p
	copied.Templates = append([]models.ConditionTemplate(nil), p.Templates...)
	s.packs[p.ID] = &copied
	return nil
}

func (s *InMemory) Find(_ context.Context, packID id.PackID) (*models.Pack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.packs[packID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *p
	copied.Templates = append([]models.ConditionTemplate(nil), p.Templates...)
	return &copied, nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Pack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Pack, 0, len(s.packs))
	for _, p := range s.packs {
		copied := *p
		copied.Templates = append([]models.ConditionTemplate(nil), p.Templates...)
		out = append(out, &copied)
	}
	return out, nil
}

// standardPacks is the built-in catalog. Template IDs are fixed so dedup
// holds across repeated applications and catalog reloads.
func standardPacks() []*models.Pack {
	return []*models.Pack{
		{
			ID:   "universal",
			Name: "Universal Purchase Conditions",
			Templates: []models.ConditionTemplate{
				{
					ID:                id.MustParseTemplateID("7e6f1f3a-9c1d-4f7e-8a2b-0d5c4e3b2a19"),
					PackID:            "universal",
					Title:             "Financing approved",
					Category:          conditionmodels.CategoryFinancing,
					Level:             conditionmodels.LevelBlocking,
					OffsetDays:        -10,
					DeadlineReference: models.DeadlineFromClosing,
				},
				{
					ID:                id.MustParseTemplateID("3b8e2c51-6d4a-49f0-b7c3-9e1a5d8f4c26"),
					PackID:            "universal",
					Title:             "Home inspection completed",
					Category:          conditionmodels.CategoryInspection,
					Level:             conditionmodels.LevelBlocking,
					OffsetDays:        7,
					DeadlineReference: models.DeadlineFromApplication,
				},
				{
					ID:                id.MustParseTemplateID("a94d7b20-1e8f-4c6a-95d2-3f7b6c0e9a84"),
					PackID:            "universal",
					Title:             "Property insurance bound",
					Category:          conditionmodels.CategoryInsurance,
					Level:             conditionmodels.LevelRequired,
					OffsetDays:        -3,
					DeadlineReference: models.DeadlineFromClosing,
				},
				{
					ID:       id.MustParseTemplateID("c15a9e47-8b2d-4f30-a6e1-7d4c2b8f5e93"),
					PackID:   "universal",
					Title:    "Identity verification",
					Category: conditionmodels.CategoryIdentityVerification,
					Level:    conditionmodels.LevelBlocking,
					Global:   true,
				},
				{
					ID:       id.MustParseTemplateID("f82c4d16-3a7e-49b5-8c0d-2e6f1a9b7d45"),
					PackID:   "universal",
					Title:    "Review neighbourhood reports",
					Category: conditionmodels.CategoryGeneral,
					Level:    conditionmodels.LevelRecommended,
				},
			},
		},
		{
			ID:   "condo",
			Name: "Condominium Addendum",
			Templates: []models.ConditionTemplate{
				{
					ID:                id.MustParseTemplateID("5d3f8a29-7c1b-4e60-92a4-b6e8d0c3f517"),
					PackID:            "condo",
					Title:             "Status certificate reviewed",
					Category:          conditionmodels.CategoryGeneral,
					Level:             conditionmodels.LevelBlocking,
					OffsetDays:        10,
					DeadlineReference: models.DeadlineFromApplication,
				},
				{
					ID:       id.MustParseTemplateID("9a6b2e74-4d8c-4f15-b3e0-c7f9a1d5e628"),
					PackID:   "condo",
					Title:    "Reserve fund study reviewed",
					Category: conditionmodels.CategoryGeneral,
					Level:    conditionmodels.LevelRecommended,
				},
			},
		},
	}
}
