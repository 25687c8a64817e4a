package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	conditionmodels "dealflow/internal/condition/models"
	"dealflow/internal/pack/models"
	workflowmodels "dealflow/internal/workflow/models"
	id "dealflow/pkg/domain"
	dErrors "dealflow/pkg/domain-errors"
	"dealflow/pkg/platform/sentinel"
	"dealflow/pkg/requestcontext"
)

// Catalog serves pack definitions.
type Catalog interface {
	Find(ctx context.Context, packID id.PackID) (*models.Pack, error)
	List(ctx context.Context) ([]*models.Pack, error)
}

// ConditionStore is the slice of the condition store pack application
// needs: dedup lookup and creation.
type ConditionStore interface {
	ExistsByTemplate(ctx context.Context, txID id.TransactionID, templateID id.TemplateID) (bool, error)
	Create(ctx context.Context, c *conditionmodels.Condition) error
}

// TransactionReader resolves the target transaction and its active step.
// The workflow store satisfies it.
type TransactionReader interface {
	FindTransaction(ctx context.Context, txID id.TransactionID) (*workflowmodels.Transaction, error)
}

// GateInvalidator drops cached gate decisions after new conditions land.
type GateInvalidator interface {
	Invalidate(ctx context.Context, txID id.TransactionID)
}

// ItemError reports one template that failed to materialize.
type ItemError struct {
	TemplateID id.TemplateID `json:"template_id"`
	Title      string        `json:"title"`
	Reason     string        `json:"reason"`
}

// ApplyResult summarizes a pack application. Application is additive and
// tolerant: duplicates are skipped, individual failures are collected, and
// every template that can materialize does.
type ApplyResult struct {
	Created           []*conditionmodels.Condition `json:"created"`
	IgnoredDuplicates []id.TemplateID              `json:"ignored_duplicates"`
	Errors            []ItemError                  `json:"errors,omitempty"`
}

// Service applies condition packs to transactions.
type Service struct {
	catalog      Catalog
	conditions   ConditionStore
	transactions TransactionReader
	invalidator  GateInvalidator
	logger       *slog.Logger
}

type Option func(*Service)

func WithGateInvalidator(inv GateInvalidator) Option {
	return func(s *Service) { s.invalidator = inv }
}

func New(catalog Catalog, conditions ConditionStore, transactions TransactionReader, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		catalog:      catalog,
		conditions:   conditions,
		transactions: transactions,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListPacks returns the catalog.
func (s *Service) ListPacks(ctx context.Context) ([]*models.Pack, error) {
	packs, err := s.catalog.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list packs")
	}
	return packs, nil
}

// ApplyPack materializes pack templates onto the transaction. An empty
// selection means the whole pack; otherwise only the selected templates
// are applied. Conditions from templates already present on the
// transaction are silently skipped; a template that fails to materialize
// is reported in the result without aborting the rest.
func (s *Service) ApplyPack(ctx context.Context, txID id.TransactionID, packID id.PackID, selection []id.TemplateID) (*ApplyResult, error) {
	pack, err := s.catalog.Find(ctx, packID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "pack %q not found", packID)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pack")
	}

	t, err := s.transactions.FindTransaction(ctx, txID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "transaction not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load transaction")
	}
	if t.Complete() {
		return nil, dErrors.New(dErrors.CodeConflict, "transaction lifecycle is complete")
	}

	now := requestcontext.Now(ctx)
	result := &ApplyResult{}

	templates := pack.Templates
	if len(selection) > 0 {
		byID := make(map[id.TemplateID]models.ConditionTemplate, len(pack.Templates))
		for _, template := range pack.Templates {
			byID[template.ID] = template
		}
		templates = make([]models.ConditionTemplate, 0, len(selection))
		for _, templateID := range selection {
			template, ok := byID[templateID]
			if !ok {
				result.Errors = append(result.Errors, ItemError{
					TemplateID: templateID,
					Reason:     "template not in pack",
				})
				continue
			}
			templates = append(templates, template)
		}
	}

	for _, template := range templates {
		exists, err := s.conditions.ExistsByTemplate(ctx, txID, template.ID)
		if err != nil {
			result.Errors = append(result.Errors, ItemError{
				TemplateID: template.ID,
				Title:      template.Title,
				Reason:     "dedup lookup failed",
			})
			continue
		}
		if exists {
			result.IgnoredDuplicates = append(result.IgnoredDuplicates, template.ID)
			continue
		}

		condition, err := s.materialize(t, template, now)
		if err != nil {
			result.Errors = append(result.Errors, ItemError{
				TemplateID: template.ID,
				Title:      template.Title,
				Reason:     err.Error(),
			})
			continue
		}

		if err := s.conditions.Create(ctx, condition); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				// Lost a race with a concurrent application of the same
				// pack. Same outcome as the dedup check.
				result.IgnoredDuplicates = append(result.IgnoredDuplicates, template.ID)
				continue
			}
			s.logger.ErrorContext(ctx, "pack template failed to materialize",
				"pack_id", string(packID),
				"template_id", template.ID.String(),
				"error", err.Error(),
			)
			result.Errors = append(result.Errors, ItemError{
				TemplateID: template.ID,
				Title:      template.Title,
				Reason:     "store write failed",
			})
			continue
		}
		result.Created = append(result.Created, condition)
	}

	if len(result.Created) > 0 && s.invalidator != nil {
		s.invalidator.Invalidate(ctx, txID)
	}

	s.logger.InfoContext(ctx, "pack applied",
		"pack_id", string(packID),
		"transaction_id", txID.String(),
		"created", len(result.Created),
		"ignored", len(result.IgnoredDuplicates),
		"errors", len(result.Errors),
	)
	return result, nil
}

// materialize builds one condition from a template, anchoring the due date
// per the template's deadline reference.
func (s *Service) materialize(t *workflowmodels.Transaction, template models.ConditionTemplate, now time.Time) (*conditionmodels.Condition, error) {
	c, err := conditionmodels.New(id.NewConditionID(), t.ID, template.Title, template.Category, template.Level, now)
	if err != nil {
		return nil, err
	}
	templateID := template.ID
	c.TemplateID = &templateID

	if !template.Global && t.CurrentStepID != nil {
		stepID := *t.CurrentStepID
		c.StepID = &stepID
	}

	switch template.DeadlineReference {
	case models.DeadlineFromClosing:
		if t.ClosingDate != nil {
			due := t.ClosingDate.AddDate(0, 0, template.OffsetDays)
			c.DueDate = &due
		}
	case models.DeadlineFromApplication:
		due := now.AddDate(0, 0, template.OffsetDays)
		c.DueDate = &due
	}
	return c, nil
}
