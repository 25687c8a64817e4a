package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	conditionmetrics "dealflow/internal/condition/metrics"
	"dealflow/internal/condition/models"
	"dealflow/internal/evidence"
	id "dealflow/pkg/domain"
	dErrors "dealflow/pkg/domain-errors"
	"dealflow/pkg/platform/sentinel"
	"dealflow/pkg/requestcontext"
)

// Store is the condition persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, c *models.Condition) error
	FindByID(ctx context.Context, conditionID id.ConditionID) (*models.Condition, error)
	ListByTransaction(ctx context.Context, txID id.TransactionID) ([]*models.Condition, error)
	Execute(ctx context.Context, conditionID id.ConditionID, validate func(*models.Condition) error, mutate func(*models.Condition)) (*models.Condition, error)
}

// GateInvalidator drops any cached gating decision for a transaction after
// a condition mutation. A nil invalidator is a no-op.
type GateInvalidator interface {
	Invalidate(ctx context.Context, txID id.TransactionID)
}

// Service is the condition resolution state machine. All condition status
// mutations in the system go through it.
type Service struct {
	conditions Store
	evidence   evidence.Store
	gate       GateInvalidator
	metrics    *conditionmetrics.Metrics
	logger     *slog.Logger
}

type Option func(*Service)

func WithEvidenceStore(store evidence.Store) Option {
	return func(s *Service) { s.evidence = store }
}

func WithGateInvalidator(gate GateInvalidator) Option {
	return func(s *Service) { s.gate = gate }
}

func WithMetrics(m *conditionmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(conditions Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{conditions: conditions, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateManual records an operator-entered condition outside any pack.
func (s *Service) CreateManual(ctx context.Context, txID id.TransactionID, stepID *id.StepID, title string, category models.Category, level models.Level, dueDate *time.Time) (*models.Condition, error) {
	now := requestcontext.Now(ctx)
	c, err := models.New(id.NewConditionID(), txID, title, category, level, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid condition")
	}
	c.StepID = stepID
	c.DueDate = dueDate
	if err := s.conditions.Create(ctx, c); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create condition")
	}
	s.invalidateGate(ctx, txID)
	return c, nil
}

// Resolve transitions a condition from pending to completed, enforcing the
// level-specific evidence and escape-hatch rules. Completed blocking and
// required conditions are immutable; attempting to resolve one again is a
// conflict with no state change.
func (s *Service) Resolve(ctx context.Context, conditionID id.ConditionID, input models.ResolveInput) (*models.Condition, error) {
	if conditionID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "condition id is required")
	}

	now := requestcontext.Now(ctx)
	actor := requestcontext.UserID(ctx)

	resolved, err := s.conditions.Execute(ctx, conditionID,
		func(c *models.Condition) error {
			return c.CanResolve(input)
		},
		func(c *models.Condition) {
			c.ApplyResolution(input, now, actor)
		},
	)
	if err != nil {
		return nil, wrapConditionErr(err)
	}

	s.recordEvidence(ctx, resolved, input, now, actor)
	s.invalidateGate(ctx, resolved.TransactionID)

	if s.metrics != nil {
		s.metrics.IncrementResolved(string(resolved.Level))
		if resolved.EscapedWithoutProof {
			s.metrics.IncrementEscapes()
		}
	}
	return resolved, nil
}

// Unresolve toggles a completed recommended condition back to pending.
func (s *Service) Unresolve(ctx context.Context, conditionID id.ConditionID) (*models.Condition, error) {
	if conditionID.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "condition id is required")
	}

	now := requestcontext.Now(ctx)
	updated, err := s.conditions.Execute(ctx, conditionID,
		func(c *models.Condition) error {
			return c.CanUnresolve()
		},
		func(c *models.Condition) {
			c.ApplyUnresolve(now)
		},
	)
	if err != nil {
		return nil, wrapConditionErr(err)
	}

	s.invalidateGate(ctx, updated.TransactionID)
	if s.metrics != nil {
		s.metrics.IncrementUnresolved()
	}
	return updated, nil
}

// Get returns a single condition.
func (s *Service) Get(ctx context.Context, conditionID id.ConditionID) (*models.Condition, error) {
	c, err := s.conditions.FindByID(ctx, conditionID)
	if err != nil {
		return nil, wrapConditionErr(err)
	}
	return c, nil
}

// ListByTransaction returns every condition on a transaction, archived ones
// included.
func (s *Service) ListByTransaction(ctx context.Context, txID id.TransactionID) ([]*models.Condition, error) {
	list, err := s.conditions.ListByTransaction(ctx, txID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list conditions")
	}
	return list, nil
}

// recordEvidence writes an evidence row for a resolution that carried a
// reference. Evidence persistence is secondary: a failure is logged and
// surfaced through metrics, never unwound into the committed resolution.
func (s *Service) recordEvidence(ctx context.Context, c *models.Condition, input models.ResolveInput, now time.Time, actor id.UserID) {
	if s.evidence == nil || !input.HasEvidence || input.EvidenceRef == "" {
		return
	}
	err := s.evidence.Save(ctx, &evidence.Evidence{
		ID:          id.NewEvidenceID(),
		ConditionID: c.ID,
		Kind:        evidence.KindFile,
		Ref:         input.EvidenceRef,
		Note:        input.Note,
		CreatedAt:   now,
		CreatedBy:   actor,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "evidence row not recorded",
			"condition_id", c.ID.String(),
			"error", err.Error(),
		)
	}
}

func (s *Service) invalidateGate(ctx context.Context, txID id.TransactionID) {
	if s.gate != nil {
		s.gate.Invalidate(ctx, txID)
	}
}

func wrapConditionErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "condition not found")
	case dErrors.HasCode(err, dErrors.CodeConflict),
		dErrors.HasCode(err, dErrors.CodeValidation):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "condition store failure")
	}
}
