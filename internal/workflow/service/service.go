package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	conditionmodels "dealflow/internal/condition/models"
	"dealflow/internal/notify"
	"dealflow/internal/workflow/gate"
	workflowmetrics "dealflow/internal/workflow/metrics"
	"dealflow/internal/workflow/models"
	id "dealflow/pkg/domain"
	dErrors "dealflow/pkg/domain-errors"
	"dealflow/pkg/platform/sentinel"
	"dealflow/pkg/requestcontext"
)

// Store is the workflow persistence surface.
type Store interface {
	CreateTransaction(ctx context.Context, t *models.Transaction) error
	FindTransaction(ctx context.Context, txID id.TransactionID) (*models.Transaction, error)
	UpdateTransaction(ctx context.Context, t *models.Transaction) error
	DeleteTransaction(ctx context.Context, txID id.TransactionID) error

	CreateStep(ctx context.Context, step *models.TransactionStep) error
	FindStep(ctx context.Context, stepID id.StepID) (*models.TransactionStep, error)
	FindStepByOrder(ctx context.Context, txID id.TransactionID, order int) (*models.TransactionStep, error)
	ListSteps(ctx context.Context, txID id.TransactionID) ([]*models.TransactionStep, error)
	UpdateStep(ctx context.Context, step *models.TransactionStep) error
}

// ConditionReader supplies the gate computation. The workflow engine reads
// conditions; it never mutates their status.
type ConditionReader interface {
	ListGating(ctx context.Context, txID id.TransactionID, stepID *id.StepID) ([]*conditionmodels.Condition, error)
}

// ConditionArchiver freezes a closed step's conditions.
type ConditionArchiver interface {
	ArchiveByStep(ctx context.Context, txID id.TransactionID, stepID id.StepID, now time.Time) error
}

// OfferChecker is the external collaborator owning offer state. The
// "requires accepted offer" policy participates in the gate but is not
// computed here.
type OfferChecker interface {
	HasAcceptedOffer(ctx context.Context, txID id.TransactionID) (bool, error)
}

// AdvanceInput carries the optional note and notification target for an
// advance.
type AdvanceInput struct {
	Note        string `json:"note,omitempty"`
	NotifyEmail string `json:"notify_email,omitempty"`
}

// TransitionResult reports a committed step transition. NotificationSent
// is false either when no notification was requested or when dispatch
// failed after the commit; the transition itself stands regardless.
type TransitionResult struct {
	Transaction      *models.Transaction     `json:"transaction"`
	ClosedStep       *models.TransactionStep `json:"closed_step,omitempty"`
	NewStep          *models.TransactionStep `json:"new_step,omitempty"`
	NotificationSent bool                    `json:"notification_sent"`
}

// Service is the step advancement engine.
type Service struct {
	store      Store
	conditions ConditionReader
	archiver   ConditionArchiver
	offers     OfferChecker
	tx         StoreTx
	cache      *gate.Cache
	notifier   notify.Notifier
	metrics    *workflowmetrics.Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
}

type Option func(*Service)

func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) { s.tx = tx }
}

func WithGateCache(cache *gate.Cache) Option {
	return func(s *Service) { s.cache = cache }
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithMetrics(m *workflowmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store Store, conditions ConditionReader, archiver ConditionArchiver, offers OfferChecker, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:      store,
		conditions: conditions,
		archiver:   archiver,
		offers:     offers,
		logger:     logger,
		tracer:     otel.Tracer("dealflow/workflow"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = NewShardedTx()
	}
	return s
}

// CreateTransaction instantiates a transaction and its steps from the
// workflow template for its type. The first step activates immediately.
func (s *Service) CreateTransaction(ctx context.Context, txType models.TransactionType, clientName, propertyRef string) (*models.Transaction, error) {
	now := requestcontext.Now(ctx)
	t, err := models.NewTransaction(id.NewTransactionID(), txType, clientName, propertyRef, now)
	if err != nil {
		return nil, err
	}

	template := models.TemplateFor(txType)
	steps := make([]*models.TransactionStep, 0, len(template.Steps))
	for _, st := range template.Steps {
		step := &models.TransactionStep{
			ID:                    id.NewStepID(),
			TransactionID:         t.ID,
			Name:                  st.Name,
			StepOrder:             st.StepOrder,
			Status:                models.StepPending,
			RequiresAcceptedOffer: st.RequiresAcceptedOffer,
			CreatedAt:             now,
			UpdatedAt:             now,
		}
		steps = append(steps, step)
	}
	first := steps[0]
	first.ApplyActivation(now)
	t.CurrentStepID = &first.ID

	err = s.tx.RunInTx(ctx, t.ID, func(txCtx context.Context) error {
		if err := s.store.CreateTransaction(txCtx, t); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create transaction")
		}
		for _, step := range steps {
			if err := s.store.CreateStep(txCtx, step); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create transaction step")
			}
		}
		return nil
	})
	if err != nil {
		// The database unit rolls back on its own; the in-memory store needs
		// the partial rows removed so a failed create leaves no remnant a
		// later Advance could walk to completion.
		if delErr := s.store.DeleteTransaction(ctx, t.ID); delErr != nil && !errors.Is(delErr, sentinel.ErrNotFound) {
			s.logger.ErrorContext(ctx, "failed to remove partially created transaction",
				"transaction_id", t.ID.String(),
				"error", delErr,
			)
		}
		return nil, err
	}
	return t, nil
}

// Get returns a transaction.
func (s *Service) Get(ctx context.Context, txID id.TransactionID) (*models.Transaction, error) {
	t, err := s.store.FindTransaction(ctx, txID)
	if err != nil {
		return nil, wrapWorkflowErr(err, "transaction")
	}
	return t, nil
}

// ListSteps returns the transaction's steps in order.
func (s *Service) ListSteps(ctx context.Context, txID id.TransactionID) ([]*models.TransactionStep, error) {
	steps, err := s.store.ListSteps(ctx, txID)
	if err != nil {
		return nil, wrapWorkflowErr(err, "transaction")
	}
	return steps, nil
}

// AdvanceCheck is the pure gating projection: no mutation, safe to call
// repeatedly and concurrently. Results may be served from a short-TTL
// cache; the write paths never trust it and always recompute.
func (s *Service) AdvanceCheck(ctx context.Context, txID id.TransactionID) (*models.GateResult, error) {
	if cached := s.cache.Get(ctx, txID); cached != nil {
		return cached, nil
	}

	t, err := s.store.FindTransaction(ctx, txID)
	if err != nil {
		return nil, wrapWorkflowErr(err, "transaction")
	}
	if t.Complete() {
		return nil, dErrors.New(dErrors.CodeConflict, "transaction lifecycle is complete")
	}
	step, err := s.store.FindStep(ctx, *t.CurrentStepID)
	if err != nil {
		return nil, wrapWorkflowErr(err, "active step")
	}

	result, err := s.computeGate(ctx, t, step)
	if err != nil {
		return nil, err
	}
	s.cache.Put(ctx, txID, result)
	return result, nil
}

// computeGate gathers the step's conditions and the offer status in
// parallel and folds them into a decision.
func (s *Service) computeGate(ctx context.Context, t *models.Transaction, step *models.TransactionStep) (*models.GateResult, error) {
	g, gctx := errgroup.WithContext(ctx)

	var (
		conditions []*conditionmodels.Condition
		hasOffer   bool
	)

	g.Go(func() error {
		stepID := step.ID
		list, err := s.conditions.ListGating(gctx, t.ID, &stepID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load gating conditions")
		}
		conditions = list
		return nil
	})

	if step.RequiresAcceptedOffer && s.offers != nil {
		g.Go(func() error {
			accepted, err := s.offers.HasAcceptedOffer(gctx, t.ID)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeExternalDependency, "offer status unavailable")
			}
			hasOffer = accepted
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return models.ComputeGate(conditions, step.RequiresAcceptedOffer, hasOffer), nil
}

// Advance closes the active step and activates the next one. The gate is
// recomputed inside the same atomic unit as the writes; when blocked, the
// call fails with the blocking condition list and no state changes.
func (s *Service) Advance(ctx context.Context, txID id.TransactionID, input AdvanceInput) (*TransitionResult, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.Advance",
		trace.WithAttributes(attribute.String("transaction.id", txID.String())))
	defer span.End()

	var result *TransitionResult
	err := s.tx.RunInTx(ctx, txID, func(txCtx context.Context) error {
		t, step, err := s.loadActive(txCtx, txID)
		if err != nil {
			return err
		}

		gateResult, err := s.computeGate(txCtx, t, step)
		if err != nil {
			return err
		}
		if !gateResult.CanAdvance {
			if s.metrics != nil {
				s.metrics.AdvancesBlocked.Inc()
			}
			return dErrors.Wrap(&models.BlockingConditionsError{Gate: gateResult},
				dErrors.CodeGatingBlocked, "step cannot advance")
		}

		now := requestcontext.Now(txCtx)
		if err := step.CanClose(); err != nil {
			return err
		}
		step.ApplyCompletion(now)

		transition, err := s.commitTransition(txCtx, t, step, now)
		if err != nil {
			return err
		}
		result = transition
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, txID)
	if s.metrics != nil {
		s.metrics.StepsAdvanced.Inc()
		if result.Transaction.Complete() {
			s.metrics.LifecyclesCompleted.Inc()
		}
	}
	result.NotificationSent = s.dispatchNotification(ctx, result, input, "completed")
	return result, nil
}

// Skip is the explicit operator override: it bypasses the gate entirely,
// closes the step as skipped, archives its conditions without requiring
// resolution, and activates the next step.
func (s *Service) Skip(ctx context.Context, txID id.TransactionID) (*TransitionResult, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.Skip",
		trace.WithAttributes(attribute.String("transaction.id", txID.String())))
	defer span.End()

	var result *TransitionResult
	err := s.tx.RunInTx(ctx, txID, func(txCtx context.Context) error {
		t, step, err := s.loadActive(txCtx, txID)
		if err != nil {
			return err
		}
		if err := step.CanClose(); err != nil {
			return err
		}

		now := requestcontext.Now(txCtx)
		step.ApplySkip(now)

		transition, err := s.commitTransition(txCtx, t, step, now)
		if err != nil {
			return err
		}
		result = transition
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, txID)
	if s.metrics != nil {
		s.metrics.StepsSkipped.Inc()
	}
	result.NotificationSent = s.dispatchNotification(ctx, result, AdvanceInput{}, "skipped")
	return result, nil
}

// GoToStep is the explicit correction jump. The target step activates and
// the previously active step returns to pending with its conditions live.
// Steps strictly between the old and new position are left untouched: a
// correction asserts where the transaction is, not what happened in
// between.
func (s *Service) GoToStep(ctx context.Context, txID id.TransactionID, targetOrder int) (*TransitionResult, error) {
	ctx, span := s.tracer.Start(ctx, "workflow.GoToStep",
		trace.WithAttributes(attribute.String("transaction.id", txID.String())))
	defer span.End()

	var result *TransitionResult
	err := s.tx.RunInTx(ctx, txID, func(txCtx context.Context) error {
		t, err := s.store.FindTransaction(txCtx, txID)
		if err != nil {
			return wrapWorkflowErr(err, "transaction")
		}

		target, err := s.store.FindStepByOrder(txCtx, txID, targetOrder)
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeValidation, "step order %d does not exist in this workflow", targetOrder)
		}
		if err != nil {
			return wrapWorkflowErr(err, "target step")
		}
		if t.CurrentStepID != nil && *t.CurrentStepID == target.ID {
			return dErrors.New(dErrors.CodeConflict, "step is already active")
		}

		now := requestcontext.Now(txCtx)
		if t.CurrentStepID != nil {
			current, err := s.store.FindStep(txCtx, *t.CurrentStepID)
			if err != nil {
				return wrapWorkflowErr(err, "active step")
			}
			current.ApplyReturnToPending(now)
			if err := s.store.UpdateStep(txCtx, current); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to deactivate step")
			}
		}

		target.ApplyActivation(now)
		if err := s.store.UpdateStep(txCtx, target); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to activate step")
		}

		t.CurrentStepID = &target.ID
		t.UpdatedAt = now
		if err := s.store.UpdateTransaction(txCtx, t); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update transaction")
		}

		result = &TransitionResult{Transaction: t, NewStep: target}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, txID)
	if s.metrics != nil {
		s.metrics.StepJumps.Inc()
	}
	return result, nil
}

// loadActive fetches the transaction and its active step, rejecting
// completed lifecycles.
func (s *Service) loadActive(ctx context.Context, txID id.TransactionID) (*models.Transaction, *models.TransactionStep, error) {
	t, err := s.store.FindTransaction(ctx, txID)
	if err != nil {
		return nil, nil, wrapWorkflowErr(err, "transaction")
	}
	if t.Complete() {
		return nil, nil, dErrors.New(dErrors.CodeConflict, "transaction lifecycle is complete")
	}
	step, err := s.store.FindStep(ctx, *t.CurrentStepID)
	if err != nil {
		return nil, nil, wrapWorkflowErr(err, "active step")
	}
	return t, step, nil
}

// commitTransition persists a closed step, archives its conditions, and
// activates the next template step (or ends the lifecycle).
func (s *Service) commitTransition(ctx context.Context, t *models.Transaction, closed *models.TransactionStep, now time.Time) (*TransitionResult, error) {
	if err := s.store.UpdateStep(ctx, closed); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to close step")
	}
	if err := s.archiver.ArchiveByStep(ctx, t.ID, closed.ID, now); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to archive step conditions")
	}

	var newStep *models.TransactionStep
	next, err := s.store.FindStepByOrder(ctx, t.ID, closed.StepOrder+1)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		t.CurrentStepID = nil
	case err != nil:
		return nil, wrapWorkflowErr(err, "next step")
	default:
		next.ApplyActivation(now)
		if err := s.store.UpdateStep(ctx, next); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to activate next step")
		}
		t.CurrentStepID = &next.ID
		newStep = next
	}

	t.UpdatedAt = now
	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update transaction")
	}

	return &TransitionResult{Transaction: t, ClosedStep: closed, NewStep: newStep}, nil
}

// dispatchNotification sends the step-transition event after the commit.
// Failures are logged and counted; the committed transition stands.
func (s *Service) dispatchNotification(ctx context.Context, result *TransitionResult, input AdvanceInput, outcome string) bool {
	if s.notifier == nil || input.NotifyEmail == "" {
		return false
	}

	event := notify.StepTransition{
		TransactionID: result.Transaction.ID.String(),
		FromStep:      result.ClosedStep.Name,
		Outcome:       outcome,
		Note:          input.Note,
		Email:         input.NotifyEmail,
		OccurredAt:    requestcontext.Now(ctx),
	}
	if result.NewStep != nil {
		event.ToStep = result.NewStep.Name
	}

	if err := s.notifier.NotifyStepTransition(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "step notification failed",
			"transaction_id", event.TransactionID,
			"error", err.Error(),
		)
		if s.metrics != nil {
			s.metrics.NotificationFailures.Inc()
		}
		return false
	}
	return true
}

func wrapWorkflowErr(err error, entity string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	}
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.New(dErrors.CodeConcurrencyConflict, entity+" was modified concurrently; retry")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "workflow store failure")
}
