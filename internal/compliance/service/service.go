package service

import (
	"context"
	"errors"
	"log/slog"

	"dealflow/internal/compliance/models"
	conditionmodels "dealflow/internal/condition/models"
	"dealflow/internal/evidence"
	id "dealflow/pkg/domain"
	dErrors "dealflow/pkg/domain-errors"
	"dealflow/pkg/platform/sentinel"
	"dealflow/pkg/requestcontext"
)

// Store persists compliance records.
type Store interface {
	Upsert(ctx context.Context, r *models.Record) error
	FindByCondition(ctx context.Context, conditionID id.ConditionID) (*models.Record, error)
	Execute(ctx context.Context, conditionID id.ConditionID, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error)
}

// ConditionResolver is the condition service surface the saga drives.
type ConditionResolver interface {
	Get(ctx context.Context, conditionID id.ConditionID) (*conditionmodels.Condition, error)
	Resolve(ctx context.Context, conditionID id.ConditionID, input conditionmodels.ResolveInput) (*conditionmodels.Condition, error)
}

// RunInput is everything one saga run needs. Re-running with the same
// input after a partial failure resumes from the first incomplete step.
type RunInput struct {
	Party       models.Identity   `json:"party"`
	Outcome     string            `json:"outcome"`
	ReferenceID string            `json:"reference_id,omitempty"`
	Document    evidence.Document `json:"document"`
	Note        string            `json:"note,omitempty"`
}

// RunResult reports how far the saga got and what it skipped because a
// previous run had already done it.
type RunResult struct {
	Record       *models.Record             `json:"record"`
	Condition    *conditionmodels.Condition `json:"condition,omitempty"`
	ResumedAfter models.SagaStep            `json:"resumed_after,omitempty"`
}

// Service runs the identity-compliance sub-workflow: persist the check
// outcome, attach its evidence document, then resolve the underlying
// condition. Each step is durable and idempotent; the record's
// last-completed-step marker makes the whole thing resumable.
type Service struct {
	store      Store
	conditions ConditionResolver
	evidence   evidence.Store
	documents  evidence.DocumentStore
	logger     *slog.Logger
}

func New(store Store, conditions ConditionResolver, evidenceStore evidence.Store, documents evidence.DocumentStore, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		conditions: conditions,
		evidence:   evidenceStore,
		documents:  documents,
		logger:     logger,
	}
}

// Get returns the compliance record for a condition.
func (s *Service) Get(ctx context.Context, conditionID id.ConditionID) (*models.Record, error) {
	r, err := s.store.FindByCondition(ctx, conditionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "compliance record not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load compliance record")
	}
	return r, nil
}

// Run executes the saga end to end, resuming from the last completed step
// when a record already exists. Safe to call repeatedly: completed steps
// are skipped, not repeated.
func (s *Service) Run(ctx context.Context, conditionID id.ConditionID, input RunInput) (*RunResult, error) {
	condition, err := s.guardCondition(ctx, conditionID)
	if err != nil {
		return nil, err
	}

	resumedAfter := models.SagaStepNone
	if existing, err := s.store.FindByCondition(ctx, condition.ID); err == nil {
		resumedAfter = existing.LastCompletedStep
	}

	record, err := s.loadOrStart(ctx, condition, input)
	if err != nil {
		return nil, err
	}
	result := &RunResult{Record: record, ResumedAfter: resumedAfter}

	if !record.Reached(models.SagaStepEvidence) {
		record, err = s.attachEvidence(ctx, record, input)
		if err != nil {
			return nil, err
		}
		result.Record = record
	}

	if !record.Reached(models.SagaStepResolve) {
		record, resolved, err := s.resolveCondition(ctx, record, input)
		if err != nil {
			return nil, err
		}
		result.Record = record
		result.Condition = resolved
	}

	s.logger.InfoContext(ctx, "compliance saga complete",
		"condition_id", conditionID.String(),
		"resumed_after", string(result.ResumedAfter),
	)
	return result, nil
}

// CompleteRecord is the first saga step on its own: persist the check
// outcome and the party's identity. Calling it again re-verifies: identity
// fields are overwritten, never an error.
func (s *Service) CompleteRecord(ctx context.Context, conditionID id.ConditionID, input RunInput) (*models.Record, error) {
	condition, err := s.guardCondition(ctx, conditionID)
	if err != nil {
		return nil, err
	}

	record, err := s.loadOrStart(ctx, condition, input)
	if err != nil {
		return nil, err
	}
	if input.Party == record.Party {
		return record, nil
	}

	now := requestcontext.Now(ctx)
	actor := requestcontext.UserID(ctx)
	updated, err := s.store.Execute(ctx, conditionID,
		func(*models.Record) error { return nil },
		func(r *models.Record) { r.ApplyVerification(input.Party, actor, now) },
	)
	if err != nil {
		return nil, wrapRecordErr(err)
	}
	return updated, nil
}

// AttachEvidence is the second saga step on its own.
func (s *Service) AttachEvidence(ctx context.Context, conditionID id.ConditionID, input RunInput) (*models.Record, error) {
	record, err := s.Get(ctx, conditionID)
	if err != nil {
		return nil, err
	}
	if record.Reached(models.SagaStepEvidence) {
		return record, nil
	}
	return s.attachEvidence(ctx, record, input)
}

// Resolve is the final saga step on its own.
func (s *Service) Resolve(ctx context.Context, conditionID id.ConditionID, input RunInput) (*RunResult, error) {
	record, err := s.Get(ctx, conditionID)
	if err != nil {
		return nil, err
	}
	if record.Done() {
		return &RunResult{Record: record, ResumedAfter: record.LastCompletedStep}, nil
	}
	record, resolved, err := s.resolveCondition(ctx, record, input)
	if err != nil {
		return nil, err
	}
	return &RunResult{Record: record, Condition: resolved}, nil
}

// guardCondition checks the target exists and is an identity-verification
// condition. The saga never drives any other category.
func (s *Service) guardCondition(ctx context.Context, conditionID id.ConditionID) (*conditionmodels.Condition, error) {
	condition, err := s.conditions.Get(ctx, conditionID)
	if err != nil {
		return nil, err
	}
	if condition.Category != conditionmodels.CategoryIdentityVerification {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"condition category %q is not subject to identity compliance", condition.Category)
	}
	return condition, nil
}

// loadOrStart returns the existing record untouched — a resumed run never
// re-submits identity fields — or creates a fresh one with the record step
// marked complete.
func (s *Service) loadOrStart(ctx context.Context, condition *conditionmodels.Condition, input RunInput) (*models.Record, error) {
	existing, err := s.store.FindByCondition(ctx, condition.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load compliance record")
	}

	now := requestcontext.Now(ctx)
	record, err := models.NewRecord(condition.ID, condition.TransactionID, input.Outcome, input.ReferenceID, now)
	if err != nil {
		return nil, err
	}
	record.ApplyVerification(input.Party, requestcontext.UserID(ctx), now)
	record.ApplyStep(models.SagaStepRecord, now)
	if err := s.store.Upsert(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist compliance record")
	}
	return record, nil
}

// attachEvidence writes the document to the external store, records the
// evidence row, and marks the step. A document-store failure leaves the
// marker untouched so the next run retries from here.
func (s *Service) attachEvidence(ctx context.Context, record *models.Record, input RunInput) (*models.Record, error) {
	ref, err := s.documents.Put(ctx, input.Document)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternalDependency, "document store rejected evidence upload")
	}

	now := requestcontext.Now(ctx)
	ev := &evidence.Evidence{
		ID:          id.NewEvidenceID(),
		ConditionID: record.ConditionID,
		Kind:        evidence.KindFile,
		Ref:         ref,
		Note:        input.Note,
		CreatedAt:   now,
		CreatedBy:   requestcontext.UserID(ctx),
	}
	if err := s.evidence.Save(ctx, ev); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record evidence")
	}

	updated, err := s.store.Execute(ctx, record.ConditionID,
		func(r *models.Record) error { return r.CanMarkStep(models.SagaStepEvidence) },
		func(r *models.Record) {
			r.EvidenceRef = ref
			r.ApplyStep(models.SagaStepEvidence, now)
		},
	)
	if err != nil {
		return nil, wrapRecordErr(err)
	}
	return updated, nil
}

// resolveCondition drives the condition state machine with the saga's
// evidence, then marks the final step.
func (s *Service) resolveCondition(ctx context.Context, record *models.Record, input RunInput) (*models.Record, *conditionmodels.Condition, error) {
	resolved, err := s.conditions.Resolve(ctx, record.ConditionID, conditionmodels.ResolveInput{
		ResolutionType: conditionmodels.ResolutionCompleted,
		Note:           input.Note,
		HasEvidence:    true,
		EvidenceRef:    record.EvidenceRef,
	})
	if err != nil && !dErrors.HasCode(err, dErrors.CodeConflict) {
		return nil, nil, err
	}
	// A conflict means the condition is already completed: a previous run
	// resolved it but crashed before marking the step. Marking now is the
	// correct resumption.

	now := requestcontext.Now(ctx)
	updated, err := s.store.Execute(ctx, record.ConditionID,
		func(r *models.Record) error { return r.CanMarkStep(models.SagaStepResolve) },
		func(r *models.Record) { r.ApplyStep(models.SagaStepResolve, now) },
	)
	if err != nil {
		return nil, nil, wrapRecordErr(err)
	}
	return updated, resolved, nil
}

func wrapRecordErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "compliance record not found")
	}
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "compliance store failure")
}
