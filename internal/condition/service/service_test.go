package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dealflow/internal/condition/models"
	"dealflow/internal/condition/store"
	"dealflow/internal/evidence"
	id "dealflow/pkg/domain"
	dErrors "dealflow/pkg/domain-errors"
	"dealflow/pkg/requestcontext"
)

// =============================================================================
// Condition Service Test Suite
// =============================================================================
// The resolution state machine carries the system's strongest invariants:
// immutability of completed blocking/required conditions and the
// escape-hatch requirements. Both are exercised here against the real
// in-memory store rather than mocks.

type invalidatorSpy struct {
	mu    sync.Mutex
	calls []id.TransactionID
}

func (i *invalidatorSpy) Invalidate(_ context.Context, txID id.TransactionID) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls = append(i.calls, txID)
}

type ConditionServiceSuite struct {
	suite.Suite
	store       *store.InMemory
	evidence    *evidence.InMemoryStore
	invalidator *invalidatorSpy
	service     *Service

	ctx   context.Context
	now   time.Time
	actor id.UserID
	txID  id.TransactionID
}

func TestConditionServiceSuite(t *testing.T) {
	suite.Run(t, new(ConditionServiceSuite))
}

func (s *ConditionServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.evidence = evidence.NewInMemoryStore()
	s.invalidator = &invalidatorSpy{}
	s.service = New(s.store, slog.Default(),
		WithEvidenceStore(s.evidence),
		WithGateInvalidator(s.invalidator),
	)

	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.actor = id.NewUserID()
	s.txID = id.NewTransactionID()
	s.ctx = requestcontext.WithUserID(requestcontext.WithTime(context.Background(), s.now), s.actor)
}

func (s *ConditionServiceSuite) createCondition(level models.Level) *models.Condition {
	c, err := s.service.CreateManual(s.ctx, s.txID, nil, "Home inspection completed", models.CategoryInspection, level, nil)
	s.Require().NoError(err)
	return c
}

// =============================================================================
// Resolve Tests
// =============================================================================

func (s *ConditionServiceSuite) TestResolve() {
	s.Run("resolves with evidence and records the actor", func() {
		c := s.createCondition(models.LevelBlocking)

		resolved, err := s.service.Resolve(s.ctx, c.ID, models.ResolveInput{
			ResolutionType: models.ResolutionCompleted,
			HasEvidence:    true,
			EvidenceRef:    "doc://inspection-report",
		})
		s.Require().NoError(err)
		s.Equal(models.StatusCompleted, resolved.Status)
		s.Equal(s.actor, resolved.CompletedBy)
		s.Equal(s.now, *resolved.CompletedAt)

		rows, err := s.evidence.ListByCondition(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Require().Len(rows, 1)
		s.Equal("doc://inspection-report", rows[0].Ref)
	})

	s.Run("repeat resolve of a blocking condition is a conflict with no state change", func() {
		c := s.createCondition(models.LevelBlocking)
		input := models.ResolveInput{ResolutionType: models.ResolutionCompleted, HasEvidence: true, EvidenceRef: "doc://a"}

		first, err := s.service.Resolve(s.ctx, c.ID, input)
		s.Require().NoError(err)

		_, err = s.service.Resolve(s.ctx, c.ID, models.ResolveInput{
			ResolutionType: models.ResolutionWaived, HasEvidence: true, EvidenceRef: "doc://b",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		current, err := s.service.Get(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(first.ResolutionType, current.ResolutionType)
		s.Equal("doc://a", current.EvidenceRef)
	})

	s.Run("blocking without evidence fails each escape requirement separately", func() {
		c := s.createCondition(models.LevelBlocking)

		_, err := s.service.Resolve(s.ctx, c.ID, models.ResolveInput{
			ResolutionType: models.ResolutionSkippedWithRisk,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.service.Resolve(s.ctx, c.ID, models.ResolveInput{
			ResolutionType:      models.ResolutionSkippedWithRisk,
			EscapedWithoutProof: true,
			EscapeReason:        "too short",
			Acknowledged:        true,
			ConfirmationPhrase:  models.EscapeConfirmationPhrase,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		current, err := s.service.Get(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, current.Status, "failed validation must not mutate")
	})

	s.Run("complete escape hatch resolves and flags the record", func() {
		c := s.createCondition(models.LevelBlocking)

		resolved, err := s.service.Resolve(s.ctx, c.ID, models.ResolveInput{
			ResolutionType:      models.ResolutionSkippedWithRisk,
			EscapedWithoutProof: true,
			EscapeReason:        "seller refuses access before closing",
			Acknowledged:        true,
			ConfirmationPhrase:  "i UNDERSTAND the RISKS",
		})
		s.Require().NoError(err)
		s.True(resolved.EscapedWithoutProof)
		s.Equal(models.ResolutionSkippedWithRisk, resolved.ResolutionType)
	})

	s.Run("unknown condition is not found", func() {
		_, err := s.service.Resolve(s.ctx, id.NewConditionID(), models.ResolveInput{
			ResolutionType: models.ResolutionCompleted,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("every successful resolve invalidates the gate cache", func() {
		before := len(s.invalidator.calls)
		c := s.createCondition(models.LevelRecommended)
		_, err := s.service.Resolve(s.ctx, c.ID, models.ResolveInput{ResolutionType: models.ResolutionCompleted})
		s.Require().NoError(err)
		s.Greater(len(s.invalidator.calls), before)
	})
}

// =============================================================================
// Unresolve Tests
// =============================================================================

func (s *ConditionServiceSuite) TestUnresolve() {
	s.Run("recommended condition toggles back to pending", func() {
		c := s.createCondition(models.LevelRecommended)
		_, err := s.service.Resolve(s.ctx, c.ID, models.ResolveInput{ResolutionType: models.ResolutionCompleted})
		s.Require().NoError(err)

		updated, err := s.service.Unresolve(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, updated.Status)
		s.Empty(updated.ResolutionType)
	})

	s.Run("required condition cannot unresolve", func() {
		c := s.createCondition(models.LevelRequired)
		_, err := s.service.Resolve(s.ctx, c.ID, models.ResolveInput{ResolutionType: models.ResolutionCompleted})
		s.Require().NoError(err)

		_, err = s.service.Unresolve(s.ctx, c.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

// =============================================================================
// Archive Interaction Tests
// =============================================================================

func (s *ConditionServiceSuite) TestArchivedConditionsRejectMutation() {
	c := s.createCondition(models.LevelRecommended)
	s.Require().NoError(s.store.ArchiveByStep(s.ctx, s.txID, id.NewStepID(), s.now))

	// Unassigned condition survives a step archive; archive it directly.
	_, err := s.store.Execute(s.ctx, c.ID,
		func(*models.Condition) error { return nil },
		func(cond *models.Condition) { cond.ApplyArchive(s.now) },
	)
	s.Require().NoError(err)

	_, err = s.service.Resolve(s.ctx, c.ID, models.ResolveInput{ResolutionType: models.ResolutionCompleted})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}
