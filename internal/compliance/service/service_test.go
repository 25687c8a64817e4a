package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dealflow/internal/compliance/models"
	compliancestore "dealflow/internal/compliance/store"
	conditionmodels "dealflow/internal/condition/models"
	conditionservice "dealflow/internal/condition/service"
	conditionstore "dealflow/internal/condition/store"
	"dealflow/internal/evidence"
	id "dealflow/pkg/domain"
	dErrors "dealflow/pkg/domain-errors"
	"dealflow/pkg/requestcontext"
)

// =============================================================================
// Compliance Saga Test Suite
// =============================================================================
// The saga's contract is resumability: a crash between steps must never
// force a client to replay completed work, and re-running a finished saga
// must change nothing. The document store is the flaky boundary, so it is
// the one simulated here; everything else is real.

type flakyDocumentStore struct {
	inner    *evidence.InMemoryDocumentStore
	failNext bool
	puts     int
}

func (f *flakyDocumentStore) Put(ctx context.Context, doc evidence.Document) (string, error) {
	if f.failNext {
		f.failNext = false
		return "", errors.New("object store timeout")
	}
	f.puts++
	return f.inner.Put(ctx, doc)
}

type ComplianceServiceSuite struct {
	suite.Suite
	store      *compliancestore.InMemory
	conditions *conditionservice.Service
	condStore  *conditionstore.InMemory
	evidence   *evidence.InMemoryStore
	documents  *flakyDocumentStore
	service    *Service

	ctx context.Context
	now time.Time
}

func TestComplianceServiceSuite(t *testing.T) {
	suite.Run(t, new(ComplianceServiceSuite))
}

func (s *ComplianceServiceSuite) SetupTest() {
	s.store = compliancestore.NewInMemory()
	s.condStore = conditionstore.NewInMemory()
	s.evidence = evidence.NewInMemoryStore()
	s.documents = &flakyDocumentStore{inner: evidence.NewInMemoryDocumentStore()}
	s.conditions = conditionservice.New(s.condStore, slog.Default(),
		conditionservice.WithEvidenceStore(s.evidence))
	s.service = New(s.store, s.conditions, s.evidence, s.documents, slog.Default())

	s.now = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithUserID(requestcontext.WithTime(context.Background(), s.now), id.NewUserID())
}

func (s *ComplianceServiceSuite) createIdentityCondition() *conditionmodels.Condition {
	c, err := s.conditions.CreateManual(s.ctx, id.NewTransactionID(), nil,
		"Identity verification", conditionmodels.CategoryIdentityVerification, conditionmodels.LevelBlocking, nil)
	s.Require().NoError(err)
	return c
}

func runInput() RunInput {
	return RunInput{
		Party: models.Identity{
			PartyID:     "party-buyer-1",
			FullName:    "Ada Lindgren",
			DateOfBirth: "1987-03-14",
			DocumentRef: "passport SE-4411",
		},
		Outcome:     "verified",
		ReferenceID: "idv-2026-0042",
		Note:        "checked against national registry",
		Document: evidence.Document{
			Name:        "verification-report.pdf",
			ContentType: "application/pdf",
			Content:     []byte("report body"),
		},
	}
}

// =============================================================================
// Full Run Tests
// =============================================================================

func (s *ComplianceServiceSuite) TestRun() {
	s.Run("clean run completes all three steps and resolves the condition", func() {
		c := s.createIdentityCondition()

		result, err := s.service.Run(s.ctx, c.ID, runInput())
		s.Require().NoError(err)
		s.True(result.Record.Done())
		s.Equal(models.SagaStepNone, result.ResumedAfter)
		s.NotEmpty(result.Record.EvidenceRef)

		resolved, err := s.conditions.Get(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(conditionmodels.StatusCompleted, resolved.Status)
		s.Equal(result.Record.EvidenceRef, resolved.EvidenceRef)
	})

	s.Run("verification stamps the party identity and the verifier", func() {
		c := s.createIdentityCondition()

		result, err := s.service.Run(s.ctx, c.ID, runInput())
		s.Require().NoError(err)
		s.Equal("party-buyer-1", result.Record.Party.PartyID)
		s.Equal("Ada Lindgren", result.Record.Party.FullName)
		s.Require().NotNil(result.Record.VerifiedAt)
		s.Equal(s.now, *result.Record.VerifiedAt)
		s.False(result.Record.VerifiedBy.IsZero())
	})

	s.Run("a resumed run never re-submits identity fields", func() {
		c := s.createIdentityCondition()
		s.documents.failNext = true
		_, err := s.service.Run(s.ctx, c.ID, runInput())
		s.Require().Error(err)

		drifted := runInput()
		drifted.Party.FullName = "Somebody Else"
		result, err := s.service.Run(s.ctx, c.ID, drifted)
		s.Require().NoError(err)
		s.Equal("Ada Lindgren", result.Record.Party.FullName, "identity from the original run stands")
	})

	s.Run("document store failure stops after the record step", func() {
		c := s.createIdentityCondition()
		s.documents.failNext = true

		_, err := s.service.Run(s.ctx, c.ID, runInput())
		s.True(dErrors.HasCode(err, dErrors.CodeExternalDependency))

		record, err := s.service.Get(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(models.SagaStepRecord, record.LastCompletedStep)

		condition, err := s.conditions.Get(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(conditionmodels.StatusPending, condition.Status, "condition untouched by the failed run")
	})

	s.Run("re-run resumes from the failed step without repeating completed ones", func() {
		c := s.createIdentityCondition()
		s.documents.failNext = true
		_, err := s.service.Run(s.ctx, c.ID, runInput())
		s.Require().Error(err)
		putsBefore := s.documents.puts

		result, err := s.service.Run(s.ctx, c.ID, runInput())
		s.Require().NoError(err)
		s.True(result.Record.Done())
		s.Equal(models.SagaStepRecord, result.ResumedAfter)
		s.Equal(putsBefore+1, s.documents.puts, "evidence uploaded exactly once")
	})

	s.Run("re-running a finished saga is a no-op", func() {
		c := s.createIdentityCondition()
		_, err := s.service.Run(s.ctx, c.ID, runInput())
		s.Require().NoError(err)
		putsBefore := s.documents.puts

		result, err := s.service.Run(s.ctx, c.ID, runInput())
		s.Require().NoError(err)
		s.True(result.Record.Done())
		s.Equal(models.SagaStepResolve, result.ResumedAfter)
		s.Equal(putsBefore, s.documents.puts, "no repeated upload")

		rows, err := s.evidence.ListByCondition(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Len(rows, 1, "no duplicate evidence rows")
	})

	s.Run("non-identity condition is rejected", func() {
		c, err := s.conditions.CreateManual(s.ctx, id.NewTransactionID(), nil,
			"Financing approved", conditionmodels.CategoryFinancing, conditionmodels.LevelBlocking, nil)
		s.Require().NoError(err)

		_, err = s.service.Run(s.ctx, c.ID, runInput())
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown condition is not found", func() {
		_, err := s.service.Run(s.ctx, id.NewConditionID(), runInput())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Individual Step Tests
// =============================================================================

func (s *ComplianceServiceSuite) TestIndividualSteps() {
	s.Run("steps run in order through the individual entry points", func() {
		c := s.createIdentityCondition()

		record, err := s.service.CompleteRecord(s.ctx, c.ID, runInput())
		s.Require().NoError(err)
		s.Equal(models.SagaStepRecord, record.LastCompletedStep)

		record, err = s.service.AttachEvidence(s.ctx, c.ID, runInput())
		s.Require().NoError(err)
		s.Equal(models.SagaStepEvidence, record.LastCompletedStep)

		result, err := s.service.Resolve(s.ctx, c.ID, runInput())
		s.Require().NoError(err)
		s.True(result.Record.Done())
	})

	s.Run("complete record is idempotent", func() {
		c := s.createIdentityCondition()

		first, err := s.service.CompleteRecord(s.ctx, c.ID, runInput())
		s.Require().NoError(err)

		second, err := s.service.CompleteRecord(s.ctx, c.ID, runInput())
		s.Require().NoError(err)
		s.Equal(first.CreatedAt, second.CreatedAt)
		s.Equal(first.LastCompletedStep, second.LastCompletedStep)
	})

	s.Run("complete record re-verifies with corrected identity", func() {
		c := s.createIdentityCondition()
		_, err := s.service.CompleteRecord(s.ctx, c.ID, runInput())
		s.Require().NoError(err)

		corrected := runInput()
		corrected.Party.FullName = "Ada M. Lindgren"
		record, err := s.service.CompleteRecord(s.ctx, c.ID, corrected)
		s.Require().NoError(err)
		s.Equal("Ada M. Lindgren", record.Party.FullName)
		s.Equal(models.SagaStepRecord, record.LastCompletedStep, "re-verification does not advance the saga")
	})

	s.Run("attach evidence before any record is not found", func() {
		c := s.createIdentityCondition()
		_, err := s.service.AttachEvidence(s.ctx, c.ID, runInput())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Saga Ordering Tests
// =============================================================================

func (s *ComplianceServiceSuite) TestSagaOrdering() {
	s.Run("marker never moves backward", func() {
		r, err := models.NewRecord(id.NewConditionID(), id.NewTransactionID(), "verified", "", s.now)
		s.Require().NoError(err)
		r.ApplyStep(models.SagaStepRecord, s.now)
		r.ApplyStep(models.SagaStepEvidence, s.now)

		r.ApplyStep(models.SagaStepRecord, s.now.Add(time.Hour))
		s.Equal(models.SagaStepEvidence, r.LastCompletedStep)
	})

	s.Run("skipping a step is a conflict", func() {
		r, err := models.NewRecord(id.NewConditionID(), id.NewTransactionID(), "verified", "", s.now)
		s.Require().NoError(err)
		r.ApplyStep(models.SagaStepRecord, s.now)

		err = r.CanMarkStep(models.SagaStepResolve)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}
