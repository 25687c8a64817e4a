package test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	compliancemodels "dealflow/internal/compliance/models"
	complianceservice "dealflow/internal/compliance/service"
	compliancestore "dealflow/internal/compliance/store"
	conditionmodels "dealflow/internal/condition/models"
	conditionservice "dealflow/internal/condition/service"
	conditionstore "dealflow/internal/condition/store"
	"dealflow/internal/evidence"
	"dealflow/internal/offer"
	packservice "dealflow/internal/pack/service"
	packstore "dealflow/internal/pack/store"
	workflowmodels "dealflow/internal/workflow/models"
	workflowservice "dealflow/internal/workflow/service"
	workflowstore "dealflow/internal/workflow/store"
	id "dealflow/pkg/domain"
	dErrors "dealflow/pkg/domain-errors"
	"dealflow/pkg/requestcontext"
	"dealflow/pkg/testutil"
)

// engine wires every service against in-memory stores, the same shape
// cmd/server uses when no database is configured.
type engine struct {
	conditions *conditionservice.Service
	workflows  *workflowservice.Service
	packs      *packservice.Service
	compliance *complianceservice.Service
	offers     *offer.InMemoryStore
	condStore  *conditionstore.InMemory
}

func newEngine() *engine {
	logger := slog.Default()
	condStore := conditionstore.NewInMemory()
	wfStore := workflowstore.NewInMemory()
	offers := offer.NewInMemoryStore()
	evidenceStore := evidence.NewInMemoryStore()

	conditions := conditionservice.New(condStore, logger,
		conditionservice.WithEvidenceStore(evidenceStore))
	workflows := workflowservice.New(wfStore, condStore, condStore, offers, logger)
	packs := packservice.New(packstore.NewSeeded(), condStore, wfStore, logger)
	compliance := complianceservice.New(compliancestore.NewInMemory(), conditions,
		evidenceStore, evidence.NewInMemoryDocumentStore(), logger)

	return &engine{
		conditions: conditions,
		workflows:  workflows,
		packs:      packs,
		compliance: compliance,
		offers:     offers,
		condStore:  condStore,
	}
}

func resolveWithEvidence(t *testing.T, e *engine, ctx context.Context, c *conditionmodels.Condition) {
	t.Helper()
	_, err := e.conditions.Resolve(ctx, c.ID, conditionmodels.ResolveInput{
		ResolutionType: conditionmodels.ResolutionCompleted,
		HasEvidence:    true,
		EvidenceRef:    "doc-" + c.ID.String(),
	})
	require.NoError(t, err)
}

// TestPurchaseLifecycle drives one purchase transaction from creation to a
// completed lifecycle through the public service surface.
func TestPurchaseLifecycle(t *testing.T) {
	now := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithUserID(requestcontext.WithTime(context.Background(), now), id.NewUserID())

	e := newEngine()

	testutil.Given(t, "a purchase transaction with the universal pack applied", func(t *testing.T) {
		tx, err := e.workflows.CreateTransaction(ctx, workflowmodels.TypePurchase, "Ada Lindgren", "12 Birch Lane")
		require.NoError(t, err)

		applied, err := e.packs.ApplyPack(ctx, tx.ID, "universal", nil)
		require.NoError(t, err)
		require.Len(t, applied.Created, 5)
		require.Empty(t, applied.Errors)

		byCategory := map[conditionmodels.Category]*conditionmodels.Condition{}
		for _, c := range applied.Created {
			byCategory[c.Category] = c
		}

		testutil.When(t, "checking the gate before any work is done", func(t *testing.T) {
			gate, err := e.workflows.AdvanceCheck(ctx, tx.ID)
			require.NoError(t, err)

			testutil.Then(t, "blocking pack conditions hold the first step", func(t *testing.T) {
				assert.False(t, gate.CanAdvance)
				assert.Len(t, gate.BlockingConditions, 3, "financing, inspection, identity")
				assert.Len(t, gate.RequiredPendingConditions, 1)
				assert.Len(t, gate.RecommendedPendingConditions, 1)
			})

			testutil.Then(t, "an advance attempt is rejected without state change", func(t *testing.T) {
				_, err := e.workflows.Advance(ctx, tx.ID, workflowservice.AdvanceInput{})
				assert.True(t, dErrors.HasCode(err, dErrors.CodeGatingBlocked))

				reloaded, err := e.workflows.Get(ctx, tx.ID)
				require.NoError(t, err)
				assert.Equal(t, tx.CurrentStepID, reloaded.CurrentStepID)
			})
		})

		testutil.When(t, "the blocking conditions are worked off", func(t *testing.T) {
			resolveWithEvidence(t, e, ctx, byCategory[conditionmodels.CategoryFinancing])
			resolveWithEvidence(t, e, ctx, byCategory[conditionmodels.CategoryInspection])

			identity := byCategory[conditionmodels.CategoryIdentityVerification]
			result, err := e.compliance.Run(ctx, identity.ID, complianceservice.RunInput{
				Party: compliancemodels.Identity{
					PartyID:  "party-buyer-1",
					FullName: "Ada Lindgren",
				},
				Outcome:     "clear",
				ReferenceID: "idv-check-001",
				Document: evidence.Document{
					Name:        "identity-report.pdf",
					ContentType: "application/pdf",
					Content:     []byte("report body"),
				},
			})
			require.NoError(t, err)

			testutil.Then(t, "the compliance saga resolves the identity condition", func(t *testing.T) {
				assert.True(t, result.Record.Done())
				assert.Equal(t, compliancemodels.SagaStepNone, result.ResumedAfter)
				assert.Equal(t, conditionmodels.StatusCompleted, result.Condition.Status)
			})

			testutil.Then(t, "the gate opens and the first step closes", func(t *testing.T) {
				gate, err := e.workflows.AdvanceCheck(ctx, tx.ID)
				require.NoError(t, err)
				assert.True(t, gate.CanAdvance)

				transition, err := e.workflows.Advance(ctx, tx.ID, workflowservice.AdvanceInput{Note: "qualification done"})
				require.NoError(t, err)
				assert.Equal(t, "Buyer Qualification", transition.ClosedStep.Name)
				assert.Equal(t, "Property Search", transition.NewStep.Name)
			})
		})

		testutil.When(t, "the transaction reaches the conditional period", func(t *testing.T) {
			for i := 0; i < 2; i++ {
				_, err := e.workflows.Advance(ctx, tx.ID, workflowservice.AdvanceInput{})
				require.NoError(t, err)
			}

			testutil.Then(t, "the offer policy gates until an offer is accepted", func(t *testing.T) {
				gate, err := e.workflows.AdvanceCheck(ctx, tx.ID)
				require.NoError(t, err)
				assert.False(t, gate.CanAdvance)
				assert.True(t, gate.RequiresAcceptedOffer)
				assert.Empty(t, gate.BlockingConditions)

				require.NoError(t, e.offers.MarkAccepted(ctx, tx.ID, now))

				gate, err = e.workflows.AdvanceCheck(ctx, tx.ID)
				require.NoError(t, err)
				assert.True(t, gate.CanAdvance)
			})
		})

		testutil.When(t, "the remaining steps are advanced", func(t *testing.T) {
			var last *workflowservice.TransitionResult
			for i := 0; i < 3; i++ {
				transition, err := e.workflows.Advance(ctx, tx.ID, workflowservice.AdvanceInput{})
				require.NoError(t, err)
				last = transition
			}

			testutil.Then(t, "the lifecycle completes", func(t *testing.T) {
				assert.Equal(t, "Closing", last.ClosedStep.Name)
				assert.Nil(t, last.NewStep)
				assert.True(t, last.Transaction.Complete())
			})
		})
	})
}
