//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"dealflow/internal/condition/models"
	"dealflow/internal/condition/store"
	workflowmodels "dealflow/internal/workflow/models"
	workflowstore "dealflow/internal/workflow/store"
	id "dealflow/pkg/domain"
	"dealflow/pkg/platform/sentinel"
	"dealflow/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	store     *store.Postgres
	workflows *workflowstore.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.workflows = workflowstore.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	// Truncate in dependency order
	err := s.postgres.TruncateTables(ctx,
		"evidence", "compliance_records", "conditions", "accepted_offers", "transaction_steps", "transactions")
	s.Require().NoError(err)
}

// seedTransaction inserts a transaction with two steps so conditions can
// satisfy their foreign keys.
func (s *PostgresStoreSuite) seedTransaction() (*workflowmodels.Transaction, []*workflowmodels.TransactionStep) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	tr, err := workflowmodels.NewTransaction(id.NewTransactionID(), workflowmodels.TypePurchase,
		"Ada Lindgren", "12 Birch Lane", now)
	s.Require().NoError(err)
	s.Require().NoError(s.workflows.CreateTransaction(ctx, tr))

	steps := make([]*workflowmodels.TransactionStep, 0, 2)
	for i := 1; i <= 2; i++ {
		step := &workflowmodels.TransactionStep{
			ID:            id.NewStepID(),
			TransactionID: tr.ID,
			Name:          "Step",
			StepOrder:     i,
			Status:        workflowmodels.StepPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		s.Require().NoError(s.workflows.CreateStep(ctx, step))
		steps = append(steps, step)
	}
	return tr, steps
}

func (s *PostgresStoreSuite) newCondition(txID id.TransactionID, level models.Level) *models.Condition {
	now := time.Now().UTC().Truncate(time.Millisecond)
	c, err := models.New(id.NewConditionID(), txID, "Financing approved",
		models.CategoryFinancing, level, now)
	s.Require().NoError(err)
	return c
}

func (s *PostgresStoreSuite) TestCreateAndFindRoundTrip() {
	ctx := context.Background()
	tr, steps := s.seedTransaction()

	c := s.newCondition(tr.ID, models.LevelBlocking)
	c.StepID = &steps[0].ID
	due := time.Now().UTC().Truncate(time.Millisecond).AddDate(0, 0, 10)
	c.DueDate = &due
	c.Note = "bank pre-approval letter"

	s.Require().NoError(s.store.Create(ctx, c))

	found, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(c.Title, found.Title)
	s.Equal(models.CategoryFinancing, found.Category)
	s.Equal(models.LevelBlocking, found.Level)
	s.Equal(models.StatusPending, found.Status)
	s.Require().NotNil(found.StepID)
	s.Equal(steps[0].ID, *found.StepID)
	s.Require().NotNil(found.DueDate)
	s.True(due.Equal(*found.DueDate))
	s.Equal("bank pre-approval letter", found.Note)

	_, err = s.store.FindByID(ctx, id.NewConditionID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestTemplateDedupUniqueViolation() {
	ctx := context.Background()
	tr, _ := s.seedTransaction()
	templateID := id.NewTemplateID()

	first := s.newCondition(tr.ID, models.LevelRequired)
	first.TemplateID = &templateID
	s.Require().NoError(s.store.Create(ctx, first))

	dup := s.newCondition(tr.ID, models.LevelRequired)
	dup.TemplateID = &templateID
	s.ErrorIs(s.store.Create(ctx, dup), sentinel.ErrConflict)

	exists, err := s.store.ExistsByTemplate(ctx, tr.ID, templateID)
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.store.ExistsByTemplate(ctx, tr.ID, id.NewTemplateID())
	s.Require().NoError(err)
	s.False(exists)
}

func (s *PostgresStoreSuite) TestListGatingAndArchiveByStep() {
	ctx := context.Background()
	tr, steps := s.seedTransaction()

	owned := s.newCondition(tr.ID, models.LevelBlocking)
	owned.StepID = &steps[0].ID
	other := s.newCondition(tr.ID, models.LevelBlocking)
	other.StepID = &steps[1].ID
	global := s.newCondition(tr.ID, models.LevelRequired)
	for _, c := range []*models.Condition{owned, other, global} {
		s.Require().NoError(s.store.Create(ctx, c))
	}

	gating, err := s.store.ListGating(ctx, tr.ID, &steps[0].ID)
	s.Require().NoError(err)
	s.Len(gating, 2, "step-owned plus global")

	s.Require().NoError(s.store.ArchiveByStep(ctx, tr.ID, steps[0].ID, time.Now()))

	gating, err = s.store.ListGating(ctx, tr.ID, &steps[0].ID)
	s.Require().NoError(err)
	s.Require().Len(gating, 1, "archived step conditions drop out; global survives")
	s.Nil(gating[0].StepID)

	archived, err := s.store.FindByID(ctx, owned.ID)
	s.Require().NoError(err)
	s.True(archived.Archived)
	s.NotNil(archived.ArchivedAt)
}

func (s *PostgresStoreSuite) TestExecuteValidatesBeforeMutating() {
	ctx := context.Background()
	tr, _ := s.seedTransaction()

	c := s.newCondition(tr.ID, models.LevelBlocking)
	s.Require().NoError(s.store.Create(ctx, c))

	now := time.Now().UTC().Truncate(time.Millisecond)
	updated, err := s.store.Execute(ctx, c.ID,
		func(*models.Condition) error { return nil },
		func(cond *models.Condition) {
			cond.Status = models.StatusCompleted
			cond.ResolutionType = models.ResolutionCompleted
			cond.EvidenceRef = "doc-123"
			cond.CompletedAt = &now
			cond.UpdatedAt = now
		},
	)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, updated.Status)

	found, err := s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, found.Status)
	s.Equal(models.ResolutionCompleted, found.ResolutionType)
	s.Equal("doc-123", found.EvidenceRef)

	errRejected := errors.New("rejected by validate")
	_, err = s.store.Execute(ctx, c.ID,
		func(*models.Condition) error { return errRejected },
		func(cond *models.Condition) { cond.Title = "should not happen" },
	)
	s.ErrorIs(err, errRejected)

	found, err = s.store.FindByID(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal("Financing approved", found.Title)
}

func (s *PostgresStoreSuite) TestNormalizeLegacyLevels() {
	ctx := context.Background()
	tr, _ := s.seedTransaction()

	insertLegacy := func(isBlocking bool, level any) id.ConditionID {
		conditionID := id.NewConditionID()
		_, err := s.postgres.DB.ExecContext(ctx, `
			INSERT INTO conditions (id, transaction_id, title, category, level, is_blocking, status, created_at, updated_at)
			VALUES ($1, $2, 'Legacy condition', 'general', $3, $4, 'pending', NOW(), NOW())`,
			uuid.UUID(conditionID), uuid.UUID(tr.ID), level, isBlocking,
		)
		s.Require().NoError(err)
		return conditionID
	}

	legacyBlocking := insertLegacy(true, nil)
	legacyPlain := insertLegacy(false, "")
	alreadyTagged := insertLegacy(true, "recommended")

	s.Require().NoError(s.store.NormalizeLegacyLevels(ctx))

	for conditionID, want := range map[id.ConditionID]models.Level{
		legacyBlocking: models.LevelBlocking,
		legacyPlain:    models.LevelRequired,
		alreadyTagged:  models.LevelRecommended,
	} {
		found, err := s.store.FindByID(ctx, conditionID)
		s.Require().NoError(err)
		s.Equal(want, found.Level)
	}
}
