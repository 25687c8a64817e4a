//go:build integration

package evidence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	conditionmodels "dealflow/internal/condition/models"
	conditionstore "dealflow/internal/condition/store"
	"dealflow/internal/evidence"
	workflowmodels "dealflow/internal/workflow/models"
	workflowstore "dealflow/internal/workflow/store"
	id "dealflow/pkg/domain"
	"dealflow/pkg/testutil/containers"
)

type PostgresEvidenceSuite struct {
	suite.Suite
	postgres   *containers.PostgresContainer
	store      *evidence.PostgresStore
	conditions *conditionstore.Postgres
	workflows  *workflowstore.Postgres
}

func TestPostgresEvidenceSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresEvidenceSuite))
}

func (s *PostgresEvidenceSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = evidence.NewPostgresStore(s.postgres.DB)
	s.conditions = conditionstore.NewPostgres(s.postgres.DB)
	s.workflows = workflowstore.NewPostgres(s.postgres.DB)
}

func (s *PostgresEvidenceSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "evidence", "conditions", "transactions")
	s.Require().NoError(err)
}

// seedCondition inserts a transaction and one condition so evidence rows
// can satisfy their foreign key.
func (s *PostgresEvidenceSuite) seedCondition() *conditionmodels.Condition {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	tr, err := workflowmodels.NewTransaction(id.NewTransactionID(), workflowmodels.TypePurchase,
		"Ada Lindgren", "12 Birch Lane", now)
	s.Require().NoError(err)
	s.Require().NoError(s.workflows.CreateTransaction(ctx, tr))

	c, err := conditionmodels.New(id.NewConditionID(), tr.ID, "Financing approved",
		conditionmodels.CategoryFinancing, conditionmodels.LevelBlocking, now)
	s.Require().NoError(err)
	s.Require().NoError(s.conditions.Create(ctx, c))
	return c
}

func (s *PostgresEvidenceSuite) TestSaveAndList() {
	ctx := context.Background()
	c := s.seedCondition()
	now := time.Now().UTC().Truncate(time.Millisecond)
	actor := id.NewUserID()

	first := &evidence.Evidence{
		ID:          id.NewEvidenceID(),
		ConditionID: c.ID,
		Kind:        evidence.KindFile,
		Ref:         "doc://approval-letter",
		Note:        "bank approval letter",
		CreatedAt:   now,
		CreatedBy:   actor,
	}
	s.Require().NoError(s.store.Save(ctx, first))

	second := &evidence.Evidence{
		ID:          id.NewEvidenceID(),
		ConditionID: c.ID,
		Kind:        evidence.KindLink,
		Ref:         "https://example.com/terms",
		CreatedAt:   now.Add(time.Second),
	}
	s.Require().NoError(s.store.Save(ctx, second))

	rows, err := s.store.ListByCondition(ctx, c.ID)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)

	s.Equal(first.ID, rows[0].ID)
	s.Equal(evidence.KindFile, rows[0].Kind)
	s.Equal("bank approval letter", rows[0].Note)
	s.Equal(actor, rows[0].CreatedBy)
	s.True(first.CreatedAt.Equal(rows[0].CreatedAt))

	s.Equal(second.ID, rows[1].ID)
	s.True(rows[1].CreatedBy.IsZero(), "absent actor reads back as the zero id")
}

func (s *PostgresEvidenceSuite) TestListScopedToCondition() {
	ctx := context.Background()
	mine := s.seedCondition()
	other := s.seedCondition()
	now := time.Now().UTC().Truncate(time.Millisecond)

	s.Require().NoError(s.store.Save(ctx, &evidence.Evidence{
		ID: id.NewEvidenceID(), ConditionID: mine.ID,
		Kind: evidence.KindNote, Ref: "inline", CreatedAt: now,
	}))

	rows, err := s.store.ListByCondition(ctx, other.ID)
	s.Require().NoError(err)
	s.Empty(rows)
}
