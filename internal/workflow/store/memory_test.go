package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealflow/internal/workflow/models"
	id "dealflow/pkg/domain"
	"dealflow/pkg/platform/sentinel"
)

func seedTransaction(t *testing.T, s *InMemory, stepCount int) *models.Transaction {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	tr, err := models.NewTransaction(id.NewTransactionID(), models.TypePurchase, "Ada Lindgren", "12 Birch Lane", now)
	require.NoError(t, err)
	require.NoError(t, s.CreateTransaction(ctx, tr))

	for i := 1; i <= stepCount; i++ {
		step := &models.TransactionStep{
			ID:            id.NewStepID(),
			TransactionID: tr.ID,
			Name:          "Step",
			StepOrder:     i,
			Status:        models.StepPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		require.NoError(t, s.CreateStep(ctx, step))
	}
	return tr
}

func TestInMemoryTransactions(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	tr := seedTransaction(t, s, 0)

	found, err := s.FindTransaction(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.ClientName, found.ClientName)

	_, err = s.FindTransaction(ctx, id.NewTransactionID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	found.ClientName = "changed"
	require.NoError(t, s.UpdateTransaction(ctx, found))
	again, err := s.FindTransaction(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, "changed", again.ClientName)
}

func TestInMemoryStepsOrderingAndUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	tr := seedTransaction(t, s, 3)

	steps, err := s.ListSteps(ctx, tr.ID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	for i, step := range steps {
		assert.Equal(t, i+1, step.StepOrder)
	}

	dup := &models.TransactionStep{
		ID:            id.NewStepID(),
		TransactionID: tr.ID,
		Name:          "Duplicate order",
		StepOrder:     2,
		Status:        models.StepPending,
	}
	assert.ErrorIs(t, s.CreateStep(ctx, dup), sentinel.ErrConflict)

	second, err := s.FindStepByOrder(ctx, tr.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, second.StepOrder)

	_, err = s.FindStepByOrder(ctx, tr.ID, 9)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
