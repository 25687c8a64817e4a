package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "dealflow/pkg/domain"
	dErrors "dealflow/pkg/domain-errors"
)

func newTestCondition(t *testing.T, level Level) *Condition {
	t.Helper()
	c, err := New(id.NewConditionID(), id.NewTransactionID(), "Financing approved", CategoryFinancing, level, time.Now())
	require.NoError(t, err)
	return c
}

func TestConditionImmutability(t *testing.T) {
	now := time.Now()
	actor := id.NewUserID()

	t.Run("completed blocking condition is immutable", func(t *testing.T) {
		c := newTestCondition(t, LevelBlocking)
		input := ResolveInput{ResolutionType: ResolutionCompleted, HasEvidence: true, EvidenceRef: "doc://a"}
		require.NoError(t, c.CanResolve(input))
		c.ApplyResolution(input, now, actor)

		assert.True(t, c.Immutable())
		err := c.CanResolve(input)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		assert.True(t, dErrors.HasCode(c.CanUnresolve(), dErrors.CodeConflict))
	})

	t.Run("completed recommended condition can unresolve", func(t *testing.T) {
		c := newTestCondition(t, LevelRecommended)
		input := ResolveInput{ResolutionType: ResolutionCompleted}
		require.NoError(t, c.CanResolve(input))
		c.ApplyResolution(input, now, actor)

		assert.False(t, c.Immutable())
		require.NoError(t, c.CanUnresolve())
		c.ApplyUnresolve(now)
		assert.Equal(t, StatusPending, c.Status)
		assert.Empty(t, c.ResolutionType)
		assert.Nil(t, c.CompletedAt)
	})

	t.Run("pending recommended condition cannot unresolve", func(t *testing.T) {
		c := newTestCondition(t, LevelRecommended)
		assert.True(t, dErrors.HasCode(c.CanUnresolve(), dErrors.CodeConflict))
	})

	t.Run("archived condition rejects all mutation", func(t *testing.T) {
		c := newTestCondition(t, LevelRecommended)
		c.ApplyArchive(now)

		err := c.CanResolve(ResolveInput{ResolutionType: ResolutionCompleted})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		assert.True(t, dErrors.HasCode(c.CanUnresolve(), dErrors.CodeConflict))
		assert.False(t, c.Gating())
	})
}

func TestConditionResolutionRecordsEscape(t *testing.T) {
	c := newTestCondition(t, LevelBlocking)
	now := time.Now()
	actor := id.NewUserID()

	input := ResolveInput{
		ResolutionType:      ResolutionSkippedWithRisk,
		EscapedWithoutProof: true,
		EscapeReason:        "lender letter delayed past the deadline",
		Acknowledged:        true,
		ConfirmationPhrase:  EscapeConfirmationPhrase,
	}
	require.NoError(t, c.CanResolve(input))
	c.ApplyResolution(input, now, actor)

	assert.Equal(t, StatusCompleted, c.Status)
	assert.True(t, c.EscapedWithoutProof)
	assert.Equal(t, input.EscapeReason, c.EscapeReason)
	assert.Equal(t, actor, c.CompletedBy)
	require.NotNil(t, c.CompletedAt)
	assert.False(t, c.Gating())
}

func TestArchivePreservesPendingState(t *testing.T) {
	c := newTestCondition(t, LevelRecommended)
	now := time.Now()

	c.ApplyArchive(now)

	assert.True(t, c.Archived)
	assert.Equal(t, StatusPending, c.Status, "archive records the condition as left pending, not resolved")
	assert.Empty(t, c.ResolutionType)
}
