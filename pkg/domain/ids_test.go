package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "dealflow/pkg/domain-errors"
)

func TestParseRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"garbage", "not-a-uuid"},
		{"nil uuid", "00000000-0000-0000-0000-000000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTransactionID(tt.raw)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestParseRoundTrips(t *testing.T) {
	original := NewConditionID()
	parsed, err := ParseConditionID(original.String())
	require.NoError(t, err)
	assert.Equal(t, original, parsed)
}

func TestJSONMarshalsAsString(t *testing.T) {
	txID := NewTransactionID()

	raw, err := json.Marshal(txID)
	require.NoError(t, err)
	assert.Equal(t, `"`+txID.String()+`"`, string(raw))

	var decoded TransactionID
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, txID, decoded)
}

func TestIsZero(t *testing.T) {
	assert.True(t, TransactionID{}.IsZero())
	assert.False(t, NewTransactionID().IsZero())
	assert.True(t, UserID{}.IsZero())
}
