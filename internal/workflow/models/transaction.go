package models

import (
	"time"

	id "dealflow/pkg/domain"
	dErrors "dealflow/pkg/domain-errors"
)

// TransactionType distinguishes the two workflow blueprints.
type TransactionType string

const (
	TypePurchase TransactionType = "purchase"
	TypeSale     TransactionType = "sale"
)

func (t TransactionType) Valid() bool {
	return t == TypePurchase || t == TypeSale
}

// Transaction is the aggregate root for one real-estate deal.
//
// Invariants:
//   - At most one step is active at a time
//   - CurrentStepID is non-nil iff an active step exists
//   - CurrentStepID == nil means the lifecycle is complete
type Transaction struct {
	ID            id.TransactionID `json:"id"`
	Type          TransactionType  `json:"type"`
	ClientName    string           `json:"client_name"`
	PropertyRef   string           `json:"property_ref"`
	ClosingDate   *time.Time       `json:"closing_date,omitempty"`
	CurrentStepID *id.StepID       `json:"current_step_id,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Complete reports whether the lifecycle has run through every step.
func (t *Transaction) Complete() bool {
	return t.CurrentStepID == nil
}

// NewTransaction validates and constructs a transaction. Steps are
// instantiated separately from the workflow template.
func NewTransaction(txID id.TransactionID, txType TransactionType, clientName, propertyRef string, now time.Time) (*Transaction, error) {
	if !txType.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "invalid transaction type %q", txType)
	}
	if clientName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "client name cannot be empty")
	}
	return &Transaction{
		ID:          txID,
		Type:        txType,
		ClientName:  clientName,
		PropertyRef: propertyRef,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
