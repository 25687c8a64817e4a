package models

import "time"

// StepTemplate is one blueprint entry. Templates are immutable and
// read-only to the core; they exist to instantiate TransactionSteps.
type StepTemplate struct {
	Name                  string
	StepOrder             int
	TypicalDuration       time.Duration
	RequiresAcceptedOffer bool
}

// WorkflowTemplate is the ordered blueprint for one transaction type.
// StepOrder values are unique and contiguous starting at 1.
type WorkflowTemplate struct {
	Type  TransactionType
	Steps []StepTemplate
}

const day = 24 * time.Hour

// TemplateFor returns the blueprint for a transaction type. The catalogs
// ship with the binary; an external template service can replace this
// lookup without touching the engine.
func TemplateFor(txType TransactionType) WorkflowTemplate {
	switch txType {
	case TypeSale:
		return WorkflowTemplate{
			Type: TypeSale,
			Steps: []StepTemplate{
				{Name: "Listing Preparation", StepOrder: 1, TypicalDuration: 7 * day},
				{Name: "Active Listing", StepOrder: 2, TypicalDuration: 30 * day},
				{Name: "Offer Review", StepOrder: 3, TypicalDuration: 5 * day},
				{Name: "Conditional Period", StepOrder: 4, TypicalDuration: 14 * day, RequiresAcceptedOffer: true},
				{Name: "Closing Preparation", StepOrder: 5, TypicalDuration: 21 * day, RequiresAcceptedOffer: true},
				{Name: "Closing", StepOrder: 6, TypicalDuration: 1 * day, RequiresAcceptedOffer: true},
			},
		}
	default:
		return WorkflowTemplate{
			Type: TypePurchase,
			Steps: []StepTemplate{
				{Name: "Buyer Qualification", StepOrder: 1, TypicalDuration: 7 * day},
				{Name: "Property Search", StepOrder: 2, TypicalDuration: 30 * day},
				{Name: "Offer Negotiation", StepOrder: 3, TypicalDuration: 7 * day},
				{Name: "Conditional Period", StepOrder: 4, TypicalDuration: 14 * day, RequiresAcceptedOffer: true},
				{Name: "Closing Preparation", StepOrder: 5, TypicalDuration: 21 * day, RequiresAcceptedOffer: true},
				{Name: "Closing", StepOrder: 6, TypicalDuration: 1 * day, RequiresAcceptedOffer: true},
			},
		}
	}
}
