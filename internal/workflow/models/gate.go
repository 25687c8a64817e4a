package models

import (
	"fmt"

	conditionmodels "dealflow/internal/condition/models"
)

// GateResult is the pure advance-check projection: which conditions still
// stand between the active step and the next one. It never mutates state
// and is safe to recompute concurrently.
type GateResult struct {
	CanAdvance bool `json:"can_advance"`

	BlockingConditions           []*conditionmodels.Condition `json:"blocking_conditions"`
	RequiredPendingConditions    []*conditionmodels.Condition `json:"required_pending_conditions"`
	RecommendedPendingConditions []*conditionmodels.Condition `json:"recommended_pending_conditions"`

	RequiresAcceptedOffer bool `json:"requires_accepted_offer"`
	HasAcceptedOffer      bool `json:"has_accepted_offer"`
}

// ComputeGate folds a condition set and the offer policy into a decision.
// Required-level conditions are reported but do not gate in this engine;
// caller policy may treat them differently.
func ComputeGate(conditions []*conditionmodels.Condition, requiresOffer, hasOffer bool) *GateResult {
	result := &GateResult{
		RequiresAcceptedOffer: requiresOffer,
		HasAcceptedOffer:      hasOffer,
	}
	for _, c := range conditions {
		if !c.Gating() {
			continue
		}
		switch c.Level {
		case conditionmodels.LevelBlocking:
			result.BlockingConditions = append(result.BlockingConditions, c)
		case conditionmodels.LevelRequired:
			result.RequiredPendingConditions = append(result.RequiredPendingConditions, c)
		case conditionmodels.LevelRecommended:
			result.RecommendedPendingConditions = append(result.RecommendedPendingConditions, c)
		}
	}
	result.CanAdvance = len(result.BlockingConditions) == 0 && (!requiresOffer || hasOffer)
	return result
}

// BlockingConditionsError carries the blocking list so callers can render a
// targeted remediation path. It is an expected outcome, not an exceptional
// one; transport wraps it with CodeGatingBlocked.
type BlockingConditionsError struct {
	Gate *GateResult
}

func (e *BlockingConditionsError) Error() string {
	if e.Gate.RequiresAcceptedOffer && !e.Gate.HasAcceptedOffer && len(e.Gate.BlockingConditions) == 0 {
		return "step requires an accepted offer"
	}
	return fmt.Sprintf("%d blocking conditions pending", len(e.Gate.BlockingConditions))
}
