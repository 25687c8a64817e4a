package models

import (
	conditionmodels "dealflow/internal/condition/models"
	id "dealflow/pkg/domain"
)

// DeadlineReference anchors a template's relative due-date offset.
type DeadlineReference string

const (
	// DeadlineFromClosing offsets from the transaction's closing date. When
	// the transaction has no closing date yet, the materialized condition
	// carries no due date.
	DeadlineFromClosing DeadlineReference = "closing_date"
	// DeadlineFromApplication offsets from the moment the pack is applied.
	DeadlineFromApplication DeadlineReference = "application"
)

// ConditionTemplate is one entry in a condition pack. Applying a pack
// materializes each template into a live condition on the transaction,
// unless one from the same template already exists.
type ConditionTemplate struct {
	ID       id.TemplateID            `json:"id"`
	PackID   id.PackID                `json:"pack_id"`
	Title    string                   `json:"title"`
	Category conditionmodels.Category `json:"category"`
	Level    conditionmodels.Level    `json:"level"`

	// OffsetDays shifts the due date relative to DeadlineReference. Zero
	// with an empty reference means no due date.
	OffsetDays        int               `json:"offset_days"`
	DeadlineReference DeadlineReference `json:"deadline_reference,omitempty"`

	// Global templates materialize unassigned conditions that gate every
	// step; otherwise the condition attaches to the active step.
	Global bool `json:"global"`
}

// Pack is a named bundle of condition templates.
type Pack struct {
	ID        id.PackID           `json:"id"`
	Name      string              `json:"name"`
	Templates []ConditionTemplate `json:"templates"`
}
