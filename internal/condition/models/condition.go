package models

import (
	"time"

	id "dealflow/pkg/domain"
	dErrors "dealflow/pkg/domain-errors"
)

// Level grades how strongly a condition gates step advancement.
type Level string

const (
	// LevelBlocking conditions must be resolved (with evidence or a
	// deliberate escape) before their step can advance.
	LevelBlocking Level = "blocking"
	// LevelRequired conditions should be resolved but do not gate
	// advancement by themselves.
	LevelRequired Level = "required"
	// LevelRecommended conditions are advisory and freely toggled.
	LevelRecommended Level = "recommended"
)

func (l Level) Valid() bool {
	switch l {
	case LevelBlocking, LevelRequired, LevelRecommended:
		return true
	}
	return false
}

// Status is the condition's resolution state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// ResolutionType records how a completed condition was closed out. It is
// set only while Status is completed.
type ResolutionType string

const (
	ResolutionCompleted       ResolutionType = "completed"
	ResolutionWaived          ResolutionType = "waived"
	ResolutionNotApplicable   ResolutionType = "not_applicable"
	ResolutionSkippedWithRisk ResolutionType = "skipped_with_risk"
)

func (r ResolutionType) Valid() bool {
	switch r {
	case ResolutionCompleted, ResolutionWaived, ResolutionNotApplicable, ResolutionSkippedWithRisk:
		return true
	}
	return false
}

// Category is the persisted condition kind. Logic branches on this field,
// never on display titles, which are localized and free-text.
type Category string

const (
	CategoryGeneral              Category = "general"
	CategoryFinancing            Category = "financing"
	CategoryInspection           Category = "inspection"
	CategoryInsurance            Category = "insurance"
	CategoryIdentityVerification Category = "identity_verification"
)

// Condition is a gating unit attached to a transaction and, usually, to one
// of its steps. A nil StepID means the condition is unassigned/global and
// participates in every step's gate until archived.
//
// Invariants:
//   - Status transitions: pending → completed; completed → pending only for
//     recommended level (via unresolve)
//   - ResolutionType is set iff Status is completed
//   - Once completed at blocking or required level the record is immutable
//   - Archived conditions accept no further mutation and no longer gate
type Condition struct {
	ID             id.ConditionID   `json:"id"`
	TransactionID  id.TransactionID `json:"transaction_id"`
	StepID         *id.StepID       `json:"step_id,omitempty"`
	TemplateID     *id.TemplateID   `json:"template_id,omitempty"`
	Title          string           `json:"title"`
	Category       Category         `json:"category"`
	Level          Level            `json:"level"`
	Status         Status           `json:"status"`
	ResolutionType ResolutionType   `json:"resolution_type,omitempty"`

	DueDate *time.Time `json:"due_date,omitempty"`

	Note        string `json:"note,omitempty"`
	EvidenceRef string `json:"evidence_ref,omitempty"`

	EscapedWithoutProof bool   `json:"escaped_without_proof,omitempty"`
	EscapeReason        string `json:"escape_reason,omitempty"`

	Archived   bool       `json:"archived"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy id.UserID  `json:"completed_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsBlocking reports whether the condition gates advancement. The legacy
// boolean column is normalized into Level at the storage boundary; this
// derived accessor is the only surviving trace of it.
func (c *Condition) IsBlocking() bool {
	return c.Level == LevelBlocking
}

// Immutable reports whether the record may never leave completed state.
func (c *Condition) Immutable() bool {
	return c.Status == StatusCompleted && c.Level != LevelRecommended
}

// Gating reports whether the condition still participates in its step's
// gate decision.
func (c *Condition) Gating() bool {
	return !c.Archived && c.Status == StatusPending
}

// CanResolve checks whether a resolution may be applied. Returns a conflict
// error for archived/immutable records and a validation error when the
// input does not satisfy the level's evidence rules.
// Use with ApplyResolution in Execute callbacks.
func (c *Condition) CanResolve(input ResolveInput) error {
	if c.Archived || c.Immutable() {
		return dErrors.New(dErrors.CodeConflict, "condition is archived")
	}
	return input.validate(c.Level)
}

// ApplyResolution marks the condition completed and stores the resolution
// fields. Call CanResolve first.
func (c *Condition) ApplyResolution(input ResolveInput, now time.Time, actor id.UserID) {
	c.Status = StatusCompleted
	c.ResolutionType = input.ResolutionType
	if input.Note != "" {
		c.Note = input.Note
	}
	if input.HasEvidence {
		c.EvidenceRef = input.EvidenceRef
	}
	c.EscapedWithoutProof = input.EscapedWithoutProof
	if input.EscapedWithoutProof {
		c.EscapeReason = input.EscapeReason
	}
	c.CompletedAt = &now
	c.CompletedBy = actor
	c.UpdatedAt = now
}

// CanUnresolve checks whether the condition may return to pending. Only
// recommended-level conditions toggle; everything else is final once
// completed.
func (c *Condition) CanUnresolve() error {
	if c.Archived {
		return dErrors.New(dErrors.CodeConflict, "condition is archived")
	}
	if c.Level != LevelRecommended {
		return dErrors.New(dErrors.CodeConflict, "only recommended conditions can be unresolved")
	}
	if c.Status != StatusCompleted {
		return dErrors.New(dErrors.CodeConflict, "condition is not completed")
	}
	return nil
}

// ApplyUnresolve resets the condition to pending. Call CanUnresolve first.
func (c *Condition) ApplyUnresolve(now time.Time) {
	c.Status = StatusPending
	c.ResolutionType = ""
	c.CompletedAt = nil
	c.CompletedBy = id.UserID{}
	c.UpdatedAt = now
}

// ApplyArchive freezes the condition when its owning step closes. Pending
// recommended conditions are archived as-is: no resolution type, recorded
// as left pending at step close.
func (c *Condition) ApplyArchive(now time.Time) {
	if c.Archived {
		return
	}
	c.Archived = true
	c.ArchivedAt = &now
	c.UpdatedAt = now
}

// New validates and constructs a pending condition.
func New(conditionID id.ConditionID, txID id.TransactionID, title string, category Category, level Level, now time.Time) (*Condition, error) {
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "condition title cannot be empty")
	}
	if !level.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "invalid condition level %q", level)
	}
	if category == "" {
		category = CategoryGeneral
	}
	return &Condition{
		ID:            conditionID,
		TransactionID: txID,
		Title:         title,
		Category:      category,
		Level:         level,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
