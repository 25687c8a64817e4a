package models

import (
	"strings"

	dErrors "dealflow/pkg/domain-errors"
)

// EscapeConfirmationPhrase is the canonical phrase an operator must retype
// to resolve a blocking condition without proof. Comparison is
// case-insensitive. Display localization is a caller concern; the core
// never branches on localized text.
const EscapeConfirmationPhrase = "I understand the risks"

// MinEscapeReasonLength is the minimum trimmed length of an escape reason.
const MinEscapeReasonLength = 10

// ResolveInput carries everything a resolution may need: the resolution
// type, an optional note, the evidence reference, and the escape-hatch
// fields for resolving a blocking condition without proof.
type ResolveInput struct {
	ResolutionType ResolutionType `json:"resolution_type"`
	Note           string         `json:"note,omitempty"`

	HasEvidence bool   `json:"has_evidence"`
	EvidenceRef string `json:"evidence_ref,omitempty"`

	EscapedWithoutProof bool   `json:"escaped_without_proof"`
	EscapeReason        string `json:"escape_reason,omitempty"`
	Acknowledged        bool   `json:"acknowledged"`
	ConfirmationPhrase  string `json:"confirmation_phrase,omitempty"`
}

// validate applies the level-specific preconditions. Blocking conditions
// need evidence or a complete escape hatch; required conditions are
// encouraged but not forced to carry evidence; recommended conditions have
// no evidence rule.
func (in ResolveInput) validate(level Level) error {
	if !in.ResolutionType.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "invalid resolution type %q", in.ResolutionType)
	}
	if in.HasEvidence && in.EvidenceRef == "" {
		return dErrors.New(dErrors.CodeValidation, "has_evidence is set but no evidence reference was supplied")
	}

	if level != LevelBlocking {
		return nil
	}

	if in.HasEvidence {
		return nil
	}
	if !in.EscapedWithoutProof {
		return dErrors.New(dErrors.CodeValidation, "blocking condition requires evidence or an explicit escape without proof")
	}
	if len(strings.TrimSpace(in.EscapeReason)) < MinEscapeReasonLength {
		return dErrors.Newf(dErrors.CodeValidation, "escape reason must be at least %d characters", MinEscapeReasonLength)
	}
	if !in.Acknowledged {
		return dErrors.New(dErrors.CodeValidation, "escape must be explicitly acknowledged")
	}
	if !strings.EqualFold(strings.TrimSpace(in.ConfirmationPhrase), EscapeConfirmationPhrase) {
		return dErrors.New(dErrors.CodeValidation, "confirmation phrase does not match")
	}
	return nil
}
