package domain

import (
	"github.com/google/uuid"

	dErrors "dealflow/pkg/domain-errors"
)

// Typed UUID identifiers. Distinct types keep a ConditionID from ever being
// passed where a TransactionID is expected; the compiler enforces it.
type (
	TransactionID uuid.UUID
	StepID        uuid.UUID
	ConditionID   uuid.UUID
	TemplateID    uuid.UUID
	PackID        string
	PartyID       uuid.UUID
	EvidenceID    uuid.UUID
	UserID        uuid.UUID
)

func (id TransactionID) String() string { return uuid.UUID(id).String() }
func (id StepID) String() string        { return uuid.UUID(id).String() }
func (id ConditionID) String() string   { return uuid.UUID(id).String() }
func (id TemplateID) String() string    { return uuid.UUID(id).String() }
func (id PartyID) String() string       { return uuid.UUID(id).String() }
func (id EvidenceID) String() string    { return uuid.UUID(id).String() }
func (id UserID) String() string        { return uuid.UUID(id).String() }

// Text marshaling keeps the wire form a canonical UUID string. Without
// these, encoding/json would render the underlying byte array.
func (id TransactionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id StepID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id ConditionID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id TemplateID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id PartyID) MarshalText() ([]byte, error)       { return []byte(id.String()), nil }
func (id EvidenceID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id UserID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }

func (id *TransactionID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	*id = TransactionID(parsed)
	return err
}

func (id *StepID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	*id = StepID(parsed)
	return err
}

func (id *ConditionID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	*id = ConditionID(parsed)
	return err
}

func (id *TemplateID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	*id = TemplateID(parsed)
	return err
}

func (id *PartyID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	*id = PartyID(parsed)
	return err
}

func (id *EvidenceID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	*id = EvidenceID(parsed)
	return err
}

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := uuid.Parse(string(b))
	*id = UserID(parsed)
	return err
}

func (id TransactionID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }
func (id StepID) IsZero() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ConditionID) IsZero() bool   { return uuid.UUID(id) == uuid.Nil }
func (id TemplateID) IsZero() bool    { return uuid.UUID(id) == uuid.Nil }
func (id PartyID) IsZero() bool       { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsZero() bool        { return uuid.UUID(id) == uuid.Nil }

// parseUUID enforces the shared invariant: IDs must be valid, non-empty,
// non-nil UUIDs. Parse failures are invalid-input errors so handlers map
// them to 400s at trust boundaries.
func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be the nil UUID")
	}
	return parsed, nil
}

func ParseTransactionID(raw string) (TransactionID, error) {
	parsed, err := parseUUID(raw, "transaction")
	return TransactionID(parsed), err
}

func ParseStepID(raw string) (StepID, error) {
	parsed, err := parseUUID(raw, "step")
	return StepID(parsed), err
}

func ParseConditionID(raw string) (ConditionID, error) {
	parsed, err := parseUUID(raw, "condition")
	return ConditionID(parsed), err
}

func ParseTemplateID(raw string) (TemplateID, error) {
	parsed, err := parseUUID(raw, "template")
	return TemplateID(parsed), err
}

func ParsePartyID(raw string) (PartyID, error) {
	parsed, err := parseUUID(raw, "party")
	return PartyID(parsed), err
}

func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw, "user")
	return UserID(parsed), err
}

// MustParseTemplateID panics on an invalid UUID. For compiled-in catalog
// data only, never for user input.
func MustParseTemplateID(raw string) TemplateID {
	return TemplateID(uuid.MustParse(raw))
}

func NewTransactionID() TransactionID { return TransactionID(uuid.New()) }
func NewStepID() StepID               { return StepID(uuid.New()) }
func NewConditionID() ConditionID     { return ConditionID(uuid.New()) }
func NewTemplateID() TemplateID       { return TemplateID(uuid.New()) }
func NewPartyID() PartyID             { return PartyID(uuid.New()) }
func NewEvidenceID() EvidenceID       { return EvidenceID(uuid.New()) }
func NewUserID() UserID               { return UserID(uuid.New()) }
