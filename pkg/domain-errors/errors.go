// Package dErrors provides coded domain errors. Services attach a Code so
// transport layers can map failures to responses without string matching,
// and callers can branch with HasCode instead of unwrapping concrete types.
package dErrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. Gating and validation failures are
// expected outcomes, not exceptional ones; the code is the contract.
type Code string

const (
	// CodeValidation marks malformed or incomplete input, including unmet
	// escape-hatch requirements on blocking conditions.
	CodeValidation Code = "validation"
	// CodeBadRequest marks requests that are structurally wrong (bad JSON,
	// missing body fields).
	CodeBadRequest Code = "bad_request"
	// CodeInvalidInput marks values that fail parsing at trust boundaries
	// (IDs, enums).
	CodeInvalidInput Code = "invalid_input"
	// CodeNotFound marks a missing entity.
	CodeNotFound Code = "not_found"
	// CodeConflict marks state conflicts: resolving an already-immutable
	// condition, acting on an archived record, stale gating checks.
	CodeConflict Code = "conflict"
	// CodeGatingBlocked marks an advance attempted while blocking
	// conditions are pending. The error usually wraps a typed value
	// carrying the blocking list.
	CodeGatingBlocked Code = "gating_blocked"
	// CodeConcurrencyConflict marks optimistic-concurrency failures; the
	// operation is always safe to retry.
	CodeConcurrencyConflict Code = "concurrency_conflict"
	// CodeExternalDependency marks notifier/document-store failures that
	// never corrupt an already-committed transition.
	CodeExternalDependency Code = "external_dependency"
	// CodeInvariantViolation marks broken model invariants.
	CodeInvariantViolation Code = "invariant_violation"
	CodeForbidden          Code = "forbidden"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal"
)

// Error is a coded domain error. It wraps an optional cause for errors.Is
// and errors.As chains.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil cause
// returns nil so call sites can wrap unconditionally.
func Wrap(cause error, code Code, message string) error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: cause}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	for errors.As(err, &domainErr) {
		if domainErr.Code == code {
			return true
		}
		err = domainErr.cause
		domainErr = nil
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries none.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}
