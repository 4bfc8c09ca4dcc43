package shared

import "errors"

// ErrorKind classifies a DomainError so callers can react without parsing codes
type ErrorKind string

const (
	KindInvalidArgument     ErrorKind = "INVALID_ARGUMENT"
	KindUnitMismatch        ErrorKind = "UNIT_MISMATCH"
	KindCurrencyMismatch    ErrorKind = "CURRENCY_MISMATCH"
	KindInvalidState        ErrorKind = "INVALID_STATE"
	KindInvariantViolation  ErrorKind = "INVARIANT_VIOLATION"
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindConcurrencyConflict ErrorKind = "CONCURRENCY_CONFLICT"
)

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError of the same kind.
// A target with an empty Code matches every code of that kind.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// NewInvalidArgumentError creates an INVALID_ARGUMENT error
func NewInvalidArgumentError(code, message string) *DomainError {
	return NewDomainError(KindInvalidArgument, code, message)
}

// NewInvalidStateError creates an INVALID_STATE error
func NewInvalidStateError(code, message string) *DomainError {
	return NewDomainError(KindInvalidState, code, message)
}

// NewInvariantViolationError creates an INVARIANT_VIOLATION error
func NewInvariantViolationError(code, message string) *DomainError {
	return NewDomainError(KindInvariantViolation, code, message)
}

// KindOf returns the kind of the first DomainError in err's chain, or "" if none
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// Kind sentinels, for use with errors.Is
var (
	ErrInvalidArgument     = &DomainError{Kind: KindInvalidArgument, Message: "Invalid argument"}
	ErrUnitMismatch        = &DomainError{Kind: KindUnitMismatch, Message: "Quantity units do not match"}
	ErrCurrencyMismatch    = &DomainError{Kind: KindCurrencyMismatch, Message: "Currencies do not match"}
	ErrInvalidState        = &DomainError{Kind: KindInvalidState, Message: "Operation not allowed in current state"}
	ErrInvariantViolation  = &DomainError{Kind: KindInvariantViolation, Message: "Invariant violated"}
	ErrNotFound            = &DomainError{Kind: KindNotFound, Message: "Resource not found"}
	ErrConcurrencyConflict = &DomainError{Kind: KindConcurrencyConflict, Message: "Resource was modified by another process"}
)

// Errors with a fixed code
var (
	ErrInsufficientStock = NewDomainError(KindInvariantViolation, "INSUFFICIENT_STOCK", "Insufficient stock available")
	ErrOptimisticLock    = NewDomainError(KindConcurrencyConflict, "OPTIMISTIC_LOCK_FAILED", "Record was modified by another transaction")
)
