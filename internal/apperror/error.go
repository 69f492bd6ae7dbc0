// Package apperror defines the typed errors returned by memory graph
// operations. Each error has a Kind that tells the caller whether a retry can
// help.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for recovery purposes.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAmbiguous
	KindConsentRequired
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAmbiguous:
		return "ambiguous"
	case KindConsentRequired:
		return "consent_required"
	case KindStorage:
		return "storage"
	default:
		return "internal"
	}
}

// Error is an operation failure with a stable code and optional details.
type Error struct {
	Kind     Kind
	Code     string
	Message  string
	Internal error
	Details  map[string]any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the internal error
func (e *Error) Unwrap() error {
	return e.Internal
}

// Retryable reports whether the same request may succeed later. Only storage
// and internal failures qualify; the rest need different input.
func (e *Error) Retryable() bool {
	return e.Kind == KindStorage || e.Kind == KindInternal
}

// HTTPStatus maps the kind to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAmbiguous:
		return http.StatusConflict
	case KindConsentRequired:
		return http.StatusForbidden
	case KindStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WithInternal returns a copy of the error with an internal error attached
func (e *Error) WithInternal(err error) *Error {
	cp := e.clone()
	cp.Internal = err
	return cp
}

// WithMessage returns a copy of the error with a custom message
func (e *Error) WithMessage(message string) *Error {
	cp := e.clone()
	cp.Message = message
	return cp
}

// WithDetails returns a copy of the error with details merged in
func (e *Error) WithDetails(details map[string]any) *Error {
	cp := e.clone()
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	cp.Details = merged
	return cp
}

func (e *Error) clone() *Error {
	cp := *e
	return &cp
}

// New creates a new application error
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Common errors. Codes double as reclassification result statuses.
var (
	ErrValidation      = New(KindValidation, "validation_error", "Validation failed")
	ErrInvalidSector   = New(KindValidation, "invalid_sector", "Invalid memory sector")
	ErrNotFound        = New(KindNotFound, "not_found", "Resource not found")
	ErrAmbiguous       = New(KindAmbiguous, "ambiguous", "Multiple edges match; supply edge_id")
	ErrConsentRequired = New(KindConsentRequired, "consent_required", "Constitutive edge requires an approved bilateral proposal")
	ErrStorage         = New(KindStorage, "error", "Storage operation failed")
	ErrInternal        = New(KindInternal, "error", "An internal error occurred")
)

// NewValidation creates a validation error with a custom message
func NewValidation(message string) *Error {
	return ErrValidation.WithMessage(message)
}

// NewNotFound creates a not found error for a resource type and key
func NewNotFound(resource, key string) *Error {
	return ErrNotFound.WithMessage(fmt.Sprintf("%s %s not found", resource, key))
}

// NewStorage wraps a storage failure. The underlying error is kept verbatim.
func NewStorage(op string, err error) *Error {
	return ErrStorage.WithMessage(op + " failed").WithInternal(err)
}

// As returns err as an *Error, if it is one.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}
