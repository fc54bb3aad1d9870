package service

import (
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

// Error taxonomy shared by every component. Callers test with errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrTransient        = errors.New("temporary failure")

	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrEmailNotVerified = errors.New("email not verified")
	ErrConflict         = errors.New("conflict")
)

// FieldError is a validation failure tied to one input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Message }

func (e *FieldError) Unwrap() error { return ErrValidation }

func invalid(field, message string) error {
	return &FieldError{Field: field, Message: message}
}

// opError keeps the user-facing message of a failed operation while unwrapping to its category and cause.
type opError struct {
	kind    error
	message string
	cause   error
}

func (e *opError) Error() string { return e.message }

func (e *opError) Unwrap() []error { return []error{e.kind, e.cause} }

// mongo server error codes treated as authorization failures.
const (
	codeUnauthorized = 13
	codeAuthFailed   = 18
)

// classify maps a store error onto the taxonomy. what names the operation for the message,
// e.g. "create e-books".
func classify(err error, what string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrTransient):
		return err
	case errors.Is(err, mongo.ErrNoDocuments):
		return &opError{kind: ErrNotFound, message: "The requested document could not be found.", cause: err}
	case isPermissionError(err):
		return &opError{
			kind:    ErrPermissionDenied,
			message: "You don't have permission to " + what + ". Please contact the administrator.",
			cause:   err,
		}
	}
	return &opError{kind: ErrTransient, message: "Unable to " + what + ". Please try again.", cause: err}
}

func isPermissionError(err error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorCode(codeUnauthorized) || se.HasErrorCode(codeAuthFailed)) {
		return true
	}
	var sc interface{ HTTPStatusCode() int }
	if errors.As(err, &sc) {
		if code := sc.HTTPStatusCode(); code == 401 || code == 403 {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "not authorized") ||
		strings.Contains(msg, "permission") ||
		strings.Contains(msg, "access denied")
}
