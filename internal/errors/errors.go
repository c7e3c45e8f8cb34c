package errors

import (
	"errors"
	"fmt"
)

// ServiceError is the structured error type returned at the service boundary.
// The dispatcher turns it into the tagged error result seen by clients.
type ServiceError struct {
	// Code is the unique error code (e.g., "ERR_201_INDEX_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Kind is the client-facing category, derived from Code.
	Kind Kind

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// Is matches by code so errors.Is works against the sentinels below.
func (e *ServiceError) Is(target error) bool {
	if t, ok := target.(*ServiceError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *ServiceError) WithDetail(key, value string) *ServiceError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *ServiceError) WithSuggestion(suggestion string) *ServiceError {
	e.Suggestion = suggestion
	return e
}

// New creates a ServiceError. Kind and retryability are derived from the code.
func New(code string, message string, cause error) *ServiceError {
	return &ServiceError{
		Code:      code,
		Message:   message,
		Kind:      kindFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Newf creates a ServiceError with a formatted message and no cause.
func Newf(code string, format string, args ...any) *ServiceError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a ServiceError from an existing error.
// An error that already carries a ServiceError in its chain is returned as is.
func Wrap(code string, err error) *ServiceError {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return New(code, err.Error(), err)
}

// ValidationError creates a validation error for a malformed request field.
func ValidationError(message string) *ServiceError {
	return New(ErrCodeInvalidInput, message, nil)
}

// MissingField creates a validation error for an absent required field.
func MissingField(field string) *ServiceError {
	return Newf(ErrCodeMissingField, "%s is required", field).WithDetail("field", field)
}

// IndexNotFound reports that no corpus is persisted under name.
func IndexNotFound(name string) *ServiceError {
	return Newf(ErrCodeIndexNotFound, "index %q not found", name).
		WithDetail("index", name).
		WithSuggestion("Run 'semsearch list' to see existing indexes")
}

// DocumentNotFound reports that the corpus holds no document with id.
func DocumentNotFound(name, id string) *ServiceError {
	return Newf(ErrCodeDocumentNotFound, "document %q not found in index %q", id, name).
		WithDetail("index", name).
		WithDetail("document", id)
}

// IndexExists reports a create against an already persisted corpus.
func IndexExists(name string) *ServiceError {
	return Newf(ErrCodeIndexExists, "index %q already exists", name).WithDetail("index", name)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *ServiceError {
	return New(ErrCodeInternal, message, cause)
}

// KindOf reports the Kind of err. Errors that are not ServiceErrors are
// treated as internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// IsKind checks whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// GetCode extracts the error code from a ServiceError.
// Returns empty string if not a ServiceError.
func GetCode(err error) string {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
