package errors

import (
	stderrors "errors"

	"github.com/Sheshiyer/sacred-wallpaper-tg-ui/internal/platform/errors/i18n"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs/telemetry)
	Metadata map[string]string // Additional context for templating
	Cause    error             // Wrapped underlying error
	// Transport marks a computation failure caused by the network rather than
	// by the remote service rejecting the request.
	Transport bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error with metadata for i18n templating.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ComputationFailed builds the remote failure error. userMessage is shown to
// the user verbatim.
func ComputationFailed(userMessage string, transport bool, cause error) *Error {
	return &Error{
		Code:      CodeComputationFailed,
		Message:   userMessage,
		Metadata:  map[string]string{"message": userMessage},
		Cause:     cause,
		Transport: transport,
	}
}

// As returns the first domain error in err's chain.
func As(err error) (*Error, bool) {
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// GetCode returns the code of the first domain error in err's chain, or
// CodeUnknown.
func GetCode(err error) Code {
	if domainErr, ok := As(err); ok {
		return domainErr.Code
	}
	return CodeUnknown
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// Retryable reports whether a caller may retry the failed operation: only
// transport-classified computation failures qualify.
func Retryable(err error) bool {
	domainErr, ok := As(err)
	return ok && domainErr.Code == CodeComputationFailed && domainErr.Transport
}

// LocalizedMessage renders the user-facing message for locale.
func (e *Error) LocalizedMessage(locale string) string {
	return i18n.GetCatalog(locale).Format(string(e.Code), e.Metadata)
}

// UserMessage renders a user-facing message for any error; errors outside
// the taxonomy render as CodeUnknown.
func UserMessage(err error, locale string) string {
	if err == nil {
		return ""
	}
	if domainErr, ok := As(err); ok {
		return domainErr.LocalizedMessage(locale)
	}
	return i18n.GetCatalog(locale).Format(string(CodeUnknown), nil)
}
