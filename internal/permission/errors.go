package permission

import (
	"errors"
	"fmt"
)

// Error categories. Every *Error unwraps to exactly one of these.
var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrNotFound         = errors.New("not found")
)

// Error is returned by the manager for rejected or malformed requests.
type Error struct {
	Kind      error  // one of the Err* categories
	Parameter string // set for ErrInvalidParameter
	Message   string
	// Denied is set when the user explicitly denied the request.
	Denied bool
}

func (e *Error) Error() string {
	if e.Parameter != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Parameter, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func invalidParameter(param, format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidParameter, Parameter: param, Message: fmt.Sprintf(format, args...)}
}

func invalidOperation(format string, args ...any) *Error {
	return &Error{Kind: ErrInvalidOperation, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func deniedError(requestID string) *Error {
	return &Error{Kind: ErrInvalidOperation, Message: "permission denied by user: " + requestID, Denied: true}
}

// IsDenied reports whether err is a user denial.
func IsDenied(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Denied
}
