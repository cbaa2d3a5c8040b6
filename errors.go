package blockfs

import "fmt"

// DriverError is the single error channel every blockfs operation uses, the
// idiomatic Go rendering of the negative-integer/null-handle contract a
// systems language would use. It chains onto a sentinel DiskoError so callers
// can test with errors.Is.
type DriverError interface {
	error
	WithMessage(message string) DriverError
	Wrap(err error) DriverError
	Unwrap() error
}

type customDriverError struct {
	message  string
	sentinel DiskoError
	wrapped  error
}

func (e customDriverError) Error() string {
	return e.message
}

func (e customDriverError) WithMessage(message string) DriverError {
	return customDriverError{
		message:  fmt.Sprintf("%s: %s", e.sentinel.Error(), message),
		sentinel: e.sentinel,
	}
}

func (e customDriverError) Wrap(err error) DriverError {
	return customDriverError{
		message:  fmt.Sprintf("%s: %s", e.sentinel.Error(), err.Error()),
		sentinel: e.sentinel,
		wrapped:  err,
	}
}

// Unwrap lets errors.As and manual unwrapping reach the wrapped cause, if
// any.
func (e customDriverError) Unwrap() error {
	return e.wrapped
}

// Is lets errors.Is(err, ErrNotFound) still match after Wrap/WithMessage:
// without it, Unwrap returning only the wrapped cause would make the
// sentinel unreachable in the chain.
func (e customDriverError) Is(target error) bool {
	return e.sentinel == target
}

// DiskoError is a sentinel error kind. Declaring the taxonomy as typed string
// constants (rather than an int code) keeps errors.Is usable while matching
// spec's "errors are kinds, not codes" design.
type DiskoError string

func (e DiskoError) Error() string {
	return string(e)
}

func (e DiskoError) WithMessage(message string) DriverError {
	return customDriverError{
		message:  fmt.Sprintf("%s: %s", e.Error(), message),
		sentinel: e,
	}
}

func (e DiskoError) Wrap(err error) DriverError {
	return customDriverError{
		message:  fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		sentinel: e,
		wrapped:  err,
	}
}

func (e DiskoError) Unwrap() error {
	return nil
}

// CastToDriverError wraps a plain error (e.g. from the host filesystem) as a
// DriverError with ErrIOFailed as its sentinel, unless it's already a
// DriverError.
func CastToDriverError(err error) DriverError {
	if err == nil {
		return nil
	}
	if de, ok := err.(DriverError); ok {
		return de
	}
	return ErrIOFailed.Wrap(err)
}
