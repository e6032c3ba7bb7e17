package models

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType int

const (
	ErrConfigLoad ErrorType = iota
	ErrAliasNotFoundType
	ErrDuplicateAliasType
	ErrPersist
	ErrInvalidConfig
	ErrExternal
)

// Sentinel errors usable with errors.Is against any *APMError of the same type.
var (
	ErrConfigLoadFailed = &APMError{Type: ErrConfigLoad}
	ErrAliasNotFound    = &APMError{Type: ErrAliasNotFoundType}
	ErrDuplicateAlias   = &APMError{Type: ErrDuplicateAliasType}
	ErrPersistFailed    = &APMError{Type: ErrPersist}
)

// String returns the string representation of ErrorType
func (e ErrorType) String() string {
	switch e {
	case ErrConfigLoad:
		return "ConfigLoadError"
	case ErrAliasNotFoundType:
		return "AliasNotFound"
	case ErrDuplicateAliasType:
		return "DuplicateAlias"
	case ErrPersist:
		return "PersistError"
	case ErrInvalidConfig:
		return "InvalidConfig"
	case ErrExternal:
		return "External"
	default:
		return "Unknown"
	}
}

// APMError carries the error kind, the alias, file or package it concerns,
// and the underlying cause.
type APMError struct {
	Type    ErrorType
	Subject string
	Err     error
}

// Error implements the error interface
func (e *APMError) Error() string {
	switch {
	case e.Subject != "" && e.Err != nil:
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Subject, e.Err)
	case e.Subject != "":
		return fmt.Sprintf("[%s] %s", e.Type, e.Subject)
	case e.Err != nil:
		return fmt.Sprintf("[%s] %v", e.Type, e.Err)
	default:
		return fmt.Sprintf("[%s]", e.Type)
	}
}

// Unwrap returns the wrapped error
func (e *APMError) Unwrap() error {
	return e.Err
}

// Is matches any APMError of the same type, so callers can compare against
// the sentinel values above.
func (e *APMError) Is(target error) bool {
	t, ok := target.(*APMError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

// NewError builds an APMError.
func NewError(t ErrorType, subject string, err error) *APMError {
	return &APMError{Type: t, Subject: subject, Err: err}
}

// KindOf returns the ErrorType of the first APMError in err's chain.
func KindOf(err error) (ErrorType, bool) {
	var apmErr *APMError
	if errors.As(err, &apmErr) {
		return apmErr.Type, true
	}
	return 0, false
}
