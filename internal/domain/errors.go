package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Every failure that crosses a repository or handler
// boundary wraps exactly one of these so callers can classify it.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrStore             = errors.New("store failure")
	ErrCacheLoad         = errors.New("cache load failure")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// ErrorKind is the coarse classification of a failure.
type ErrorKind string

const (
	KindNone              ErrorKind = ""
	KindNotFound          ErrorKind = "not_found"
	KindValidation        ErrorKind = "validation"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindCacheLoad         ErrorKind = "cache_load"
	KindStore             ErrorKind = "store"
)

// KindOf classifies err. Not-found and validation take precedence over the
// cache-load wrapper, so a loader miss still reads as not found.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrCacheLoad):
		return KindCacheLoad
	default:
		return KindStore
	}
}

// Invalid builds a validation error for a named field.
func Invalid(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrValidation, field, fmt.Sprintf(format, args...))
}

// NotFound builds a not-found error for the given key.
func NotFound(what string, key any) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, what, key)
}
